package otel

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// DBConfig tunes the shared SQLite handle.
type DBConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// OpenDB opens the tenant store with otelsql tracing and pool metrics. The
// handle is shared by the repository and the River job queue, so it keeps a
// single connection and transactions serialize.
func OpenDB(cfg DBConfig) (*sql.DB, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	db, err := otelsql.Open("sqlite", cfg.Path,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
		otelsql.WithSpanOptions(otelsql.SpanOptions{
			DisableErrSkip:       true,
			OmitConnResetSession: true,
			OmitRows:             true,
			SpanFilter:           skipBackgroundPolling,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("opening instrumented database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []struct{ name, value string }{
		{"journal_mode", "WAL"},
		{"foreign_keys", "ON"},
		{"busy_timeout", fmt.Sprint(cfg.BusyTimeout.Milliseconds())},
	}
	for _, p := range pragmas {
		if _, err := db.Exec("PRAGMA " + p.name + "=" + p.value); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %s: %w", p.name, err)
		}
	}

	if _, err := otelsql.RegisterDBStatsMetrics(db,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering db stats metrics: %w", err)
	}

	return db, nil
}

// skipBackgroundPolling drops spans for River's own tables unless they run
// under a traced operation. The producer polls every second and would
// otherwise bury the provisioning traces.
func skipBackgroundPolling(ctx context.Context, _ otelsql.Method, query string, _ []driver.NamedValue) bool {
	if !strings.Contains(query, "river_") {
		return true
	}
	return trace.SpanContextFromContext(ctx).IsValid()
}
