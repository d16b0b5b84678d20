package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"
)

// Deps are the collaborators of the job workers. Purger is optional; without
// it no purge job is scheduled.
type Deps struct {
	Payments      PaymentRetrier
	Purger        RecoveryPurger
	PurgeInterval time.Duration
	Logger        *zap.Logger
}

// Setup runs River's migrations and creates a client with every worker
// registered. The caller starts and stops the client.
func Setup(ctx context.Context, db *sql.DB, deps Deps) (*Client, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	driver := riversqlite.New(db)

	// River's own tables, separate from the goose migrations.
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("running river migrations: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &EventWorker{logger: deps.Logger})
	river.AddWorker(workers, &PaymentRetryWorker{retrier: deps.Payments, logger: deps.Logger})

	var periodic []*river.PeriodicJob
	if deps.Purger != nil {
		interval := deps.PurgeInterval
		if interval <= 0 {
			interval = time.Hour
		}
		river.AddWorker(workers, &RecoveryPurgeWorker{purger: deps.Purger, logger: deps.Logger})
		periodic = append(periodic, river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) {
				return RecoveryPurgeArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))
	}

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
			QueueEvents:        {MaxWorkers: 1},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}
