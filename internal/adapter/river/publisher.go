package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

var _ domain.EventPublisher = (*Publisher)(nil)

// QueueEvents carries lifecycle events, apart from retries and maintenance.
const QueueEvents = "events"

// EventJobArgs is a snapshot of the tenant at publish time, so the worker
// never reads the database.
type EventJobArgs struct {
	Event         string    `json:"event"`
	TenantID      string    `json:"tenant_id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Subdomain     string    `json:"subdomain"`
	Status        string    `json:"status"`
	Plan          string    `json:"plan"`
	MonthlyAmount string    `json:"monthly_amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (EventJobArgs) Kind() string { return "event.published" }

func (EventJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueEvents, MaxAttempts: 5}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a domain event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event, tenant domain.Tenant) error {
	_, err := p.client.Insert(ctx, EventJobArgs{
		Event:         string(event),
		TenantID:      tenant.ID,
		Name:          tenant.Name,
		Slug:          tenant.Slug,
		Subdomain:     tenant.Subdomain,
		Status:        string(tenant.Status),
		Plan:          string(tenant.Plan),
		MonthlyAmount: tenant.MonthlyAmount.StringFixed(2),
		OccurredAt:    tenant.UpdatedAt,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}
