package river

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

var _ domain.RetryScheduler = (*Scheduler)(nil)

// PaymentRetryArgs asks for a new payment session for a tenant. Only the id
// travels through the queue; the worker reloads the tenant.
type PaymentRetryArgs struct {
	TenantID string `json:"tenant_id"`
}

func (PaymentRetryArgs) Kind() string { return "payment_session.retry" }

func (PaymentRetryArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 8,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// RecoveryPurgeArgs triggers deletion of expired credential recovery copies.
type RecoveryPurgeArgs struct{}

func (RecoveryPurgeArgs) Kind() string { return "credential_recovery.purge" }

// Scheduler queues payment session retries.
type Scheduler struct {
	client *Client
	delay  time.Duration
}

// NewScheduler creates a scheduler whose first retry runs after delay.
func NewScheduler(client *Client, delay time.Duration) *Scheduler {
	return &Scheduler{client: client, delay: delay}
}

func (s *Scheduler) SchedulePaymentRetry(ctx context.Context, tenantID string) error {
	opts := &river.InsertOpts{}
	if s.delay > 0 {
		opts.ScheduledAt = time.Now().Add(s.delay)
	}
	if _, err := s.client.Insert(ctx, PaymentRetryArgs{TenantID: tenantID}, opts); err != nil {
		return fmt.Errorf("enqueuing payment retry: %w", err)
	}
	return nil
}
