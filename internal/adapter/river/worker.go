package river

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// PaymentRetrier opens a payment session for a stored tenant unless one
// already exists; opened is false when it left the tenant alone.
type PaymentRetrier interface {
	Resume(ctx context.Context, tenantID string) (session domain.PaymentSession, opened bool, err error)
}

// RecoveryPurger removes expired recovery copies.
type RecoveryPurger interface {
	Purge(ctx context.Context) (int64, error)
}

// EventWorker logs published domain events.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]
	logger *zap.Logger
}

func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	w.logger.Info("processing event",
		zap.String("event", job.Args.Event),
		zap.String("tenant_id", job.Args.TenantID),
		zap.String("tenant_slug", job.Args.Slug),
		zap.String("plan", job.Args.Plan),
		zap.String("monthly_amount", job.Args.MonthlyAmount),
		zap.Time("occurred_at", job.Args.OccurredAt),
		zap.Int64("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}

// PaymentRetryWorker retries payment sessions that failed during
// provisioning. Missing or cancelled tenants cancel the job.
type PaymentRetryWorker struct {
	river.WorkerDefaults[PaymentRetryArgs]
	retrier PaymentRetrier
	logger  *zap.Logger
}

func (w *PaymentRetryWorker) Timeout(*river.Job[PaymentRetryArgs]) time.Duration {
	return 30 * time.Second
}

func (w *PaymentRetryWorker) Work(ctx context.Context, job *river.Job[PaymentRetryArgs]) error {
	session, opened, err := w.retrier.Resume(ctx, job.Args.TenantID)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.Is(err, domain.ErrTenantNotFound) || errors.As(err, &vErr) {
			w.logger.Warn("payment retry abandoned",
				zap.String("tenant_id", job.Args.TenantID),
				zap.Error(err),
			)
			return river.JobCancel(err)
		}
		w.logger.Warn("payment retry failed",
			zap.String("tenant_id", job.Args.TenantID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		return err
	}

	if !opened {
		w.logger.Info("payment retry skipped, session already open",
			zap.String("tenant_id", job.Args.TenantID),
			zap.String("session_id", session.ExternalID),
		)
		return nil
	}

	w.logger.Info("payment session opened on retry",
		zap.String("tenant_id", job.Args.TenantID),
		zap.String("session_id", session.ExternalID),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}

// RecoveryPurgeWorker runs the periodic recovery purge.
type RecoveryPurgeWorker struct {
	river.WorkerDefaults[RecoveryPurgeArgs]
	purger RecoveryPurger
	logger *zap.Logger
}

func (w *RecoveryPurgeWorker) Work(ctx context.Context, _ *river.Job[RecoveryPurgeArgs]) error {
	n, err := w.purger.Purge(ctx)
	if err != nil {
		return err
	}
	w.logger.Debug("recovery purge done", zap.Int64("deleted", n))
	return nil
}
