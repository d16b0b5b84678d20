package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// RecoveryPurger deletes sealed recovery copies once their window closes.
type RecoveryPurger struct {
	store  domain.CredentialStore
	clock  domain.Clock
	logger *zap.Logger
}

func NewRecoveryPurger(store domain.CredentialStore, clock domain.Clock, logger *zap.Logger) *RecoveryPurger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecoveryPurger{store: store, clock: clock, logger: logger}
}

// Purge returns the number of copies removed.
func (p *RecoveryPurger) Purge(ctx context.Context) (int64, error) {
	n, err := p.store.PurgeExpiredRecovery(ctx, p.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("expired recovery copies purged", zap.Int64("count", n))
	}
	return n, nil
}
