package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// SavePaymentSession stores the session of a tenant, replacing an earlier one.
func (r *Repository) SavePaymentSession(ctx context.Context, s domain.PaymentSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_sessions (tenant_id, provider, external_id, url, methods, trial_days, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET provider = excluded.provider, external_id = excluded.external_id,
		 url = excluded.url, methods = excluded.methods, trial_days = excluded.trial_days, created_at = excluded.created_at`,
		s.TenantID, s.Provider, s.ExternalID, s.URL, joinMethods(s.Methods), s.TrialDays, formatTime(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving payment session: %w", err)
	}
	return nil
}

// PaymentSession returns the current session of a tenant.
func (r *Repository) PaymentSession(ctx context.Context, tenantID string) (domain.PaymentSession, error) {
	var s domain.PaymentSession
	var methods, createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id, provider, external_id, url, methods, trial_days, created_at
		 FROM payment_sessions WHERE tenant_id = ?`, tenantID,
	).Scan(&s.TenantID, &s.Provider, &s.ExternalID, &s.URL, &methods, &s.TrialDays, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PaymentSession{}, domain.ErrNoPaymentSession
	}
	if err != nil {
		return domain.PaymentSession{}, fmt.Errorf("reading payment session: %w", err)
	}
	s.Methods = splitMethods(methods)
	s.CreatedAt = parseTime(createdAt)
	return s, nil
}

func joinMethods(methods []domain.PaymentMethod) string {
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}

func splitMethods(s string) []domain.PaymentMethod {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]domain.PaymentMethod, len(parts))
	for i, p := range parts {
		out[i] = domain.PaymentMethod(p)
	}
	return out
}
