package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// PaymentOpener opens a recurring payment session for a tenant and records it.
type PaymentOpener struct {
	gateway  domain.PaymentGateway
	sessions domain.PaymentSessionStore
	tenants  domain.TenantRepository
	notifier *Notifier
	clock    domain.Clock
	currency string
}

// NewPaymentOpener creates an opener charging in currency. notifier delivers
// links opened by Resume; it may be nil.
func NewPaymentOpener(gateway domain.PaymentGateway, sessions domain.PaymentSessionStore, tenants domain.TenantRepository, notifier *Notifier, clock domain.Clock, currency string) *PaymentOpener {
	return &PaymentOpener{gateway: gateway, sessions: sessions, tenants: tenants, notifier: notifier, clock: clock, currency: currency}
}

// Current returns the stored session of a tenant, nil when none was opened.
func (o *PaymentOpener) Current(ctx context.Context, tenantID string) (*domain.PaymentSession, error) {
	session, err := o.sessions.PaymentSession(ctx, tenantID)
	if errors.Is(err, domain.ErrNoPaymentSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Resume finishes a payment setup that failed during provisioning. A tenant
// that already has a session, for instance one an operator opened by hand,
// is left alone and opened is false. Otherwise the new link is mailed to the
// owner, whose welcome mail went out without one. A failed mail is recorded in
// the notification log and does not fail the call.
func (o *PaymentOpener) Resume(ctx context.Context, tenantID string) (session domain.PaymentSession, opened bool, err error) {
	tenant, err := o.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return domain.PaymentSession{}, false, err
	}
	if tenant.Status == domain.StatusCancelled {
		return domain.PaymentSession{}, false, &domain.ValidationError{Field: "status", Reason: "tenant is cancelled"}
	}

	existing, err := o.Current(ctx, tenantID)
	if err != nil {
		return domain.PaymentSession{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	session, err = o.Open(ctx, tenant)
	if err != nil {
		return domain.PaymentSession{}, false, err
	}

	if o.notifier != nil {
		_ = o.notifier.PaymentLink(ctx, tenant.ID, domain.PaymentLinkNotice{
			TenantName:    tenant.Name,
			OwnerName:     tenant.Owner.FullName(),
			To:            tenant.Owner.Email,
			URL:           session.URL,
			Plan:          tenant.Plan,
			MonthlyAmount: tenant.MonthlyAmount,
			TrialEndsAt:   tenant.TrialEndsAt,
		})
	}
	return session, true, nil
}

// Retry reloads a tenant and opens a new session for it, replacing any
// earlier one. Cancelled tenants are refused with a *domain.ValidationError.
func (o *PaymentOpener) Retry(ctx context.Context, tenantID string) (domain.PaymentSession, error) {
	tenant, err := o.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return domain.PaymentSession{}, err
	}
	if tenant.Status == domain.StatusCancelled {
		return domain.PaymentSession{}, &domain.ValidationError{Field: "status", Reason: "tenant is cancelled"}
	}
	return o.Open(ctx, tenant)
}

// Open asks the gateway for a session billing MonthlyAmount after a trial that
// ends at TrialEndsAt, then stores it.
func (o *PaymentOpener) Open(ctx context.Context, tenant domain.Tenant) (domain.PaymentSession, error) {
	req := domain.SessionRequest{
		TenantID:      tenant.ID,
		Plan:          tenant.Plan,
		Amount:        tenant.MonthlyAmount,
		Currency:      o.currency,
		TrialDays:     domain.TrialDaysUntil(o.clock.Now(), tenant.TrialEndsAt),
		CustomerEmail: billingEmail(tenant),
		MandateRef:    tenant.Mandate.Reference,
		Methods:       []domain.PaymentMethod{domain.MethodCard, domain.MethodSEPADebit},
	}

	session, err := o.gateway.CreateSession(ctx, req)
	if err != nil {
		return domain.PaymentSession{}, fmt.Errorf("creating %s session: %w", o.gateway.Provider(), err)
	}
	if session.TenantID == "" {
		session.TenantID = tenant.ID
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = o.clock.Now()
	}

	if err := o.sessions.SavePaymentSession(ctx, session); err != nil {
		return domain.PaymentSession{}, err
	}
	return session, nil
}

func billingEmail(t domain.Tenant) string {
	if t.Billing.Email != "" {
		return t.Billing.Email
	}
	return t.Owner.Email
}
