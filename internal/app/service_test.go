package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neomorfeo/tenantforge/internal/app"
	"github.com/neomorfeo/tenantforge/internal/domain"
)

func TestTransition_HappyPath(t *testing.T) {
	h := newHarness(t)
	res := mustProvision(t, h, testRequest("acme"))
	svc := h.service()
	ctx := context.Background()

	// trial → active
	tenant, err := svc.Transition(ctx, res.TenantID, domain.EventActivate)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if tenant.Status != domain.StatusActive {
		t.Errorf("Status = %q, want %q", tenant.Status, domain.StatusActive)
	}

	// active → suspended
	tenant, err = svc.Transition(ctx, res.TenantID, domain.EventSuspend)
	if err != nil {
		t.Fatalf("suspend failed: %v", err)
	}
	if tenant.Status != domain.StatusSuspended {
		t.Errorf("Status = %q, want %q", tenant.Status, domain.StatusSuspended)
	}

	// suspended → active
	h.clock.Advance(time.Hour)
	tenant, err = svc.Transition(ctx, res.TenantID, domain.EventReactivate)
	if err != nil {
		t.Fatalf("reactivate failed: %v", err)
	}
	if tenant.Status != domain.StatusActive {
		t.Errorf("Status = %q, want %q", tenant.Status, domain.StatusActive)
	}

	stored, err := svc.GetByID(ctx, res.TenantID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.StatusActive {
		t.Errorf("stored Status = %q", stored.Status)
	}
	if !stored.UpdatedAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("UpdatedAt = %v, want %v", stored.UpdatedAt, testNow.Add(time.Hour))
	}

	// provisioned + activate + suspend + reactivate
	if got := len(h.publisher.published()); got != 4 {
		t.Errorf("published = %d, want 4", got)
	}
}

func TestTransition_InvalidEvent(t *testing.T) {
	h := newHarness(t)
	res := mustProvision(t, h, testRequest("acme"))
	svc := h.service()

	// Can't reactivate a tenant that was never suspended.
	_, err := svc.Transition(context.Background(), res.TenantID, domain.EventReactivate)
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if trErr.Event != domain.EventReactivate {
		t.Errorf("event = %q, want %q", trErr.Event, domain.EventReactivate)
	}
	if trErr.Current != domain.StatusTrial {
		t.Errorf("current = %q, want %q", trErr.Current, domain.StatusTrial)
	}
}

func TestTransition_NotFound(t *testing.T) {
	h := newHarness(t)
	svc := h.service()

	_, err := svc.Transition(context.Background(), "nonexistent", domain.EventSuspend)
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestTransition_PublishFailure(t *testing.T) {
	h := newHarness(t)
	res := mustProvision(t, h, testRequest("acme"))
	h.publisher.err = errBoom

	_, err := h.service().Transition(context.Background(), res.TenantID, domain.EventActivate)
	if !errors.Is(err, errBoom) {
		t.Errorf("expected publish error, got %v", err)
	}
}

func TestAllowedEvents(t *testing.T) {
	h := newHarness(t)
	got := h.service().AllowedEvents(domain.StatusSuspended)
	if len(got) != 2 {
		t.Errorf("AllowedEvents(SUSPENDED) = %v, want cancel and reactivate", got)
	}
}

func TestRetryPaymentSession(t *testing.T) {
	h := newHarness(t)
	h.gateway.err = errBoom
	res := mustProvision(t, h, testRequest("acme"))
	if res.PaymentLink != nil {
		t.Fatal("expected the first attempt to fail")
	}

	h.gateway.err = nil
	session, err := h.service().RetryPaymentSession(context.Background(), res.TenantID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if session.URL == "" || session.TenantID != res.TenantID {
		t.Errorf("session = %+v", session)
	}

	stored, err := h.repo.PaymentSession(context.Background(), res.TenantID)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if stored.ExternalID != session.ExternalID {
		t.Errorf("stored ExternalID = %q, want %q", stored.ExternalID, session.ExternalID)
	}
}

func TestRetryPaymentSession_CancelledTenant(t *testing.T) {
	h := newHarness(t)
	res := mustProvision(t, h, testRequest("acme"))
	svc := h.service()
	if _, err := svc.Transition(context.Background(), res.TenantID, domain.EventCancel); err != nil {
		t.Fatal(err)
	}

	_, err := svc.RetryPaymentSession(context.Background(), res.TenantID)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestRecoverCredential_OneShot(t *testing.T) {
	h := newHarness(t)
	res := mustProvision(t, h, testRequest("acme"))
	svc := h.service()

	secret, err := svc.RecoverCredential(context.Background(), res.TenantID)
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if secret.Reveal() != res.Credential.Reveal() {
		t.Errorf("recovered credential does not match the issued one")
	}

	_, err = svc.RecoverCredential(context.Background(), res.TenantID)
	if !errors.Is(err, domain.ErrRecoveryUnavailable) {
		t.Errorf("second recovery: expected ErrRecoveryUnavailable, got %v", err)
	}
}

func TestRecoverCredential_Expired(t *testing.T) {
	h := newHarness(t)
	res := mustProvision(t, h, testRequest("acme"))
	h.clock.Advance(h.cfg.RecoveryWindow)

	_, err := h.service().RecoverCredential(context.Background(), res.TenantID)
	if !errors.Is(err, domain.ErrRecoveryUnavailable) {
		t.Errorf("expected ErrRecoveryUnavailable, got %v", err)
	}
}

func TestRecoverCredential_Disabled(t *testing.T) {
	h := newHarness(t)
	h.sealer = nil
	res := mustProvision(t, h, testRequest("acme"))

	_, err := h.service().RecoverCredential(context.Background(), res.TenantID)
	if !errors.Is(err, domain.ErrRecoveryUnavailable) {
		t.Errorf("expected ErrRecoveryUnavailable, got %v", err)
	}
}

func TestRecoveryPurger(t *testing.T) {
	h := newHarness(t)
	mustProvision(t, h, testRequest("acme"))
	mustProvision(t, h, testRequest("zen"))
	purger := app.NewRecoveryPurger(h.repo, h.clock, nil)

	n, err := purger.Purge(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("purged %d before expiry, want 0", n)
	}

	h.clock.Advance(h.cfg.RecoveryWindow + time.Minute)
	n, err = purger.Purge(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("purged %d, want 2", n)
	}
}
