package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// TenantService orchestrates tenant operations after provisioning.
type TenantService struct {
	repo        domain.TenantRepository
	publisher   domain.EventPublisher
	validator   domain.TransitionValidator
	payments    *PaymentOpener
	documents   domain.DocumentReader
	credentials domain.CredentialStore
	sealer      domain.SecretSealer
	clock       domain.Clock
	logger      *zap.Logger
}

// TenantServiceDeps are the collaborators of TenantService. Sealer is optional;
// without it credential recovery is unavailable.
type TenantServiceDeps struct {
	Repo        domain.TenantRepository
	Publisher   domain.EventPublisher
	Validator   domain.TransitionValidator
	Payments    *PaymentOpener
	Documents   domain.DocumentReader
	Credentials domain.CredentialStore
	Sealer      domain.SecretSealer
	Clock       domain.Clock
	Logger      *zap.Logger
}

// NewTenantService creates a service with the given adapters.
func NewTenantService(deps TenantServiceDeps) *TenantService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantService{
		repo:        deps.Repo,
		publisher:   deps.Publisher,
		validator:   deps.Validator,
		payments:    deps.Payments,
		documents:   deps.Documents,
		credentials: deps.Credentials,
		sealer:      deps.Sealer,
		clock:       deps.Clock,
		logger:      logger,
	}
}

// GetByID returns a tenant by its unique identifier.
func (s *TenantService) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// PaymentSession returns the current payment session of a tenant, nil when
// none has been opened yet.
func (s *TenantService) PaymentSession(ctx context.Context, id string) (*domain.PaymentSession, error) {
	return s.payments.Current(ctx, id)
}

// TenantDocuments is everything issued to a tenant, oldest first.
type TenantDocuments struct {
	Invoices  []domain.Invoice
	Contracts []domain.Contract
}

// Documents lists the invoices and contracts of a tenant so they can be
// downloaded or resent by hand.
func (s *TenantService) Documents(ctx context.Context, id string) (TenantDocuments, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return TenantDocuments{}, err
	}

	invoices, err := s.documents.InvoicesByTenant(ctx, id)
	if err != nil {
		return TenantDocuments{}, err
	}
	contracts, err := s.documents.ContractsByTenant(ctx, id)
	if err != nil {
		return TenantDocuments{}, err
	}
	return TenantDocuments{Invoices: invoices, Contracts: contracts}, nil
}

// AllowedEvents lists the lifecycle events a tenant in status accepts.
func (s *TenantService) AllowedEvents(status domain.Status) []domain.Event {
	return s.validator.Available(status)
}

// Transition applies a lifecycle event to a tenant, changing its state.
func (s *TenantService) Transition(ctx context.Context, id string, event domain.Event) (domain.Tenant, error) {
	tenant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}

	newStatus, err := s.validator.Apply(ctx, tenant.Status, event)
	if err != nil {
		return domain.Tenant{}, err
	}

	tenant.Status = newStatus
	tenant.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("updating tenant: %w", err)
	}

	if err := s.publisher.Publish(ctx, event, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("publishing event %q: %w", event, err)
	}

	return tenant, nil
}

// RetryPaymentSession opens a new payment session for an existing tenant.
func (s *TenantService) RetryPaymentSession(ctx context.Context, id string) (domain.PaymentSession, error) {
	session, err := s.payments.Retry(ctx, id)
	if err != nil {
		s.logger.Error("payment session retry failed",
			zap.String("tenant_id", id),
			zap.Error(err),
		)
		return domain.PaymentSession{}, err
	}

	s.logger.Info("payment session opened", zap.String("tenant_id", id), zap.String("session_id", session.ExternalID))
	return session, nil
}

// RecoverCredential reveals the sealed first-login credential once, while it
// has not expired.
func (s *TenantService) RecoverCredential(ctx context.Context, id string) (domain.Secret, error) {
	if s.sealer == nil {
		return "", domain.ErrRecoveryUnavailable
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return "", err
	}

	blob, err := s.credentials.TakeRecovery(ctx, id, s.clock.Now())
	if err != nil {
		return "", err
	}

	plain, err := s.sealer.Open(blob.Ciphertext())
	if err != nil {
		return "", fmt.Errorf("opening recovery copy: %w", err)
	}

	s.logger.Info("credential recovered", zap.String("tenant_id", id))
	return domain.Secret(plain), nil
}
