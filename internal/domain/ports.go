package domain

import (
	"context"
	"time"
)

// TenantRepository defines the persistence contract for tenants.
type TenantRepository interface {
	// CheckIdentity returns a *ConflictError if any part of the identity is taken.
	CheckIdentity(ctx context.Context, id Identity) error
	// CreateAggregate writes the tenant and all its dependents in one transaction.
	// A uniqueness violation is reported as *ConflictError.
	CreateAggregate(ctx context.Context, agg Aggregate) (AggregateRefs, error)
	GetByID(ctx context.Context, id string) (Tenant, error)
	Update(ctx context.Context, tenant Tenant) error
	// Delete removes the tenant and, by cascade, every dependent row.
	Delete(ctx context.Context, id string) error
}

// DocumentRepository stores issued financial documents.
type DocumentRepository interface {
	// IssueInvoice takes the next number of the year of inv.IssuedAt, renders
	// and stores the invoice atomically. When render or the insert fails the
	// number is released.
	IssueInvoice(ctx context.Context, inv Invoice, prefix string, render func(Invoice) ([]byte, error)) (Invoice, error)
	IssueContract(ctx context.Context, c Contract, prefix string, render func(Contract) ([]byte, error)) (Contract, error)
}

// DocumentReader lists what was issued to a tenant.
type DocumentReader interface {
	InvoicesByTenant(ctx context.Context, tenantID string) ([]Invoice, error)
	ContractsByTenant(ctx context.Context, tenantID string) ([]Contract, error)
}

// CredentialStore persists administrator credentials.
type CredentialStore interface {
	StoreCredential(ctx context.Context, cred StoredCredential) error
	// TakeRecovery returns and deletes the recovery blob of a tenant's admin.
	// It returns ErrRecoveryUnavailable when none exists or it has expired.
	TakeRecovery(ctx context.Context, tenantID string, now time.Time) (RecoveryBlob, error)
	PurgeExpiredRecovery(ctx context.Context, now time.Time) (int64, error)
}

// PaymentSessionStore keeps the latest payment session of each tenant.
type PaymentSessionStore interface {
	SavePaymentSession(ctx context.Context, s PaymentSession) error
	// PaymentSession returns ErrNoPaymentSession when the tenant has none.
	PaymentSession(ctx context.Context, tenantID string) (PaymentSession, error)
}

// NotificationLog records every send attempt.
type NotificationLog interface {
	RecordNotification(ctx context.Context, rec NotificationRecord) error
}

// PaymentGateway opens recurring billing arrangements.
type PaymentGateway interface {
	Provider() string
	CreateSession(ctx context.Context, req SessionRequest) (PaymentSession, error)
}

// DocumentRenderer produces PDF bytes from issued documents.
type DocumentRenderer interface {
	RenderInvoice(ctx context.Context, inv Invoice) ([]byte, error)
	RenderContract(ctx context.Context, c Contract) ([]byte, error)
}

// Mailer sends transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MessageComposer renders notices into messages.
type MessageComposer interface {
	Welcome(n WelcomeNotice) (Message, error)
	StaffAlert(n StaffNotice) (Message, error)
	PaymentLink(n PaymentLinkNotice) (Message, error)
}

// CredentialGenerator produces one-time administrator passwords.
type CredentialGenerator interface {
	Generate() (Secret, error)
}

// PasswordHasher hashes credentials for authentication.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) bool
}

// SecretSealer encrypts data at rest.
type SecretSealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// EventPublisher defines the contract for emitting domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, tenant Tenant) error
}

// RetryScheduler queues out-of-band retries of enrichment work.
type RetryScheduler interface {
	SchedulePaymentRetry(ctx context.Context, tenantID string) error
}

// TransitionValidator checks and applies lifecycle events.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
	// Available lists the events accepted from current.
	Available(current Status) []Event
}

// Clock tells the current time.
type Clock interface {
	Now() time.Time
}
