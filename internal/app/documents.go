package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// DocumentPrefixes are the numbering prefixes of each series.
type DocumentPrefixes struct {
	Invoice  string
	Contract string
}

// DocumentIssuer numbers, renders and stores the onboarding documents.
type DocumentIssuer struct {
	repo     domain.DocumentRepository
	renderer domain.DocumentRenderer
	clock    domain.Clock
	prefixes DocumentPrefixes
	logger   *zap.Logger
}

// NewDocumentIssuer creates an issuer.
func NewDocumentIssuer(repo domain.DocumentRepository, renderer domain.DocumentRenderer, clock domain.Clock, prefixes DocumentPrefixes, logger *zap.Logger) *DocumentIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentIssuer{repo: repo, renderer: renderer, clock: clock, prefixes: prefixes, logger: logger}
}

// Issue produces a setup invoice when there are one-time charges, the first
// subscription invoice and the onboarding contract. Each document is
// independent: a failed one is left nil and its error joined into the result.
func (d *DocumentIssuer) Issue(ctx context.Context, tenant domain.Tenant, pricing domain.PricingResult) (domain.IssuedDocuments, error) {
	issuedAt := d.clock.Now()
	snapshot := Snapshot(tenant, pricing)

	var docs domain.IssuedDocuments
	var errs []error

	if pricing.OneTimeAmount.IsPositive() {
		inv, err := d.issueInvoice(ctx, domain.Invoice{
			TenantID: tenant.ID,
			Kind:     domain.InvoiceSetup,
			Amount:   pricing.OneTimeAmount,
			Lines:    pricing.OneTimeLines(),
			IssuedAt: issuedAt,
			DueAt:    issuedAt.Add(domain.SetupInvoiceTerm),
			Snapshot: snapshot,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("setup invoice: %w", err))
		} else {
			docs.SetupInvoice = &inv
		}
	}

	inv, err := d.issueInvoice(ctx, domain.Invoice{
		TenantID: tenant.ID,
		Kind:     domain.InvoiceSubscription,
		Amount:   pricing.MonthlyAmount,
		Lines:    pricing.RecurringLines(),
		IssuedAt: issuedAt,
		DueAt:    tenant.TrialEndsAt,
		Snapshot: snapshot,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("subscription invoice: %w", err))
	} else {
		docs.SubscriptionInvoice = &inv
	}

	contract, err := d.issueContract(ctx, domain.Contract{
		TenantID: tenant.ID,
		IssuedAt: issuedAt,
		Snapshot: snapshot,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("contract: %w", err))
	} else {
		docs.Contract = &contract
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		d.logger.Error("document generation failed",
			zap.String("tenant_id", tenant.ID),
			zap.Error(err),
		)
		return docs, err
	}
	return docs, nil
}

func (d *DocumentIssuer) issueInvoice(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	inv.ID = newID()
	return d.repo.IssueInvoice(ctx, inv, d.prefixes.Invoice, func(numbered domain.Invoice) ([]byte, error) {
		return d.renderer.RenderInvoice(ctx, numbered)
	})
}

func (d *DocumentIssuer) issueContract(ctx context.Context, c domain.Contract) (domain.Contract, error) {
	c.ID = newID()
	return d.repo.IssueContract(ctx, c, d.prefixes.Contract, func(numbered domain.Contract) ([]byte, error) {
		return d.renderer.RenderContract(ctx, numbered)
	})
}

// Snapshot freezes the legal and pricing data of a tenant for a document.
func Snapshot(t domain.Tenant, pricing domain.PricingResult) domain.DocumentSnapshot {
	lines := make([]domain.LineItem, len(pricing.LineItems))
	copy(lines, pricing.LineItems)

	legal := t.Billing.LegalName
	if legal == "" {
		legal = t.Name
	}

	return domain.DocumentSnapshot{
		TenantName:      t.Name,
		LegalName:       legal,
		TaxID:           t.Billing.TaxID,
		BillingAddress:  t.Billing.Address,
		PostalCode:      t.Billing.PostalCode,
		City:            t.Billing.City,
		Country:         t.Billing.Country,
		BillingEmail:    billingEmail(t),
		OwnerName:       t.Owner.FullName(),
		Plan:            t.Plan,
		MonthlyAmount:   pricing.MonthlyAmount,
		OneTimeAmount:   pricing.OneTimeAmount,
		LineItems:       lines,
		TrialEndsAt:     t.TrialEndsAt,
		MandateRef:      t.Mandate.Reference,
		MandateSignedAt: t.Mandate.SignedAt,
	}
}
