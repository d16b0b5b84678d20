package app

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/neomorfeo/tenantforge/internal/domain"
	"github.com/neomorfeo/tenantforge/internal/pricing"
)

// ProvisionerConfig holds the tunables of a provisioning run.
type ProvisionerConfig struct {
	PersistTimeout  time.Duration
	StepTimeout     time.Duration
	RecoveryWindow  time.Duration
	PaymentProvider string
	Currency        string
	TenantDomain    string
	LoginURL        string
}

// ProvisionerDeps are the collaborators of the provisioning workflow. Sealer
// and Retries are optional.
type ProvisionerDeps struct {
	Tenants     domain.TenantRepository
	Credentials domain.CredentialStore
	Calculator  *pricing.Calculator
	Generator   domain.CredentialGenerator
	Hasher      domain.PasswordHasher
	Sealer      domain.SecretSealer
	Documents   *DocumentIssuer
	Payments    *PaymentOpener
	Retries     domain.RetryScheduler
	Notifier    *Notifier
	Publisher   domain.EventPublisher
	Clock       domain.Clock
	Runner      *Runner
	Logger      *zap.Logger
}

// Provisioner creates a tenant with everything it needs to be usable.
type Provisioner struct {
	deps ProvisionerDeps
	cfg  ProvisionerConfig
}

// NewProvisioner creates a provisioner.
func NewProvisioner(deps ProvisionerDeps, cfg ProvisionerConfig) *Provisioner {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Runner == nil {
		deps.Runner = NewRunner(deps.Logger, nil)
	}
	return &Provisioner{deps: deps, cfg: cfg}
}

// Provision runs the workflow VALIDATING → PRICING → PERSISTING → FINALIZING →
// ENRICHING. A fatal failure returns FAILED with a *domain.StepError and no
// tenant left behind; enrichment failures are reported in the result.
func (p *Provisioner) Provision(ctx context.Context, req domain.ProvisionRequest) (domain.ProvisionResult, error) {
	req, err := normalize(req)
	if err != nil {
		return domain.ProvisionResult{Stage: domain.StageFailed}, err
	}

	run := &provisioning{req: req, now: p.deps.Clock.Now(), tenantID: newID()}
	report := p.deps.Runner.Run(ctx, p.phases(run))

	result := domain.ProvisionResult{Steps: report.Outcomes, Stage: report.Stage}
	if report.Err != nil {
		p.deps.Logger.Warn("provisioning failed",
			zap.String("slug", req.Slug),
			zap.Error(report.Err),
		)
		return result, report.Err
	}

	tenant := run.agg.Tenant
	result.TenantID = tenant.ID
	result.AdminLogin = run.agg.Admin.Email
	result.Credential = run.secret
	result.Status = tenant.Status
	result.MonthlyAmount = run.pricing.MonthlyAmount
	result.OneTimeAmount = run.pricing.OneTimeAmount
	result.TrialEndsAt = tenant.TrialEndsAt

	if run.session != nil {
		link := run.session.URL
		result.PaymentLink = &link
	}
	result.SetupInvoice = invoiceRef(run.docs.SetupInvoice)
	result.SubscriptionInvoice = invoiceRef(run.docs.SubscriptionInvoice)
	if c := run.docs.Contract; c != nil {
		result.Contract = &domain.DocumentRef{ID: c.ID, Number: c.Number}
	}

	for _, o := range report.Outcomes {
		if !o.Failed() {
			continue
		}
		msg := o.Err.Error()
		if o.Name == stepPaymentSession {
			result.PaymentLinkError = &msg
		}
		result.EnrichmentErrors = append(result.EnrichmentErrors, o.Name+": "+msg)
	}

	p.deps.Logger.Info("tenant provisioned",
		zap.String("tenant_id", tenant.ID),
		zap.String("slug", tenant.Slug),
		zap.String("plan", string(tenant.Plan)),
		zap.Int("enrichment_errors", len(result.EnrichmentErrors)),
	)
	return result, nil
}

func invoiceRef(inv *domain.Invoice) *domain.DocumentRef {
	if inv == nil {
		return nil
	}
	return &domain.DocumentRef{ID: inv.ID, Number: inv.Number}
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// normalize trims the request, derives slug and subdomain from the name when
// missing and rejects malformed input.
func normalize(req domain.ProvisionRequest) (domain.ProvisionRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return req, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	req.Slug = strings.TrimSpace(req.Slug)
	if req.Slug == "" {
		req.Slug = slug.Make(req.Name)
	}
	if !subdomainPattern.MatchString(req.Slug) {
		return req, &domain.ValidationError{Field: "slug", Reason: fmt.Sprintf("%q is not a valid slug", req.Slug)}
	}

	req.Subdomain = strings.ToLower(strings.TrimSpace(req.Subdomain))
	if req.Subdomain == "" {
		req.Subdomain = req.Slug
	}
	if !subdomainPattern.MatchString(req.Subdomain) {
		return req, &domain.ValidationError{Field: "subdomain", Reason: fmt.Sprintf("%q is not a valid subdomain", req.Subdomain)}
	}

	if req.CustomDomain != nil {
		d := strings.ToLower(strings.TrimSpace(*req.CustomDomain))
		if d == "" {
			req.CustomDomain = nil
		} else {
			req.CustomDomain = &d
		}
	}

	if !req.Plan.Valid() {
		return req, &domain.ValidationError{Field: "plan", Reason: fmt.Sprintf("unknown plan %q", req.Plan)}
	}

	req.Owner.Email = strings.ToLower(strings.TrimSpace(req.Owner.Email))
	if _, err := mail.ParseAddress(req.Owner.Email); err != nil {
		return req, &domain.ValidationError{Field: "owner.email", Reason: "must be a valid address"}
	}

	return req, nil
}
