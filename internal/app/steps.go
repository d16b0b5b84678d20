package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

const (
	stepReserveIdentity = "reserve-identity"
	stepPrice           = "price"
	stepPersist         = "persist"
	stepCredential      = "issue-credential"
	stepDocuments       = "issue-documents"
	stepPaymentSession  = "open-payment-session"
	stepStaffAlert      = "alert-staff"
	stepPublish         = "publish-event"
	stepWelcome         = "send-welcome"
)

// provisioning is the state shared by the steps of one run. Each field is
// written by exactly one step and read only by steps of later phases.
type provisioning struct {
	req      domain.ProvisionRequest
	now      time.Time
	tenantID string

	pricing domain.PricingResult
	agg     domain.Aggregate
	secret  domain.Secret
	docs    domain.IssuedDocuments
	session *domain.PaymentSession
}

func (p *Provisioner) phases(run *provisioning) []Phase {
	best := func(name string, fn func(context.Context) error) Step {
		return Step{
			Name:        name,
			Stage:       domain.StageEnriching,
			Criticality: domain.BestEffort,
			Timeout:     p.cfg.StepTimeout,
			Run:         fn,
		}
	}

	return []Phase{
		{Stage: domain.StageValidating, Steps: []Step{{
			Name:        stepReserveIdentity,
			Stage:       domain.StageValidating,
			Criticality: domain.Fatal,
			Run: func(ctx context.Context) error {
				return p.deps.Tenants.CheckIdentity(ctx, domain.Identity{
					Slug:         run.req.Slug,
					Subdomain:    run.req.Subdomain,
					CustomDomain: run.req.CustomDomain,
				})
			},
		}}},
		{Stage: domain.StagePricing, Steps: []Step{{
			Name:        stepPrice,
			Stage:       domain.StagePricing,
			Criticality: domain.Fatal,
			Run:         func(context.Context) error { return p.price(run) },
		}}},
		{Stage: domain.StagePersisting, Steps: []Step{{
			Name:        stepPersist,
			Stage:       domain.StagePersisting,
			Criticality: domain.Fatal,
			Timeout:     p.cfg.PersistTimeout,
			Run: func(ctx context.Context) error {
				_, err := p.deps.Tenants.CreateAggregate(ctx, run.agg)
				return err
			},
			Compensate: func(ctx context.Context) error {
				return p.deps.Tenants.Delete(ctx, run.tenantID)
			},
		}}},
		{Stage: domain.StageFinalizing, Steps: []Step{{
			Name:        stepCredential,
			Stage:       domain.StageFinalizing,
			Criticality: domain.Fatal,
			Run:         func(ctx context.Context) error { return p.issueCredential(ctx, run) },
		}}},
		{Stage: domain.StageEnriching, Steps: []Step{
			best(stepDocuments, func(ctx context.Context) error {
				docs, err := p.deps.Documents.Issue(ctx, run.agg.Tenant, run.pricing)
				run.docs = docs
				return err
			}),
			best(stepPaymentSession, func(ctx context.Context) error { return p.openPaymentSession(ctx, run) }),
			best(stepStaffAlert, func(ctx context.Context) error {
				return p.deps.Notifier.StaffAlert(ctx, p.staffNotice(run))
			}),
			best(stepPublish, func(ctx context.Context) error {
				return p.deps.Publisher.Publish(ctx, domain.EventProvisioned, run.agg.Tenant)
			}),
		}},
		{Stage: domain.StageEnriching, Steps: []Step{
			best(stepWelcome, func(ctx context.Context) error {
				return p.deps.Notifier.Welcome(ctx, run.tenantID, p.welcomeNotice(run))
			}),
		}},
	}
}

// price computes the subscription and assembles the aggregate to persist.
func (p *Provisioner) price(run *provisioning) error {
	req := run.req
	res, err := p.deps.Calculator.Calculate(domain.PricingInput{
		Plan:         req.Plan,
		AddonIDs:     req.AddonIDs,
		CustomAmount: req.CustomAmount,
	})
	if err != nil {
		return err
	}
	run.pricing = res

	tenant := domain.NewTenant(run.tenantID, req.Name, req.Slug, req.Plan, run.now)
	tenant.Subdomain = req.Subdomain
	tenant.CustomDomain = req.CustomDomain
	tenant.MonthlyAmount = res.MonthlyAmount
	tenant.Features = domain.DeriveFeatures(req.Plan, res.UnlockedFeatures(), req.FeatureOverrides)
	tenant.Owner = req.Owner
	tenant.Billing = req.Billing
	tenant.Mandate = req.Mandate
	tenant.Branding = req.Branding

	var history []domain.AddonPurchase
	for _, group := range [][]domain.Addon{res.Recurring, res.OneTime} {
		for _, a := range group {
			history = append(history, domain.AddonPurchase{
				AddonID:     a.ID,
				Kind:        a.Kind,
				Price:       a.Price,
				Status:      domain.PurchaseActive,
				PurchasedAt: tenant.CreatedAt,
			})
		}
	}
	tenant.Addons = domain.NewAddonState(history)

	run.agg = domain.Aggregate{
		Tenant: tenant,
		Site: domain.SiteConfig{
			ID:           newID(),
			SiteName:     tenant.Name,
			TemplateID:   req.Branding.TemplateID,
			PrimaryColor: req.Branding.PrimaryColor,
			ContactEmail: req.Owner.Email,
			ContactPhone: req.Owner.Phone,
		},
		Location: domain.Location{
			ID:         newID(),
			Name:       tenant.Name,
			Address:    req.Billing.Address,
			PostalCode: req.Billing.PostalCode,
			City:       req.Billing.City,
			Country:    req.Billing.Country,
			Primary:    true,
		},
		Payment: domain.PaymentSettings{
			ID:       newID(),
			Provider: p.cfg.PaymentProvider,
			Currency: strings.ToUpper(p.cfg.Currency),
		},
		Booking: domain.BookingSettings{
			ID:             newID(),
			SlotMinutes:    30,
			MinNoticeHours: 2,
			MaxAdvanceDays: 90,
		},
		Loyalty: domain.LoyaltySettings{
			ID:            newID(),
			Enabled:       false,
			PointsPerUnit: 1,
		},
		Admin: domain.AdminUser{
			ID:                 newID(),
			Email:              req.Owner.Email,
			FirstName:          req.Owner.FirstName,
			LastName:           req.Owner.LastName,
			Role:               domain.RoleOrgAdmin,
			MustChangePassword: true,
		},
	}
	return nil
}

// issueCredential generates the admin password, stores its hash and, when
// sealing is configured, a recovery copy that expires after RecoveryWindow.
func (p *Provisioner) issueCredential(ctx context.Context, run *provisioning) error {
	secret, err := p.deps.Generator.Generate()
	if err != nil {
		return fmt.Errorf("generating credential: %w", err)
	}

	hash, err := p.deps.Hasher.Hash(secret.Reveal())
	if err != nil {
		return fmt.Errorf("hashing credential: %w", err)
	}

	stored := domain.StoredCredential{
		UserID:   run.agg.Admin.ID,
		TenantID: run.tenantID,
		Hash:     hash,
	}

	if p.deps.Sealer != nil {
		sealed, err := p.deps.Sealer.Seal([]byte(secret.Reveal()))
		if err != nil {
			return fmt.Errorf("sealing recovery copy: %w", err)
		}
		blob, err := domain.NewRecoveryBlob(sealed, p.deps.Clock.Now(), p.cfg.RecoveryWindow)
		if err != nil {
			return err
		}
		stored.Recovery = &blob
	}

	if err := p.deps.Credentials.StoreCredential(ctx, stored); err != nil {
		return err
	}
	run.secret = secret
	return nil
}

// openPaymentSession opens the checkout session. On failure a retry is queued
// so the session can be opened later without operator action.
func (p *Provisioner) openPaymentSession(ctx context.Context, run *provisioning) error {
	session, err := p.deps.Payments.Open(ctx, run.agg.Tenant)
	if err == nil {
		run.session = &session
		return nil
	}

	if p.deps.Retries != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
		defer cancel()
		if rerr := p.deps.Retries.SchedulePaymentRetry(rctx, run.tenantID); rerr != nil {
			p.deps.Logger.Error("scheduling payment retry failed",
				zap.String("tenant_id", run.tenantID),
				zap.Error(rerr),
			)
		}
	}
	return err
}

func (p *Provisioner) siteURL(t domain.Tenant) string {
	return "https://" + t.Subdomain + "." + p.cfg.TenantDomain
}

func (p *Provisioner) staffNotice(run *provisioning) domain.StaffNotice {
	t := run.agg.Tenant
	return domain.StaffNotice{
		TenantID:      t.ID,
		TenantName:    t.Name,
		Plan:          t.Plan,
		OwnerName:     t.Owner.FullName(),
		OwnerEmail:    t.Owner.Email,
		MonthlyAmount: run.pricing.MonthlyAmount,
		OneTimeAmount: run.pricing.OneTimeAmount,
		TrialEndsAt:   t.TrialEndsAt,
		SiteURL:       p.siteURL(t),
	}
}

func (p *Provisioner) welcomeNotice(run *provisioning) domain.WelcomeNotice {
	t := run.agg.Tenant
	notice := domain.WelcomeNotice{
		TenantName:    t.Name,
		OwnerName:     t.Owner.FullName(),
		To:            t.Owner.Email,
		Login:         run.agg.Admin.Email,
		Credential:    run.secret,
		Plan:          t.Plan,
		SiteURL:       p.siteURL(t),
		LoginURL:      p.cfg.LoginURL,
		MonthlyAmount: run.pricing.MonthlyAmount,
		OneTimeAmount: run.pricing.OneTimeAmount,
		TrialEndsAt:   t.TrialEndsAt,
		MandateRef:    t.Mandate.Reference,
		Attachments:   run.docs.Attachments(),
	}
	if run.session != nil {
		link := run.session.URL
		notice.PaymentLink = &link
	}
	return notice
}
