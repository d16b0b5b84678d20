package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/neomorfeo/tenantforge/internal/app"
	"github.com/neomorfeo/tenantforge/internal/domain"
)

// OwnerBody identifies the tenant owner, who becomes the first administrator.
type OwnerBody struct {
	FirstName string `json:"first_name" minLength:"1" maxLength:"100"`
	LastName  string `json:"last_name" minLength:"1" maxLength:"100"`
	Email     string `json:"email" format:"email" doc:"Owner email, also the admin login"`
	Phone     string `json:"phone,omitempty" maxLength:"40"`
}

// BillingBody carries the legal identity printed on invoices and contracts.
type BillingBody struct {
	LegalName  string `json:"legal_name,omitempty" maxLength:"255"`
	TaxID      string `json:"tax_id,omitempty" maxLength:"64"`
	Address    string `json:"address,omitempty" maxLength:"255"`
	PostalCode string `json:"postal_code,omitempty" maxLength:"20"`
	City       string `json:"city,omitempty" maxLength:"100"`
	Country    string `json:"country,omitempty" maxLength:"2" doc:"ISO 3166-1 alpha-2"`
	Email      string `json:"email,omitempty" doc:"Billing email, defaults to the owner email"`
}

// MandateBody references a signed direct-debit mandate.
type MandateBody struct {
	Reference     string     `json:"reference,omitempty" maxLength:"64"`
	SignedAt      *time.Time `json:"signed_at,omitempty"`
	AccountHolder string     `json:"account_holder,omitempty" maxLength:"255"`
}

// BrandingBody holds the site template choices.
type BrandingBody struct {
	TemplateID   string `json:"template_id,omitempty" maxLength:"64"`
	PrimaryColor string `json:"primary_color,omitempty" pattern:"^#[0-9a-fA-F]{6}$"`
}

// --- Provision Tenant ---

type ProvisionInput struct {
	Body struct {
		Name             string          `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		Slug             string          `json:"slug,omitempty" maxLength:"63" doc:"URL-friendly identifier, derived from the name when empty"`
		Subdomain        string          `json:"subdomain,omitempty" maxLength:"63" doc:"Defaults to the slug"`
		CustomDomain     *string         `json:"custom_domain,omitempty" maxLength:"253"`
		Plan             string          `json:"plan" enum:"SOLO,DUO,TEAM,PREMIUM" doc:"Subscription plan"`
		Owner            OwnerBody       `json:"owner"`
		Billing          BillingBody     `json:"billing,omitempty"`
		Mandate          MandateBody     `json:"mandate,omitempty"`
		Branding         BrandingBody    `json:"branding,omitempty"`
		AddonIDs         []string        `json:"addon_ids,omitempty" doc:"Selected addons"`
		CustomAmount     *string         `json:"custom_amount,omitempty" pattern:"^-?[0-9]+(\\.[0-9]{1,2})?$" doc:"Extra monthly amount; negative values count as zero"`
		FeatureOverrides map[string]bool `json:"feature_overrides,omitempty" doc:"Per-tenant feature switches"`
	}
}

// DocumentRefBody identifies an issued document.
type DocumentRefBody struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

// StepBody reports how one workflow step ended.
type StepBody struct {
	Name        string `json:"name"`
	Stage       string `json:"stage"`
	Criticality string `json:"criticality" enum:"fatal,best_effort"`
	Error       string `json:"error,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// ProvisionResponse is returned once the tenant exists. Nil fields mark
// enrichment that did not complete.
type ProvisionResponse struct {
	TenantID            string           `json:"tenant_id"`
	AdminLogin          string           `json:"admin_login" doc:"Owner email"`
	Credential          string           `json:"credential" doc:"One-time password, shown only in this response"`
	Status              string           `json:"status"`
	MonthlyAmount       string           `json:"monthly_amount"`
	OneTimeAmount       string           `json:"one_time_amount"`
	TrialEndsAt         string           `json:"trial_ends_at"`
	PaymentLink         *string          `json:"payment_link"`
	PaymentLinkError    *string          `json:"payment_link_error"`
	SetupInvoice        *DocumentRefBody `json:"setup_invoice"`
	SubscriptionInvoice *DocumentRefBody `json:"subscription_invoice"`
	Contract            *DocumentRefBody `json:"contract"`
	EnrichmentErrors    []string         `json:"enrichment_errors"`
	Steps               []StepBody       `json:"steps"`
	Stage               string           `json:"stage"`
}

type ProvisionOutput struct {
	Body ProvisionResponse
}

func registerProvision(api huma.API, prov *app.Provisioner) {
	huma.Register(api, huma.Operation{
		OperationID:   "provision-tenant",
		Method:        http.MethodPost,
		Path:          "/api/v1/tenants",
		Summary:       "Provision a new tenant",
		Description:   "Creates the tenant with its admin user and settings, then issues documents, opens a payment session and sends the welcome email.",
		Tags:          []string{"Tenants"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *ProvisionInput) (*ProvisionOutput, error) {
		req, err := toProvisionRequest(input)
		if err != nil {
			return nil, toHumaError(err)
		}

		res, err := prov.Provision(ctx, req)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ProvisionOutput{Body: toProvisionResponse(res)}, nil
	})
}

func toProvisionRequest(input *ProvisionInput) (domain.ProvisionRequest, error) {
	b := input.Body
	req := domain.ProvisionRequest{
		Name:         b.Name,
		Slug:         b.Slug,
		Subdomain:    b.Subdomain,
		CustomDomain: b.CustomDomain,
		Plan:         domain.Plan(b.Plan),
		Owner: domain.Contact{
			FirstName: b.Owner.FirstName,
			LastName:  b.Owner.LastName,
			Email:     b.Owner.Email,
			Phone:     b.Owner.Phone,
		},
		Billing: domain.BillingDetails{
			LegalName:  b.Billing.LegalName,
			TaxID:      b.Billing.TaxID,
			Address:    b.Billing.Address,
			PostalCode: b.Billing.PostalCode,
			City:       b.Billing.City,
			Country:    b.Billing.Country,
			Email:      b.Billing.Email,
		},
		Mandate: domain.Mandate{
			Reference:     b.Mandate.Reference,
			SignedAt:      b.Mandate.SignedAt,
			AccountHolder: b.Mandate.AccountHolder,
		},
		Branding: domain.Branding{
			TemplateID:   b.Branding.TemplateID,
			PrimaryColor: b.Branding.PrimaryColor,
		},
		AddonIDs: b.AddonIDs,
	}

	if b.CustomAmount != nil {
		amount, err := decimal.NewFromString(*b.CustomAmount)
		if err != nil {
			return req, &domain.ValidationError{Field: "custom_amount", Reason: "must be a decimal amount"}
		}
		req.CustomAmount = &amount
	}

	if len(b.FeatureOverrides) > 0 {
		known := make(map[domain.Feature]bool, len(domain.AllFeatures()))
		for _, f := range domain.AllFeatures() {
			known[f] = true
		}
		req.FeatureOverrides = make(map[domain.Feature]bool, len(b.FeatureOverrides))
		for name, on := range b.FeatureOverrides {
			f := domain.Feature(name)
			if !known[f] {
				return req, &domain.ValidationError{Field: "feature_overrides", Reason: "unknown feature " + name}
			}
			req.FeatureOverrides[f] = on
		}
	}

	return req, nil
}

func toProvisionResponse(res domain.ProvisionResult) ProvisionResponse {
	steps := make([]StepBody, len(res.Steps))
	for i, o := range res.Steps {
		steps[i] = StepBody{
			Name:        o.Name,
			Stage:       string(o.Stage),
			Criticality: o.Criticality.String(),
			DurationMS:  o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			steps[i].Error = o.Err.Error()
		}
	}

	enrichment := res.EnrichmentErrors
	if enrichment == nil {
		enrichment = []string{}
	}

	return ProvisionResponse{
		TenantID:            res.TenantID,
		AdminLogin:          res.AdminLogin,
		Credential:          res.Credential.Reveal(),
		Status:              string(res.Status),
		MonthlyAmount:       res.MonthlyAmount.StringFixed(2),
		OneTimeAmount:       res.OneTimeAmount.StringFixed(2),
		TrialEndsAt:         res.TrialEndsAt.UTC().Format(timeLayout),
		PaymentLink:         res.PaymentLink,
		PaymentLinkError:    res.PaymentLinkError,
		SetupInvoice:        toDocumentRef(res.SetupInvoice),
		SubscriptionInvoice: toDocumentRef(res.SubscriptionInvoice),
		Contract:            toDocumentRef(res.Contract),
		EnrichmentErrors:    enrichment,
		Steps:               steps,
		Stage:               string(res.Stage),
	}
}

func toDocumentRef(ref *domain.DocumentRef) *DocumentRefBody {
	if ref == nil {
		return nil
	}
	return &DocumentRefBody{ID: ref.ID, Number: ref.Number}
}
