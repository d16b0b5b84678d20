package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/tenantforge/internal/app"
	"github.com/neomorfeo/tenantforge/internal/domain"
)

const timeLayout = time.RFC3339

// TenantResponse is the API representation of a tenant.
type TenantResponse struct {
	ID              string          `json:"id" doc:"Unique identifier"`
	Name            string          `json:"name" doc:"Display name"`
	Slug            string          `json:"slug" doc:"URL-friendly identifier"`
	Subdomain       string          `json:"subdomain" doc:"Subdomain under the platform domain"`
	CustomDomain    *string         `json:"custom_domain,omitempty" doc:"Custom domain, when configured"`
	Status          string          `json:"status" doc:"Lifecycle state"`
	Plan            string          `json:"plan" doc:"Subscription plan"`
	MonthlyAmount   string          `json:"monthly_amount" doc:"Recurring amount, two decimals"`
	TrialEndsAt     string          `json:"trial_ends_at" doc:"End of the trial (ISO 8601)"`
	NextBillingAt   string          `json:"next_billing_at" doc:"First billing date (ISO 8601)"`
	Features        map[string]bool `json:"features" doc:"Effective feature switches"`
	RecurringAddons []string        `json:"recurring_addons" doc:"Active recurring addons"`
	OneTimeAddons   []string        `json:"one_time_addons" doc:"Purchased one-time addons"`
	AllowedEvents   []string        `json:"allowed_events" doc:"Lifecycle events accepted in the current state"`
	PaymentSession  *PaymentSession `json:"payment_session,omitempty" doc:"Current checkout session, absent until one is opened"`
	CreatedAt       string          `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt       string          `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toTenantResponse(t domain.Tenant, allowed []domain.Event) TenantResponse {
	features := make(map[string]bool, len(t.Features))
	for f, on := range t.Features {
		features[string(f)] = on
	}
	events := make([]string, len(allowed))
	for i, e := range allowed {
		events[i] = string(e)
	}
	return TenantResponse{
		ID:              t.ID,
		Name:            t.Name,
		Slug:            t.Slug,
		Subdomain:       t.Subdomain,
		CustomDomain:    t.CustomDomain,
		Status:          string(t.Status),
		Plan:            string(t.Plan),
		MonthlyAmount:   t.MonthlyAmount.StringFixed(2),
		TrialEndsAt:     t.TrialEndsAt.UTC().Format(timeLayout),
		NextBillingAt:   t.NextBillingAt.UTC().Format(timeLayout),
		Features:        features,
		RecurringAddons: nonNil(t.Addons.Recurring),
		OneTimeAddons:   nonNil(t.Addons.OneTime),
		AllowedEvents:   events,
		CreatedAt:       t.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:       t.UpdatedAt.UTC().Format(timeLayout),
	}
}

// PaymentSession is the API representation of a checkout session.
type PaymentSession struct {
	TenantID  string `json:"tenant_id"`
	Provider  string `json:"provider" doc:"Payment provider"`
	SessionID string `json:"session_id" doc:"Provider session identifier"`
	URL       string `json:"url" doc:"Checkout link to send to the owner"`
	CreatedAt string `json:"created_at"`
}

func toPaymentSession(s domain.PaymentSession) PaymentSession {
	return PaymentSession{
		TenantID:  s.TenantID,
		Provider:  s.Provider,
		SessionID: s.ExternalID,
		URL:       s.URL,
		CreatedAt: s.CreatedAt.UTC().Format(timeLayout),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// --- Get Tenant ---

type GetTenantInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type GetTenantOutput struct {
	Body TenantResponse
}

// --- Transition ---

type TransitionInput struct {
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		Event string `json:"event" doc:"Lifecycle event to trigger" enum:"activate,suspend,reactivate,cancel"`
	}
}

type TransitionOutput struct {
	Body TenantResponse
}

// --- Payment Session ---

type PaymentSessionInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type PaymentSessionOutput struct {
	Body PaymentSession
}

// --- Documents ---

type DocumentsInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

// DocumentResponse describes one issued document; the PDF is inlined so it
// can be resent without regenerating it.
type DocumentResponse struct {
	Number   string  `json:"number" doc:"Sequential document number"`
	Kind     string  `json:"kind" doc:"Document kind" enum:"SETUP,SUBSCRIPTION,CONTRACT"`
	Amount   *string `json:"amount,omitempty" doc:"Invoice total, two decimals"`
	IssuedAt string  `json:"issued_at"`
	DueAt    *string `json:"due_at,omitempty"`
	PDF      []byte  `json:"pdf" doc:"Base64-encoded PDF"`
}

// DocumentList is every document issued to a tenant, invoices first.
type DocumentList struct {
	TenantID  string             `json:"tenant_id"`
	Documents []DocumentResponse `json:"documents"`
}

type DocumentsOutput struct {
	Body DocumentList
}

// --- Credential Recovery ---

type CredentialRecoveryInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type CredentialRecoveryOutput struct {
	Body struct {
		TenantID   string `json:"tenant_id"`
		Credential string `json:"credential" doc:"First-login password, revealed once"`
	}
}

// Register adds all tenant API routes to the Huma API.
func Register(api huma.API, prov *app.Provisioner, svc *app.TenantService) {
	registerProvision(api, prov)

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		tenant, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		session, err := svc.PaymentSession(ctx, tenant.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		body := toTenantResponse(tenant, svc.AllowedEvents(tenant.Status))
		if session != nil {
			ps := toPaymentSession(*session)
			body.PaymentSession = &ps
		}
		return &GetTenantOutput{Body: body}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenant-documents",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}/documents",
		Summary:     "List issued invoices and contracts",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, input *DocumentsInput) (*DocumentsOutput, error) {
		docs, err := svc.Documents(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &DocumentsOutput{}
		out.Body.TenantID = input.ID
		out.Body.Documents = make([]DocumentResponse, 0, len(docs.Invoices)+len(docs.Contracts))
		for _, inv := range docs.Invoices {
			amount := inv.Amount.StringFixed(2)
			due := inv.DueAt.UTC().Format(timeLayout)
			out.Body.Documents = append(out.Body.Documents, DocumentResponse{
				Number:   inv.Number,
				Kind:     string(inv.Kind),
				Amount:   &amount,
				IssuedAt: inv.IssuedAt.UTC().Format(timeLayout),
				DueAt:    &due,
				PDF:      inv.PDF,
			})
		}
		for _, c := range docs.Contracts {
			out.Body.Documents = append(out.Body.Documents, DocumentResponse{
				Number:   c.Number,
				Kind:     "CONTRACT",
				IssuedAt: c.IssuedAt.UTC().Format(timeLayout),
				PDF:      c.PDF,
			})
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/events",
		Summary:     "Trigger a lifecycle event",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
		tenant, err := svc.Transition(ctx, input.ID, domain.Event(input.Body.Event))
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TransitionOutput{Body: toTenantResponse(tenant, svc.AllowedEvents(tenant.Status))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "retry-payment-session",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/payment-session",
		Summary:     "Open a new payment session",
		Description: "Retries the checkout session when it could not be opened during provisioning.",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, input *PaymentSessionInput) (*PaymentSessionOutput, error) {
		session, err := svc.RetryPaymentSession(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &PaymentSessionOutput{Body: toPaymentSession(session)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recover-credential",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/credential-recovery",
		Summary:     "Reveal the first-login credential once",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *CredentialRecoveryInput) (*CredentialRecoveryOutput, error) {
		secret, err := svc.RecoverCredential(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &CredentialRecoveryOutput{}
		out.Body.TenantID = input.ID
		out.Body.Credential = secret.Reveal()
		return out, nil
	})
}
