package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

var _ domain.PaymentGateway = (*Stripe)(nil)

// StripeConfig configures the Checkout client.
type StripeConfig struct {
	BaseURL    string
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

// Stripe opens Stripe Checkout sessions in subscription mode.
type Stripe struct {
	client *resty.Client
	cfg    StripeConfig
	logger *zap.Logger
}

type checkoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewStripe creates a client. Retries are limited to transport errors and
// 5xx answers; a 4xx is final.
func NewStripe(cfg StripeConfig, logger *zap.Logger) *Stripe {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Accept", "application/json")

	return &Stripe{client: client, cfg: cfg, logger: logger}
}

func (s *Stripe) Provider() string { return "stripe" }

// CreateSession opens a Checkout session billing req.Amount monthly after a
// trial of req.TrialDays. Every call carries its own Idempotency-Key, shared by
// the transport retries of that call, so Stripe replays a session it already
// created instead of opening a second one.
func (s *Stripe) CreateSession(ctx context.Context, req domain.SessionRequest) (domain.PaymentSession, error) {
	if s.cfg.SecretKey == "" {
		return domain.PaymentSession{}, errors.New("stripe secret key is not configured")
	}

	var out checkoutSession
	var apiErr stripeError
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", idempotencyKey(req.TenantID)).
		SetFormDataFromValues(checkoutForm(req, s.cfg)).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/checkout/sessions")
	if err != nil {
		return domain.PaymentSession{}, fmt.Errorf("calling stripe: %w", err)
	}
	if resp.IsError() {
		s.logger.Warn("stripe rejected checkout session",
			zap.String("tenant_id", req.TenantID),
			zap.Int("status", resp.StatusCode()),
			zap.String("code", apiErr.Error.Code),
		)
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return domain.PaymentSession{}, fmt.Errorf("stripe returned %d: %s", resp.StatusCode(), msg)
	}
	if out.ID == "" || out.URL == "" {
		return domain.PaymentSession{}, errors.New("stripe returned an incomplete session")
	}

	return domain.PaymentSession{
		TenantID:   req.TenantID,
		Provider:   s.Provider(),
		ExternalID: out.ID,
		URL:        out.URL,
		Methods:    req.Methods,
		TrialDays:  req.TrialDays,
	}, nil
}

func idempotencyKey(tenantID string) string {
	return "checkout-" + tenantID + "-" + uuid.NewString()
}

func checkoutForm(req domain.SessionRequest, cfg StripeConfig) url.Values {
	cents := req.Amount.Shift(2).Round(0).IntPart()

	form := url.Values{}
	form.Set("mode", "subscription")
	for _, m := range req.Methods {
		form.Add("payment_method_types[]", string(m))
	}
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(cents, 10))
	form.Set("line_items[0][price_data][recurring][interval]", "month")
	form.Set("line_items[0][price_data][product_data][name]", "Plan "+string(req.Plan))
	if req.TrialDays > 0 {
		form.Set("subscription_data[trial_period_days]", strconv.Itoa(req.TrialDays))
	}
	form.Set("metadata[tenant_id]", req.TenantID)
	form.Set("metadata[plan]", string(req.Plan))
	if req.MandateRef != "" {
		form.Set("metadata[mandate_ref]", req.MandateRef)
	}
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	form.Set("success_url", cfg.SuccessURL)
	form.Set("cancel_url", cfg.CancelURL)
	return form
}
