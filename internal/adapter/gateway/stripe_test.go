package gateway_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neomorfeo/tenantforge/internal/adapter/gateway"
	"github.com/neomorfeo/tenantforge/internal/domain"
)

func sessionRequest() domain.SessionRequest {
	return domain.SessionRequest{
		TenantID:      "t-1",
		Plan:          domain.PlanSolo,
		Amount:        decimal.RequireFromString("59.90"),
		Currency:      "EUR",
		TrialDays:     30,
		CustomerEmail: "lea@example.com",
		MandateRef:    "MANDATE-1",
		Methods:       []domain.PaymentMethod{domain.MethodCard, domain.MethodSEPADebit},
	}
}

func newStripe(url string) *gateway.Stripe {
	return gateway.NewStripe(gateway.StripeConfig{
		BaseURL:    url,
		SecretKey:  "sk_test_123",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/cancel",
		Timeout:    2 * time.Second,
	}, zap.NewNop())
}

func TestStripe_CreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, []string{"card", "sepa_debit"}, r.PostForm["payment_method_types[]"])
		assert.Equal(t, "5990", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "eur", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "month", r.PostForm.Get("line_items[0][price_data][recurring][interval]"))
		assert.Equal(t, "30", r.PostForm.Get("subscription_data[trial_period_days]"))
		assert.Equal(t, "t-1", r.PostForm.Get("metadata[tenant_id]"))
		assert.Equal(t, "SOLO", r.PostForm.Get("metadata[plan]"))
		assert.Equal(t, "lea@example.com", r.PostForm.Get("customer_email"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.com/c/cs_test_1"}`))
	}))
	defer srv.Close()

	session, err := newStripe(srv.URL).CreateSession(context.Background(), sessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ExternalID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_test_1", session.URL)
	assert.Equal(t, "stripe", session.Provider)
	assert.Equal(t, "t-1", session.TenantID)
	assert.Equal(t, 30, session.TrialDays)
}

func TestStripe_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"parameter_invalid","message":"bad currency"}}`))
	}))
	defer srv.Close()

	_, err := newStripe(srv.URL).CreateSession(context.Background(), sessionRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad currency")
	assert.Equal(t, int32(1), calls.Load())
}

func TestStripe_ServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_2","url":"https://checkout.stripe.com/c/cs_test_2"}`))
	}))
	defer srv.Close()

	session, err := newStripe(srv.URL).CreateSession(context.Background(), sessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_2", session.ExternalID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStripe_RetriesReuseIdempotencyKey(t *testing.T) {
	var mu sync.Mutex
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		n := len(keys)
		mu.Unlock()

		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_3","url":"https://checkout.stripe.com/c/cs_test_3"}`))
	}))
	defer srv.Close()

	client := newStripe(srv.URL)
	_, err := client.CreateSession(context.Background(), sessionRequest())
	require.NoError(t, err)

	require.Len(t, keys, 3)
	assert.NotEmpty(t, keys[0])
	assert.Contains(t, keys[0], "t-1")
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, keys[0], keys[2])

	// A new call is a new operation.
	_, err = client.CreateSession(context.Background(), sessionRequest())
	require.NoError(t, err)
	require.Len(t, keys, 4)
	assert.NotEqual(t, keys[0], keys[3])
}

func TestStripe_HonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reading the body lets net/http notice the client going away.
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newStripe(srv.URL).CreateSession(ctx, sessionRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStripe_MissingKey(t *testing.T) {
	s := gateway.NewStripe(gateway.StripeConfig{}, zap.NewNop())
	_, err := s.CreateSession(context.Background(), sessionRequest())
	require.Error(t, err)
}
