package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/tenantforge/internal/adapter/fsm"
	"github.com/neomorfeo/tenantforge/internal/adapter/sqlite"
	"github.com/neomorfeo/tenantforge/internal/app"
	"github.com/neomorfeo/tenantforge/internal/clock"
	"github.com/neomorfeo/tenantforge/internal/domain"
	"github.com/neomorfeo/tenantforge/internal/pricing"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// --- Mocks ---

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	event  domain.Event
	tenant domain.Tenant
}

func (m *mockPublisher) Publish(_ context.Context, e domain.Event, t domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, publishedEvent{event: e, tenant: t})
	return nil
}

func (m *mockPublisher) published() []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedEvent(nil), m.events...)
}

type mockGateway struct {
	mu    sync.Mutex
	calls []domain.SessionRequest
	err   error
	// block makes CreateSession wait for the context to end.
	block bool
	// before runs ahead of every call.
	before func(ctx context.Context) error
}

func (m *mockGateway) Provider() string { return "mockpay" }

func (m *mockGateway) CreateSession(ctx context.Context, req domain.SessionRequest) (domain.PaymentSession, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	n := len(m.calls)
	m.mu.Unlock()

	if m.before != nil {
		if err := m.before(ctx); err != nil {
			return domain.PaymentSession{}, err
		}
	}
	if m.block {
		<-ctx.Done()
		return domain.PaymentSession{}, ctx.Err()
	}
	if m.err != nil {
		return domain.PaymentSession{}, m.err
	}
	return domain.PaymentSession{
		Provider:   "mockpay",
		ExternalID: fmt.Sprintf("cs_%d", n),
		URL:        fmt.Sprintf("https://pay.example.com/cs_%d", n),
		Methods:    req.Methods,
		TrialDays:  req.TrialDays,
	}, nil
}

func (m *mockGateway) requests() []domain.SessionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SessionRequest(nil), m.calls...)
}

type mockRenderer struct {
	err    error
	before func(ctx context.Context) error
}

func (m *mockRenderer) RenderInvoice(ctx context.Context, inv domain.Invoice) ([]byte, error) {
	return m.render(ctx, inv.Number)
}

func (m *mockRenderer) RenderContract(ctx context.Context, c domain.Contract) ([]byte, error) {
	return m.render(ctx, c.Number)
}

func (m *mockRenderer) render(ctx context.Context, number string) ([]byte, error) {
	if m.before != nil {
		if err := m.before(ctx); err != nil {
			return nil, err
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return []byte("%PDF " + number), nil
}

type mockComposer struct{}

func (mockComposer) Welcome(n domain.WelcomeNotice) (domain.Message, error) {
	return domain.Message{
		To:          []string{n.To},
		Subject:     "Welcome to " + n.TenantName,
		HTML:        "<p>" + n.Login + " " + n.Credential.Reveal() + "</p>",
		Attachments: n.Attachments,
	}, nil
}

func (mockComposer) StaffAlert(n domain.StaffNotice) (domain.Message, error) {
	return domain.Message{To: []string{n.To}, Subject: "New tenant " + n.TenantName}, nil
}

func (mockComposer) PaymentLink(n domain.PaymentLinkNotice) (domain.Message, error) {
	return domain.Message{To: []string{n.To}, Subject: "Payment link for " + n.TenantName, HTML: n.URL}, nil
}

type mockMailer struct {
	mu   sync.Mutex
	sent []domain.Message
	err  error
}

func (m *mockMailer) Send(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockMailer) messages() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message(nil), m.sent...)
}

type fixedGenerator struct{ secret domain.Secret }

func (g fixedGenerator) Generate() (domain.Secret, error) { return g.secret, nil }

// plainHasher keeps tests fast; the real Argon2id hasher is covered in its own package.
type plainHasher struct{ err error }

func (h plainHasher) Hash(plain string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "plain$" + plain, nil
}

func (h plainHasher) Verify(plain, encoded string) bool { return encoded == "plain$"+plain }

// xorSealer is reversible and good enough to check the sealed copy round-trips.
type xorSealer struct{}

func (xorSealer) Seal(p []byte) ([]byte, error) { return xor(p), nil }
func (xorSealer) Open(c []byte) ([]byte, error) { return xor(c), nil }

func xor(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[i] ^ 0x5a
	}
	return out
}

type mockRetries struct {
	mu      sync.Mutex
	tenants []string
}

func (m *mockRetries) SchedulePaymentRetry(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants = append(m.tenants, tenantID)
	return nil
}

func (m *mockRetries) scheduled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tenants...)
}

// deleteSpy counts compensating deletes on top of the real repository.
type deleteSpy struct {
	*sqlite.Repository
	mu      sync.Mutex
	deleted []string
}

func (d *deleteSpy) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	d.deleted = append(d.deleted, id)
	d.mu.Unlock()
	return d.Repository.Delete(ctx, id)
}

// --- Harness ---

type harness struct {
	repo      *sqlite.Repository
	tenants   *deleteSpy
	clock     *clock.FakeClock
	gateway   *mockGateway
	renderer  *mockRenderer
	mailer    *mockMailer
	publisher *mockPublisher
	retries   *mockRetries
	hasher    plainHasher
	sealer    domain.SecretSealer
	cfg       app.ProvisionerConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return &harness{
		repo:      repo,
		tenants:   &deleteSpy{Repository: repo},
		clock:     clock.NewFakeClock(testNow),
		gateway:   &mockGateway{},
		renderer:  &mockRenderer{},
		mailer:    &mockMailer{},
		publisher: &mockPublisher{},
		retries:   &mockRetries{},
		sealer:    xorSealer{},
		cfg: app.ProvisionerConfig{
			PersistTimeout:  2 * time.Second,
			StepTimeout:     2 * time.Second,
			RecoveryWindow:  72 * time.Hour,
			PaymentProvider: "mockpay",
			Currency:        "eur",
			TenantDomain:    "beautysite.test",
			LoginURL:        "https://app.beautysite.test/login",
		},
	}
}

func testCatalog() pricing.Catalog {
	return pricing.NewCatalog(
		map[domain.Plan]decimal.Decimal{
			domain.PlanSolo:    decimal.NewFromInt(49),
			domain.PlanDuo:     decimal.NewFromInt(69),
			domain.PlanTeam:    decimal.NewFromInt(119),
			domain.PlanPremium: decimal.NewFromInt(179),
		},
		[]domain.Addon{
			{ID: "recurringA", Name: "Blog", Price: decimal.NewFromInt(10), Kind: domain.AddonRecurring, Unlocks: domain.FeatureBlog},
			{ID: "oneTimeB", Name: "Onboarding", Price: decimal.NewFromInt(30), Kind: domain.AddonOneTime},
		},
	)
}

func (h *harness) notifier() *app.Notifier {
	return app.NewNotifier(mockComposer{}, h.mailer, h.repo, h.clock, "staff@beautysite.test", nil)
}

func (h *harness) payments() *app.PaymentOpener {
	return app.NewPaymentOpener(h.gateway, h.repo, h.repo, h.notifier(), h.clock, h.cfg.Currency)
}

func (h *harness) provisioner() *app.Provisioner {
	issuer := app.NewDocumentIssuer(h.repo, h.renderer, h.clock,
		app.DocumentPrefixes{Invoice: "INV", Contract: "CTR"}, nil)
	return app.NewProvisioner(app.ProvisionerDeps{
		Tenants:     h.tenants,
		Credentials: h.repo,
		Calculator:  pricing.NewCalculator(testCatalog()),
		Generator:   fixedGenerator{secret: "Xy7!Kp2#Qa9$Lm4&"},
		Hasher:      h.hasher,
		Sealer:      h.sealer,
		Documents:   issuer,
		Payments:    h.payments(),
		Retries:     h.retries,
		Notifier:    h.notifier(),
		Publisher:   h.publisher,
		Clock:       h.clock,
	}, h.cfg)
}

func (h *harness) service() *app.TenantService {
	return app.NewTenantService(app.TenantServiceDeps{
		Repo:        h.repo,
		Publisher:   h.publisher,
		Validator:   fsm.New(),
		Payments:    h.payments(),
		Documents:   h.repo,
		Credentials: h.repo,
		Sealer:      h.sealer,
		Clock:       h.clock,
	})
}

func testRequest(slug string) domain.ProvisionRequest {
	zero := decimal.Zero
	return domain.ProvisionRequest{
		Name: "Institut " + slug,
		Slug: slug,
		Plan: domain.PlanSolo,
		Owner: domain.Contact{
			FirstName: "Léa",
			LastName:  "Martin",
			Email:     "lea@" + slug + ".example.com",
		},
		Billing: domain.BillingDetails{
			LegalName: "Institut " + slug + " SARL",
			Address:   "12 rue des Lilas",
			City:      "Lyon",
			Country:   "FR",
		},
		Mandate:      domain.Mandate{Reference: "MANDATE-" + slug},
		AddonIDs:     []string{"recurringA", "oneTimeB"},
		CustomAmount: &zero,
	}
}

func mustProvision(t *testing.T, h *harness, req domain.ProvisionRequest) domain.ProvisionResult {
	t.Helper()
	res, err := h.provisioner().Provision(context.Background(), req)
	if err != nil {
		t.Fatalf("provisioning %q: %v", req.Slug, err)
	}
	return res
}

var errBoom = errors.New("boom")
