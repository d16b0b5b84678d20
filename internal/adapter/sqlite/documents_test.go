package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

func testInvoice(tenantID, id string, issuedAt time.Time) domain.Invoice {
	return domain.Invoice{
		ID:       id,
		TenantID: tenantID,
		Kind:     domain.InvoiceSubscription,
		Amount:   decimal.NewFromInt(59),
		IssuedAt: issuedAt,
		DueAt:    issuedAt.Add(domain.TrialPeriod),
		Snapshot: domain.DocumentSnapshot{TenantName: "Acme", Plan: domain.PlanSolo, MonthlyAmount: decimal.NewFromInt(59)},
	}
}

func renderPDF(inv domain.Invoice) ([]byte, error) { return []byte("%PDF " + inv.Number), nil }

func TestIssueInvoice_SequentialPerYear(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, testAggregate("t-1", "acme"))

	for i, want := range []string{"INV-2026-000001", "INV-2026-000002", "INV-2026-000003"} {
		inv, err := repo.IssueInvoice(ctx, testInvoice("t-1", fmt.Sprintf("inv-%d", i), testNow), "INV", renderPDF)
		if err != nil {
			t.Fatalf("IssueInvoice: %v", err)
		}
		if inv.Number != want {
			t.Errorf("Number = %q, want %q", inv.Number, want)
		}
		if string(inv.PDF) != "%PDF "+want {
			t.Errorf("PDF = %q, want the rendered number", inv.PDF)
		}
	}

	next := testNow.AddDate(1, 0, 0)
	inv, err := repo.IssueInvoice(ctx, testInvoice("t-1", "inv-next-year", next), "INV", renderPDF)
	if err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}
	if inv.Number != "INV-2027-000001" {
		t.Errorf("new year should restart at 1, got %q", inv.Number)
	}

	c, err := repo.IssueContract(ctx, domain.Contract{ID: "ctr-1", TenantID: "t-1", IssuedAt: testNow}, "CTR",
		func(domain.Contract) ([]byte, error) { return nil, nil })
	if err != nil {
		t.Fatalf("IssueContract: %v", err)
	}
	if c.Number != "CTR-2026-000001" {
		t.Errorf("contract series should be independent, got %q", c.Number)
	}
}

func TestIssueInvoice_FailedRenderReleasesNumber(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, testAggregate("t-1", "acme"))

	errRender := errors.New("renderer down")
	_, err := repo.IssueInvoice(ctx, testInvoice("t-1", "inv-1", testNow), "INV",
		func(domain.Invoice) ([]byte, error) { return nil, errRender })
	if !errors.Is(err, errRender) {
		t.Fatalf("expected render error, got %v", err)
	}
	_, err = repo.IssueContract(ctx, domain.Contract{ID: "ctr-1", TenantID: "t-1", IssuedAt: testNow}, "CTR",
		func(domain.Contract) ([]byte, error) { return nil, errRender })
	if !errors.Is(err, errRender) {
		t.Fatalf("expected render error, got %v", err)
	}
	if n := countRows(t, repo, "invoices", "t-1"); n != 0 {
		t.Errorf("invoices = %d, want 0", n)
	}

	inv, err := repo.IssueInvoice(ctx, testInvoice("t-1", "inv-2", testNow), "INV", renderPDF)
	if err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}
	if inv.Number != "INV-2026-000001" {
		t.Errorf("Number = %q, want INV-2026-000001", inv.Number)
	}
	c, err := repo.IssueContract(ctx, domain.Contract{ID: "ctr-2", TenantID: "t-1", IssuedAt: testNow}, "CTR",
		func(domain.Contract) ([]byte, error) { return []byte("%PDF"), nil })
	if err != nil {
		t.Fatalf("IssueContract: %v", err)
	}
	if c.Number != "CTR-2026-000001" {
		t.Errorf("Number = %q, want CTR-2026-000001", c.Number)
	}
}

func TestIssueInvoice_FailedInsertReleasesNumber(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, testAggregate("t-1", "acme"))

	// Unknown tenant trips the foreign key after the number was taken.
	if _, err := repo.IssueInvoice(ctx, testInvoice("ghost", "inv-1", testNow), "INV", renderPDF); err == nil {
		t.Fatal("expected insert to fail")
	}

	inv, err := repo.IssueInvoice(ctx, testInvoice("t-1", "inv-2", testNow), "INV", renderPDF)
	if err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}
	if inv.Number != "INV-2026-000001" {
		t.Errorf("Number = %q, want INV-2026-000001", inv.Number)
	}
}

func TestIssueInvoice_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, testAggregate("t-1", "acme"))

	const callers = 20
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := repo.IssueInvoice(ctx, testInvoice("t-1", fmt.Sprintf("inv-%d", i), testNow), "INV", renderPDF)
			if err != nil {
				t.Errorf("IssueInvoice: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[inv.Number] {
				t.Errorf("duplicate number %s", inv.Number)
			}
			seen[inv.Number] = true
		}()
	}
	wg.Wait()

	if len(seen) != callers {
		t.Errorf("distinct numbers = %d, want %d", len(seen), callers)
	}
	if !seen[domain.FormatDocumentNumber("INV", 2026, callers)] {
		t.Errorf("numbers should be gapless up to %d", callers)
	}
}

func TestInvoicesByTenant(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, testAggregate("t-1", "acme"))

	if _, err := repo.IssueInvoice(ctx, testInvoice("t-1", "inv-1", testNow), "INV", renderPDF); err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}

	got, err := repo.InvoicesByTenant(ctx, "t-1")
	if err != nil {
		t.Fatalf("InvoicesByTenant: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("invoices = %d, want 1", len(got))
	}
	if got[0].Number != "INV-2026-000001" || got[0].Kind != domain.InvoiceSubscription {
		t.Errorf("invoice = %+v", got[0])
	}
	if !got[0].Snapshot.MonthlyAmount.Equal(decimal.NewFromInt(59)) {
		t.Errorf("snapshot monthly = %s", got[0].Snapshot.MonthlyAmount)
	}
	if string(got[0].PDF) != "%PDF INV-2026-000001" {
		t.Errorf("pdf = %q", got[0].PDF)
	}

	if _, err := repo.DB().Exec(`UPDATE invoices SET amount = '0.00' WHERE id = 'inv-1'`); err == nil {
		t.Error("issued invoice should be immutable")
	}
}

func TestContractsByTenant(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, testAggregate("t-1", "acme"))

	c := domain.Contract{
		ID:       "ctr-1",
		TenantID: "t-1",
		IssuedAt: testNow,
		Snapshot: domain.DocumentSnapshot{LegalName: "Acme SAS", MandateRef: "MD-1"},
	}
	if _, err := repo.IssueContract(ctx, c, "CTR", func(domain.Contract) ([]byte, error) { return []byte("%PDF"), nil }); err != nil {
		t.Fatalf("IssueContract: %v", err)
	}

	got, err := repo.ContractsByTenant(ctx, "t-1")
	if err != nil {
		t.Fatalf("ContractsByTenant: %v", err)
	}
	if len(got) != 1 || got[0].Number != "CTR-2026-000001" || got[0].Snapshot.MandateRef != "MD-1" {
		t.Errorf("contracts = %+v", got)
	}
	if none, _ := repo.ContractsByTenant(ctx, "other"); len(none) != 0 {
		t.Errorf("contracts of unknown tenant = %d, want 0", len(none))
	}
}

func TestPaymentSession_Upsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, testAggregate("t-1", "acme"))

	first := domain.PaymentSession{
		TenantID: "t-1", Provider: "stripe", ExternalID: "cs_1", URL: "https://pay/1",
		Methods: []domain.PaymentMethod{domain.MethodCard, domain.MethodSEPADebit}, TrialDays: 30, CreatedAt: testNow,
	}
	if err := repo.SavePaymentSession(ctx, first); err != nil {
		t.Fatalf("SavePaymentSession: %v", err)
	}

	second := first
	second.ExternalID = "cs_2"
	second.URL = "https://pay/2"
	second.CreatedAt = testNow.Add(time.Hour)
	if err := repo.SavePaymentSession(ctx, second); err != nil {
		t.Fatalf("SavePaymentSession (retry): %v", err)
	}

	got, err := repo.PaymentSession(ctx, "t-1")
	if err != nil {
		t.Fatalf("PaymentSession: %v", err)
	}
	if got.ExternalID != "cs_2" || len(got.Methods) != 2 {
		t.Errorf("session = %+v", got)
	}
	if n := countRows(t, repo, "payment_sessions", "t-1"); n != 1 {
		t.Errorf("payment_sessions = %d, want 1", n)
	}

	if _, err := repo.PaymentSession(ctx, "other"); !errors.Is(err, domain.ErrNoPaymentSession) {
		t.Errorf("expected ErrNoPaymentSession, got %v", err)
	}
}

func TestRecordNotification(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, testAggregate("t-1", "acme"))

	recs := []domain.NotificationRecord{
		{ID: "n-1", TenantID: "t-1", Kind: domain.NotificationWelcome, Recipient: "acme@example.com",
			Status: domain.NotificationSent, CreatedAt: testNow},
		{ID: "n-2", TenantID: "t-1", Kind: domain.NotificationStaffAlert, Recipient: "ops@example.com",
			Status: domain.NotificationFailed, Error: "smtp down", CreatedAt: testNow.Add(time.Second)},
	}
	for _, rec := range recs {
		if err := repo.RecordNotification(ctx, rec); err != nil {
			t.Fatalf("RecordNotification: %v", err)
		}
	}

	got, err := repo.Notifications(ctx, "t-1")
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(got) != 2 || got[1].Status != domain.NotificationFailed || got[1].Error != "smtp down" {
		t.Errorf("notifications = %+v", got)
	}
}
