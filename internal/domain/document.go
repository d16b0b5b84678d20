package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentSeries scopes a numbering sequence.
type DocumentSeries string

const (
	SeriesInvoice  DocumentSeries = "INVOICE"
	SeriesContract DocumentSeries = "CONTRACT"
)

// InvoiceKind distinguishes the setup charge from the first subscription month.
type InvoiceKind string

const (
	InvoiceSetup        InvoiceKind = "SETUP"
	InvoiceSubscription InvoiceKind = "SUBSCRIPTION"
)

// SetupInvoiceTerm is the payment term of one-time charges.
const SetupInvoiceTerm = 7 * 24 * time.Hour

// FormatDocumentNumber renders PREFIX-YYYY-NNNNNN.
func FormatDocumentNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}

// DocumentSnapshot freezes the legal and pricing data at issuance.
type DocumentSnapshot struct {
	TenantName      string          `json:"tenant_name"`
	LegalName       string          `json:"legal_name"`
	TaxID           string          `json:"tax_id"`
	BillingAddress  string          `json:"billing_address"`
	PostalCode      string          `json:"postal_code"`
	City            string          `json:"city"`
	Country         string          `json:"country"`
	BillingEmail    string          `json:"billing_email"`
	OwnerName       string          `json:"owner_name"`
	Plan            Plan            `json:"plan"`
	MonthlyAmount   decimal.Decimal `json:"monthly_amount"`
	OneTimeAmount   decimal.Decimal `json:"one_time_amount"`
	LineItems       []LineItem      `json:"line_items"`
	TrialEndsAt     time.Time       `json:"trial_ends_at"`
	MandateRef      string          `json:"mandate_ref"`
	MandateSignedAt *time.Time      `json:"mandate_signed_at,omitempty"`
}

// Invoice is an issued invoice. It is never updated after issuance.
type Invoice struct {
	ID       string
	TenantID string
	Number   string
	Kind     InvoiceKind
	Amount   decimal.Decimal
	Lines    []LineItem
	IssuedAt time.Time
	DueAt    time.Time
	Snapshot DocumentSnapshot
	PDF      []byte
}

// Contract is the onboarding contract. It is never updated after issuance.
type Contract struct {
	ID       string
	TenantID string
	Number   string
	IssuedAt time.Time
	Snapshot DocumentSnapshot
	PDF      []byte
}

// DocumentRef identifies an issued document in a response.
type DocumentRef struct {
	ID     string
	Number string
}

// IssuedDocuments collects what the document step produced.
type IssuedDocuments struct {
	SetupInvoice        *Invoice
	SubscriptionInvoice *Invoice
	Contract            *Contract
}

// Attachments turns the issued PDFs into mail attachments.
func (d IssuedDocuments) Attachments() []Attachment {
	var out []Attachment
	for _, inv := range []*Invoice{d.SetupInvoice, d.SubscriptionInvoice} {
		if inv != nil && len(inv.PDF) > 0 {
			out = append(out, Attachment{Name: inv.Number + ".pdf", Content: inv.PDF})
		}
	}
	if d.Contract != nil && len(d.Contract.PDF) > 0 {
		out = append(out, Attachment{Name: d.Contract.Number + ".pdf", Content: d.Contract.PDF})
	}
	return out
}
