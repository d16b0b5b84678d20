package pdf

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

var _ domain.DocumentRenderer = (*Renderer)(nil)

const dateLayout = "02/01/2006"

// Issuer is the platform entity printed as the seller on every document.
type Issuer struct {
	Name     string
	Email    string
	Currency string
}

// Renderer lays out invoices and contracts with maroto.
type Renderer struct {
	issuer Issuer
}

func New(issuer Issuer) *Renderer {
	issuer.Currency = strings.ToUpper(issuer.Currency)
	return &Renderer{issuer: issuer}
}

func (r *Renderer) RenderInvoice(ctx context.Context, inv domain.Invoice) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	title := "Subscription invoice"
	if inv.Kind == domain.InvoiceSetup {
		title = "Setup invoice"
	}

	m := maroto.New(pageConfig())
	r.header(m, title, inv.Number, inv.IssuedAt)

	m.AddRow(10,
		text.NewCol(12, "Date due: "+inv.DueAt.Format(dateLayout), props.Text{Size: 9}),
	)
	billTo(m, inv.Snapshot)

	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, line := range inv.Lines {
		m.AddRow(8,
			text.NewCol(8, line.Description, props.Text{Size: 9}),
			text.NewCol(4, r.money(line.Amount), props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(12,
		col.New(6),
		text.NewCol(3, "Amount due", props.Text{Style: fontstyle.Bold, Size: 10, Top: 3}),
		text.NewCol(3, r.money(inv.Amount), props.Text{Style: fontstyle.Bold, Size: 10, Top: 3, Align: align.Right}),
	)

	if inv.Kind == domain.InvoiceSubscription {
		m.AddRow(10,
			text.NewCol(12, "First charge after the free trial ending "+inv.Snapshot.TrialEndsAt.Format(dateLayout)+".",
				props.Text{Size: 8, Top: 3}),
		)
	}

	return generate(m, inv.Number)
}

func (r *Renderer) RenderContract(ctx context.Context, c domain.Contract) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := c.Snapshot
	m := maroto.New(pageConfig())
	r.header(m, "Subscription contract", c.Number, c.IssuedAt)
	billTo(m, s)

	clauses := []string{
		fmt.Sprintf("Plan: %s, billed monthly at %s.", s.Plan, r.money(s.MonthlyAmount)),
		"Free trial until " + s.TrialEndsAt.Format(dateLayout) + "; no recurring charge is made before that date.",
	}
	if s.OneTimeAmount.IsPositive() {
		clauses = append(clauses, "One-time setup charges: "+r.money(s.OneTimeAmount)+".")
	}
	if s.MandateRef != "" {
		mandate := "Direct debit mandate " + s.MandateRef
		if s.MandateSignedAt != nil {
			mandate += ", signed " + s.MandateSignedAt.Format(dateLayout)
		}
		clauses = append(clauses, mandate+".")
	}
	clauses = append(clauses, "Either party may cancel at the end of any billing month.")

	for i, clause := range clauses {
		m.AddRow(9,
			text.NewCol(12, fmt.Sprintf("%d. %s", i+1, clause), props.Text{Size: 9}),
		)
	}

	m.AddRow(10, text.NewCol(12, "Included services", props.Text{Style: fontstyle.Bold, Size: 10, Top: 4}))
	for _, line := range s.LineItems {
		m.AddRow(7, text.NewCol(12, "- "+line.Description, props.Text{Size: 9}))
	}

	m.AddRow(25,
		col.New(6).Add(
			text.New("For "+r.issuer.Name, props.Text{Style: fontstyle.Bold, Size: 9, Top: 10}),
		),
		col.New(6).Add(
			text.New("For "+s.LegalName, props.Text{Style: fontstyle.Bold, Size: 9, Top: 10}),
			text.New(s.OwnerName, props.Text{Size: 9, Top: 15}),
		),
	)

	return generate(m, c.Number)
}

func pageConfig() *entity.Config {
	return config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
}

func (r *Renderer) header(m core.Maroto, title, number string, issuedAt time.Time) {
	m.AddRow(12,
		text.NewCol(8, title, props.Text{Size: 18, Style: fontstyle.Bold}),
		text.NewCol(4, r.issuer.Name, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(12,
		col.New(8).Add(
			text.New("Number: "+number, props.Text{Size: 9}),
			text.New("Date of issue: "+issuedAt.Format(dateLayout), props.Text{Size: 9, Top: 4}),
		),
		text.NewCol(4, r.issuer.Email, props.Text{Size: 9, Align: align.Right}),
	)
}

func billTo(m core.Maroto, s domain.DocumentSnapshot) {
	address := strings.TrimSpace(s.PostalCode + " " + s.City)
	c := col.New(12).Add(
		text.New("Bill to", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.New(s.LegalName, props.Text{Size: 9, Top: 4}),
		text.New(s.BillingAddress, props.Text{Size: 9, Top: 8}),
		text.New(address+" "+s.Country, props.Text{Size: 9, Top: 12}),
		text.New(s.BillingEmail, props.Text{Size: 9, Top: 16}),
	)
	if s.TaxID != "" {
		c.Add(text.New("Tax ID: "+s.TaxID, props.Text{Size: 9, Top: 20}))
	}
	m.AddRow(30, c)
}

func (r *Renderer) money(d decimal.Decimal) string {
	return d.StringFixed(2) + " " + r.issuer.Currency
}

func generate(m core.Maroto, number string) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating %s: %w", number, err)
	}
	return doc.GetBytes(), nil
}
