package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

var _ domain.MessageComposer = (*Composer)(nil)

//go:embed templates/*.html
var templateFS embed.FS

// Composer renders notices into HTML messages from the embedded templates.
type Composer struct {
	platform string
	currency string
	tmpl     *template.Template
}

func NewComposer(platform, currency string) (*Composer, error) {
	funcs := template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) + " " + currency },
		"date":  func(t time.Time) string { return t.Format("02/01/2006") },
	}
	tmpl, err := template.New("mail").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing mail templates: %w", err)
	}
	return &Composer{platform: platform, currency: currency, tmpl: tmpl}, nil
}

type welcomeView struct {
	domain.WelcomeNotice
	Platform   string
	Password   string
	HasOneTime bool
}

func (c *Composer) Welcome(n domain.WelcomeNotice) (domain.Message, error) {
	html, err := c.render("welcome.html", welcomeView{
		WelcomeNotice: n,
		Platform:      c.platform,
		Password:      n.Credential.Reveal(),
		HasOneTime:    n.OneTimeAmount.IsPositive(),
	})
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		To:          []string{n.To},
		Subject:     fmt.Sprintf("Welcome to %s, %s", c.platform, n.TenantName),
		HTML:        html,
		Attachments: n.Attachments,
	}, nil
}

func (c *Composer) StaffAlert(n domain.StaffNotice) (domain.Message, error) {
	html, err := c.render("staff_alert.html", n)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		To:      []string{n.To},
		Subject: fmt.Sprintf("New tenant: %s (%s)", n.TenantName, n.Plan),
		HTML:    html,
	}, nil
}

type paymentLinkView struct {
	domain.PaymentLinkNotice
	Platform string
}

func (c *Composer) PaymentLink(n domain.PaymentLinkNotice) (domain.Message, error) {
	html, err := c.render("payment_link.html", paymentLinkView{PaymentLinkNotice: n, Platform: c.platform})
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		To:      []string{n.To},
		Subject: fmt.Sprintf("%s: set up your payment method", n.TenantName),
		HTML:    html,
	}, nil
}

func (c *Composer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}
