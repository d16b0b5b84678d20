package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is a method offered on the checkout page.
type PaymentMethod string

const (
	MethodCard      PaymentMethod = "card"
	MethodSEPADebit PaymentMethod = "sepa_debit"
)

// SessionRequest asks the gateway for a recurring arrangement with a trial.
type SessionRequest struct {
	TenantID      string
	Plan          Plan
	Amount        decimal.Decimal
	Currency      string
	TrialDays     int
	CustomerEmail string
	MandateRef    string
	Methods       []PaymentMethod
}

// PaymentSession is the gateway-side reference bound to a tenant.
type PaymentSession struct {
	TenantID   string
	Provider   string
	ExternalID string
	URL        string
	Methods    []PaymentMethod
	TrialDays  int
	CreatedAt  time.Time
}

// TrialDaysUntil counts whole days from now to end, rounding up, never negative.
func TrialDaysUntil(now, end time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}
