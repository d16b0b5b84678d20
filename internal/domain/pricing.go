package domain

import "github.com/shopspring/decimal"

// LineItemKind classifies a charge on a pricing result.
type LineItemKind string

const (
	LineBasePlan LineItemKind = "base_plan"
	LineAddon    LineItemKind = "addon"
	LineCustom   LineItemKind = "custom"
)

// LineItem is a single contributing charge, carried onto documents.
type LineItem struct {
	Code        string
	Description string
	Kind        LineItemKind
	Recurring   bool
	Amount      decimal.Decimal
}

// PricingInput is what the calculator prices.
type PricingInput struct {
	Plan         Plan
	AddonIDs     []string
	CustomAmount *decimal.Decimal
}

// PricingResult is the priced subscription. Amounts are rounded to two decimals.
type PricingResult struct {
	MonthlyAmount decimal.Decimal
	OneTimeAmount decimal.Decimal
	LineItems     []LineItem
	Recurring     []Addon
	OneTime       []Addon
}

// RecurringLines returns the line items billed monthly.
func (r PricingResult) RecurringLines() []LineItem {
	return r.filter(true)
}

// OneTimeLines returns the line items billed once.
func (r PricingResult) OneTimeLines() []LineItem {
	return r.filter(false)
}

func (r PricingResult) filter(recurring bool) []LineItem {
	out := make([]LineItem, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		if li.Recurring == recurring {
			out = append(out, li)
		}
	}
	return out
}

// UnlockedFeatures lists features switched on by the recurring addons.
func (r PricingResult) UnlockedFeatures() []Feature {
	var out []Feature
	for _, a := range r.Recurring {
		if a.Unlocks != "" {
			out = append(out, a.Unlocks)
		}
	}
	return out
}
