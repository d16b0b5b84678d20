package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddonKind tells whether an addon is billed monthly or once.
type AddonKind string

const (
	AddonRecurring AddonKind = "recurring"
	AddonOneTime   AddonKind = "one_time"
)

// Addon is an optional paid feature from the catalog.
type Addon struct {
	ID      string
	Name    string
	Price   decimal.Decimal
	Kind    AddonKind
	Unlocks Feature
}

// PurchaseStatus is the state recorded with an addon purchase.
type PurchaseStatus string

const (
	PurchaseActive PurchaseStatus = "active"
)

// AddonPurchase is one immutable entry of the addon history.
type AddonPurchase struct {
	AddonID     string
	Kind        AddonKind
	Price       decimal.Decimal
	Status      PurchaseStatus
	PurchasedAt time.Time
}

// AddonState is the current addon selection of a tenant. Recurring and OneTime
// are derived from History, which is the audit source of truth.
type AddonState struct {
	Recurring []string
	OneTime   []string
	History   []AddonPurchase
}

// NewAddonState derives the current sets from an append-only history.
func NewAddonState(history []AddonPurchase) AddonState {
	state := AddonState{
		Recurring: []string{},
		OneTime:   []string{},
		History:   history,
	}
	seen := make(map[string]bool, len(history))
	for _, p := range history {
		if p.Status != PurchaseActive || seen[p.AddonID] {
			continue
		}
		seen[p.AddonID] = true
		switch p.Kind {
		case AddonRecurring:
			state.Recurring = append(state.Recurring, p.AddonID)
		case AddonOneTime:
			state.OneTime = append(state.OneTime, p.AddonID)
		}
	}
	return state
}
