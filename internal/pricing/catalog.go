// Package pricing prices subscriptions from an immutable plan and addon catalog.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// Catalog holds base plan prices and the addon table. It is built once at
// startup and only read afterwards; accessors return copies.
type Catalog struct {
	base   map[domain.Plan]decimal.Decimal
	addons map[string]domain.Addon
}

// NewCatalog copies the given tables into a Catalog.
func NewCatalog(base map[domain.Plan]decimal.Decimal, addons []domain.Addon) Catalog {
	c := Catalog{
		base:   make(map[domain.Plan]decimal.Decimal, len(base)),
		addons: make(map[string]domain.Addon, len(addons)),
	}
	for p, price := range base {
		c.base[p] = price
	}
	for _, a := range addons {
		c.addons[a.ID] = a
	}
	return c
}

// BasePrice returns the monthly price of a plan.
func (c Catalog) BasePrice(plan domain.Plan) (decimal.Decimal, bool) {
	price, ok := c.base[plan]
	return price, ok
}

// Addon looks up an addon by id.
func (c Catalog) Addon(id string) (domain.Addon, bool) {
	a, ok := c.addons[id]
	return a, ok
}

// Addons returns every addon sorted by id.
func (c Catalog) Addons() []domain.Addon {
	out := make([]domain.Addon, 0, len(c.addons))
	for _, a := range c.addons {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultCatalog is the production price list.
func DefaultCatalog() Catalog {
	base := map[domain.Plan]decimal.Decimal{
		domain.PlanSolo:    decimal.NewFromInt(49),
		domain.PlanDuo:     decimal.NewFromInt(69),
		domain.PlanTeam:    decimal.NewFromInt(119),
		domain.PlanPremium: decimal.NewFromInt(179),
	}

	recurring := func(id, name string, price int64, unlocks domain.Feature) domain.Addon {
		return domain.Addon{ID: id, Name: name, Price: decimal.NewFromInt(price), Kind: domain.AddonRecurring, Unlocks: unlocks}
	}
	oneTime := func(id, name string, price int64) domain.Addon {
		return domain.Addon{ID: id, Name: name, Price: decimal.NewFromInt(price), Kind: domain.AddonOneTime}
	}

	return NewCatalog(base, []domain.Addon{
		recurring("blog", "Blog", 15, domain.FeatureBlog),
		recurring("products", "Online shop", 30, domain.FeatureShop),
		recurring("crm", "CRM", 40, domain.FeatureCRM),
		recurring("stock", "Stock management", 25, domain.FeatureStock),
		recurring("formations", "Training catalog", 50, ""),
		recurring("whatsapp", "WhatsApp messaging", 20, domain.FeatureWhatsApp),
		recurring("instagram", "Instagram publishing", 25, domain.FeatureSocialMedia),
		recurring("sms", "SMS reminders", 30, domain.FeatureSMS),
		recurring("gift_cards", "Gift cards", 15, ""),
		recurring("loyalty_advanced", "Advanced loyalty", 20, ""),
		recurring("multi_location", "Multiple locations", 50, domain.FeatureMultiLocation),
		recurring("priority_support", "Priority support", 35, ""),
		recurring("custom_domain_ssl", "Custom domain with SSL", 10, ""),
		oneTime("setup_onboarding", "Guided onboarding", 149),
		oneTime("data_migration", "Data migration", 99),
		oneTime("custom_design", "Custom site design", 299),
		oneTime("training_session", "Team training session", 79),
	})
}
