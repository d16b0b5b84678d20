package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// Calculator prices a subscription against a catalog. It has no side effects.
type Calculator struct {
	catalog Catalog
}

// NewCalculator creates a calculator bound to catalog.
func NewCalculator(catalog Catalog) *Calculator {
	return &Calculator{catalog: catalog}
}

// Catalog returns the catalog the calculator prices against.
func (c *Calculator) Catalog() Catalog {
	return c.catalog
}

// Calculate returns
//
//	monthly  = base(plan) + Σ recurring addons + max(custom, 0)
//	oneTime  = Σ one-time addons
//
// rounded to two decimals. Unknown and repeated addon ids are skipped.
func (c *Calculator) Calculate(in domain.PricingInput) (domain.PricingResult, error) {
	base, ok := c.catalog.BasePrice(in.Plan)
	if !ok {
		return domain.PricingResult{}, &domain.UnknownPlanError{Plan: in.Plan}
	}

	res := domain.PricingResult{
		LineItems: []domain.LineItem{{
			Code:        "plan:" + string(in.Plan),
			Description: string(in.Plan) + " plan",
			Kind:        domain.LineBasePlan,
			Recurring:   true,
			Amount:      base.Round(2),
		}},
	}
	monthly := base
	oneTime := decimal.Zero

	seen := make(map[string]bool, len(in.AddonIDs))
	for _, id := range in.AddonIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		addon, ok := c.catalog.Addon(id)
		if !ok {
			continue
		}
		line := domain.LineItem{
			Code:        addon.ID,
			Description: addon.Name,
			Kind:        domain.LineAddon,
			Amount:      addon.Price.Round(2),
		}
		switch addon.Kind {
		case domain.AddonRecurring:
			monthly = monthly.Add(addon.Price)
			line.Recurring = true
			res.Recurring = append(res.Recurring, addon)
		case domain.AddonOneTime:
			oneTime = oneTime.Add(addon.Price)
			res.OneTime = append(res.OneTime, addon)
		default:
			continue
		}
		res.LineItems = append(res.LineItems, line)
	}

	if in.CustomAmount != nil && in.CustomAmount.IsPositive() {
		monthly = monthly.Add(*in.CustomAmount)
		res.LineItems = append(res.LineItems, domain.LineItem{
			Code:        "custom",
			Description: "Negotiated amount",
			Kind:        domain.LineCustom,
			Recurring:   true,
			Amount:      in.CustomAmount.Round(2),
		})
	}

	res.MonthlyAmount = monthly.Round(2)
	res.OneTimeAmount = oneTime.Round(2)
	return res, nil
}
