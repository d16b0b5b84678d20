package pricing_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/tenantforge/internal/domain"
	"github.com/neomorfeo/tenantforge/internal/pricing"
)

func testCatalog() pricing.Catalog {
	return pricing.NewCatalog(
		map[domain.Plan]decimal.Decimal{domain.PlanSolo: decimal.NewFromInt(49)},
		[]domain.Addon{
			{ID: "recurringA", Name: "A", Price: decimal.NewFromInt(10), Kind: domain.AddonRecurring, Unlocks: domain.FeatureBlog},
			{ID: "oneTimeB", Name: "B", Price: decimal.NewFromInt(30), Kind: domain.AddonOneTime},
			{ID: "cents", Name: "C", Price: decimal.RequireFromString("9.995"), Kind: domain.AddonRecurring},
		},
	)
}

func TestCalculate_SoloWithRecurringAndOneTime(t *testing.T) {
	calc := pricing.NewCalculator(testCatalog())
	zero := decimal.Zero

	res, err := calc.Calculate(domain.PricingInput{
		Plan:         domain.PlanSolo,
		AddonIDs:     []string{"recurringA", "oneTimeB"},
		CustomAmount: &zero,
	})
	require.NoError(t, err)

	assert.True(t, res.MonthlyAmount.Equal(decimal.NewFromInt(59)), "monthly = %s", res.MonthlyAmount)
	assert.True(t, res.OneTimeAmount.Equal(decimal.NewFromInt(30)), "oneTime = %s", res.OneTimeAmount)
	assert.Len(t, res.LineItems, 3)
	assert.Len(t, res.RecurringLines(), 2)
	assert.Len(t, res.OneTimeLines(), 1)
	assert.Equal(t, []domain.Feature{domain.FeatureBlog}, res.UnlockedFeatures())
}

func TestCalculate_UnknownAddonsAreSkipped(t *testing.T) {
	calc := pricing.NewCalculator(testCatalog())

	res, err := calc.Calculate(domain.PricingInput{
		Plan:     domain.PlanSolo,
		AddonIDs: []string{"does-not-exist", "recurringA", "recurringA"},
	})
	require.NoError(t, err)
	assert.Equal(t, "59", res.MonthlyAmount.String())
	assert.True(t, res.OneTimeAmount.IsZero())
}

func TestCalculate_CustomAmount(t *testing.T) {
	calc := pricing.NewCalculator(testCatalog())

	cases := []struct {
		name   string
		custom *decimal.Decimal
		want   string
	}{
		{"missing", nil, "49"},
		{"negative", ptr(decimal.NewFromInt(-20)), "49"},
		{"positive", ptr(decimal.RequireFromString("12.50")), "61.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := calc.Calculate(domain.PricingInput{Plan: domain.PlanSolo, CustomAmount: tc.custom})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.MonthlyAmount.String())
		})
	}
}

func TestCalculate_RoundsToTwoDecimals(t *testing.T) {
	calc := pricing.NewCalculator(testCatalog())

	res, err := calc.Calculate(domain.PricingInput{Plan: domain.PlanSolo, AddonIDs: []string{"cents"}})
	require.NoError(t, err)
	assert.Equal(t, "59.00", res.MonthlyAmount.StringFixed(2))
	assert.LessOrEqual(t, -res.MonthlyAmount.Exponent(), int32(2))
}

func TestCalculate_UnknownPlan(t *testing.T) {
	calc := pricing.NewCalculator(testCatalog())

	_, err := calc.Calculate(domain.PricingInput{Plan: domain.PlanPremium})

	var planErr *domain.UnknownPlanError
	require.True(t, errors.As(err, &planErr))
	assert.Equal(t, domain.PlanPremium, planErr.Plan)
}

func TestCalculate_MonthlyFormulaHoldsForEveryPlan(t *testing.T) {
	catalog := pricing.DefaultCatalog()
	calc := pricing.NewCalculator(catalog)

	var ids []string
	expectedAddons := decimal.Zero
	expectedOneTime := decimal.Zero
	for _, a := range catalog.Addons() {
		ids = append(ids, a.ID)
		if a.Kind == domain.AddonRecurring {
			expectedAddons = expectedAddons.Add(a.Price)
		} else {
			expectedOneTime = expectedOneTime.Add(a.Price)
		}
	}
	custom := decimal.RequireFromString("7.25")

	for _, plan := range domain.Plans() {
		base, ok := catalog.BasePrice(plan)
		require.True(t, ok, "plan %s has no base price", plan)

		res, err := calc.Calculate(domain.PricingInput{Plan: plan, AddonIDs: ids, CustomAmount: &custom})
		require.NoError(t, err)

		want := base.Add(expectedAddons).Add(custom).Round(2)
		assert.True(t, res.MonthlyAmount.Equal(want), "%s: monthly %s, want %s", plan, res.MonthlyAmount, want)
		assert.True(t, res.OneTimeAmount.Equal(expectedOneTime.Round(2)), "%s: oneTime %s", plan, res.OneTimeAmount)
	}
}

func TestDefaultCatalog_BasePrices(t *testing.T) {
	catalog := pricing.DefaultCatalog()
	want := map[domain.Plan]string{
		domain.PlanSolo:    "49",
		domain.PlanDuo:     "69",
		domain.PlanTeam:    "119",
		domain.PlanPremium: "179",
	}
	for plan, price := range want {
		got, ok := catalog.BasePrice(plan)
		require.True(t, ok)
		assert.Equal(t, price, got.String(), plan)
	}
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }
