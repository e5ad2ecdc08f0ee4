package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/domain/shared"
	"github.com/tripcore/backend/internal/infrastructure/cache"
	"github.com/tripcore/backend/internal/infrastructure/persistence/memory"
	"go.uber.org/zap"
)

// Tuesday in October: no season applies
var plainDay = time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC)

type fixture struct {
	records    *memory.InventoryRecordRepository
	rules      *memory.PricingRuleRepository
	overrides  *memory.RateOverrideRepository
	calculator *RateCalculator
	ruleSvc    *RuleService
	overSvc    *OverrideService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	calendar, err := pricing.NewSeasonalCalendar(pricing.DefaultCalendarConfig())
	require.NoError(t, err)

	f := &fixture{
		records:   memory.NewInventoryRecordRepository(),
		rules:     memory.NewPricingRuleRepository(),
		overrides: memory.NewRateOverrideRepository(),
	}
	f.calculator = NewRateCalculator(f.records, f.rules, f.overrides, calendar, CalculatorConfig{}, zap.NewNop())
	f.ruleSvc = NewRuleService(f.rules, f.calculator, zap.NewNop())
	f.overSvc = NewOverrideService(f.overrides, f.calculator, zap.NewNop())
	return f
}

func (f *fixture) seed(t *testing.T, pt inventory.ProviderType, itemID string, date time.Time, base string, tiers inventory.PricingTiers) {
	t.Helper()
	key, err := inventory.NewRecordKey(pt, itemID, date)
	require.NoError(t, err)
	rec, err := inventory.NewInventoryRecord(key, inventory.NewRecordParams{
		TotalCapacity: 10,
		BasePrice:     decimal.RequireFromString(base),
		Currency:      "SAR",
		PricingTiers:  tiers,
	})
	require.NoError(t, err)
	_, err = f.records.CreateMissing(context.Background(), []*inventory.InventoryRecord{rec})
	require.NoError(t, err)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRateCalculator_RuleStacking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, inventory.ProviderFlight, "SV-1020", plainDay, "100", nil)

	_, err := f.ruleSvc.Create(ctx, RuleRequest{
		Name: "tuesday saver", RuleType: "day_of_week", AdjustmentType: "percentage",
		AdjustmentValue: dec("-15"), DaysOfWeek: []int{int(time.Tuesday)}, Priority: 10,
	})
	require.NoError(t, err)
	_, err = f.ruleSvc.Create(ctx, RuleRequest{
		Name: "solo surcharge", RuleType: "passenger_count", AdjustmentType: "percentage",
		AdjustmentValue: dec("25"), MinPassengers: 1, MaxPassengers: 1, Priority: 5,
	})
	require.NoError(t, err)

	q, err := f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "SV-1020", Date: plainDay, PassengerCount: 1})
	require.NoError(t, err)

	assert.True(t, q.Price.Equal(dec("106.25")), "got %s", q.Price)
	assert.Equal(t, SourceComputed, q.Source)
	assert.Equal(t, pricing.SeasonNone, q.AppliedSeasonalName)
	require.Len(t, q.AppliedRules, 2)
	assert.True(t, q.AppliedRules[0].PriceAfter.Equal(dec("85")))
	assert.Equal(t, "tuesday saver", q.AppliedRules[0].Name)
	assert.Len(t, q.AppliedRuleIDs, 2)
	assert.Equal(t, "SAR", q.Currency)

	t.Run("predicate excludes non matching context", func(t *testing.T) {
		q, err := f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "SV-1020", Date: plainDay, PassengerCount: 3})
		require.NoError(t, err)
		assert.True(t, q.Price.Equal(dec("85")), "got %s", q.Price)
	})
}

func TestRateCalculator_OverrideWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, inventory.ProviderHotel, "room-7", plainDay, "300", nil)
	_, err := f.ruleSvc.Create(ctx, RuleRequest{
		Name: "every day", RuleType: "day_of_week", AdjustmentType: "fixed",
		AdjustmentValue: dec("50"), DaysOfWeek: []int{0, 1, 2, 3, 4, 5, 6},
	})
	require.NoError(t, err)

	_, err = f.overSvc.Upsert(ctx, OverrideRequest{ItemID: "room-7", Date: "2025-10-07", Price: dec("42")})
	require.NoError(t, err)

	q, err := f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "room-7", Date: plainDay})
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(dec("42")), "got %s", q.Price)
	assert.Equal(t, SourceOverride, q.Source)
	assert.Empty(t, q.AppliedRules)

	_, err = f.overSvc.Deactivate(ctx, "room-7", "2025-10-07")
	require.NoError(t, err)
	q, err = f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "room-7", Date: plainDay})
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(dec("350")), "got %s", q.Price)
}

func TestRateCalculator_Seasons(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name   string
		date   time.Time
		season string
		price  string
	}{
		{"hajj", time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), pricing.SeasonHajj, "165"},
		{"ramadan", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), pricing.SeasonRamadan, "140"},
		{"peak", time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC), pricing.SeasonPeak, "125"},
		{"weekend", time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC), pricing.SeasonWeekend, "115"},
		{"off season", time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC), pricing.SeasonOffSeason, "90"},
		{"none", plainDay, pricing.SeasonNone, "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.seed(t, inventory.ProviderTransport, "bus-1", tt.date, "100", nil)
			q, err := f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "bus-1", Date: tt.date})
			require.NoError(t, err)
			assert.Equal(t, tt.season, q.AppliedSeasonalName)
			assert.True(t, q.Price.Equal(dec(tt.price)), "got %s", q.Price)
		})
	}
}

func TestRateCalculator_Deterministic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, inventory.ProviderFlight, "SV-1", plainDay, "99.99", nil)
	route := pricing.NewRoute("jed", "ruh")
	_, err := f.ruleSvc.Create(ctx, RuleRequest{
		Name: "JED-RUH", RuleType: "route_specific", AdjustmentType: "percentage",
		AdjustmentValue: dec("12.5"), ApplicableRoutes: []string{"JED-RUH"},
	})
	require.NoError(t, err)

	req := QuoteRequest{ItemID: "SV-1", Date: plainDay, PassengerCount: 2, Route: &route}
	first, err := f.calculator.ComputeEffectivePrice(ctx, req)
	require.NoError(t, err)
	for range 5 {
		q, err := f.calculator.ComputeEffectivePrice(ctx, req)
		require.NoError(t, err)
		assert.True(t, first.Price.Equal(q.Price))
	}
	assert.True(t, first.Price.Equal(dec("112.49")), "got %s", first.Price)
}

func TestRateCalculator_ProviderDisambiguation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, inventory.ProviderHotel, "shared-1", plainDay, "100", nil)
	f.seed(t, inventory.ProviderTransport, "shared-1", plainDay, "40", nil)

	_, err := f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "shared-1", Date: plainDay})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	q, err := f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "shared-1", Date: plainDay, ProviderType: "transport"})
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(dec("40")))
	assert.Equal(t, "transport", q.ProviderType)

	_, err = f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "missing", Date: plainDay})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRateCalculator_TierPricing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, inventory.ProviderHotel, "room-9", plainDay, "100", inventory.PricingTiers{
		inventory.TierSuite: {Price: dec("400"), GroupPrice: dec("350")},
	})

	q, err := f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "room-9", Date: plainDay, Tier: inventory.TierSuite})
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(dec("400")))

	q, err = f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "room-9", Date: plainDay, Tier: inventory.TierSuite, PassengerCount: 12})
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(dec("350")), "group price applies")

	_, err = f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "room-9", Date: plainDay, Tier: inventory.TierFirst})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestRateCalculator_QuoteCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	quotes := cache.NewInMemoryQuoteCache()
	f.calculator.SetQuoteCache(quotes)
	f.seed(t, inventory.ProviderFlight, "SV-2", plainDay, "200", nil)

	q1, err := f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "SV-2", Date: plainDay})
	require.NoError(t, err)
	assert.Equal(t, 1, quotes.Len())

	q2, err := f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "SV-2", Date: plainDay})
	require.NoError(t, err)
	assert.True(t, q1.Price.Equal(q2.Price))

	// rule writes invalidate cached quotes
	_, err = f.ruleSvc.Create(ctx, RuleRequest{
		Name: "discount", RuleType: "passenger_count", AdjustmentType: "fixed",
		AdjustmentValue: dec("-20"), MinPassengers: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, quotes.Len())

	q3, err := f.calculator.ComputeEffectivePrice(ctx, QuoteRequest{ItemID: "SV-2", Date: plainDay})
	require.NoError(t, err)
	assert.True(t, q3.Price.Equal(dec("180")), "got %s", q3.Price)
}

func TestCacheKey(t *testing.T) {
	route := pricing.NewRoute("JED", "RUH")
	a := cacheKey(QuoteRequest{ItemID: "x", Date: plainDay, PassengerCount: 1})
	b := cacheKey(QuoteRequest{ItemID: "x", Date: plainDay, PassengerCount: 1, Route: &route})
	c := cacheKey(QuoteRequest{ItemID: "x", Date: plainDay, PassengerCount: 2})
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, cacheKey(QuoteRequest{ItemID: "x", Date: plainDay, PassengerCount: 1}))
}
