package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/domain/shared"
	"github.com/tripcore/backend/internal/infrastructure/logger"
	"github.com/tripcore/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	// DefaultQuoteCacheTTL is how long a computed quote is served from cache
	DefaultQuoteCacheTTL = 60 * time.Second
	// DefaultGroupSize is the passenger count from which tier group prices apply
	DefaultGroupSize = 10
)

// QuoteCache stores encoded quotes. Invalidate drops every entry.
type QuoteCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// CalculatorConfig holds rate engine settings
type CalculatorConfig struct {
	// Currency is reported for overrides saved without one
	Currency  string
	CacheTTL  time.Duration
	GroupSize int
}

// RateCalculator computes effective prices. It only reads inventory records,
// rules and overrides; the cached price snapshot is written by the Ledger.
type RateCalculator struct {
	records   inventory.InventoryRecordRepository
	rules     pricing.PricingRuleRepository
	overrides pricing.RateOverrideRepository
	calendar  *pricing.SeasonalCalendar
	cache     QuoteCache
	metrics   *telemetry.LedgerMetrics
	logger    *zap.Logger
	config    CalculatorConfig
}

// NewRateCalculator creates a new RateCalculator without a quote cache
func NewRateCalculator(
	records inventory.InventoryRecordRepository,
	rules pricing.PricingRuleRepository,
	overrides pricing.RateOverrideRepository,
	calendar *pricing.SeasonalCalendar,
	config CalculatorConfig,
	logger *zap.Logger,
) *RateCalculator {
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultQuoteCacheTTL
	}
	if config.GroupSize <= 0 {
		config.GroupSize = DefaultGroupSize
	}
	if config.Currency == "" {
		config.Currency = "SAR"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateCalculator{
		records:   records,
		rules:     rules,
		overrides: overrides,
		calendar:  calendar,
		config:    config,
		logger:    logger,
	}
}

// SetQuoteCache enables quote caching; nil disables it
func (c *RateCalculator) SetQuoteCache(cache QuoteCache) {
	c.cache = cache
}

// SetLedgerMetrics sets the metrics recorder
func (c *RateCalculator) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	c.metrics = m
}

// Invalidate drops every cached quote. Called after rule and override writes.
func (c *RateCalculator) Invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx); err != nil {
		logger.Or(ctx, c.logger).Error("Failed to invalidate quote cache", zap.Error(err))
	}
}

// ComputeEffectivePrice returns the price of an item on a date. An active
// override wins; otherwise the base price is scaled by the season multiplier
// and then adjusted by every applicable rule, rounding to 2 decimals.
func (c *RateCalculator) ComputeEffectivePrice(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "RateCalculator", "ComputeEffectivePrice",
		telemetry.WithAttribute(telemetry.SpanAttrItemID, req.ItemID),
		telemetry.WithAttribute(telemetry.SpanAttrDate, req.Date.Format(shared.DateLayout)),
	)
	defer span.End()

	req.ItemID = strings.TrimSpace(req.ItemID)
	req.Date = shared.NormalizeDate(req.Date)
	if req.ItemID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "item id cannot be empty")
	}
	if req.ProviderType != "" {
		pt, err := inventory.ParseProviderType(req.ProviderType)
		if err != nil {
			return nil, err
		}
		req.ProviderType = pt.String()
	}
	if req.PassengerCount <= 0 {
		req.PassengerCount = 1
	}

	key := cacheKey(req)
	if q, ok := c.cached(ctx, key); ok {
		telemetry.SetAttributes(span, telemetry.SpanAttrPriceSource, q.Source, "cache_hit", true)
		c.metrics.RecordQuote(ctx, q.Source)
		return q, nil
	}

	q, err := c.compute(ctx, req, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPriceSource, q.Source,
		telemetry.SpanAttrRuleCount, len(q.AppliedRules),
	)
	c.metrics.RecordQuote(ctx, q.Source)
	c.store(ctx, key, q)
	return q, nil
}

// PriceRecord computes the single-passenger price of a known record. Used by
// the price refresher; the quote cache is bypassed.
func (c *RateCalculator) PriceRecord(ctx context.Context, rec *inventory.InventoryRecord) (*Quote, error) {
	return c.compute(ctx, QuoteRequest{
		ItemID:         rec.ItemID,
		Date:           rec.Date,
		PassengerCount: 1,
		ProviderType:   rec.ProviderType.String(),
	}, rec)
}

func (c *RateCalculator) compute(ctx context.Context, req QuoteRequest, rec *inventory.InventoryRecord) (*Quote, error) {
	override, err := c.overrides.FindActive(ctx, req.ItemID, req.Date)
	switch {
	case err == nil:
		return c.overrideQuote(req, override), nil
	case !errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("find rate override: %w", err)
	}

	if rec == nil {
		if rec, err = c.findRecord(ctx, req); err != nil {
			return nil, err
		}
	}
	base, err := c.basePrice(rec, req)
	if err != nil {
		return nil, err
	}

	seasonName, multiplier := c.calendar.Multiplier(req.Date)
	seasoned := pricing.RoundHalfUp(base.Mul(multiplier))

	candidates, err := c.rules.FindCandidates(ctx, req.ItemID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("find pricing rules: %w", err)
	}
	qc := pricing.QuoteContext{
		DayOfWeek:      req.Date.Weekday(),
		PassengerCount: req.PassengerCount,
		Route:          req.Route,
		ProviderType:   rec.ProviderType.String(),
	}
	rules := pricing.NewRuleSet(candidates).ApplicableRules(req.ItemID, req.Date, qc)
	price, applied := pricing.Apply(seasoned, rules)

	ids := make([]string, 0, len(applied))
	for _, a := range applied {
		ids = append(ids, a.RuleID)
	}
	return &Quote{
		ItemID:              req.ItemID,
		ProviderType:        rec.ProviderType.String(),
		Date:                req.Date.Format(shared.DateLayout),
		Price:               price,
		Currency:            rec.Currency,
		Source:              SourceComputed,
		BasePrice:           base,
		AppliedSeasonalName: seasonName,
		SeasonMultiplier:    multiplier,
		AppliedRules:        applied,
		AppliedRuleIDs:      ids,
		Tier:                string(req.Tier),
	}, nil
}

func (c *RateCalculator) overrideQuote(req QuoteRequest, o *pricing.RateOverride) *Quote {
	currency := o.Currency
	if currency == "" {
		currency = c.config.Currency
	}
	return &Quote{
		ItemID:              req.ItemID,
		ProviderType:        req.ProviderType,
		Date:                req.Date.Format(shared.DateLayout),
		Price:               o.Price,
		Currency:            currency,
		Source:              SourceOverride,
		BasePrice:           o.Price,
		AppliedSeasonalName: pricing.SeasonNone,
		SeasonMultiplier:    decimal.NewFromInt(1),
		AppliedRules:        []pricing.AppliedRule{},
		AppliedRuleIDs:      []string{},
		Tier:                string(req.Tier),
	}
}

// findRecord resolves the record an item id refers to on a date
func (c *RateCalculator) findRecord(ctx context.Context, req QuoteRequest) (*inventory.InventoryRecord, error) {
	if req.ProviderType != "" {
		key, err := inventory.NewRecordKey(inventory.ProviderType(req.ProviderType), req.ItemID, req.Date)
		if err != nil {
			return nil, err
		}
		return c.records.FindByKey(ctx, key)
	}

	found, err := c.records.FindByItem(ctx, req.ItemID, req.Date)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, shared.NewNotFoundError("inventory record",
			fmt.Sprintf("%s/%s", req.ItemID, req.Date.Format(shared.DateLayout)))
	case 1:
		return &found[0], nil
	default:
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("item %s exists for several provider types, providerType is required", req.ItemID))
	}
}

// basePrice picks the record base price or the requested tier price
func (c *RateCalculator) basePrice(rec *inventory.InventoryRecord, req QuoteRequest) (decimal.Decimal, error) {
	if req.Tier == "" {
		return rec.BasePrice, nil
	}
	tier, ok := rec.PricingTiers[req.Tier]
	if !ok {
		return decimal.Zero, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("tier %s is not offered for %s", req.Tier, rec.Key()))
	}
	if req.PassengerCount >= c.config.GroupSize && tier.GroupPrice.IsPositive() {
		return tier.GroupPrice, nil
	}
	return tier.Price, nil
}

func (c *RateCalculator) cached(ctx context.Context, key string) (*Quote, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logger.Or(ctx, c.logger).Warn("Quote cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	c.metrics.RecordQuoteCache(ctx, ok)
	if !ok {
		return nil, false
	}
	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		logger.Or(ctx, c.logger).Warn("Dropping undecodable cached quote", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &q, true
}

func (c *RateCalculator) store(ctx context.Context, key string, q *Quote) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(q)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.config.CacheTTL); err != nil {
		logger.Or(ctx, c.logger).Warn("Quote cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// cacheKey is (itemID, date, quote context); the day of week follows from the date
func cacheKey(req QuoteRequest) string {
	route := ""
	if req.Route != nil {
		route = req.Route.String()
	}
	return fmt.Sprintf("%s|%s|%s|%s|%d|%s",
		req.ItemID, req.Date.Format(shared.DateLayout), req.ProviderType, req.Tier, req.PassengerCount, route)
}
