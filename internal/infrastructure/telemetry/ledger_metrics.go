package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Operation outcomes used as the outcome attribute.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Quote cache results used as the cache_result attribute.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// LedgerMetrics records capacity ledger and rate engine activity.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	operations      *Counter
	latency         *Histogram
	casRetries      *Counter
	quotes          *Counter
	quoteCache      *Counter
	pricesRefreshed *Counter
	recordsExpired  *Counter
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewLedgerMetrics creates the instrument set.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	lm := &LedgerMetrics{}
	counters := []struct {
		dst  **Counter
		spec Spec
	}{
		{&lm.operations, Spec{Name: "inventory_operations_total", Description: "Capacity ledger operations by operation and outcome", Unit: "{operations}"}},
		{&lm.casRetries, Spec{Name: "inventory_cas_retries_total", Description: "Version conflicts that caused a read-modify-write retry", Unit: "{retries}"}},
		{&lm.quotes, Spec{Name: "pricing_quotes_total", Description: "Effective price computations by price source", Unit: "{quotes}"}},
		{&lm.quoteCache, Spec{Name: "pricing_quote_cache_total", Description: "Quote cache lookups by result", Unit: "{lookups}"}},
		{&lm.pricesRefreshed, Spec{Name: "pricing_snapshots_refreshed_total", Description: "Inventory records whose price snapshot was rewritten", Unit: "{records}"}},
		{&lm.recordsExpired, Spec{Name: "inventory_records_expired_total", Description: "Inventory records marked unavailable after their date passed", Unit: "{records}"}},
	}
	for _, c := range counters {
		counter, err := c.spec.Counter(cfg.Meter)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	latency, err := Spec{
		Name:        "inventory_operation_duration_seconds",
		Description: "Capacity ledger operation latency including retries",
		Unit:        "s",
		Buckets:     LedgerDurationBuckets,
	}.Histogram(cfg.Meter)
	if err != nil {
		return nil, err
	}
	lm.latency = latency

	if cfg.Logger != nil {
		cfg.Logger.Debug("Ledger metrics registered", zap.Int("instruments", len(counters)+1))
	}
	return lm, nil
}

// RecordOperation records one ledger operation and its latency.
func (lm *LedgerMetrics) RecordOperation(ctx context.Context, operation, providerType, outcome string, d time.Duration) {
	if lm == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrOperation.String(operation),
		AttrProviderType.String(providerType),
		AttrOutcome.String(outcome),
	}
	lm.operations.Inc(ctx, attrs...)
	lm.latency.ObserveDuration(ctx, d, attrs[:2]...)
}

// RecordCASRetry records one lost compare-and-swap.
func (lm *LedgerMetrics) RecordCASRetry(ctx context.Context, operation, providerType string) {
	if lm == nil {
		return
	}
	lm.casRetries.Inc(ctx,
		AttrOperation.String(operation),
		AttrProviderType.String(providerType),
	)
}

// RecordQuote records one effective price computation.
func (lm *LedgerMetrics) RecordQuote(ctx context.Context, source string) {
	if lm == nil {
		return
	}
	lm.quotes.Inc(ctx, AttrPriceSource.String(source))
}

// RecordQuoteCache records a quote cache lookup.
func (lm *LedgerMetrics) RecordQuoteCache(ctx context.Context, hit bool) {
	if lm == nil {
		return
	}
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	lm.quoteCache.Inc(ctx, AttrCacheResult.String(result))
}

// RecordPricesRefreshed records the records touched by one refresh run.
func (lm *LedgerMetrics) RecordPricesRefreshed(ctx context.Context, n int) {
	if lm == nil || n <= 0 {
		return
	}
	lm.pricesRefreshed.IncBy(ctx, int64(n))
}

// RecordExpired records the records expired by one sweep.
func (lm *LedgerMetrics) RecordExpired(ctx context.Context, n int) {
	if lm == nil || n <= 0 {
		return
	}
	lm.recordsExpired.IncBy(ctx, int64(n))
}
