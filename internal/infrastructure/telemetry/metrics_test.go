package telemetry

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// sumWhere adds the int64 sum data points whose attributes include every filter pair
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name string, filter ...attribute.KeyValue) int64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	require.True(t, ok, "metric %s not collected", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", name)

	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range filter {
			if v, found := dp.Attributes.Value(kv.Key); !found || v != kv.Value {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := NewMeterProvider(ctx, Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "test-service",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestCounterAndHistogram(t *testing.T) {
	reader, mp := newManualMeter(t)
	meter := mp.Meter("test")
	ctx := context.Background()

	counter, err := Spec{Name: "test_counter", Description: "Test counter", Unit: "1"}.Counter(meter)
	require.NoError(t, err)
	counter.IncBy(ctx, 5, attribute.String("method", "GET"))
	counter.Inc(ctx, attribute.String("method", "GET"))
	counter.Inc(ctx, attribute.String("method", "POST"))

	hist, err := Spec{Name: "test_duration", Unit: "s", Buckets: LedgerDurationBuckets}.Histogram(meter)
	require.NoError(t, err)
	hist.ObserveDuration(ctx, 3*time.Millisecond)

	rm := collect(t, reader)
	assert.Equal(t, int64(6), sumWhere(t, rm, "test_counter", attribute.String("method", "GET")))
	assert.Equal(t, int64(7), sumWhere(t, rm, "test_counter"))

	m, ok := findMetric(rm, "test_duration")
	require.True(t, ok)
	h := m.Data.(metricdata.Histogram[float64])
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(1), h.DataPoints[0].Count)
	assert.Equal(t, LedgerDurationBuckets, h.DataPoints[0].Bounds)
	assert.InDelta(t, 0.003, h.DataPoints[0].Sum, 1e-9)
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	lm, err := NewLedgerMetrics(LedgerMetricsConfig{})
	assert.Nil(t, lm)
	assert.ErrorIs(t, err, ErrMeterNil)
}

func TestLedgerMetrics_Records(t *testing.T) {
	reader, mp := newManualMeter(t)
	lm, err := NewLedgerMetrics(LedgerMetricsConfig{Meter: mp.Meter("ledger"), Logger: zap.NewNop()})
	require.NoError(t, err)
	ctx := context.Background()

	lm.RecordOperation(ctx, "reserve", "hotel", OutcomeSuccess, 4*time.Millisecond)
	lm.RecordOperation(ctx, "reserve", "hotel", OutcomeRejected, time.Millisecond)
	lm.RecordOperation(ctx, "release", "flight", OutcomeSuccess, time.Millisecond)
	lm.RecordCASRetry(ctx, "reserve", "hotel")
	lm.RecordCASRetry(ctx, "reserve", "hotel")
	lm.RecordQuote(ctx, "override")
	lm.RecordQuoteCache(ctx, true)
	lm.RecordQuoteCache(ctx, false)
	lm.RecordQuoteCache(ctx, false)
	lm.RecordPricesRefreshed(ctx, 12)
	lm.RecordPricesRefreshed(ctx, 0)
	lm.RecordExpired(ctx, 3)

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumWhere(t, rm, "inventory_operations_total", AttrOperation.String("reserve")))
	assert.Equal(t, int64(1), sumWhere(t, rm, "inventory_operations_total",
		AttrOperation.String("reserve"), AttrOutcome.String(OutcomeRejected)))
	assert.Equal(t, int64(2), sumWhere(t, rm, "inventory_cas_retries_total"))
	assert.Equal(t, int64(1), sumWhere(t, rm, "pricing_quotes_total", AttrPriceSource.String("override")))
	assert.Equal(t, int64(2), sumWhere(t, rm, "pricing_quote_cache_total", AttrCacheResult.String(CacheMiss)))
	assert.Equal(t, int64(12), sumWhere(t, rm, "pricing_snapshots_refreshed_total"))
	assert.Equal(t, int64(3), sumWhere(t, rm, "inventory_records_expired_total"))

	_, ok := findMetric(rm, "inventory_operation_duration_seconds")
	assert.True(t, ok)
}

func TestLedgerMetrics_NilReceiver(t *testing.T) {
	var lm *LedgerMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		lm.RecordOperation(ctx, "reserve", "hotel", OutcomeSuccess, time.Millisecond)
		lm.RecordCASRetry(ctx, "reserve", "hotel")
		lm.RecordQuote(ctx, "computed")
		lm.RecordQuoteCache(ctx, true)
		lm.RecordPricesRefreshed(ctx, 1)
		lm.RecordExpired(ctx, 1)
	})
}

type fakePool struct{ stats sql.DBStats }

func (f fakePool) Stats() sql.DBStats { return f.stats }

func TestRegisterDBPoolMetrics(t *testing.T) {
	reader, mp := newManualMeter(t)
	pool := fakePool{stats: sql.DBStats{
		MaxOpenConnections: 25,
		OpenConnections:    7,
		InUse:              4,
		Idle:               3,
		WaitCount:          9,
	}}

	pm, err := RegisterDBPoolMetrics(mp.Meter("db"), pool)
	require.NoError(t, err)

	rm := collect(t, reader)
	m, ok := findMetric(rm, "db_pool_connections")
	require.True(t, ok)
	byState := map[string]int64{}
	for _, dp := range m.Data.(metricdata.Gauge[int64]).DataPoints {
		state, _ := dp.Attributes.Value(AttrDBState)
		byState[state.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"idle": 3, "in_use": 4, "open": 7}, byState)
	assert.Equal(t, int64(9), sumWhere(t, rm, "db_pool_wait_total"))

	assert.NoError(t, pm.Unregister())
}

func TestRegisterDBPoolMetrics_NilMeter(t *testing.T) {
	_, err := RegisterDBPoolMetrics(nil, fakePool{})
	assert.ErrorIs(t, err, ErrMeterNil)
	assert.NoError(t, (*DBPoolMetrics)(nil).Unregister())
}
