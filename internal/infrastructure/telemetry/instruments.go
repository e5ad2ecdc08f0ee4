package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when an instrument set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Spec describes one instrument. Buckets apply to histograms only.
type Spec struct {
	Name        string
	Description string
	Unit        string
	Buckets     []float64
}

// Counter is a monotonic int64 instrument.
type Counter struct {
	metric.Int64Counter
}

// Counter creates the counter described by s.
func (s Spec) Counter(meter metric.Meter) (*Counter, error) {
	c, err := meter.Int64Counter(s.Name, metric.WithDescription(s.Description), metric.WithUnit(s.Unit))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", s.Name, err)
	}
	return &Counter{c}, nil
}

// Inc adds one.
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.IncBy(ctx, 1, attrs...)
}

// IncBy adds n.
func (c *Counter) IncBy(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.Add(ctx, n, metric.WithAttributes(attrs...))
}

// Histogram is a float64 distribution instrument.
type Histogram struct {
	metric.Float64Histogram
}

// Histogram creates the histogram described by s.
func (s Spec) Histogram(meter metric.Meter) (*Histogram, error) {
	opts := []metric.Float64HistogramOption{metric.WithDescription(s.Description), metric.WithUnit(s.Unit)}
	if len(s.Buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(s.Buckets...))
	}
	h, err := meter.Float64Histogram(s.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("histogram %s: %w", s.Name, err)
	}
	return &Histogram{h}, nil
}

// Observe records v.
func (h *Histogram) Observe(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	h.Record(ctx, v, metric.WithAttributes(attrs...))
}

// ObserveSince records the seconds elapsed since start.
func (h *Histogram) ObserveSince(ctx context.Context, start time.Time, attrs ...attribute.KeyValue) {
	h.Observe(ctx, time.Since(start).Seconds(), attrs...)
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.Observe(ctx, d.Seconds(), attrs...)
}

// Attribute keys.
var (
	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")

	AttrDBState = attribute.Key("db.pool.state")

	AttrProviderType = attribute.Key("provider_type")
	AttrOperation    = attribute.Key("operation")
	AttrOutcome      = attribute.Key("outcome")
	AttrPriceSource  = attribute.Key("price_source")
	AttrCacheResult  = attribute.Key("cache_result")
)

// Bucket boundaries in seconds, and in bytes for SizeBuckets.
var (
	HTTPDurationBuckets   = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	LedgerDurationBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1}
	SizeBuckets           = []float64{128, 512, 1024, 4096, 16384, 65536, 262144, 1048576}
)
