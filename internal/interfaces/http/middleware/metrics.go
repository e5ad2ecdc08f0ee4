package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tripcore/backend/internal/infrastructure/telemetry"
)

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	Enabled       bool
}

type httpInstruments struct {
	requests  *telemetry.Counter
	latency   *telemetry.Histogram
	reqBytes  *telemetry.Histogram
	respBytes *telemetry.Histogram
	inflight  metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	in := &httpInstruments{}
	var err error
	if in.requests, err = (telemetry.Spec{
		Name:        "http_server_request_total",
		Description: "HTTP requests by method, route and status",
		Unit:        "{request}",
	}).Counter(meter); err != nil {
		return nil, err
	}
	if in.latency, err = (telemetry.Spec{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency",
		Unit:        "s",
		Buckets:     telemetry.HTTPDurationBuckets,
	}).Histogram(meter); err != nil {
		return nil, err
	}
	sizes := []*telemetry.Histogram{nil, nil}
	for i, name := range []string{"http_server_request_size_bytes", "http_server_response_size_bytes"} {
		if sizes[i], err = (telemetry.Spec{
			Name:        name,
			Description: "HTTP body size",
			Unit:        "By",
			Buckets:     telemetry.SizeBuckets,
		}).Histogram(meter); err != nil {
			return nil, err
		}
	}
	in.reqBytes, in.respBytes = sizes[0], sizes[1]
	if in.inflight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	return in, nil
}

// HTTPMetrics returns middleware recording request metrics on the provider's
// "http.server" meter. It passes requests through when metrics are off.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"))
}

// HTTPMetricsWithMeter records request count, latency, body sizes and
// in-flight requests, labelled by method and route pattern.
func HTTPMetricsWithMeter(meter metric.Meter) gin.HandlerFunc {
	in, err := newHTTPInstruments(meter)
	if err != nil {
		return passThrough
	}
	return in.observe
}

func (in *httpInstruments) observe(c *gin.Context) {
	ctx := c.Request.Context()
	start := time.Now()
	in.inflight.Add(ctx, 1)
	defer in.inflight.Add(ctx, -1)

	c.Next()

	attrs := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(getRoutePattern(c)),
	}
	in.requests.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
	in.latency.ObserveSince(ctx, start, attrs...)
	if n := c.Request.ContentLength; n > 0 {
		in.reqBytes.Observe(ctx, float64(n), attrs...)
	}
	if n := c.Writer.Size(); n > 0 {
		in.respBytes.Observe(ctx, float64(n), attrs...)
	}
}

// getRoutePattern returns the matched route (e.g. "/api/v1/pricing/rules/:id")
// instead of the raw path so label cardinality stays bounded.
func getRoutePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func passThrough(c *gin.Context) { c.Next() }
