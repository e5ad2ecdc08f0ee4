// Package middleware provides the HTTP middleware of the ledger API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName    string
	Enabled        bool
	TracerProvider trace.TracerProvider // overrides the global provider when set
}

// TracingWithConfig returns the otelgin server middleware. Span names follow
// "HTTP METHOD route", e.g. "GET /api/v1/inventory/availability".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}

	var opts []otelgin.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	return otelgin.Middleware(cfg.ServiceName, opts...)
}

// SpanEnricher adds request attributes to the active span. otelgin ends the
// span inside its own c.Next, so this runs as a separate middleware right
// after TracingWithConfig.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpanWithAttributes(c, span)
		}
		c.Next()
	}
}

func enrichSpanWithAttributes(c *gin.Context, span trace.Span) {
	if requestID := GetRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	for param, attr := range map[string]string{
		"providerType": "provider_type",
		"itemId":       "item_id",
		"date":         "date",
	} {
		if v := c.Query(param); v != "" && len(v) <= MaxRequestIDLength {
			span.SetAttributes(attribute.String(attr, v))
		}
	}
}

// SpanErrorMarker marks the span as failed for 5xx responses and records the
// status of 4xx ones. Place it after the tracing middleware.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		switch {
		case statusCode >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, http.StatusText(statusCode))
		case statusCode >= http.StatusBadRequest:
			// Client errors such as OUT_OF_CAPACITY are expected outcomes
			span.SetAttributes(attribute.Bool("http.client_error", true))
		}
		if code, ok := c.Get(errorCodeKey); ok {
			if s, ok := code.(string); ok {
				span.SetAttributes(attribute.String("error.code", s))
			}
		}
	}
}

// errorCodeKey is where handlers leave the API error code of a failed request
const errorCodeKey = "error_code"

// SetErrorCode records the API error code of the response for SpanErrorMarker
func SetErrorCode(c *gin.Context, code string) {
	c.Set(errorCodeKey, code)
}
