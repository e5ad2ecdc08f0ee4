package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/tripcore/backend/internal/infrastructure/config"
	"github.com/tripcore/backend/internal/infrastructure/logger"
	"github.com/tripcore/backend/internal/interfaces/http/handler"
	"github.com/tripcore/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Config holds what the engine needs besides the handlers
type Config struct {
	Logger  *zap.Logger
	HTTP    config.HTTPConfig
	Tracing middleware.TracingConfig
	Metrics middleware.HTTPMetricsConfig
}

// Handlers are the HTTP handlers mounted by NewEngine
type Handlers struct {
	System    *handler.SystemHandler
	Inventory *handler.InventoryHandler
	Pricing   *handler.PricingHandler
}

// NewEngine builds the gin engine with the middleware chain and every route.
// Recovery runs first so panics in later middleware are answered; tracing
// wraps the request logger so log lines carry the trace id.
func NewEngine(cfg Config, h Handlers) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.SpanEnricher(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(cfg.Metrics),
		logger.GinMiddleware(cfg.Logger),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if cfg.HTTP.RequestTimeout > 0 {
		engine.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))
	}

	if h.System != nil {
		engine.GET("/health", h.System.Health)
		engine.GET("/ping", h.System.Ping)
	}

	var groups []*DomainGroup
	if h.System != nil {
		groups = append(groups, NewDomainGroup("system", "/system").GET("/info", h.System.GetSystemInfo))
	}
	if h.Inventory != nil {
		groups = append(groups, inventoryRoutes(h.Inventory))
	}
	if h.Pricing != nil {
		groups = append(groups, pricingRoutes(h.Pricing))
	}
	Mount(engine, APIVersion, groups...)
	for _, g := range groups {
		cfg.Logger.Debug("Mounted route group", zap.String("group", g.Name()), zap.Strings("routes", g.Routes()))
	}

	return engine, nil
}

func inventoryRoutes(h *handler.InventoryHandler) *DomainGroup {
	return NewDomainGroup("inventory", "/inventory").
		POST("/initialize", h.Initialize).
		GET("/availability", h.Availability).
		GET("/calendar", h.Calendar).
		POST("/reserve", h.Reserve).
		POST("/release", h.Release).
		POST("/block", h.Block).
		POST("/unblock", h.Unblock).
		POST("/close", h.Close).
		POST("/reopen", h.Reopen)
}

func pricingRoutes(h *handler.PricingHandler) *DomainGroup {
	return NewDomainGroup("pricing", "/pricing").
		GET("/quote", h.Quote).
		POST("/rules", h.CreateRule).
		GET("/rules", h.ListRules).
		GET("/rules/:id", h.GetRule).
		PUT("/rules/:id", h.UpdateRule).
		DELETE("/rules/:id", h.DeactivateRule).
		PUT("/overrides", h.UpsertOverride).
		GET("/overrides", h.GetOverrides).
		DELETE("/overrides", h.DeactivateOverride).
		POST("/refresh", h.Refresh)
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.CORSAllowOrigins
	}
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	return cors
}
