package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	inventoryapp "github.com/tripcore/backend/internal/application/inventory"
	pricingapp "github.com/tripcore/backend/internal/application/pricing"
	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/infrastructure/cache"
	"github.com/tripcore/backend/internal/infrastructure/config"
	"github.com/tripcore/backend/internal/infrastructure/event"
	"github.com/tripcore/backend/internal/infrastructure/logger"
	"github.com/tripcore/backend/internal/infrastructure/migration"
	"github.com/tripcore/backend/internal/infrastructure/persistence"
	"github.com/tripcore/backend/internal/infrastructure/persistence/memory"
	"github.com/tripcore/backend/internal/infrastructure/scheduler"
	"github.com/tripcore/backend/internal/infrastructure/telemetry"
	"github.com/tripcore/backend/internal/interfaces/http/handler"
	"github.com/tripcore/backend/internal/interfaces/http/middleware"
	"github.com/tripcore/backend/internal/interfaces/http/router"
)

const version = "1.0.0"

// repositories groups the three stores behind the services
type repositories struct {
	records   inventory.InventoryRecordRepository
	rules     pricing.PricingRuleRepository
	overrides pricing.RateOverrideRepository
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// OpenTelemetry providers. Disabled providers are no-ops.
	tracingCfg := telemetry.ConfigFrom(cfg.Telemetry)
	tp, err := telemetry.NewTracerProvider(ctx, tracingCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, tracingCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	lp, err := telemetry.NewLoggerProvider(ctx, tracingCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if lp.IsEnabled() {
		// Rebuild the logger so every entry is also exported over OTLP
		otelCore := telemetry.NewZapOTELCore(lp, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
		if log, err = logger.New(logCfg, otelCore); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting TripCore Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("storage", cfg.Storage.Driver),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ledgerMetrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:  mp.Meter("tripcore.ledger"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to initialize ledger metrics", zap.Error(err))
	}

	// Storage
	checks := map[string]handler.Pinger{}
	var repos repositories
	if cfg.Storage.Driver == "postgres" {
		db, poolMetrics, err := openDatabase(ctx, cfg, mp, log)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			if poolMetrics != nil {
				_ = poolMetrics.Unregister()
			}
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
		checks["database"] = db
		repos = repositories{
			records:   persistence.NewGormInventoryRecordRepository(db.DB),
			rules:     persistence.NewGormPricingRuleRepository(db.DB),
			overrides: persistence.NewGormRateOverrideRepository(db.DB),
		}
		log.Info("Database connected successfully")
	} else {
		repos = repositories{
			records:   memory.NewInventoryRecordRepository(),
			rules:     memory.NewPricingRuleRepository(),
			overrides: memory.NewRateOverrideRepository(),
		}
		log.Warn("Using in-memory storage; state is lost on restart")
	}

	// Caches. Outside production a missing Redis degrades to memory.
	caches := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	defer func() {
		if err := caches.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	idempotency, err := caches.IdempotencyStore(cfg.Idempotency.Backend)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	quoteCache, err := caches.QuoteCache(cfg.Pricing.QuoteCacheBackend)
	if err != nil {
		log.Fatal("Failed to initialize quote cache", zap.Error(err))
	}

	// Event bus. Ledger events go to Kafka when enabled, otherwise to the log.
	eventBus := event.NewInMemoryEventBus(log)
	if cfg.Kafka.Enabled {
		writer, err := event.NewKafkaWriter(cfg.Kafka, cfg.Telemetry.ServiceName, tp.Provider())
		if err != nil {
			log.Fatal("Failed to initialize Kafka writer", zap.Error(err))
		}
		forwarder := event.NewKafkaForwarder(writer, log)
		defer func() {
			if err := forwarder.Close(); err != nil {
				log.Error("Error closing Kafka writer", zap.Error(err))
			}
		}()
		eventBus.Subscribe(forwarder)
		log.Info("Forwarding ledger events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	} else {
		eventBus.Subscribe(event.NewLoggingHandler(log))
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Inventory ledger
	ledger := inventoryapp.NewLedger(repos.records, inventoryapp.LedgerConfig{
		MaxInitializeDays: cfg.Inventory.MaxInitializeDays,
		MaxRetries:        cfg.Reservation.MaxRetries,
		RetryBackoff:      cfg.Reservation.RetryBackoff,
		IdempotencyTTL:    cfg.Idempotency.TTL,
		DefaultCurrency:   cfg.Pricing.Currency,
	}, log)
	ledger.SetEventPublisher(eventBus)
	ledger.SetIdempotencyStore(idempotency)
	ledger.SetLedgerMetrics(ledgerMetrics)
	coordinator := inventoryapp.NewReservationCoordinator(ledger, cfg.Reservation.MaxRetries, cfg.Reservation.RetryBackoff)

	// Rate engine
	calendar, err := pricingapp.NewCalendarFromConfig(cfg.Pricing)
	if err != nil {
		log.Fatal("Invalid seasonal calendar configuration", zap.Error(err))
	}
	calculator := pricingapp.NewRateCalculator(repos.records, repos.rules, repos.overrides, calendar, pricingapp.CalculatorConfig{
		Currency: cfg.Pricing.Currency,
		CacheTTL: cfg.Pricing.QuoteCacheTTL,
	}, log)
	calculator.SetQuoteCache(quoteCache)
	calculator.SetLedgerMetrics(ledgerMetrics)
	ledger.SetQuoteInvalidator(calculator)
	ruleService := pricingapp.NewRuleService(repos.rules, calculator, log)
	overrideService := pricingapp.NewOverrideService(repos.overrides, calculator, log)
	refresher := pricingapp.NewPriceRefresher(repos.records, calculator, ledger,
		cfg.Inventory.RefreshHorizonDays, cfg.Scheduler.BatchSize, log)
	refresher.SetLedgerMetrics(ledgerMetrics)

	// Background jobs
	sched := scheduler.NewScheduler(scheduler.Config{
		Enabled:    cfg.Scheduler.Enabled,
		JobTimeout: cfg.Scheduler.JobTimeout,
	}, log)
	tasks := []scheduler.Task{
		{
			Name:     "price_refresh",
			Interval: cfg.Scheduler.PriceRefreshInterval,
			Run: func(ctx context.Context) error {
				_, err := refresher.Refresh(ctx)
				return err
			},
		},
		{
			Name:     "inventory_expiry",
			Interval: cfg.Scheduler.ExpiryInterval,
			Run: func(ctx context.Context) error {
				_, err := ledger.ExpirePastDates(ctx, time.Now())
				return err
			},
		},
	}
	for _, task := range tasks {
		if err := sched.Register(task); err != nil {
			log.Fatal("Failed to register scheduled task", zap.String("task", task.Name), zap.Error(err))
		}
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// HTTP
	engine, err := router.NewEngine(router.Config{
		Logger: log,
		HTTP:   cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			Enabled:        cfg.Telemetry.Enabled,
			TracerProvider: tp.Provider(),
		},
		Metrics: middleware.HTTPMetricsConfig{
			MeterProvider: mp,
			Enabled:       cfg.Telemetry.Enabled,
		},
	}, router.Handlers{
		System:    handler.NewSystemHandler(cfg.App.Name, version, checks),
		Inventory: handler.NewInventoryHandler(ledger, coordinator),
		Pricing:   handler.NewPricingHandler(calculator, ruleService, overrideService, refresher),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("Scheduler did not stop in time", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Error stopping event bus", zap.Error(err))
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := lp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// openDatabase connects gorm, attaches query tracing and pool metrics, and
// applies the embedded migrations when storage.auto_migrate is set.
func openDatabase(ctx context.Context, cfg *config.Config, mp *telemetry.MeterProvider, log *zap.Logger) (*persistence.Database, *telemetry.DBPoolMetrics, error) {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.Open(ctx, &cfg.Database, gormLog)
	if err != nil {
		return nil, nil, err
	}

	plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFrom(cfg.Telemetry), log)
	if err := plugin.RegisterOtelGorm(db.DB); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("register database tracing: %w", err)
	}

	if cfg.Storage.AutoMigrate {
		if err := migration.ApplyEmbedded(cfg.Database.DSN(), log); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	var poolMetrics *telemetry.DBPoolMetrics
	if mp.IsEnabled() {
		poolMetrics, err = telemetry.RegisterDBPoolMetrics(mp.Meter("tripcore.db"), db.SQL())
		if err != nil {
			log.Warn("Failed to register database pool metrics", zap.Error(err))
			poolMetrics = nil
		}
	}
	return db, poolMetrics, nil
}
