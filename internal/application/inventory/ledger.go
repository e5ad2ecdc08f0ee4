package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/shared"
	"github.com/tripcore/backend/internal/infrastructure/logger"
	"github.com/tripcore/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultMaxInitializeDays bounds a single InitializeRange call
	DefaultMaxInitializeDays = 731
	// DefaultMaxRetries is the CAS retry budget after the first attempt
	DefaultMaxRetries = 3
	// DefaultIdempotencyTTL is how long a release key is remembered
	DefaultIdempotencyTTL = 24 * time.Hour
	// expireBatchSize is the page size used by ExpirePastDates
	expireBatchSize = 500
)

// Operation names used in logs, spans and metrics
const (
	OpInitialize = "initialize"
	OpReserve    = "reserve"
	OpRelease    = "release"
	OpBlock      = "block"
	OpUnblock    = "unblock"
	OpClose      = "close"
	OpReopen     = "reopen"
	OpExpire     = "expire"
	OpPrice      = "price_snapshot"
)

// LedgerConfig holds the ledger limits
type LedgerConfig struct {
	MaxInitializeDays int
	// MaxRetries is the retry budget of Release, Block, Unblock, Close, Reopen
	// and SetPriceSnapshot. 0 means a single attempt, negative the default.
	// Reserve is single-shot; TryReserve takes its own budget.
	MaxRetries     int
	RetryBackoff   time.Duration
	IdempotencyTTL time.Duration
	// DefaultCurrency is used when InitializeRange gets none
	DefaultCurrency string
}

// DefaultLedgerConfig returns the default ledger configuration
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxInitializeDays: DefaultMaxInitializeDays,
		MaxRetries:        DefaultMaxRetries,
		IdempotencyTTL:    DefaultIdempotencyTTL,
		DefaultCurrency:   "SAR",
	}
}

// QuoteInvalidator drops cached quotes that may depend on a record's tiers
type QuoteInvalidator interface {
	Invalidate(ctx context.Context)
}

// Ledger is the single writer of InventoryRecord. Every capacity or state
// write is a compare-and-swap on the stored version, so instances sharing a
// database need no in-process locking.
type Ledger struct {
	repo           inventory.InventoryRecordRepository
	idempotency    shared.IdempotencyStore
	eventPublisher shared.EventPublisher
	quotes         QuoteInvalidator
	metrics        *telemetry.LedgerMetrics
	logger         *zap.Logger
	config         LedgerConfig
	now            func() time.Time
}

// NewLedger creates a new Ledger
func NewLedger(repo inventory.InventoryRecordRepository, config LedgerConfig, logger *zap.Logger) *Ledger {
	def := DefaultLedgerConfig()
	if config.MaxInitializeDays <= 0 {
		config.MaxInitializeDays = def.MaxInitializeDays
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = def.IdempotencyTTL
	}
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = def.DefaultCurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// SetEventPublisher sets the publisher for record domain events
func (l *Ledger) SetEventPublisher(publisher shared.EventPublisher) {
	l.eventPublisher = publisher
}

// SetQuoteInvalidator sets the cache dropped after a tier write
func (l *Ledger) SetQuoteInvalidator(q QuoteInvalidator) {
	l.quotes = q
}

// SetIdempotencyStore enables release idempotency keys
func (l *Ledger) SetIdempotencyStore(store shared.IdempotencyStore) {
	l.idempotency = store
}

// SetLedgerMetrics sets the metrics recorder
func (l *Ledger) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	l.metrics = m
}

// InitializeRange creates an open record for every date in [start, end] that
// does not exist yet. Existing records are left untouched.
func (l *Ledger) InitializeRange(ctx context.Context, req InitializeRangeRequest) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "Ledger", "InitializeRange",
		telemetry.WithAttribute(telemetry.SpanAttrProviderType, req.ProviderType),
		telemetry.WithAttribute(telemetry.SpanAttrItemID, req.ItemID),
	)
	defer span.End()
	start := time.Now()

	created, err := l.initializeRange(ctx, req)
	l.finish(ctx, span, OpInitialize, req.ProviderType, start, err)
	if err != nil {
		return 0, err
	}
	logger.Or(ctx, l.logger).Info("Inventory range initialized",
		zap.String("provider_type", req.ProviderType),
		zap.String("item_id", req.ItemID),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
		zap.Int("created", created),
	)
	return created, nil
}

func (l *Ledger) initializeRange(ctx context.Context, req InitializeRangeRequest) (int, error) {
	pt, err := inventory.ParseProviderType(req.ProviderType)
	if err != nil {
		return 0, err
	}
	startDate, err := shared.ParseDate(req.StartDate)
	if err != nil {
		return 0, err
	}
	endDate, err := shared.ParseDate(req.EndDate)
	if err != nil {
		return 0, err
	}
	days, err := shared.DaysInRange(startDate, endDate, l.config.MaxInitializeDays)
	if err != nil {
		return 0, err
	}

	currency := req.Currency
	if currency == "" {
		currency = l.config.DefaultCurrency
	}
	params := inventory.NewRecordParams{
		TotalCapacity: req.TotalCapacity,
		BasePrice:     req.BasePrice,
		Currency:      currency,
		PricingTiers:  req.PricingTiers,
		Metadata:      req.Metadata,
	}

	records := make([]*inventory.InventoryRecord, 0, len(days))
	for _, day := range days {
		key, err := inventory.NewRecordKey(pt, req.ItemID, day)
		if err != nil {
			return 0, err
		}
		rec, err := inventory.NewInventoryRecord(key, params)
		if err != nil {
			return 0, err
		}
		records = append(records, rec)
	}

	created, err := l.repo.CreateMissing(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("initialize inventory range: %w", err)
	}
	return created, nil
}

// GetAvailability returns the capacity snapshot of one record
func (l *Ledger) GetAvailability(ctx context.Context, key inventory.RecordKey) (*AvailabilityResponse, error) {
	rec, err := l.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	resp := ToAvailabilityResponse(rec)
	return &resp, nil
}

// ListRange returns the snapshots of one item over [start, end], ordered by
// date. Dates without a record are omitted.
func (l *Ledger) ListRange(ctx context.Context, providerType inventory.ProviderType, itemID string, start, end time.Time) ([]AvailabilityResponse, error) {
	n, err := shared.CountDays(start, end)
	if err != nil {
		return nil, err
	}
	if n > int64(l.config.MaxInitializeDays) {
		return nil, shared.NewDomainError(shared.CodeInvalidDateRange,
			fmt.Sprintf("range spans %d days, at most %d allowed", n, l.config.MaxInitializeDays))
	}
	records, err := l.repo.FindRange(ctx, providerType, itemID, shared.NormalizeDate(start), shared.NormalizeDate(end))
	if err != nil {
		return nil, err
	}
	out := make([]AvailabilityResponse, 0, len(records))
	for i := range records {
		out = append(out, ToAvailabilityResponse(&records[i]))
	}
	return out, nil
}

// Reserve allocates quantity units with a single compare-and-swap attempt.
// A lost race surfaces as ConcurrencyConflict; use ReservationCoordinator to retry.
func (l *Ledger) Reserve(ctx context.Context, key inventory.RecordKey, quantity int) (int64, error) {
	return l.mutate(ctx, OpReserve, key, quantity, 0, func(r *inventory.InventoryRecord) error {
		return r.Reserve(quantity)
	})
}

// Release returns quantity allocated units. A non-empty idempotencyKey makes
// a replay of an applied release a no-op that returns the current version.
func (l *Ledger) Release(ctx context.Context, key inventory.RecordKey, quantity int, idempotencyKey string) (int64, error) {
	if idempotencyKey == "" || l.idempotency == nil {
		return l.release(ctx, key, quantity)
	}

	storeKey := releaseKey(key, idempotencyKey)
	fresh, err := l.idempotency.MarkProcessed(ctx, storeKey, l.config.IdempotencyTTL)
	if err != nil {
		return 0, fmt.Errorf("mark release key: %w", err)
	}
	if !fresh {
		rec, err := l.repo.FindByKey(ctx, key)
		if err != nil {
			return 0, err
		}
		logger.Or(ctx, l.logger).Info("Release replay ignored",
			zap.String("record", key.String()),
			zap.String("idempotency_key", idempotencyKey),
		)
		return rec.Version, nil
	}

	version, err := l.release(ctx, key, quantity)
	if err != nil {
		if rmErr := l.idempotency.Remove(ctx, storeKey); rmErr != nil {
			logger.Or(ctx, l.logger).Error("Failed to forget release key after failed release",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(rmErr),
			)
		}
		return 0, err
	}
	return version, nil
}

func (l *Ledger) release(ctx context.Context, key inventory.RecordKey, quantity int) (int64, error) {
	return l.mutate(ctx, OpRelease, key, quantity, l.config.MaxRetries, func(r *inventory.InventoryRecord) error {
		return r.Release(quantity)
	})
}

// Block withholds quantity unallocated units from sale
func (l *Ledger) Block(ctx context.Context, key inventory.RecordKey, quantity int) (int64, error) {
	return l.mutate(ctx, OpBlock, key, quantity, l.config.MaxRetries, func(r *inventory.InventoryRecord) error {
		return r.Block(quantity)
	})
}

// Unblock returns quantity blocked units to sale
func (l *Ledger) Unblock(ctx context.Context, key inventory.RecordKey, quantity int) (int64, error) {
	return l.mutate(ctx, OpUnblock, key, quantity, l.config.MaxRetries, func(r *inventory.InventoryRecord) error {
		return r.Unblock(quantity)
	})
}

// Close takes the record off sale
func (l *Ledger) Close(ctx context.Context, key inventory.RecordKey) (int64, error) {
	return l.mutate(ctx, OpClose, key, 0, l.config.MaxRetries, func(r *inventory.InventoryRecord) error {
		return r.Close()
	})
}

// Reopen puts a closed record back on sale
func (l *Ledger) Reopen(ctx context.Context, key inventory.RecordKey) (int64, error) {
	return l.mutate(ctx, OpReopen, key, 0, l.config.MaxRetries, func(r *inventory.InventoryRecord) error {
		return r.Reopen()
	})
}

// SetPriceSnapshot overwrites the cached price of a record under its price
// version. Capacity fields and the capacity version are never written.
func (l *Ledger) SetPriceSnapshot(ctx context.Context, key inventory.RecordKey, price decimal.Decimal, tiers inventory.PricingTiers) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "Ledger", "SetPriceSnapshot",
		telemetry.WithAttribute(telemetry.SpanAttrProviderType, key.ProviderType.String()),
		telemetry.WithAttribute(telemetry.SpanAttrItemID, key.ItemID),
		telemetry.WithAttribute(telemetry.SpanAttrDate, key.Date.Format(shared.DateLayout)),
	)
	defer span.End()
	start := time.Now()

	err := l.retry(ctx, OpPrice, key, l.config.MaxRetries, l.config.RetryBackoff, func(attempt int) (bool, error) {
		rec, err := l.repo.FindByKey(ctx, key)
		if err != nil {
			return false, err
		}
		if err := rec.SetPriceSnapshot(price, tiers, l.now()); err != nil {
			return false, err
		}
		ok, err := l.repo.UpdatePriceIfVersion(ctx, rec, rec.PriceVersion-1)
		if err != nil {
			return false, fmt.Errorf("update price snapshot %s: %w", key, err)
		}
		if ok {
			l.publishDomainEvents(ctx, rec)
		}
		return ok, nil
	})
	l.finish(ctx, span, OpPrice, key.ProviderType.String(), start, err)
	if err == nil && tiers != nil && l.quotes != nil {
		l.quotes.Invalidate(ctx)
	}
	return err
}

// ExpirePastDates marks every still-available record dated before now as
// unavailable. Records that lose a CAS race are left for the next run.
func (l *Ledger) ExpirePastDates(ctx context.Context, now time.Time) (*ExpiryStats, error) {
	stats := &ExpiryStats{ProcessedAt: now}
	today := shared.NormalizeDate(now)
	log := logger.Or(ctx, l.logger)

	for {
		batch, err := l.repo.FindExpirable(ctx, today, expireBatchSize)
		if err != nil {
			log.Error("Failed to find expirable inventory records", zap.Error(err))
			return stats, err
		}
		if len(batch) == 0 {
			break
		}
		stats.Scanned += len(batch)

		expired := 0
		for i := range batch {
			key := batch[i].Key()
			_, err := l.mutate(ctx, OpExpire, key, 0, 0, func(r *inventory.InventoryRecord) error {
				return r.Expire(today)
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return stats, ctxErr
				}
				stats.Failed++
				log.Warn("Failed to expire inventory record",
					zap.String("record", key.String()),
					zap.Error(err),
				)
				continue
			}
			expired++
		}
		stats.Expired += expired
		// every remaining row in this page lost a race; leave them for the next run
		if expired == 0 || len(batch) < expireBatchSize {
			break
		}
	}

	l.metrics.RecordExpired(ctx, stats.Expired)
	if stats.Expired > 0 || stats.Failed > 0 {
		log.Info("Expired past inventory dates",
			zap.Int("scanned", stats.Scanned),
			zap.Int("expired", stats.Expired),
			zap.Int("failed", stats.Failed),
		)
	}
	return stats, nil
}

// mutate runs one read-modify-CAS cycle per attempt. Domain errors from fn
// leave the record unchanged and end the loop; only lost races are retried.
func (l *Ledger) mutate(ctx context.Context, op string, key inventory.RecordKey, quantity, retries int, fn func(*inventory.InventoryRecord) error) (int64, error) {
	return l.mutateWithBackoff(ctx, op, key, quantity, retries, l.config.RetryBackoff, fn)
}

func (l *Ledger) mutateWithBackoff(ctx context.Context, op string, key inventory.RecordKey, quantity, retries int, backoff time.Duration, fn func(*inventory.InventoryRecord) error) (int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "Ledger", op,
		telemetry.WithAttribute(telemetry.SpanAttrProviderType, key.ProviderType.String()),
		telemetry.WithAttribute(telemetry.SpanAttrItemID, key.ItemID),
		telemetry.WithAttribute(telemetry.SpanAttrDate, key.Date.Format(shared.DateLayout)),
		telemetry.WithAttribute(telemetry.SpanAttrQuantity, quantity),
	)
	defer span.End()
	start := time.Now()

	var newVersion int64
	err := l.retry(ctx, op, key, retries, backoff, func(attempt int) (bool, error) {
		rec, err := l.repo.FindByKey(ctx, key)
		if err != nil {
			return false, err
		}
		expected := rec.Version
		if err := fn(rec); err != nil {
			return false, err
		}
		ok, version, err := l.repo.UpdateIfVersion(ctx, rec, expected)
		if err != nil {
			return false, fmt.Errorf("%s %s: %w", op, key, err)
		}
		if !ok {
			return false, nil
		}
		newVersion = version
		telemetry.SetAttributes(span, telemetry.SpanAttrAttempts, attempt+1)
		l.publishDomainEvents(ctx, rec)
		return true, nil
	})
	l.finish(ctx, span, op, key.ProviderType.String(), start, err)
	if err != nil {
		return 0, err
	}

	logger.Or(ctx, l.logger).Debug("Inventory record updated",
		zap.String("operation", op),
		zap.String("record", key.String()),
		zap.Int("quantity", quantity),
		zap.Int64("version", newVersion),
	)
	return newVersion, nil
}

// retry calls attempt until it reports success, fails, or the retry budget
// is spent. A false result without error means the CAS was lost.
func (l *Ledger) retry(ctx context.Context, op string, key inventory.RecordKey, retries int, backoff time.Duration, attempt func(int) (bool, error)) error {
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := attempt(i)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i >= retries {
			logger.Or(ctx, l.logger).Warn("Inventory write lost every compare-and-swap attempt",
				zap.String("operation", op),
				zap.String("record", key.String()),
				zap.Int("attempts", i+1),
			)
			return shared.NewDomainError(shared.CodeConcurrencyConflict,
				fmt.Sprintf("%s on %s conflicted after %d attempts", op, key, i+1))
		}
		l.metrics.RecordCASRetry(ctx, op, key.ProviderType.String())
		if err := sleepCtx(ctx, backoff*time.Duration(i+1)); err != nil {
			return err
		}
	}
}

// finish records the outcome of an operation on its span and in metrics
func (l *Ledger) finish(ctx context.Context, span trace.Span, op, providerType string, start time.Time, err error) {
	outcome := outcomeOf(err)
	l.metrics.RecordOperation(ctx, op, providerType, outcome, time.Since(start))
	if outcome == telemetry.OutcomeError {
		telemetry.RecordError(span, err)
		return
	}
	if err != nil {
		telemetry.AddEvent(span, "rejected", "code", errorCode(err))
		return
	}
	telemetry.SetOK(span)
}

// publishDomainEvents publishes the pending events of a persisted record
func (l *Ledger) publishDomainEvents(ctx context.Context, rec *inventory.InventoryRecord) {
	events := rec.DrainEvents()
	if l.eventPublisher == nil || len(events) == 0 {
		return
	}
	// handler failures are logged by the event bus, not propagated
	_ = l.eventPublisher.Publish(ctx, events...)
}

func outcomeOf(err error) string {
	var domainErr *shared.DomainError
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, shared.ErrConcurrencyConflict):
		return telemetry.OutcomeConflict
	case errors.As(err, &domainErr):
		return telemetry.OutcomeRejected
	default:
		return telemetry.OutcomeError
	}
}

func errorCode(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

func releaseKey(key inventory.RecordKey, idempotencyKey string) string {
	return "release:" + key.String() + ":" + idempotencyKey
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
