package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/shared"
	"github.com/tripcore/backend/internal/infrastructure/logger"
	"github.com/tripcore/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	// DefaultRefreshHorizonDays is how far ahead snapshots are refreshed
	DefaultRefreshHorizonDays = 90
	// DefaultRefreshBatchSize is the page size of the bookable record scan
	DefaultRefreshBatchSize = 200
)

// SnapshotWriter writes cached prices; implemented by the inventory Ledger
type SnapshotWriter interface {
	SetPriceSnapshot(ctx context.Context, key inventory.RecordKey, price decimal.Decimal, tiers inventory.PricingTiers) error
}

// PriceRefresher recomputes the cached price of every bookable record within
// the horizon and writes it through the Ledger.
type PriceRefresher struct {
	records     inventory.InventoryRecordRepository
	calculator  *RateCalculator
	writer      SnapshotWriter
	metrics     *telemetry.LedgerMetrics
	logger      *zap.Logger
	horizonDays int
	batchSize   int
	now         func() time.Time
}

// NewPriceRefresher creates a new PriceRefresher
func NewPriceRefresher(
	records inventory.InventoryRecordRepository,
	calculator *RateCalculator,
	writer SnapshotWriter,
	horizonDays, batchSize int,
	logger *zap.Logger,
) *PriceRefresher {
	if horizonDays <= 0 {
		horizonDays = DefaultRefreshHorizonDays
	}
	if batchSize <= 0 {
		batchSize = DefaultRefreshBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceRefresher{
		records:     records,
		calculator:  calculator,
		writer:      writer,
		logger:      logger,
		horizonDays: horizonDays,
		batchSize:   batchSize,
		now:         time.Now,
	}
}

// SetLedgerMetrics sets the metrics recorder
func (r *PriceRefresher) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	r.metrics = m
}

// Refresh recomputes snapshots for dates in [today, today+horizon]. A record
// that fails is counted and skipped; the run continues.
func (r *PriceRefresher) Refresh(ctx context.Context) (*RefreshStats, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "PriceRefresher", "Refresh")
	defer span.End()

	now := r.now()
	stats := &RefreshStats{ProcessedAt: now}
	start := shared.NormalizeDate(now)
	end := start.AddDate(0, 0, r.horizonDays)
	log := logger.Or(ctx, r.logger)

	for offset := 0; ; offset += r.batchSize {
		batch, err := r.records.FindBookable(ctx, start, end, r.batchSize, offset)
		if err != nil {
			telemetry.RecordError(span, err)
			log.Error("Failed to load bookable inventory for price refresh", zap.Error(err))
			return stats, err
		}
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.Scanned++
			if err := r.refreshOne(ctx, &batch[i]); err != nil {
				stats.Failed++
				log.Warn("Failed to refresh price snapshot",
					zap.String("record", batch[i].Key().String()),
					zap.Error(err),
				)
				continue
			}
			stats.Updated++
		}
		if len(batch) < r.batchSize {
			break
		}
	}

	r.metrics.RecordPricesRefreshed(ctx, stats.Updated)
	telemetry.SetAttributes(span, "scanned", stats.Scanned, "updated", stats.Updated, "failed", stats.Failed)
	telemetry.SetOK(span)
	log.Info("Price snapshots refreshed",
		zap.Int("scanned", stats.Scanned),
		zap.Int("updated", stats.Updated),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (r *PriceRefresher) refreshOne(ctx context.Context, rec *inventory.InventoryRecord) error {
	q, err := r.calculator.PriceRecord(ctx, rec)
	if err != nil {
		return err
	}
	if rec.SnapshotPrice != nil && rec.SnapshotPrice.Equal(q.Price) {
		return nil
	}
	return r.writer.SetPriceSnapshot(ctx, rec.Key(), q.Price, nil)
}
