package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/shared"
	"github.com/tripcore/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const createBatchSize = 200

// GormInventoryRecordRepository implements InventoryRecordRepository using GORM
type GormInventoryRecordRepository struct {
	db *gorm.DB
}

// NewGormInventoryRecordRepository creates a new GormInventoryRecordRepository
func NewGormInventoryRecordRepository(db *gorm.DB) *GormInventoryRecordRepository {
	return &GormInventoryRecordRepository{db: db}
}

// FindByKey finds the record for (provider, item, date)
func (r *GormInventoryRecordRepository) FindByKey(ctx context.Context, key inventory.RecordKey) (*inventory.InventoryRecord, error) {
	var model models.InventoryRecordModel
	if err := r.db.WithContext(ctx).
		Where("provider_type = ? AND item_id = ? AND date = ?", string(key.ProviderType), key.ItemID, key.Date).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("inventory record", key.String())
		}
		return nil, fmt.Errorf("find inventory record %s: %w", key, err)
	}
	return model.ToDomain(), nil
}

// FindRange finds the records of one item with date in [start, end]
func (r *GormInventoryRecordRepository) FindRange(ctx context.Context, providerType inventory.ProviderType, itemID string, start, end time.Time) ([]inventory.InventoryRecord, error) {
	var rows []models.InventoryRecordModel
	if err := r.db.WithContext(ctx).
		Where("provider_type = ? AND item_id = ? AND date >= ? AND date <= ?",
			string(providerType), itemID, shared.NormalizeDate(start), shared.NormalizeDate(end)).
		Order("date ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find inventory range: %w", err)
	}
	return toRecords(rows), nil
}

// FindByItem finds records for an item id on a date across provider types
func (r *GormInventoryRecordRepository) FindByItem(ctx context.Context, itemID string, date time.Time) ([]inventory.InventoryRecord, error) {
	var rows []models.InventoryRecordModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND date = ?", itemID, shared.NormalizeDate(date)).
		Order("provider_type ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find inventory by item: %w", err)
	}
	return toRecords(rows), nil
}

// FindBookable finds bookable records with date in [start, end]
func (r *GormInventoryRecordRepository) FindBookable(ctx context.Context, start, end time.Time, limit, offset int) ([]inventory.InventoryRecord, error) {
	var rows []models.InventoryRecordModel
	query := r.db.WithContext(ctx).
		Where("is_bookable = ? AND is_available = ? AND date >= ? AND date <= ?",
			true, true, shared.NormalizeDate(start), shared.NormalizeDate(end)).
		Order("date ASC, provider_type ASC, item_id ASC").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find bookable inventory: %w", err)
	}
	return toRecords(rows), nil
}

// FindExpirable finds still-available records dated before the given day
func (r *GormInventoryRecordRepository) FindExpirable(ctx context.Context, before time.Time, limit int) ([]inventory.InventoryRecord, error) {
	var rows []models.InventoryRecordModel
	query := r.db.WithContext(ctx).
		Where("is_available = ? AND date < ?", true, shared.NormalizeDate(before)).
		Order("date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find expirable inventory: %w", err)
	}
	return toRecords(rows), nil
}

// CreateMissing inserts the records whose key is absent. Existing rows are
// left untouched by ON CONFLICT DO NOTHING on the record key.
func (r *GormInventoryRecordRepository) CreateMissing(ctx context.Context, records []*inventory.InventoryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]*models.InventoryRecordModel, len(records))
	for i, rec := range records {
		rows[i] = models.InventoryRecordModelFromDomain(rec)
	}

	created := 0
	for start := 0; start < len(rows); start += createBatchSize {
		end := min(start+createBatchSize, len(rows))
		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "provider_type"}, {Name: "item_id"}, {Name: "date"}},
				DoNothing: true,
			}).
			Create(rows[start:end])
		if result.Error != nil {
			return created, fmt.Errorf("create inventory records: %w", result.Error)
		}
		created += int(result.RowsAffected)
	}
	return created, nil
}

// UpdateIfVersion saves capacity and state when the stored version still
// equals expectedVersion
func (r *GormInventoryRecordRepository) UpdateIfVersion(ctx context.Context, record *inventory.InventoryRecord, expectedVersion int64) (bool, int64, error) {
	newVersion := expectedVersion + 1
	result := r.db.WithContext(ctx).
		Model(&models.InventoryRecordModel{}).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]any{
			"allocated_capacity": record.AllocatedCapacity,
			"blocked_capacity":   record.BlockedCapacity,
			"is_available":       record.IsAvailable,
			"is_bookable":        record.IsBookable,
			"version":            newVersion,
			"updated_at":         record.UpdatedAt,
		})
	if result.Error != nil {
		return false, 0, fmt.Errorf("update inventory record %s: %w", record.Key(), result.Error)
	}
	if result.RowsAffected == 0 {
		return false, 0, nil
	}
	record.Version = newVersion
	return true, newVersion, nil
}

// UpdatePriceIfVersion saves the price snapshot when the stored price version
// still equals expectedPriceVersion
func (r *GormInventoryRecordRepository) UpdatePriceIfVersion(ctx context.Context, record *inventory.InventoryRecord, expectedPriceVersion int64) (bool, error) {
	model := models.InventoryRecordModelFromDomain(record)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("price_version = ?", expectedPriceVersion).
		Select("snapshot_price", "pricing_tiers", "price_version", "price_refreshed_at").
		Updates(model)
	if result.Error != nil {
		return false, fmt.Errorf("update price snapshot %s: %w", record.Key(), result.Error)
	}
	return result.RowsAffected > 0, nil
}

func toRecords(rows []models.InventoryRecordModel) []inventory.InventoryRecord {
	records := make([]inventory.InventoryRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records
}

// Ensure GormInventoryRecordRepository implements InventoryRecordRepository
var _ inventory.InventoryRecordRepository = (*GormInventoryRecordRepository)(nil)
