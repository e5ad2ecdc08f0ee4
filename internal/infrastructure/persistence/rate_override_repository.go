package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/domain/shared"
	"github.com/tripcore/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRateOverrideRepository implements RateOverrideRepository using GORM
type GormRateOverrideRepository struct {
	db *gorm.DB
}

// NewGormRateOverrideRepository creates a new GormRateOverrideRepository
func NewGormRateOverrideRepository(db *gorm.DB) *GormRateOverrideRepository {
	return &GormRateOverrideRepository{db: db}
}

// FindActive finds the active override for (itemID, date)
func (r *GormRateOverrideRepository) FindActive(ctx context.Context, itemID string, date time.Time) (*pricing.RateOverride, error) {
	return findOverride(r.db.WithContext(ctx).Where("is_active = ?", true), itemID, date)
}

// FindByKey finds the override for (itemID, date) whether active or not
func (r *GormRateOverrideRepository) FindByKey(ctx context.Context, itemID string, date time.Time) (*pricing.RateOverride, error) {
	return findOverride(r.db.WithContext(ctx), itemID, date)
}

func findOverride(query *gorm.DB, itemID string, date time.Time) (*pricing.RateOverride, error) {
	day := shared.NormalizeDate(date)
	var model models.RateOverrideModel
	if err := query.Where("item_id = ? AND date = ?", itemID, day).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("rate override", itemID+"/"+day.Format(shared.DateLayout))
		}
		return nil, fmt.Errorf("find rate override: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByItem lists overrides of an item with date in [start, end]
func (r *GormRateOverrideRepository) FindByItem(ctx context.Context, itemID string, start, end time.Time) ([]*pricing.RateOverride, error) {
	var rows []models.RateOverrideModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND date >= ? AND date <= ?", itemID, shared.NormalizeDate(start), shared.NormalizeDate(end)).
		Order("date ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list rate overrides: %w", err)
	}
	overrides := make([]*pricing.RateOverride, len(rows))
	for i := range rows {
		overrides[i] = rows[i].ToDomain()
	}
	return overrides, nil
}

// Upsert inserts the override or replaces price, reason and state of the
// existing one with the same (item_id, date)
func (r *GormRateOverrideRepository) Upsert(ctx context.Context, override *pricing.RateOverride) error {
	model := models.RateOverrideModelFromDomain(override)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"price", "currency", "reason", "is_active", "version", "updated_at"}),
		}).
		Create(model).Error; err != nil {
		return fmt.Errorf("upsert rate override: %w", err)
	}
	return nil
}

// Ensure GormRateOverrideRepository implements RateOverrideRepository
var _ pricing.RateOverrideRepository = (*GormRateOverrideRepository)(nil)
