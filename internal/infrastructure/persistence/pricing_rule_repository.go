package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/domain/shared"
	"github.com/tripcore/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPricingRuleRepository implements PricingRuleRepository using GORM
type GormPricingRuleRepository struct {
	db *gorm.DB
}

// NewGormPricingRuleRepository creates a new GormPricingRuleRepository
func NewGormPricingRuleRepository(db *gorm.DB) *GormPricingRuleRepository {
	return &GormPricingRuleRepository{db: db}
}

// FindByID finds a rule by its ID
func (r *GormPricingRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.PricingRule, error) {
	var model models.PricingRuleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("pricing rule", id.String())
		}
		return nil, fmt.Errorf("find pricing rule: %w", err)
	}
	return model.ToDomain(), nil
}

// FindCandidates finds active rules for itemID (or provider-wide) whose window may contain date
func (r *GormPricingRuleRepository) FindCandidates(ctx context.Context, itemID string, date time.Time) ([]*pricing.PricingRule, error) {
	day := shared.NormalizeDate(date)
	var rows []models.PricingRuleModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("item_id = ? OR item_id = ''", itemID).
		Where("start_date IS NULL OR start_date <= ?", day).
		Where("end_date IS NULL OR end_date >= ?", day).
		Order("priority DESC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find candidate rules: %w", err)
	}
	return toRules(rows), nil
}

// FindAll lists rules matching the filter with pagination
func (r *GormPricingRuleRepository) FindAll(ctx context.Context, filter pricing.RuleFilter) ([]*pricing.PricingRule, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PricingRuleModel{})
	if filter.ItemID != "" {
		query = query.Where("item_id = ?", filter.ItemID)
	}
	if filter.RuleType != "" {
		query = query.Where("rule_type = ?", string(filter.RuleType))
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count pricing rules: %w", err)
	}

	query = query.Order(ruleOrder(filter.Filter))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.PricingRuleModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list pricing rules: %w", err)
	}
	return toRules(rows), total, nil
}

// Create inserts a new rule
func (r *GormPricingRuleRepository) Create(ctx context.Context, rule *pricing.PricingRule) error {
	if err := r.db.WithContext(ctx).Create(models.PricingRuleModelFromDomain(rule)).Error; err != nil {
		return fmt.Errorf("create pricing rule: %w", err)
	}
	return nil
}

// Update saves every field of rule when the stored version equals expectedVersion
func (r *GormPricingRuleRepository) Update(ctx context.Context, rule *pricing.PricingRule, expectedVersion int64) error {
	model := models.PricingRuleModelFromDomain(rule)
	model.Version = expectedVersion + 1
	result := r.db.WithContext(ctx).
		Model(model).
		Where("version = ?", expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return fmt.Errorf("update pricing rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "pricing rule was modified by another writer")
	}
	rule.Version = model.Version
	return nil
}

var ruleSortColumns = map[string]string{
	"priority":   "priority",
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// ruleOrder builds a whitelisted ORDER BY; id is always the final tie-break
func ruleOrder(f shared.Filter) string {
	col, ok := ruleSortColumns[f.OrderBy]
	if !ok {
		col = "priority"
	}
	dir := "DESC"
	if strings.EqualFold(f.OrderDir, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s, id ASC", col, dir)
}

func toRules(rows []models.PricingRuleModel) []*pricing.PricingRule {
	rules := make([]*pricing.PricingRule, len(rows))
	for i := range rows {
		rules[i] = rows[i].ToDomain()
	}
	return rules
}

// Ensure GormPricingRuleRepository implements PricingRuleRepository
var _ pricing.PricingRuleRepository = (*GormPricingRuleRepository)(nil)
