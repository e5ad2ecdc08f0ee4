package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/pricing"
)

// PricingRuleModel is the persistence model for PricingRule
type PricingRuleModel struct {
	AggregateModel
	Name             string          `gorm:"type:varchar(200);not null"`
	ItemID           string          `gorm:"type:varchar(100);not null;default:'';index"`
	ProviderType     string          `gorm:"type:varchar(20);not null;default:''"`
	RuleType         string          `gorm:"type:varchar(30);not null"`
	AdjustmentType   string          `gorm:"type:varchar(20);not null"`
	AdjustmentValue  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	StartDate        *time.Time      `gorm:"type:date"`
	EndDate          *time.Time      `gorm:"type:date"`
	DaysOfWeek       []int           `gorm:"type:jsonb;serializer:json"`
	MinPassengers    int             `gorm:"not null;default:0"`
	MaxPassengers    int             `gorm:"not null;default:0"`
	ApplicableRoutes []pricing.Route `gorm:"type:jsonb;serializer:json"`
	Priority         int             `gorm:"not null;default:0;index"`
	IsActive         bool            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PricingRuleModel) TableName() string {
	return "pricing_rules"
}

// ToDomain converts the persistence model to a domain PricingRule
func (m *PricingRuleModel) ToDomain() *pricing.PricingRule {
	days := make(pricing.Weekdays, len(m.DaysOfWeek))
	for i, d := range m.DaysOfWeek {
		days[i] = time.Weekday(d)
	}
	return &pricing.PricingRule{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		ItemID:            m.ItemID,
		ProviderType:      m.ProviderType,
		RuleType:          pricing.RuleType(m.RuleType),
		AdjustmentType:    pricing.AdjustmentType(m.AdjustmentType),
		AdjustmentValue:   m.AdjustmentValue,
		StartDate:         utcPtr(m.StartDate),
		EndDate:           utcPtr(m.EndDate),
		DaysOfWeek:        days,
		MinPassengers:     m.MinPassengers,
		MaxPassengers:     m.MaxPassengers,
		ApplicableRoutes:  m.ApplicableRoutes,
		Priority:          m.Priority,
		IsActive:          m.IsActive,
	}
}

// PricingRuleModelFromDomain creates a persistence model from a domain PricingRule
func PricingRuleModelFromDomain(r *pricing.PricingRule) *PricingRuleModel {
	days := make([]int, len(r.DaysOfWeek))
	for i, d := range r.DaysOfWeek {
		days[i] = int(d)
	}
	m := &PricingRuleModel{
		Name:             r.Name,
		ItemID:           r.ItemID,
		ProviderType:     r.ProviderType,
		RuleType:         string(r.RuleType),
		AdjustmentType:   string(r.AdjustmentType),
		AdjustmentValue:  r.AdjustmentValue,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		DaysOfWeek:       days,
		MinPassengers:    r.MinPassengers,
		MaxPassengers:    r.MaxPassengers,
		ApplicableRoutes: r.ApplicableRoutes,
		Priority:         r.Priority,
		IsActive:         r.IsActive,
	}
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	return m
}

// RateOverrideModel is the persistence model for RateOverride
type RateOverrideModel struct {
	AggregateModel
	ItemID   string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_rate_override_key,priority:1"`
	Date     time.Time       `gorm:"type:date;not null;uniqueIndex:idx_rate_override_key,priority:2"`
	Price    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency string          `gorm:"type:varchar(3);not null;default:''"`
	Reason   string          `gorm:"type:varchar(500)"`
	IsActive bool            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RateOverrideModel) TableName() string {
	return "rate_overrides"
}

// ToDomain converts the persistence model to a domain RateOverride
func (m *RateOverrideModel) ToDomain() *pricing.RateOverride {
	return &pricing.RateOverride{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ItemID:            m.ItemID,
		Date:              m.Date.UTC(),
		Price:             m.Price,
		Currency:          m.Currency,
		Reason:            m.Reason,
		IsActive:          m.IsActive,
	}
}

// RateOverrideModelFromDomain creates a persistence model from a domain RateOverride
func RateOverrideModelFromDomain(o *pricing.RateOverride) *RateOverrideModel {
	m := &RateOverrideModel{
		ItemID:   o.ItemID,
		Date:     o.Date,
		Price:    o.Price,
		Currency: o.Currency,
		Reason:   o.Reason,
		IsActive: o.IsActive,
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	return m
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// AllModels lists every model, used by AutoMigrate in tests
func AllModels() []any {
	return []any{
		&InventoryRecordModel{},
		&PricingRuleModel{},
		&RateOverrideModel{},
	}
}
