package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/inventory"
)

// InventoryRecordModel is the persistence model for the InventoryRecord aggregate
type InventoryRecordModel struct {
	AggregateModel
	ProviderType      string                 `gorm:"type:varchar(20);not null;uniqueIndex:idx_inventory_record_key,priority:1"`
	ItemID            string                 `gorm:"type:varchar(100);not null;uniqueIndex:idx_inventory_record_key,priority:2;index:idx_inventory_record_item_date,priority:1"`
	Date              time.Time              `gorm:"type:date;not null;uniqueIndex:idx_inventory_record_key,priority:3;index:idx_inventory_record_item_date,priority:2"`
	TotalCapacity     int                    `gorm:"not null;default:0"`
	AllocatedCapacity int                    `gorm:"not null;default:0"`
	BlockedCapacity   int                    `gorm:"not null;default:0"`
	BasePrice         decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	Currency          string                 `gorm:"type:varchar(3);not null"`
	PricingTiers      inventory.PricingTiers `gorm:"type:jsonb;serializer:json"`
	Metadata          inventory.Metadata     `gorm:"type:jsonb;serializer:json"`
	IsAvailable       bool                   `gorm:"not null"`
	IsBookable        bool                   `gorm:"not null"`
	SnapshotPrice     *decimal.Decimal       `gorm:"type:decimal(18,2)"`
	PriceVersion      int64                  `gorm:"not null;default:0"`
	PriceRefreshedAt  *time.Time
}

// TableName returns the table name for GORM
func (InventoryRecordModel) TableName() string {
	return "inventory_records"
}

// ToDomain converts the persistence model to a domain InventoryRecord
func (m *InventoryRecordModel) ToDomain() *inventory.InventoryRecord {
	return &inventory.InventoryRecord{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ProviderType:      inventory.ProviderType(m.ProviderType),
		ItemID:            m.ItemID,
		Date:              m.Date.UTC(),
		TotalCapacity:     m.TotalCapacity,
		AllocatedCapacity: m.AllocatedCapacity,
		BlockedCapacity:   m.BlockedCapacity,
		BasePrice:         m.BasePrice,
		Currency:          m.Currency,
		PricingTiers:      m.PricingTiers,
		Metadata:          m.Metadata,
		IsAvailable:       m.IsAvailable,
		IsBookable:        m.IsBookable,
		SnapshotPrice:     m.SnapshotPrice,
		PriceVersion:      m.PriceVersion,
		PriceRefreshedAt:  m.PriceRefreshedAt,
	}
}

// FromDomain populates the persistence model from a domain InventoryRecord
func (m *InventoryRecordModel) FromDomain(r *inventory.InventoryRecord) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.ProviderType = string(r.ProviderType)
	m.ItemID = r.ItemID
	m.Date = r.Date
	m.TotalCapacity = r.TotalCapacity
	m.AllocatedCapacity = r.AllocatedCapacity
	m.BlockedCapacity = r.BlockedCapacity
	m.BasePrice = r.BasePrice
	m.Currency = r.Currency
	m.PricingTiers = r.PricingTiers
	m.Metadata = r.Metadata
	m.IsAvailable = r.IsAvailable
	m.IsBookable = r.IsBookable
	m.SnapshotPrice = r.SnapshotPrice
	m.PriceVersion = r.PriceVersion
	m.PriceRefreshedAt = r.PriceRefreshedAt
}

// InventoryRecordModelFromDomain creates a persistence model from a domain record
func InventoryRecordModelFromDomain(r *inventory.InventoryRecord) *InventoryRecordModel {
	m := &InventoryRecordModel{}
	m.FromDomain(r)
	return m
}
