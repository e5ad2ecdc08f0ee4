package inventory

import (
	"context"
	"time"
)

// InventoryRecordRepository defines the persistence contract of the ledger.
// Every capacity write goes through UpdateIfVersion so concurrent writers
// across instances are serialized by the stored version.
type InventoryRecordRepository interface {
	// FindByKey returns the record for (provider, item, date) or shared.ErrNotFound
	FindByKey(ctx context.Context, key RecordKey) (*InventoryRecord, error)

	// FindRange returns records of one item with date in [start, end], ordered by date
	FindRange(ctx context.Context, providerType ProviderType, itemID string, start, end time.Time) ([]InventoryRecord, error)

	// FindByItem returns records for an item id on a date across provider types
	FindByItem(ctx context.Context, itemID string, date time.Time) ([]InventoryRecord, error)

	// FindBookable returns bookable, available records with date in [start, end]
	FindBookable(ctx context.Context, start, end time.Time, limit, offset int) ([]InventoryRecord, error)

	// FindExpirable returns still-available records dated before the given day
	FindExpirable(ctx context.Context, before time.Time, limit int) ([]InventoryRecord, error)

	// CreateMissing inserts records whose key does not exist yet and leaves
	// existing rows untouched. Returns the number of rows inserted.
	CreateMissing(ctx context.Context, records []*InventoryRecord) (int, error)

	// UpdateIfVersion writes the capacity and state fields of record when the
	// stored version equals expectedVersion. ok is false when another writer
	// got there first; newVersion is the stored version after the write.
	UpdateIfVersion(ctx context.Context, record *InventoryRecord, expectedVersion int64) (ok bool, newVersion int64, err error)

	// UpdatePriceIfVersion writes the price snapshot fields when the stored
	// price version equals expectedPriceVersion. Capacity and version are not touched.
	UpdatePriceIfVersion(ctx context.Context, record *InventoryRecord, expectedPriceVersion int64) (bool, error)
}
