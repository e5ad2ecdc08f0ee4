package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/shared"
)

// InventoryRecordRepository keeps records in a map keyed by RecordKey.String()
type InventoryRecordRepository struct {
	mu      sync.RWMutex
	records map[string]*inventory.InventoryRecord
}

// NewInventoryRecordRepository creates an empty repository
func NewInventoryRecordRepository() *InventoryRecordRepository {
	return &InventoryRecordRepository{records: make(map[string]*inventory.InventoryRecord)}
}

func (r *InventoryRecordRepository) FindByKey(_ context.Context, key inventory.RecordKey) (*inventory.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key.String()]
	if !ok {
		return nil, shared.NewNotFoundError("inventory record", key.String())
	}
	return rec.Clone(), nil
}

func (r *InventoryRecordRepository) FindRange(_ context.Context, providerType inventory.ProviderType, itemID string, start, end time.Time) ([]inventory.InventoryRecord, error) {
	start, end = shared.NormalizeDate(start), shared.NormalizeDate(end)
	return r.collect(func(rec *inventory.InventoryRecord) bool {
		return rec.ProviderType == providerType && rec.ItemID == itemID && inRange(rec.Date, start, end)
	}, 0, 0), nil
}

func (r *InventoryRecordRepository) FindByItem(_ context.Context, itemID string, date time.Time) ([]inventory.InventoryRecord, error) {
	day := shared.NormalizeDate(date)
	return r.collect(func(rec *inventory.InventoryRecord) bool {
		return rec.ItemID == itemID && rec.Date.Equal(day)
	}, 0, 0), nil
}

func (r *InventoryRecordRepository) FindBookable(_ context.Context, start, end time.Time, limit, offset int) ([]inventory.InventoryRecord, error) {
	start, end = shared.NormalizeDate(start), shared.NormalizeDate(end)
	return r.collect(func(rec *inventory.InventoryRecord) bool {
		return rec.IsBookable && rec.IsAvailable && inRange(rec.Date, start, end)
	}, limit, offset), nil
}

func (r *InventoryRecordRepository) FindExpirable(_ context.Context, before time.Time, limit int) ([]inventory.InventoryRecord, error) {
	day := shared.NormalizeDate(before)
	return r.collect(func(rec *inventory.InventoryRecord) bool {
		return rec.IsAvailable && rec.Date.Before(day)
	}, limit, 0), nil
}

func (r *InventoryRecordRepository) CreateMissing(_ context.Context, records []*inventory.InventoryRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := 0
	for _, rec := range records {
		k := rec.Key().String()
		if _, exists := r.records[k]; exists {
			continue
		}
		r.records[k] = rec.Clone()
		created++
	}
	return created, nil
}

func (r *InventoryRecordRepository) UpdateIfVersion(_ context.Context, record *inventory.InventoryRecord, expectedVersion int64) (bool, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.records[record.Key().String()]
	if !ok || stored.Version != expectedVersion {
		return false, 0, nil
	}
	stored.AllocatedCapacity = record.AllocatedCapacity
	stored.BlockedCapacity = record.BlockedCapacity
	stored.IsAvailable = record.IsAvailable
	stored.IsBookable = record.IsBookable
	stored.UpdatedAt = record.UpdatedAt
	stored.Version = expectedVersion + 1
	record.Version = stored.Version
	return true, stored.Version, nil
}

func (r *InventoryRecordRepository) UpdatePriceIfVersion(_ context.Context, record *inventory.InventoryRecord, expectedPriceVersion int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.records[record.Key().String()]
	if !ok || stored.PriceVersion != expectedPriceVersion {
		return false, nil
	}
	c := record.Clone()
	stored.SnapshotPrice = c.SnapshotPrice
	stored.PricingTiers = c.PricingTiers
	stored.PriceRefreshedAt = c.PriceRefreshedAt
	stored.PriceVersion = record.PriceVersion
	return true, nil
}

// collect returns copies ordered by date, provider and item
func (r *InventoryRecordRepository) collect(match func(*inventory.InventoryRecord) bool, limit, offset int) []inventory.InventoryRecord {
	r.mu.RLock()
	out := make([]inventory.InventoryRecord, 0)
	for _, rec := range r.records {
		if match(rec) {
			out = append(out, *rec.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].ProviderType != out[j].ProviderType {
			return out[i].ProviderType < out[j].ProviderType
		}
		return out[i].ItemID < out[j].ItemID
	})
	if offset > 0 {
		if offset >= len(out) {
			return out[:0]
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func inRange(d, start, end time.Time) bool {
	return !d.Before(start) && !d.After(end)
}

var _ inventory.InventoryRecordRepository = (*InventoryRecordRepository)(nil)
