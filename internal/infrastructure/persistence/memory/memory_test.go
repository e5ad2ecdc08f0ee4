package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/domain/shared"
)

func seed(t *testing.T, repo *InventoryRecordRepository, date time.Time, total int) inventory.RecordKey {
	key, err := inventory.NewRecordKey(inventory.ProviderTransport, "bus-7", date)
	require.NoError(t, err)
	rec, err := inventory.NewInventoryRecord(key, inventory.NewRecordParams{
		TotalCapacity: total,
		BasePrice:     decimal.NewFromInt(80),
		Currency:      "SAR",
	})
	require.NoError(t, err)
	n, err := repo.CreateMissing(context.Background(), []*inventory.InventoryRecord{rec})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return key
}

func TestInventoryRecordRepository_CompareAndSwap(t *testing.T) {
	repo := NewInventoryRecordRepository()
	ctx := context.Background()
	key := seed(t, repo, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), 1)

	const writers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := repo.FindByKey(ctx, key)
			if err != nil {
				return
			}
			expected := rec.Version
			if rec.Reserve(1) != nil {
				return
			}
			ok, _, err := repo.UpdateIfVersion(ctx, rec, expected)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	stored, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AllocatedCapacity)
	assert.Equal(t, int64(2), stored.Version)
}

func TestInventoryRecordRepository_ReturnsCopies(t *testing.T) {
	repo := NewInventoryRecordRepository()
	ctx := context.Background()
	key := seed(t, repo, time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC), 4)

	rec, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)
	require.NoError(t, rec.Reserve(2))

	stored, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AllocatedCapacity)
}

func TestInventoryRecordRepository_Queries(t *testing.T) {
	repo := NewInventoryRecordRepository()
	ctx := context.Background()
	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		seed(t, repo, base.AddDate(0, 0, i), 2)
	}

	got, err := repo.FindRange(ctx, inventory.ProviderTransport, "bus-7", base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Date.Equal(base.AddDate(0, 0, 1)))

	page, err := repo.FindBookable(ctx, base, base.AddDate(0, 0, 10), 2, 4)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	expirable, err := repo.FindExpirable(ctx, base.AddDate(0, 0, 2), 0)
	require.NoError(t, err)
	assert.Len(t, expirable, 2)

	_, err = repo.FindByKey(ctx, inventory.RecordKey{ProviderType: inventory.ProviderHotel, ItemID: "bus-7", Date: base})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPricingRuleRepository(t *testing.T) {
	repo := NewPricingRuleRepository()
	ctx := context.Background()

	a := pricing.NewPricingRule("a", pricing.RuleTypePassengerCount, pricing.AdjustmentFixed, decimal.NewFromInt(5))
	a.MinPassengers = 2
	b := pricing.NewPricingRule("b", pricing.RuleTypePassengerCount, pricing.AdjustmentFixed, decimal.NewFromInt(5))
	b.MinPassengers = 2
	b.ItemID = "other"
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	got, err := repo.FindCandidates(ctx, "room-1", time.Now())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	expected := got[0].Version
	got[0].Deactivate()
	require.NoError(t, repo.Update(ctx, got[0], expected))
	assert.ErrorIs(t, repo.Update(ctx, got[0], expected), shared.ErrConcurrencyConflict)

	got, err = repo.FindCandidates(ctx, "room-1", time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRateOverrideRepository(t *testing.T) {
	repo := NewRateOverrideRepository()
	ctx := context.Background()
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	o, err := pricing.NewRateOverride("room-1", date, decimal.NewFromInt(42), "SAR", "")
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, o))

	found, err := repo.FindActive(ctx, "room-1", date)
	require.NoError(t, err)
	assert.True(t, found.Price.Equal(decimal.NewFromInt(42)))

	found.Deactivate()
	require.NoError(t, repo.Upsert(ctx, found))
	_, err = repo.FindActive(ctx, "room-1", date)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	list, err := repo.FindByItem(ctx, "room-1", date, date)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
