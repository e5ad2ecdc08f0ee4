//go:build integration

package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	inventoryapp "github.com/tripcore/backend/internal/application/inventory"
	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/shared"
	"github.com/tripcore/backend/internal/infrastructure/migration"
	"github.com/tripcore/backend/internal/infrastructure/persistence"
)

// newPostgres starts a disposable PostgreSQL container with the embedded
// migrations applied through a separate connection.
func newPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tripcore_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, migration.ApplyEmbedded(dsn, zap.NewNop()))

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestPostgres_ConcurrentReserveNeverOversells(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()

	ledger := inventoryapp.NewLedger(persistence.NewGormInventoryRecordRepository(db), inventoryapp.DefaultLedgerConfig(), zap.NewNop())
	_, err := ledger.InitializeRange(ctx, inventoryapp.InitializeRangeRequest{
		ProviderType:  "flight",
		ItemID:        "SV-1021",
		StartDate:     "2025-10-07",
		EndDate:       "2025-10-07",
		TotalCapacity: 5,
		BasePrice:     decimal.NewFromInt(1200),
	})
	require.NoError(t, err)

	key, err := inventory.NewRecordKey(inventory.ProviderFlight, "SV-1021", time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	coordinator := inventoryapp.NewReservationCoordinator(ledger, 20, time.Millisecond)

	const callers = 12
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = coordinator.TryReserve(ctx, key, 1, -1)
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t,
			errors.Is(err, shared.ErrOutOfCapacity) || errors.Is(err, shared.ErrConcurrencyConflict),
			"unexpected error: %v", err)
	}
	assert.LessOrEqual(t, successes, 5)

	snap, err := ledger.GetAvailability(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, successes, snap.Allocated)
	assert.Equal(t, 5-successes, snap.Available)
	assert.Equal(t, int64(1+successes), snap.Version)
}

func TestPostgres_MigrationsMatchModels(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()
	repo := persistence.NewGormInventoryRecordRepository(db)

	key, err := inventory.NewRecordKey(inventory.ProviderHotel, "room-1", time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	rec, err := inventory.NewInventoryRecord(key, inventory.NewRecordParams{
		TotalCapacity: 3,
		BasePrice:     decimal.NewFromInt(100),
		Currency:      "SAR",
		Metadata:      inventory.Metadata{"city": "Madinah"},
	})
	require.NoError(t, err)

	created, err := repo.CreateMissing(ctx, []*inventory.InventoryRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	found, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, found.TotalCapacity)
	assert.Equal(t, "Madinah", found.Metadata["city"])
	assert.True(t, found.BasePrice.Equal(decimal.NewFromInt(100)))
}
