package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockInventoryRecordRepository creates a repository over a mocked postgres connection
func newMockInventoryRecordRepository(t *testing.T) (*GormInventoryRecordRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormInventoryRecordRepository(gormDB), mock, mockDB
}

func TestGormInventoryRecordRepository_UpdateIfVersion_SQL(t *testing.T) {
	t.Run("conditions the update on id and version", func(t *testing.T) {
		repo, mock, mockDB := newMockInventoryRecordRepository(t)
		defer mockDB.Close()

		rec := newRecord(t, "room-1", "2025-03-01", 5)
		require.NoError(t, rec.Reserve(1))

		mock.ExpectExec(`UPDATE "inventory_records" SET .*"version"=\$\d+.* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, newVersion, err := repo.UpdateIfVersion(context.Background(), rec, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(2), newVersion)
		assert.Equal(t, int64(2), rec.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows affected reports a lost race", func(t *testing.T) {
		repo, mock, mockDB := newMockInventoryRecordRepository(t)
		defer mockDB.Close()

		rec := newRecord(t, "room-1", "2025-03-01", 5)
		require.NoError(t, rec.Reserve(1))

		mock.ExpectExec(`UPDATE "inventory_records" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, _, err := repo.UpdateIfVersion(context.Background(), rec, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver error is wrapped", func(t *testing.T) {
		repo, mock, mockDB := newMockInventoryRecordRepository(t)
		defer mockDB.Close()

		rec := newRecord(t, "room-1", "2025-03-01", 5)
		boom := errors.New("connection reset")
		mock.ExpectExec(`UPDATE "inventory_records" SET`).WillReturnError(boom)

		ok, _, err := repo.UpdateIfVersion(context.Background(), rec, 1)
		assert.False(t, ok)
		assert.ErrorIs(t, err, boom)
	})
}
