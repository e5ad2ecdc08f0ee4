package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tripcore/backend/internal/infrastructure/config"
	"github.com/tripcore/backend/internal/infrastructure/persistence/models"
)

// Database is the PostgreSQL connection shared by the gorm repositories
type Database struct {
	DB   *gorm.DB
	pool *sql.DB
}

// Open connects to PostgreSQL, sizes the pool from cfg and verifies the
// connection. Queries are reported through gormLogger.
func Open(ctx context.Context, cfg *config.DatabaseConfig, gormLogger logger.Interface) (*Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	d := &Database{DB: db, pool: pool}
	if err := d.Ping(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return d, nil
}

// SQL returns the pool behind the gorm handle, for migrations and pool metrics
func (d *Database) SQL() *sql.DB { return d.pool }

// Ping reports whether the database answers; it backs the readiness check
func (d *Database) Ping(ctx context.Context) error { return d.pool.PingContext(ctx) }

func (d *Database) Close() error { return d.pool.Close() }

// AutoMigrate creates the tables straight from the models. Deployed schemas
// come from the SQL migrations; this serves the sqlite-backed tests.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
