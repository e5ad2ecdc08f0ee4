package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tripcore/backend/internal/infrastructure/config"
)

type traceRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&traceRow{}))
	return db
}

func newRecordingSpan(t *testing.T) (context.Context, trace.Span, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "db-op")
	return ctx, span, sr
}

func TestDBTracingConfigFrom(t *testing.T) {
	cfg := DBTracingConfigFrom(config.TelemetryConfig{
		Enabled:        true,
		DBTraceEnabled: true,
	})
	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)

	cfg = DBTracingConfigFrom(config.TelemetryConfig{
		Enabled:           false,
		DBTraceEnabled:    true,
		DBSlowQueryThresh: time.Second,
	})
	assert.False(t, cfg.Enabled, "db tracing requires telemetry")
	assert.Equal(t, time.Second, cfg.SlowQueryThresh)
}

func TestRegisterOtelGorm_Disabled(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	require.NoError(t, plugin.RegisterOtelGorm(db))
	assert.Nil(t, db.Callback().Query().Get("otel_slow_query:query"))
}

func TestRegisterOtelGorm_Enabled(t *testing.T) {
	db := setupTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))
	assert.NotNil(t, db.Callback().Query().Get("otel_slow_query:query"))
	assert.NotNil(t, db.Callback().Create().Get("otel_timing:before_create"))

	// second registration collides with the plugin name
	assert.Error(t, plugin.RegisterOtelGorm(db))

	ctx, span, _ := newRecordingSpan(t)
	require.NoError(t, db.WithContext(ctx).Create(&traceRow{Name: "a"}).Error)
	var got traceRow
	require.NoError(t, db.WithContext(ctx).First(&got, "name = ?", "a").Error)
	span.End()
	assert.Equal(t, "a", got.Name)
}

func TestAnnotateSpan(t *testing.T) {
	db := setupTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.SlowQueryThresh = time.Millisecond
	plugin := NewDBTracingPlugin(cfg, zap.NewNop())

	ctx, span, sr := newRecordingSpan(t)
	ctx = context.WithValue(ctx, queryStartTimeKey, time.Now().Add(-time.Second))

	tx := db.WithContext(ctx)
	tx.Statement.Table = "inventory_records"
	tx.Statement.RowsAffected = 3
	tx.Error = errors.New("conflict")
	plugin.annotateSpan(tx)
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	attrs := attrMap(ended[0].Attributes())
	assert.Equal(t, int64(3), attrs["db.rows_affected"].AsInt64())
	assert.Equal(t, "inventory_records", attrs["db.sql.table"].AsString())
	assert.True(t, attrs["db.slow_query"].AsBool())
	assert.Equal(t, "conflict", ended[0].Status().Description)

	var names []string
	for _, ev := range ended[0].Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "slow_query_warning")
}

func TestAnnotateSpan_IgnoresRecordNotFound(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	ctx, span, sr := newRecordingSpan(t)
	tx := db.WithContext(ctx)
	tx.Error = gorm.ErrRecordNotFound
	plugin.annotateSpan(tx)
	span.End()

	assert.Empty(t, sr.Ended()[0].Events())
}
