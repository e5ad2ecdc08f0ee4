package cache

import (
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/tripcore/backend/internal/domain/shared"
	"github.com/tripcore/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Backend names accepted in configuration
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// Factory builds the Redis-backed stores from configuration, sharing one
// client between them
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool

	once     sync.Once
	client   *redis.Client
	redisErr error
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithClient injects an existing Redis client
func WithClient(client *redis.Client) FactoryOption {
	return func(f *Factory) {
		f.client = client
		f.once.Do(func() {})
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) redisClient() (*redis.Client, error) {
	f.once.Do(func() {
		f.client, f.redisErr = NewRedisClient(f.redisConfig)
	})
	return f.client, f.redisErr
}

// IdempotencyStore creates the release idempotency store for the given backend.
// A Redis failure falls back to memory when allowed.
func (f *Factory) IdempotencyStore(backend string) (shared.IdempotencyStore, error) {
	if backend != BackendRedis {
		return NewInMemoryIdempotencyStore(), nil
	}
	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, ""), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for idempotency but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"Replayed releases are only detected within this instance.",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}

// QuoteCache creates the quote cache for the given backend; nil means caching is off
func (f *Factory) QuoteCache(backend string) (QuoteCache, error) {
	switch backend {
	case BackendNone, "":
		return nil, nil
	case BackendMemory:
		return NewInMemoryQuoteCache(), nil
	}
	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis quote cache")
		return NewRedisQuoteCache(client, ""), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for quote cache but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory quote cache", zap.Error(err))
	return NewInMemoryQuoteCache(), nil
}

// Close closes the shared Redis client if one was opened
func (f *Factory) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
