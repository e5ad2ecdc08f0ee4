package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuoteCache stores encoded price quotes for a short TTL. Invalidate drops
// every cached quote, used after rule or override writes.
type QuoteCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

const defaultQuotePrefix = "pricing:quote:"

// RedisQuoteCache keeps quotes in Redis under a generation number. Bumping
// the generation orphans old keys, which then age out by TTL.
type RedisQuoteCache struct {
	client *redis.Client
	prefix string
}

// NewRedisQuoteCache creates a quote cache over a shared client
func NewRedisQuoteCache(client *redis.Client, prefix string) *RedisQuoteCache {
	if prefix == "" {
		prefix = defaultQuotePrefix
	}
	return &RedisQuoteCache{client: client, prefix: prefix}
}

func (c *RedisQuoteCache) generationKey() string {
	return c.prefix + "gen"
}

func (c *RedisQuoteCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quote cache generation: %w", err)
	}
	return gen, nil
}

func (c *RedisQuoteCache) entryKey(gen int64, key string) string {
	return c.prefix + strconv.FormatInt(gen, 10) + ":" + key
}

// Get returns the cached value and whether it was present
func (c *RedisQuoteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, false, err
	}
	val, err := c.client.Get(ctx, c.entryKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached quote: %w", err)
	}
	return val, true, nil
}

// Set stores value under the current generation
func (c *RedisQuoteCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	gen, err := c.generation(ctx)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.entryKey(gen, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache quote: %w", err)
	}
	return nil
}

// Invalidate bumps the generation
func (c *RedisQuoteCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate quote cache: %w", err)
	}
	return nil
}

// InMemoryQuoteCache is a process-local QuoteCache. Expired quotes are
// dropped on read.
type InMemoryQuoteCache struct {
	entries *ttlMap[[]byte]
}

// NewInMemoryQuoteCache creates an empty in-memory quote cache
func NewInMemoryQuoteCache() *InMemoryQuoteCache {
	return &InMemoryQuoteCache{entries: newTTLMap[[]byte](0)}
}

func (c *InMemoryQuoteCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.entries.get(key)
	return v, ok, nil
}

func (c *InMemoryQuoteCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.entries.put(key, value, ttl)
	return nil
}

func (c *InMemoryQuoteCache) Invalidate(_ context.Context) error {
	c.entries.reset()
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *InMemoryQuoteCache) Len() int {
	return c.entries.len()
}

var (
	_ QuoteCache = (*RedisQuoteCache)(nil)
	_ QuoteCache = (*InMemoryQuoteCache)(nil)
)
