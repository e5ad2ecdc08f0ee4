package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys of operations that were already applied
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Remove forgets a key, used when the guarded operation failed after marking
	Remove(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
