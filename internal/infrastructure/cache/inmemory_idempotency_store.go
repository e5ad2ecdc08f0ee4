package cache

import (
	"context"
	"time"

	"github.com/tripcore/backend/internal/domain/shared"
)

const idempotencySweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps idempotency keys in process memory. Keys do
// not survive a restart and are not shared between replicas.
type InMemoryIdempotencyStore struct {
	keys *ttlMap[struct{}]
}

// NewInMemoryIdempotencyStore creates the store and starts its expiry sweeper
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return newInMemoryIdempotencyStore(idempotencySweepInterval)
}

func newInMemoryIdempotencyStore(sweepEvery time.Duration) *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{keys: newTTLMap[struct{}](sweepEvery)}
}

// MarkProcessed reports true when key was not yet held
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	return s.keys.putIfAbsent(key, struct{}{}, ttl), nil
}

func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	_, ok := s.keys.get(key)
	return ok, nil
}

func (s *InMemoryIdempotencyStore) Remove(_ context.Context, key string) error {
	s.keys.delete(key)
	return nil
}

// Close stops the sweeper; calling it again is a no-op
func (s *InMemoryIdempotencyStore) Close() error {
	s.keys.close()
	return nil
}

// Size returns the number of held keys
func (s *InMemoryIdempotencyStore) Size() int {
	return s.keys.len()
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
