package inventory

import (
	"context"
	"time"

	"github.com/tripcore/backend/internal/domain/inventory"
)

// ReservationCoordinator turns the single-shot Ledger.Reserve into a
// reserve-or-fail operation that absorbs lost compare-and-swap races.
type ReservationCoordinator struct {
	ledger     *Ledger
	maxRetries int
	backoff    time.Duration
}

// NewReservationCoordinator creates a coordinator with a default retry budget.
// A negative maxRetries falls back to DefaultMaxRetries.
func NewReservationCoordinator(ledger *Ledger, maxRetries int, backoff time.Duration) *ReservationCoordinator {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &ReservationCoordinator{
		ledger:     ledger,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// MaxRetries returns the default retry budget
func (c *ReservationCoordinator) MaxRetries() int {
	return c.maxRetries
}

// TryReserve reserves quantity units, re-reading and retrying after each
// lost race up to maxRetries times (the coordinator default when negative).
// OutOfCapacity and InvalidState fail at once; an exhausted budget fails with
// ConcurrencyConflict; a cancelled ctx aborts the remaining retries.
func (c *ReservationCoordinator) TryReserve(ctx context.Context, key inventory.RecordKey, quantity, maxRetries int) (int64, error) {
	if maxRetries < 0 {
		maxRetries = c.maxRetries
	}
	backoff := c.ledger.config.RetryBackoff
	if c.backoff > 0 {
		backoff = c.backoff
	}
	return c.ledger.mutateWithBackoff(ctx, OpReserve, key, quantity, maxRetries, backoff, func(r *inventory.InventoryRecord) error {
		return r.Reserve(quantity)
	})
}
