package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/shared"
)

// InventoryRecord is the capacity and price state of one item on one date.
// It is the aggregate root of the ledger; the composite identifier is
// ProviderType + ItemID + Date.
type InventoryRecord struct {
	shared.BaseAggregateRoot
	ProviderType      ProviderType
	ItemID            string
	Date              time.Time
	TotalCapacity     int
	AllocatedCapacity int
	BlockedCapacity   int
	BasePrice         decimal.Decimal
	Currency          string
	PricingTiers      PricingTiers
	Metadata          Metadata
	IsAvailable       bool
	IsBookable        bool

	// Cached price snapshot, written by the rate engine under PriceVersion
	SnapshotPrice    *decimal.Decimal
	PriceVersion     int64
	PriceRefreshedAt *time.Time
}

// NewRecordParams carries the inputs of NewInventoryRecord
type NewRecordParams struct {
	TotalCapacity int
	BasePrice     decimal.Decimal
	Currency      string
	PricingTiers  PricingTiers
	Metadata      Metadata
}

// NewInventoryRecord creates an open record with nothing allocated
func NewInventoryRecord(key RecordKey, p NewRecordParams) (*InventoryRecord, error) {
	if p.TotalCapacity < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "total capacity cannot be negative")
	}
	if p.BasePrice.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "base price cannot be negative")
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "currency is required")
	}
	if err := p.PricingTiers.Validate(); err != nil {
		return nil, err
	}

	return &InventoryRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProviderType:      key.ProviderType,
		ItemID:            key.ItemID,
		Date:              key.Date,
		TotalCapacity:     p.TotalCapacity,
		BasePrice:         p.BasePrice,
		Currency:          currency,
		PricingTiers:      p.PricingTiers.Clone(),
		Metadata:          p.Metadata.Clone(),
		IsAvailable:       true,
		IsBookable:        true,
	}, nil
}

// Key returns the composite identifier
func (r *InventoryRecord) Key() RecordKey {
	return RecordKey{ProviderType: r.ProviderType, ItemID: r.ItemID, Date: r.Date}
}

// AvailableCapacity returns total - allocated - blocked
func (r *InventoryRecord) AvailableCapacity() int {
	return r.TotalCapacity - r.AllocatedCapacity - r.BlockedCapacity
}

// State returns the current availability state
func (r *InventoryRecord) State() AvailabilityState {
	return deriveState(r.AvailableCapacity(), r.IsBookable, r.IsAvailable)
}

// LastUpdatedAt returns the time of the last write
func (r *InventoryRecord) LastUpdatedAt() time.Time {
	return r.UpdatedAt
}

// CheckInvariant verifies 0 <= available <= total and non-negative counters
func (r *InventoryRecord) CheckInvariant() error {
	return checkCapacity(r.TotalCapacity, r.AllocatedCapacity, r.BlockedCapacity)
}

func checkCapacity(total, allocated, blocked int) error {
	available := total - allocated - blocked
	if total < 0 || allocated < 0 || blocked < 0 || available < 0 || available > total {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("capacity invariant violated: total=%d allocated=%d blocked=%d", total, allocated, blocked))
	}
	return nil
}

// Reserve allocates quantity units
func (r *InventoryRecord) Reserve(quantity int) error {
	if quantity <= 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "quantity must be positive")
	}
	if r.State() == StateBlocked {
		return shared.NewDomainError(shared.CodeInvalidState, "record is not bookable")
	}
	if available := r.AvailableCapacity(); available < quantity {
		return shared.NewDomainError(shared.CodeOutOfCapacity,
			fmt.Sprintf("requested %d, available %d", quantity, available))
	}
	from := r.State()
	if err := r.apply(ActionReserve, r.AllocatedCapacity+quantity, r.BlockedCapacity, r.IsBookable, r.IsAvailable); err != nil {
		return err
	}
	r.Raise(NewCapacityReservedEvent(r, quantity))
	r.emitStateChange(ActionReserve, from)
	return nil
}

// Release returns quantity previously allocated units.
// Releasing more than is allocated fails with InvalidState.
func (r *InventoryRecord) Release(quantity int) error {
	if quantity <= 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "quantity must be positive")
	}
	if quantity > r.AllocatedCapacity {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("cannot release %d, only %d allocated", quantity, r.AllocatedCapacity))
	}
	from := r.State()
	if err := r.apply(ActionRelease, r.AllocatedCapacity-quantity, r.BlockedCapacity, r.IsBookable, r.IsAvailable); err != nil {
		return err
	}
	r.Raise(NewCapacityReleasedEvent(r, quantity))
	r.emitStateChange(ActionRelease, from)
	return nil
}

// Block withholds quantity unallocated units from sale
func (r *InventoryRecord) Block(quantity int) error {
	if quantity <= 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "quantity must be positive")
	}
	if available := r.AvailableCapacity(); available < quantity {
		return shared.NewDomainError(shared.CodeOutOfCapacity,
			fmt.Sprintf("cannot block %d, available %d", quantity, available))
	}
	from := r.State()
	if err := r.apply(ActionBlock, r.AllocatedCapacity, r.BlockedCapacity+quantity, r.IsBookable, r.IsAvailable); err != nil {
		return err
	}
	r.Raise(NewCapacityBlockedEvent(r, quantity))
	r.emitStateChange(ActionBlock, from)
	return nil
}

// Unblock returns quantity blocked units to sale
func (r *InventoryRecord) Unblock(quantity int) error {
	if quantity <= 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "quantity must be positive")
	}
	if quantity > r.BlockedCapacity {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("cannot unblock %d, only %d blocked", quantity, r.BlockedCapacity))
	}
	from := r.State()
	if err := r.apply(ActionUnblock, r.AllocatedCapacity, r.BlockedCapacity-quantity, r.IsBookable, r.IsAvailable); err != nil {
		return err
	}
	r.Raise(NewCapacityUnblockedEvent(r, quantity))
	r.emitStateChange(ActionUnblock, from)
	return nil
}

// Close takes the whole record off sale
func (r *InventoryRecord) Close() error {
	from := r.State()
	if err := r.apply(ActionClose, r.AllocatedCapacity, r.BlockedCapacity, false, r.IsAvailable); err != nil {
		return err
	}
	r.emitStateChange(ActionClose, from)
	return nil
}

// Reopen puts a closed record back on sale. Expired records cannot be reopened.
func (r *InventoryRecord) Reopen() error {
	from := r.State()
	if err := r.apply(ActionReopen, r.AllocatedCapacity, r.BlockedCapacity, true, r.IsAvailable); err != nil {
		return err
	}
	r.emitStateChange(ActionReopen, from)
	return nil
}

// Expire marks a record whose date has passed as unavailable
func (r *InventoryRecord) Expire(today time.Time) error {
	if !r.Date.Before(shared.NormalizeDate(today)) {
		return shared.NewDomainError(shared.CodeInvalidState, "record date has not passed")
	}
	from := r.State()
	if err := r.apply(ActionExpire, r.AllocatedCapacity, r.BlockedCapacity, r.IsBookable, false); err != nil {
		return err
	}
	r.emitStateChange(ActionExpire, from)
	return nil
}

// SetPriceSnapshot overwrites the cached price fields. Capacity and Version
// are untouched; PriceVersion is bumped instead.
func (r *InventoryRecord) SetPriceSnapshot(price decimal.Decimal, tiers PricingTiers, at time.Time) error {
	if price.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "snapshot price cannot be negative")
	}
	if err := tiers.Validate(); err != nil {
		return err
	}
	p := price
	r.SnapshotPrice = &p
	if tiers != nil {
		r.PricingTiers = tiers.Clone()
	}
	refreshed := at.UTC()
	r.PriceRefreshedAt = &refreshed
	r.PriceVersion++
	r.Raise(NewPriceSnapshotUpdatedEvent(r, price))
	return nil
}

// apply validates the transition and the capacity invariant for the candidate
// values, then writes them. Nothing is changed on failure.
func (r *InventoryRecord) apply(action Action, allocated, blocked int, bookable, available bool) error {
	if err := checkCapacity(r.TotalCapacity, allocated, blocked); err != nil {
		return err
	}
	from := r.State()
	to := deriveState(r.TotalCapacity-allocated-blocked, bookable, available)
	if err := ValidateTransition(action, from, to); err != nil {
		return err
	}

	r.AllocatedCapacity = allocated
	r.BlockedCapacity = blocked
	r.IsBookable = bookable
	r.IsAvailable = available
	r.MarkModified()
	return nil
}

func (r *InventoryRecord) emitStateChange(action Action, from AvailabilityState) {
	if to := r.State(); to != from {
		r.Raise(NewAvailabilityStateChangedEvent(r, action, from, to))
	}
}

// Snapshot is a read-only view of a record's capacity
type Snapshot struct {
	Total      int
	Allocated  int
	Blocked    int
	Available  int
	IsBookable bool
	State      AvailabilityState
}

// Snapshot returns the current capacity view
func (r *InventoryRecord) Snapshot() Snapshot {
	return Snapshot{
		Total:      r.TotalCapacity,
		Allocated:  r.AllocatedCapacity,
		Blocked:    r.BlockedCapacity,
		Available:  r.AvailableCapacity(),
		IsBookable: r.IsBookable && r.IsAvailable,
		State:      r.State(),
	}
}

// Clone returns a deep copy without pending domain events
func (r *InventoryRecord) Clone() *InventoryRecord {
	c := *r
	c.DrainEvents()
	c.PricingTiers = r.PricingTiers.Clone()
	c.Metadata = r.Metadata.Clone()
	if r.SnapshotPrice != nil {
		p := *r.SnapshotPrice
		c.SnapshotPrice = &p
	}
	if r.PriceRefreshedAt != nil {
		t := *r.PriceRefreshedAt
		c.PriceRefreshedAt = &t
	}
	return &c
}
