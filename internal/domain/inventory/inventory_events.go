package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeInventoryRecord = "InventoryRecord"

// Event type constants
const (
	EventTypeCapacityReserved         = "CapacityReserved"
	EventTypeCapacityReleased         = "CapacityReleased"
	EventTypeCapacityBlocked          = "CapacityBlocked"
	EventTypeCapacityUnblocked        = "CapacityUnblocked"
	EventTypeAvailabilityStateChanged = "AvailabilityStateChanged"
	EventTypePriceSnapshotUpdated     = "PriceSnapshotUpdated"
)

// recordRef identifies the record an event belongs to
type recordRef struct {
	RecordID     uuid.UUID    `json:"record_id"`
	ProviderType ProviderType `json:"provider_type"`
	ItemID       string       `json:"item_id"`
	Date         string       `json:"date"`
}

func refOf(r *InventoryRecord) recordRef {
	return recordRef{
		RecordID:     r.ID,
		ProviderType: r.ProviderType,
		ItemID:       r.ItemID,
		Date:         r.Date.Format(shared.DateLayout),
	}
}

// capacityChange is the payload shared by the capacity events
type capacityChange struct {
	recordRef
	Quantity  int   `json:"quantity"`
	Allocated int   `json:"allocated"`
	Blocked   int   `json:"blocked"`
	Available int   `json:"available"`
	Version   int64 `json:"version"`
}

func changeOf(r *InventoryRecord, quantity int) capacityChange {
	return capacityChange{
		recordRef: refOf(r),
		Quantity:  quantity,
		Allocated: r.AllocatedCapacity,
		Blocked:   r.BlockedCapacity,
		Available: r.AvailableCapacity(),
		Version:   r.Version,
	}
}

// CapacityReservedEvent is raised when units are allocated
type CapacityReservedEvent struct {
	shared.BaseDomainEvent
	capacityChange
}

// NewCapacityReservedEvent creates a new CapacityReservedEvent
func NewCapacityReservedEvent(r *InventoryRecord, quantity int) *CapacityReservedEvent {
	return &CapacityReservedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCapacityReserved, AggregateTypeInventoryRecord, r.ID),
		capacityChange:  changeOf(r, quantity),
	}
}

// CapacityReleasedEvent is raised when allocated units are returned
type CapacityReleasedEvent struct {
	shared.BaseDomainEvent
	capacityChange
}

// NewCapacityReleasedEvent creates a new CapacityReleasedEvent
func NewCapacityReleasedEvent(r *InventoryRecord, quantity int) *CapacityReleasedEvent {
	return &CapacityReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCapacityReleased, AggregateTypeInventoryRecord, r.ID),
		capacityChange:  changeOf(r, quantity),
	}
}

// CapacityBlockedEvent is raised when units are withheld from sale
type CapacityBlockedEvent struct {
	shared.BaseDomainEvent
	capacityChange
}

// NewCapacityBlockedEvent creates a new CapacityBlockedEvent
func NewCapacityBlockedEvent(r *InventoryRecord, quantity int) *CapacityBlockedEvent {
	return &CapacityBlockedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCapacityBlocked, AggregateTypeInventoryRecord, r.ID),
		capacityChange:  changeOf(r, quantity),
	}
}

// CapacityUnblockedEvent is raised when withheld units return to sale
type CapacityUnblockedEvent struct {
	shared.BaseDomainEvent
	capacityChange
}

// NewCapacityUnblockedEvent creates a new CapacityUnblockedEvent
func NewCapacityUnblockedEvent(r *InventoryRecord, quantity int) *CapacityUnblockedEvent {
	return &CapacityUnblockedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCapacityUnblocked, AggregateTypeInventoryRecord, r.ID),
		capacityChange:  changeOf(r, quantity),
	}
}

// AvailabilityStateChangedEvent is raised when a write moves the record between states
type AvailabilityStateChangedEvent struct {
	shared.BaseDomainEvent
	recordRef
	Action Action            `json:"action"`
	From   AvailabilityState `json:"from"`
	To     AvailabilityState `json:"to"`
}

// NewAvailabilityStateChangedEvent creates a new AvailabilityStateChangedEvent
func NewAvailabilityStateChangedEvent(r *InventoryRecord, action Action, from, to AvailabilityState) *AvailabilityStateChangedEvent {
	return &AvailabilityStateChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAvailabilityStateChanged, AggregateTypeInventoryRecord, r.ID),
		recordRef:       refOf(r),
		Action:          action,
		From:            from,
		To:              to,
	}
}

// PriceSnapshotUpdatedEvent is raised when the cached price is refreshed
type PriceSnapshotUpdatedEvent struct {
	shared.BaseDomainEvent
	recordRef
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	PriceVersion int64           `json:"price_version"`
	RefreshedAt  time.Time       `json:"refreshed_at"`
}

// NewPriceSnapshotUpdatedEvent creates a new PriceSnapshotUpdatedEvent
func NewPriceSnapshotUpdatedEvent(r *InventoryRecord, price decimal.Decimal) *PriceSnapshotUpdatedEvent {
	e := &PriceSnapshotUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePriceSnapshotUpdated, AggregateTypeInventoryRecord, r.ID),
		recordRef:       refOf(r),
		Price:           price,
		Currency:        r.Currency,
		PriceVersion:    r.PriceVersion,
	}
	if r.PriceRefreshedAt != nil {
		e.RefreshedAt = *r.PriceRefreshedAt
	}
	return e
}
