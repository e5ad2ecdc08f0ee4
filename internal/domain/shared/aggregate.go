package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and audit timestamps
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity assigns a fresh id with both timestamps set to now (UTC)
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch bumps UpdatedAt to now
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// BaseAggregateRoot adds the optimistic concurrency version and the events
// raised since the caller last drained them. Version starts at 1 and every
// persisted write is conditioned on the version read.
type BaseAggregateRoot struct {
	BaseEntity
	Version int64
	pending []DomainEvent
}

func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// MarkModified records a state change: UpdatedAt moves and Version bumps
func (a *BaseAggregateRoot) MarkModified() {
	a.Touch()
	a.Version++
}

// Raise queues an event for publication after the write commits
func (a *BaseAggregateRoot) Raise(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// PendingEvents returns the queued events without clearing them
func (a *BaseAggregateRoot) PendingEvents() []DomainEvent {
	return a.pending
}

// DrainEvents returns the queued events and clears the queue
func (a *BaseAggregateRoot) DrainEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}
