package inventory

import (
	"fmt"

	"github.com/tripcore/backend/internal/domain/shared"
)

// AvailabilityState is the derived sellability of an InventoryRecord
type AvailabilityState string

const (
	// StateOpen means capacity remains and the record is bookable
	StateOpen AvailabilityState = "open"
	// StateExhausted means no capacity remains
	StateExhausted AvailabilityState = "exhausted"
	// StateBlocked means the record was taken off sale or its date has passed
	StateBlocked AvailabilityState = "blocked"
)

// String returns the string representation
func (s AvailabilityState) String() string {
	return string(s)
}

// Action is a mutating operation on an InventoryRecord
type Action string

const (
	ActionReserve Action = "reserve"
	ActionRelease Action = "release"
	ActionBlock   Action = "block"
	ActionUnblock Action = "unblock"
	ActionClose   Action = "close"
	ActionReopen  Action = "reopen"
	ActionExpire  Action = "expire"
)

// transitions lists, per action, the states it may start from and the
// states it may leave the record in. Anything absent is rejected.
var transitions = map[Action]map[AvailabilityState][]AvailabilityState{
	ActionReserve: {
		StateOpen: {StateOpen, StateExhausted},
	},
	ActionRelease: {
		StateOpen:      {StateOpen},
		StateExhausted: {StateOpen},
		StateBlocked:   {StateBlocked},
	},
	ActionBlock: {
		StateOpen:    {StateOpen, StateExhausted},
		StateBlocked: {StateBlocked},
	},
	ActionUnblock: {
		StateOpen:      {StateOpen},
		StateExhausted: {StateOpen},
		StateBlocked:   {StateBlocked},
	},
	ActionClose: {
		StateOpen:      {StateBlocked},
		StateExhausted: {StateBlocked},
	},
	ActionReopen: {
		StateBlocked: {StateOpen, StateExhausted},
	},
	ActionExpire: {
		StateOpen:      {StateBlocked},
		StateExhausted: {StateBlocked},
		StateBlocked:   {StateBlocked},
	},
}

// CanPerform reports whether action may start from state
func CanPerform(action Action, from AvailabilityState) bool {
	_, ok := transitions[action][from]
	return ok
}

// ValidateTransition returns InvalidState unless the table allows action
// to move the record from one state to the other
func ValidateTransition(action Action, from, to AvailabilityState) error {
	targets, ok := transitions[action][from]
	if ok {
		for _, t := range targets {
			if t == to {
				return nil
			}
		}
	}
	return shared.NewDomainError(shared.CodeInvalidState,
		fmt.Sprintf("%s not allowed: %s -> %s", action, from, to))
}

func deriveState(available int, bookable, isAvailable bool) AvailabilityState {
	switch {
	case !bookable || !isAvailable:
		return StateBlocked
	case available == 0:
		return StateExhausted
	default:
		return StateOpen
	}
}
