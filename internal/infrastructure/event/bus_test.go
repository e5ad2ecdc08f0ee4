package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripcore/backend/internal/domain/shared"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "InventoryRecord", uuid.New()),
		Data:            "test data",
	}
}

type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("CapacityReserved")
	bus.Subscribe(handler)

	event := newTestEvent("CapacityReserved")
	require.NoError(t, bus.Publish(context.Background(), event, newTestEvent("CapacityReleased")))

	require.Len(t, handler.getHandled(), 1)
	assert.Equal(t, event, handler.getHandled()[0])

	published, failed := bus.Stats()
	assert.Equal(t, int64(2), published)
	assert.Zero(t, failed)
}

func TestInMemoryEventBus_WildcardHandler(t *testing.T) {
	bus := NewInMemoryEventBus(nil)

	typed := newTestHandler("CapacityReserved")
	wildcard := newTestHandler()
	bus.Subscribe(typed)
	bus.Subscribe(wildcard)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("CapacityReserved"),
		newTestEvent("AvailabilityStateChanged"),
	))

	assert.Len(t, typed.getHandled(), 1)
	assert.Len(t, wildcard.getHandled(), 2)
}

func TestInMemoryEventBus_FailingHandlers(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(h *testHandler)
	}{
		{"error", func(h *testHandler) { h.err = errors.New("broker down") }},
		{"panic", func(h *testHandler) { h.panicWith = "boom" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewInMemoryEventBus(zap.NewNop())
			bad := newTestHandler("CapacityReserved")
			tt.prepare(bad)
			good := newTestHandler("CapacityReserved")
			bus.Subscribe(bad)
			bus.Subscribe(good)

			err := bus.Publish(context.Background(), newTestEvent("CapacityReserved"))

			require.NoError(t, err)
			assert.Len(t, good.getHandled(), 1)
			_, failed := bus.Stats()
			assert.Equal(t, int64(1), failed)
		})
	}
}

func TestInMemoryEventBus_RoutingOrder(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	typed := newTestHandler()
	wildcard := newTestHandler()
	bus.Subscribe(typed, "CapacityReserved", "CapacityReleased")
	bus.Subscribe(wildcard)

	handlers := bus.handlersFor("CapacityReserved")
	require.Len(t, handlers, 2)
	assert.Same(t, typed, handlers[0], "typed handlers come first")
	assert.Same(t, wildcard, handlers[1])

	assert.Len(t, bus.handlersFor("CapacityBlocked"), 1, "unknown type reaches only the catch-all")
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("CapacityReserved")
	bus.Subscribe(handler, "CapacityBlocked")

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("CapacityReserved"),
		newTestEvent("CapacityBlocked"),
	))
	handled := handler.getHandled()
	require.Len(t, handled, 1)
	assert.Equal(t, "CapacityBlocked", handled[0].EventType())
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))
	assert.True(t, bus.running.Load())
	require.NoError(t, bus.Stop(context.Background()))
	assert.False(t, bus.running.Load())
}
