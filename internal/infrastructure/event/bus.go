package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tripcore/backend/internal/domain/shared"
)

// anyEvent routes to handlers subscribed without event types
const anyEvent = "*"

// InMemoryEventBus dispatches domain events synchronously to subscribed
// handlers. A failing handler is logged and does not stop the others, so a
// capacity write is never rolled back by a downstream consumer.
type InMemoryEventBus struct {
	mu     sync.RWMutex
	routes map[string][]shared.EventHandler
	logger *zap.Logger

	running   atomic.Bool
	published atomic.Int64
	failed    atomic.Int64
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		routes: make(map[string][]shared.EventHandler),
		logger: logger,
	}
}

// Subscribe routes the given event types to handler. With no explicit types
// the handler's own EventTypes are used, and an empty set means every event.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	keys := eventTypes
	if len(keys) == 0 {
		keys = []string{anyEvent}
	}

	b.mu.Lock()
	for _, k := range keys {
		b.routes[k] = append(b.routes[k], handler)
	}
	b.mu.Unlock()
	b.logger.Debug("event handler subscribed", zap.Strings("event_types", keys))
}

// handlersFor returns the typed handlers of eventType followed by the
// catch-all handlers.
func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	typed, all := b.routes[eventType], b.routes[anyEvent]
	out := make([]shared.EventHandler, 0, len(typed)+len(all))
	return append(append(out, typed...), all...)
}

// Publish delivers each event to its handlers. It never returns a handler error.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, ev := range events {
		b.published.Add(1)
		for _, h := range b.handlersFor(ev.EventType()) {
			if err := dispatch(ctx, h, ev); err != nil {
				b.failed.Add(1)
				b.logger.Error("event handler failed",
					zap.String("event_type", ev.EventType()),
					zap.String("event_id", ev.EventID().String()),
					zap.String("aggregate_id", ev.AggregateID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

func (b *InMemoryEventBus) Start(_ context.Context) error {
	b.running.Store(true)
	b.logger.Info("event bus started")
	return nil
}

// Stop logs the delivery totals.
func (b *InMemoryEventBus) Stop(_ context.Context) error {
	b.running.Store(false)
	published, failed := b.Stats()
	b.logger.Info("event bus stopped",
		zap.Int64("published", published),
		zap.Int64("handler_failures", failed),
	)
	return nil
}

// Stats returns the number of published events and handler failures
func (b *InMemoryEventBus) Stats() (published, failed int64) {
	return b.published.Load(), b.failed.Load()
}

// dispatch runs one handler and turns a panic into an error
func dispatch(ctx context.Context, h shared.EventHandler, ev shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, ev)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
