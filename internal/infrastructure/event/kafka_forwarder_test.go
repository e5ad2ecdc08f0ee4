package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/shared"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessage(_ context.Context, msg kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msg)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func reservedEvent(t *testing.T) shared.DomainEvent {
	key, err := inventory.NewRecordKey(inventory.ProviderHotel, "room-1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	rec, err := inventory.NewInventoryRecord(key, inventory.NewRecordParams{
		TotalCapacity: 2,
		BasePrice:     decimal.NewFromInt(100),
		Currency:      "SAR",
	})
	require.NoError(t, err)
	require.NoError(t, rec.Reserve(1))
	events := rec.PendingEvents()
	require.NotEmpty(t, events)
	return events[0]
}

func TestKafkaForwarder_Handle(t *testing.T) {
	writer := &fakeWriter{}
	forwarder := NewKafkaForwarder(writer, zap.NewNop())
	event := reservedEvent(t)

	require.NoError(t, forwarder.Handle(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, event.AggregateID().String(), string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, inventory.EventTypeCapacityReserved, string(msg.Headers[0].Value))

	env, err := Decode(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID(), env.ID)
	assert.Equal(t, inventory.AggregateTypeInventoryRecord, env.AggregateType)
	assert.Equal(t, 1, env.SchemaVersion)
	assert.Contains(t, string(env.Payload), `"item_id":"room-1"`)
	assert.Contains(t, string(env.Payload), `"quantity":1`)

	assert.Nil(t, forwarder.EventTypes())
	require.NoError(t, forwarder.Close())
	assert.True(t, writer.closed)
}

func TestKafkaForwarder_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	forwarder := NewKafkaForwarder(&fakeWriter{err: boom}, zap.NewNop())

	err := forwarder.Handle(context.Background(), reservedEvent(t))
	assert.ErrorIs(t, err, boom)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestLoggingHandler(t *testing.T) {
	h := NewLoggingHandler(zap.NewNop())
	assert.NoError(t, h.Handle(context.Background(), reservedEvent(t)))
	assert.Nil(t, h.EventTypes())
}
