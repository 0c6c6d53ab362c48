package messaging

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
)

func xpEvent() shared.Event {
	return shared.XPGainedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventXPGained, "u1", time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)).
			WithCorrelationID("req-1"),
		UserID: "u1",
		Amount: 20,
	}
}

func TestInMemoryEventBus_Sync(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventXPGained, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error { t.Fatal("wrong type"); return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return errors.New("ignored") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))

	require.NoError(t, bus.Publish(xpEvent()))
	assert.Equal(t, 1, typed)
	assert.Equal(t, 1, all)

	m := bus.Metrics()
	assert.Equal(t, int64(1), m.Published)
	assert.Equal(t, int64(3), m.Handled)
	assert.Equal(t, int64(2), m.Failed)
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var handled atomic.Int64
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		return nil
	}))
	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(xpEvent()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bus.Close(ctx))
	assert.Equal(t, int64(20), handled.Load())

	assert.ErrorIs(t, bus.Publish(xpEvent()), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestNewEnvelope(t *testing.T) {
	env := NewEnvelope(xpEvent())
	assert.Equal(t, shared.EventXPGained, env.Type)
	assert.Equal(t, "u1", env.AggregateID)
	assert.Equal(t, "req-1", env.CorrelationID)
	assert.Equal(t, 20, env.Payload["amount"])
}
