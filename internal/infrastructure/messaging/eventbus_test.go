package messaging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

func syncBusConfig() InMemoryEventBusConfig {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	return cfg
}

func scanEvent(sessionID string) shared.ScanAcceptedEvent {
	return shared.ScanAcceptedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventScanAccepted, sessionID),
		Identity:  "stu-1",
	}
}

func TestInMemoryEventBus_SubscribeAndPublish(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var received []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventScanAccepted, func(e shared.Event) error {
		received = append(received, e)
		return nil
	}))

	require.NoError(t, bus.Publish(scanEvent("sess-1")))
	require.Len(t, received, 1)
	assert.Equal(t, "sess-1", received[0].AggregateID())

	// A session-created event has no subscriber; publishing it is fine.
	require.NoError(t, bus.Publish(shared.SessionCreatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionCreated, "sess-2"),
	}))
	assert.Len(t, received, 1)
}

func TestInMemoryEventBus_SubscribeAll(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var count int
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(scanEvent("sess-1")))
	require.NoError(t, bus.Publish(shared.SessionDeletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionDeleted, "sess-1"),
	}))
	assert.Equal(t, 2, count)
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.Subscribe(shared.EventScanAccepted, func(shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(scanEvent("sess-1")))
	}

	// Close waits for in-flight async handlers.
	require.NoError(t, bus.Close())
	assert.Equal(t, 20, count)
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(scanEvent("sess-1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventScanAccepted, func(shared.Event) error { return nil }), ErrEventBusClosed)

	// Double close is fine.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_NilGuards(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventScanAccepted, nil))
	assert.Error(t, bus.SubscribeAll(nil))
}

func TestInMemoryEventBus_Metrics(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventScanAccepted, func(shared.Event) error { return nil }))
	require.NoError(t, bus.Publish(scanEvent("sess-1")))
	require.NoError(t, bus.Publish(scanEvent("sess-1")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.Equal(t, 1.0, snap.HandlerSuccessRate)
}
