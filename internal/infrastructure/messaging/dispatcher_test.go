package messaging

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

func fastRetryConfig(bus shared.EventBus) DispatcherConfig {
	cfg := DefaultDispatcherConfig(bus)
	cfg.RetryConfig = RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	return cfg
}

func TestDispatcher_RoutesBusEventsToHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := NewDispatcher(fastRetryConfig(bus))
	defer d.Stop()

	var got []string
	require.NoError(t, d.RegisterSync(shared.EventScanAccepted, "recorder", func(e shared.Event) error {
		got = append(got, e.AggregateID())
		return nil
	}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(scanEvent("sess-1")))
	require.NoError(t, bus.Publish(shared.SessionDeletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionDeleted, "sess-2"),
	}))

	assert.Equal(t, []string{"sess-1"}, got)
}

func TestDispatcher_RetriesThenDeadLetters(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := NewDispatcher(fastRetryConfig(bus))
	defer d.Stop()

	attempts := 0
	require.NoError(t, d.RegisterSync(shared.EventScanAccepted, "always_fails", func(shared.Event) error {
		attempts++
		return errors.New("boom")
	}))

	err := d.Dispatch(scanEvent("sess-1"))
	require.Error(t, err)

	// Initial attempt plus two retries.
	assert.Equal(t, 3, attempts)

	dlq := d.DeadLetters()
	require.NotNil(t, dlq)
	require.Equal(t, 1, dlq.Size())
	entry, ok := dlq.Pop()
	require.True(t, ok)
	assert.Equal(t, "always_fails", entry.HandlerName)
	assert.Equal(t, 3, entry.Attempts)
}

func TestDispatcher_RetrySucceedsEventually(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := NewDispatcher(fastRetryConfig(bus))
	defer d.Stop()

	attempts := 0
	require.NoError(t, d.RegisterSync(shared.EventScanAccepted, "flaky", func(shared.Event) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, d.Dispatch(scanEvent("sess-1")))
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 0, d.DeadLetters().Size())
}

func TestDispatcher_RecoveryMiddleware(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := NewDispatcher(fastRetryConfig(bus))
	defer d.Stop()
	d.Use(RecoveryMiddleware(slog.Default()))

	require.NoError(t, d.RegisterSync(shared.EventScanAccepted, "panics", func(shared.Event) error {
		panic("handler bug")
	}))

	// The panic is converted into an error instead of crashing the process.
	err := d.Dispatch(scanEvent("sess-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
}

func TestDispatcher_NoHandlersIsNoop(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := NewDispatcher(fastRetryConfig(bus))
	defer d.Stop()

	assert.NoError(t, d.Dispatch(scanEvent("sess-1")))
}

func TestDispatcher_NilHandlerRejected(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := NewDispatcher(fastRetryConfig(bus))
	defer d.Stop()

	assert.Error(t, d.Register(shared.EventScanAccepted, "nil", nil))
}

func TestDeadLetterQueue_CapEvictsOldest(t *testing.T) {
	q := NewDeadLetterQueue(2)

	for _, name := range []string{"first", "second", "third"} {
		q.Add(DeadLetterEntry{HandlerName: name, FailedAt: time.Now()})
	}

	require.Equal(t, 2, q.Size())
	entries := q.Entries()
	assert.Equal(t, "second", entries[0].HandlerName)
	assert.Equal(t, "third", entries[1].HandlerName)
}
