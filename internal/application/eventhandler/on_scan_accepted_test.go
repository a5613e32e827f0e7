package eventhandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

func acceptedScan(sessionID string, alreadyKnown bool) shared.ScanAcceptedEvent {
	return shared.ScanAcceptedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventScanAccepted, sessionID),
		Identity:     "stu-1",
		AlreadyKnown: alreadyKnown,
	}
}

func TestOnScanAccepted_Counters(t *testing.T) {
	h := NewOnScanAcceptedHandler(nil)

	require.NoError(t, h.Handle(acceptedScan("sess-1", false)))
	require.NoError(t, h.Handle(acceptedScan("sess-1", false)))
	require.NoError(t, h.Handle(acceptedScan("sess-2", false)))
	require.NoError(t, h.Handle(acceptedScan("sess-1", true)))

	stats := h.Stats()
	assert.Equal(t, int64(3), stats.TotalAccepted)
	assert.Equal(t, int64(1), stats.TotalDuplicate)
	assert.Equal(t, 2, stats.Sessions)
	assert.False(t, stats.LastScanAt.IsZero())
}

func TestOnScanAccepted_IgnoresOtherEvents(t *testing.T) {
	h := NewOnScanAcceptedHandler(nil)

	// A mis-routed event is dropped, not an error.
	err := h.Handle(shared.SessionCreatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionCreated, "sess-1"),
	})
	require.NoError(t, err)

	stats := h.Stats()
	assert.Equal(t, int64(0), stats.TotalAccepted)
	assert.Equal(t, 0, stats.Sessions)
}

func TestOnScanAccepted_Forget(t *testing.T) {
	h := NewOnScanAcceptedHandler(nil)
	require.NoError(t, h.Handle(acceptedScan("sess-1", false)))
	require.NoError(t, h.Handle(acceptedScan("sess-2", false)))

	h.Forget("sess-1")

	stats := h.Stats()
	assert.Equal(t, 1, stats.Sessions)
	// Totals are historical and survive the forget.
	assert.Equal(t, int64(2), stats.TotalAccepted)
}

func TestOnScanAccepted_EventType(t *testing.T) {
	h := NewOnScanAcceptedHandler(nil)
	assert.Equal(t, shared.EventScanAccepted, h.EventType())
}

func TestAuditLog_NeverFails(t *testing.T) {
	h := NewAuditLogHandler(nil, DefaultAuditLogConfig())

	assert.NoError(t, h.Handle(acceptedScan("sess-1", false)))
	assert.NoError(t, h.Handle(shared.ManualOverrideEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventManualOverride, "sess-1"),
		Operation: "set_present",
		Affected:  1,
	}))
}

func TestAuditLog_SkipTypes(t *testing.T) {
	h := NewAuditLogHandler(nil, AuditLogConfig{
		SkipTypes: []shared.EventType{shared.EventScanAccepted},
	})

	// Skipped types are still acknowledged without error.
	assert.NoError(t, h.Handle(acceptedScan("sess-1", false)))
}
