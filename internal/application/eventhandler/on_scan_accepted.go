package eventhandler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON SCAN ACCEPTED HANDLER
// Keeps running counters of accepted scans per session. The numbers feed the
// health endpoint; they are approximate by design (reset on restart) and are
// never the source of truth - the session store is.
// ══════════════════════════════════════════════════════════════════════════════

// ScanStats is a snapshot of the scan counters.
type ScanStats struct {
	TotalAccepted  int64     `json:"totalAccepted"`
	TotalDuplicate int64     `json:"totalDuplicate"`
	Sessions       int       `json:"sessions"`
	LastScanAt     time.Time `json:"lastScanAt"`
	StartedAt      time.Time `json:"startedAt"`
}

// OnScanAcceptedHandler accumulates scan counters from accepted-scan events.
type OnScanAcceptedHandler struct {
	logger *slog.Logger

	mu             sync.Mutex
	totalAccepted  int64
	totalDuplicate int64
	perSession     map[string]int64
	lastScanAt     time.Time
	startedAt      time.Time
}

// NewOnScanAcceptedHandler creates a new OnScanAcceptedHandler.
func NewOnScanAcceptedHandler(logger *slog.Logger) *OnScanAcceptedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnScanAcceptedHandler{
		logger:     logger.With("handler", "on_scan_accepted"),
		perSession: make(map[string]int64),
		startedAt:  time.Now(),
	}
}

// Handle implements shared.EventHandler.
func (h *OnScanAcceptedHandler) Handle(event shared.Event) error {
	scanEvent, ok := event.(shared.ScanAcceptedEvent)
	if !ok {
		h.logger.Warn("received non-ScanAcceptedEvent",
			"event_type", string(event.EventType()),
		)
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if scanEvent.AlreadyKnown {
		h.totalDuplicate++
	} else {
		h.totalAccepted++
		h.perSession[scanEvent.AggregateID()]++
	}
	h.lastScanAt = scanEvent.OccurredAt()

	return nil
}

// EventType returns the event type this handler consumes.
func (h *OnScanAcceptedHandler) EventType() shared.EventType {
	return shared.EventScanAccepted
}

// Stats returns a snapshot of the counters.
func (h *OnScanAcceptedHandler) Stats() ScanStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return ScanStats{
		TotalAccepted:  h.totalAccepted,
		TotalDuplicate: h.totalDuplicate,
		Sessions:       len(h.perSession),
		LastScanAt:     h.lastScanAt,
		StartedAt:      h.startedAt,
	}
}

// Forget drops the per-session counter for a deleted session.
func (h *OnScanAcceptedHandler) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.perSession, sessionID)
}
