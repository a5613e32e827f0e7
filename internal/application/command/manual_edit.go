package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL EDIT COMMAND
// Teacher corrections to the present-set: single-identity toggles and
// whole-roster sweeps. Every operation is gated by the edit lock - one hour
// after creation the session is immutable, no exceptions, no unlock.
// ══════════════════════════════════════════════════════════════════════════════

// EditOperation identifies a manual edit.
type EditOperation string

const (
	// OpSetPresent marks one identity present.
	OpSetPresent EditOperation = "set_present"

	// OpSetAbsent removes one identity from the present-set.
	OpSetAbsent EditOperation = "set_absent"

	// OpMarkAllPresent replaces the present-set with every identity enrolled
	// in the session's subject, per the roster at the time of the call.
	OpMarkAllPresent EditOperation = "mark_all_present"

	// OpMarkAllAbsent empties the present-set.
	OpMarkAllAbsent EditOperation = "mark_all_absent"
)

// ManualEditCommand contains a manual attendance correction.
type ManualEditCommand struct {
	// SessionID is the session being edited.
	SessionID string

	// Identity is the target identity for single-identity operations.
	Identity string

	// Operation is the edit to apply.
	Operation EditOperation
}

// Validate validates the command.
func (c ManualEditCommand) Validate() error {
	if c.SessionID == "" {
		return shared.ErrSessionNotFound
	}

	switch c.Operation {
	case OpSetPresent, OpSetAbsent:
		if c.Identity == "" {
			return shared.ErrInvalidIdentity
		}
	case OpMarkAllPresent, OpMarkAllAbsent:
		// Whole-set operations take no identity.
	default:
		return fmt.Errorf("%w: unknown edit operation %q", shared.ErrInvalidInput, c.Operation)
	}

	return nil
}

// ManualEditResult contains the outcome of a manual edit.
type ManualEditResult struct {
	// SessionID is the edited session.
	SessionID string

	// Operation is the applied edit.
	Operation EditOperation

	// Affected is the number of identities whose state changed.
	Affected int
}

// ManualEditHandler handles the ManualEditCommand.
type ManualEditHandler struct {
	sessionRepo    session.Repository
	rosterProvider roster.Provider
	eventBus       shared.EventBus
	logger         *slog.Logger
	clock          func() time.Time
}

// NewManualEditHandler creates a new ManualEditHandler.
// The roster provider is required only for mark_all_present; the event bus
// may be nil.
func NewManualEditHandler(
	sessionRepo session.Repository,
	rosterProvider roster.Provider,
	eventBus shared.EventBus,
	logger *slog.Logger,
) *ManualEditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ManualEditHandler{
		sessionRepo:    sessionRepo,
		rosterProvider: rosterProvider,
		eventBus:       eventBus,
		logger:         logger,
		clock:          time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (h *ManualEditHandler) WithClock(clock func() time.Time) *ManualEditHandler {
	h.clock = clock
	return h
}

// Handle executes the manual edit command.
func (h *ManualEditHandler) Handle(ctx context.Context, cmd ManualEditCommand) (*ManualEditResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	if err := s.CheckEditable(h.clock()); err != nil {
		return nil, err
	}

	var affected int
	switch cmd.Operation {
	case OpSetPresent:
		affected, err = h.setPresent(ctx, cmd.SessionID, cmd.Identity)
	case OpSetAbsent:
		affected, err = h.setAbsent(ctx, cmd.SessionID, cmd.Identity)
	case OpMarkAllPresent:
		affected, err = h.markAllPresent(ctx, s)
	case OpMarkAllAbsent:
		affected, err = h.markAllAbsent(ctx, s)
	}
	if err != nil {
		return nil, err
	}

	result := &ManualEditResult{
		SessionID: cmd.SessionID,
		Operation: cmd.Operation,
		Affected:  affected,
	}

	h.logger.Info("manual edit applied",
		"session_id", cmd.SessionID,
		"operation", cmd.Operation,
		"affected", affected,
	)
	h.publishOverride(cmd, affected)

	return result, nil
}

func (h *ManualEditHandler) setPresent(ctx context.Context, sessionID, identity string) (int, error) {
	added, err := h.sessionRepo.AddPresent(ctx, sessionID, identity)
	if err != nil {
		return 0, fmt.Errorf("manual_edit: set present: %w", err)
	}
	if added {
		return 1, nil
	}
	return 0, nil
}

func (h *ManualEditHandler) setAbsent(ctx context.Context, sessionID, identity string) (int, error) {
	removed, err := h.sessionRepo.RemovePresent(ctx, sessionID, identity)
	if err != nil {
		return 0, fmt.Errorf("manual_edit: set absent: %w", err)
	}
	if removed {
		return 1, nil
	}
	return 0, nil
}

// markAllPresent resolves the roster at call time: identities enrolled in the
// subject right now, not at session creation.
func (h *ManualEditHandler) markAllPresent(ctx context.Context, s *session.Session) (int, error) {
	if h.rosterProvider == nil {
		return 0, shared.ErrRosterUnavailable
	}

	entries, err := h.rosterProvider.GetRoster(ctx, s.Cohort())
	if err != nil {
		return 0, fmt.Errorf("manual_edit: fetch roster: %w", err)
	}

	identities := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.EnrolledIn(s.Subject) {
			identities = append(identities, entry.Identity)
		}
	}

	before := s.PresentIDs()
	if err := h.sessionRepo.ReplacePresent(ctx, s.ID, identities); err != nil {
		return 0, fmt.Errorf("manual_edit: mark all present: %w", err)
	}

	return changedCount(before, identities), nil
}

// changedCount reports how many identities flip state when the present-set
// is replaced: additions plus removals, overlap excluded.
func changedCount(before, after []string) int {
	prev := make(map[string]bool, len(before))
	for _, id := range before {
		prev[id] = true
	}

	changed := 0
	for _, id := range after {
		if prev[id] {
			delete(prev, id)
		} else {
			changed++
		}
	}
	return changed + len(prev)
}

func (h *ManualEditHandler) markAllAbsent(ctx context.Context, s *session.Session) (int, error) {
	before := s.PresentCount()
	if err := h.sessionRepo.ReplacePresent(ctx, s.ID, nil); err != nil {
		return 0, fmt.Errorf("manual_edit: mark all absent: %w", err)
	}
	return before, nil
}

// publishOverride emits the manual override event if a bus is wired.
func (h *ManualEditHandler) publishOverride(cmd ManualEditCommand, affected int) {
	if h.eventBus == nil {
		return
	}
	event := shared.ManualOverrideEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventManualOverride, cmd.SessionID),
		Identity:  cmd.Identity,
		Operation: string(cmd.Operation),
		Affected:  affected,
	}
	if err := h.eventBus.Publish(event); err != nil {
		h.logger.Warn("failed to publish manual override event",
			"session_id", cmd.SessionID, "error", err)
	}
}
