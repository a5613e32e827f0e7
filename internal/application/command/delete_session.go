package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE SESSION COMMAND
// Removes a session and its attendance records. Deletion is idempotent: a
// repeat delete finds nothing to remove and reports success, because the
// caller's goal (session gone) is already met.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteSessionCommand contains the data to delete a session.
type DeleteSessionCommand struct {
	// SessionID is the session to delete.
	SessionID string

	// TeacherID, when set, must match the session's owner.
	TeacherID string
}

// Validate validates the command.
func (c DeleteSessionCommand) Validate() error {
	if c.SessionID == "" {
		return shared.ErrSessionNotFound
	}
	return nil
}

// DeleteSessionResult contains the outcome of a delete.
type DeleteSessionResult struct {
	// SessionID is the deleted session.
	SessionID string

	// AlreadyGone is true when the session did not exist.
	AlreadyGone bool
}

// DeleteSessionHandler handles the DeleteSessionCommand.
type DeleteSessionHandler struct {
	sessionRepo session.Repository
	issuer      TokenIssuer
	eventBus    shared.EventBus
	logger      *slog.Logger
}

// NewDeleteSessionHandler creates a new DeleteSessionHandler.
func NewDeleteSessionHandler(
	sessionRepo session.Repository,
	issuer TokenIssuer,
	eventBus shared.EventBus,
	logger *slog.Logger,
) *DeleteSessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeleteSessionHandler{
		sessionRepo: sessionRepo,
		issuer:      issuer,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// Handle executes the delete session command.
func (h *DeleteSessionHandler) Handle(ctx context.Context, cmd DeleteSessionCommand) (*DeleteSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return &DeleteSessionResult{SessionID: cmd.SessionID, AlreadyGone: true}, nil
		}
		return nil, err
	}

	if cmd.TeacherID != "" && cmd.TeacherID != s.TeacherID {
		return nil, shared.NewDomainError("session", "Delete", shared.ErrForbidden,
			"session belongs to another teacher")
	}

	// Stop rotation first so no scan can land between delete and stop.
	h.issuer.StopIssuing(cmd.SessionID)

	if err := h.sessionRepo.Delete(ctx, cmd.SessionID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return &DeleteSessionResult{SessionID: cmd.SessionID, AlreadyGone: true}, nil
		}
		return nil, fmt.Errorf("delete_session: %w", err)
	}

	h.logger.Info("session deleted",
		"session_id", cmd.SessionID,
		"teacher_id", s.TeacherID,
	)
	h.publishDeleted(s)

	return &DeleteSessionResult{SessionID: cmd.SessionID}, nil
}

// publishDeleted emits the session deleted event if a bus is wired.
func (h *DeleteSessionHandler) publishDeleted(s *session.Session) {
	if h.eventBus == nil {
		return
	}
	event := shared.SessionDeletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionDeleted, s.ID),
		TeacherID: s.TeacherID,
	}
	if err := h.eventBus.Publish(event); err != nil {
		h.logger.Warn("failed to publish session deleted event",
			"session_id", s.ID, "error", err)
	}
}
