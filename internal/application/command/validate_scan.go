package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATE SCAN COMMAND
// The hot path of the whole system: a phone scanned a code and relayed the
// token back. Every failure mode maps to a distinct error so the client can
// tell "scan again" (expired) apart from "give up" (session closed).
//
// Acceptance is idempotent: a re-scan by an identity already present is a
// success that reports AlreadyKnown, never a duplicate mark.
// ══════════════════════════════════════════════════════════════════════════════

// ValidateScanCommand contains a relayed scan.
type ValidateScanCommand struct {
	// SessionID is the session being scanned into, from the request path.
	SessionID string

	// Identity is the scanning identity (roll number).
	Identity string

	// Token is the opaque token captured from the code.
	Token session.Token
}

// Validate validates the command.
func (c ValidateScanCommand) Validate() error {
	if c.SessionID == "" {
		return shared.ErrSessionNotFound
	}
	if c.Identity == "" {
		return shared.ErrInvalidIdentity
	}
	if c.Token == "" {
		return shared.ErrTokenMalformed
	}
	return nil
}

// ValidateScanResult contains the outcome of an accepted scan.
type ValidateScanResult struct {
	// SessionID is the session the identity was marked into.
	SessionID string

	// Identity is the marked identity.
	Identity string

	// AlreadyKnown is true when the identity was present before this scan.
	AlreadyKnown bool
}

// ValidateScanHandler handles the ValidateScanCommand.
type ValidateScanHandler struct {
	sessionRepo    session.Repository
	issuer         TokenIssuer
	rosterProvider roster.Provider
	eventBus       shared.EventBus
	logger         *slog.Logger
}

// NewValidateScanHandler creates a new ValidateScanHandler.
// The roster provider and event bus may be nil: without a provider the
// enrollment check is skipped, without a bus no events are published.
func NewValidateScanHandler(
	sessionRepo session.Repository,
	issuer TokenIssuer,
	rosterProvider roster.Provider,
	eventBus shared.EventBus,
	logger *slog.Logger,
) *ValidateScanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidateScanHandler{
		sessionRepo:    sessionRepo,
		issuer:         issuer,
		rosterProvider: rosterProvider,
		eventBus:       eventBus,
		logger:         logger,
	}
}

// Handle executes the scan validation.
//
// Order matters: malformed tokens are rejected before any store access, the
// session must exist before the window is consulted, and the present-set is
// only touched after every gate has passed.
func (h *ValidateScanHandler) Handle(ctx context.Context, cmd ValidateScanCommand) (*ValidateScanResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	payload, err := session.DecodeToken(cmd.Token)
	if err != nil {
		return nil, h.reject(cmd, err)
	}
	// A well-formed token for another session can never be in this session's
	// window; report it the same way as a stale one.
	if payload.SessionID != cmd.SessionID {
		return nil, h.reject(cmd, shared.ErrTokenExpired)
	}

	s, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, h.reject(cmd, err)
		}
		return nil, err
	}

	if err := h.issuer.Accepts(cmd.SessionID, cmd.Token); err != nil {
		return nil, h.reject(cmd, err)
	}

	if err := h.checkEnrollment(ctx, s, cmd.Identity); err != nil {
		if errors.Is(err, shared.ErrNotEnrolled) {
			return nil, h.reject(cmd, err)
		}
		return nil, err
	}

	added, err := h.sessionRepo.AddPresent(ctx, cmd.SessionID, cmd.Identity)
	if err != nil {
		return nil, fmt.Errorf("validate_scan: mark present: %w", err)
	}

	result := &ValidateScanResult{
		SessionID:    cmd.SessionID,
		Identity:     cmd.Identity,
		AlreadyKnown: !added,
	}

	h.logger.Info("scan accepted",
		"session_id", cmd.SessionID,
		"identity", cmd.Identity,
		"already_known", result.AlreadyKnown,
	)
	h.publishAccepted(result)

	return result, nil
}

// checkEnrollment verifies the identity belongs to the session's cohort and
// subject. A roster store outage degrades to accepting the scan: attendance
// keeps working through an outage, and the reconciliation views surface any
// stray marks afterwards.
func (h *ValidateScanHandler) checkEnrollment(ctx context.Context, s *session.Session, identity string) error {
	if h.rosterProvider == nil {
		return nil
	}

	entries, err := h.rosterProvider.GetRoster(ctx, s.Cohort())
	if err != nil {
		if errors.Is(err, shared.ErrRosterUnavailable) {
			h.logger.Warn("roster unavailable during scan, accepting unverified",
				"session_id", s.ID,
				"identity", identity,
			)
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.Identity == identity {
			if !entry.EnrolledIn(s.Subject) {
				return shared.ErrNotEnrolled
			}
			return nil
		}
	}
	return shared.ErrNotEnrolled
}

// reject emits the scan rejected event if a bus is wired and passes the
// cause through unchanged.
func (h *ValidateScanHandler) reject(cmd ValidateScanCommand, cause error) error {
	if h.eventBus == nil {
		return cause
	}
	event := shared.ScanRejectedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventScanRejected, cmd.SessionID),
		Identity:  cmd.Identity,
		Reason:    rejectReason(cause),
	}
	if err := h.eventBus.Publish(event); err != nil {
		h.logger.Warn("failed to publish scan rejected event",
			"session_id", cmd.SessionID, "error", err)
	}
	return cause
}

// rejectReason maps a rejection cause onto the event vocabulary.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, shared.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, shared.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, shared.ErrTokenMalformed):
		return "token_malformed"
	case errors.Is(err, shared.ErrNotEnrolled):
		return "not_enrolled"
	case errors.Is(err, shared.ErrNotFound):
		return "session_not_found"
	default:
		return "unknown"
	}
}

// publishAccepted emits the scan accepted event if a bus is wired.
func (h *ValidateScanHandler) publishAccepted(result *ValidateScanResult) {
	if h.eventBus == nil {
		return
	}
	event := shared.ScanAcceptedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventScanAccepted, result.SessionID),
		Identity:     result.Identity,
		AlreadyKnown: result.AlreadyKnown,
	}
	if err := h.eventBus.Publish(event); err != nil {
		h.logger.Warn("failed to publish scan accepted event",
			"session_id", result.SessionID, "error", err)
	}
}
