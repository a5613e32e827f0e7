// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// TokenIssuer is the slice of the token issuer consumed by commands.
type TokenIssuer interface {
	// StartIssuing opens an issuing context and begins token rotation.
	StartIssuing(ctx context.Context, sessionID, teacherID string) error

	// StopIssuing ends rotation and clears the token window.
	StopIssuing(sessionID string)

	// CurrentToken returns the most recently issued token for a session.
	CurrentToken(sessionID string) (session.Token, error)

	// Accepts reports whether the token falls inside the acceptance window.
	Accepts(sessionID string, t session.Token) error
}

// ══════════════════════════════════════════════════════════════════════════════
// CREATE SESSION COMMAND
// Opens an attendance session and starts token rotation for it. The first
// token is available as soon as the command returns, so the session screen
// can render a scannable code immediately.
// ══════════════════════════════════════════════════════════════════════════════

// CreateSessionCommand contains the data to open a session.
type CreateSessionCommand struct {
	// TeacherID identifies the teacher opening the session.
	TeacherID string

	// Year is the academic year of the cohort (1-4).
	Year shared.Year

	// Division is the cohort division (single uppercase letter).
	Division shared.Division

	// Subject is the subject being taught.
	Subject string
}

// Validate validates the command.
func (c CreateSessionCommand) Validate() error {
	if strings.TrimSpace(c.TeacherID) == "" {
		return shared.ErrInvalidTeacherID
	}
	if !c.Year.IsValid() {
		return shared.ErrInvalidYear
	}
	if !c.Division.IsValid() {
		return shared.ErrInvalidDivision
	}
	if strings.TrimSpace(c.Subject) == "" {
		return shared.ErrInvalidSubject
	}
	return nil
}

// CreateSessionResult contains the result of opening a session.
type CreateSessionResult struct {
	// Session is the freshly created session.
	Session *session.Session

	// Token is the first issued token, ready to render.
	Token session.Token
}

// CreateSessionHandler handles the CreateSessionCommand.
type CreateSessionHandler struct {
	sessionRepo session.Repository
	issuer      TokenIssuer
	eventBus    shared.EventBus
	logger      *slog.Logger
	clock       func() time.Time
}

// NewCreateSessionHandler creates a new CreateSessionHandler.
// The event bus may be nil; the clock defaults to time.Now.
func NewCreateSessionHandler(
	sessionRepo session.Repository,
	issuer TokenIssuer,
	eventBus shared.EventBus,
	logger *slog.Logger,
) *CreateSessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateSessionHandler{
		sessionRepo: sessionRepo,
		issuer:      issuer,
		eventBus:    eventBus,
		logger:      logger,
		clock:       time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (h *CreateSessionHandler) WithClock(clock func() time.Time) *CreateSessionHandler {
	h.clock = clock
	return h
}

// Handle executes the create session command.
func (h *CreateSessionHandler) Handle(ctx context.Context, cmd CreateSessionCommand) (*CreateSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock()
	s, err := session.New(uuid.New().String(), cmd.TeacherID, cmd.Year, cmd.Division, cmd.Subject, now)
	if err != nil {
		return nil, err
	}

	if err := h.sessionRepo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create_session: %w", err)
	}

	if err := h.issuer.StartIssuing(ctx, s.ID, s.TeacherID); err != nil {
		// The session exists but cannot rotate tokens; roll back rather than
		// hand out a session nobody can scan into.
		if delErr := h.sessionRepo.Delete(ctx, s.ID); delErr != nil {
			h.logger.Error("rollback after issuer failure failed",
				"session_id", s.ID, "error", delErr)
		}
		return nil, fmt.Errorf("create_session: start issuing: %w", err)
	}

	token, err := h.issuer.CurrentToken(s.ID)
	if err != nil {
		return nil, fmt.Errorf("create_session: first token: %w", err)
	}

	h.logger.Info("session created",
		"session_id", s.ID,
		"teacher_id", s.TeacherID,
		"cohort", s.Cohort().String(),
		"subject", s.Subject,
	)
	h.publishCreated(s)

	return &CreateSessionResult{Session: s, Token: token}, nil
}

// publishCreated emits the session created event if a bus is wired.
func (h *CreateSessionHandler) publishCreated(s *session.Session) {
	if h.eventBus == nil {
		return
	}
	event := shared.SessionCreatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionCreated, s.ID),
		TeacherID: s.TeacherID,
		Year:      s.Year.Int(),
		Division:  s.Division.String(),
		Subject:   s.Subject,
	}
	if err := h.eventBus.Publish(event); err != nil {
		h.logger.Warn("failed to publish session created event",
			"session_id", s.ID, "error", err)
	}
}
