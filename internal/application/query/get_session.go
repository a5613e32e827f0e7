// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SESSION QUERY
// The session screen view: metadata, the present-set, and whether the session
// can still be edited.
// ══════════════════════════════════════════════════════════════════════════════

// SessionView is the read model for one session.
type SessionView struct {
	ID           string    `json:"id"`
	TeacherID    string    `json:"teacherId"`
	Year         int       `json:"year"`
	Division     string    `json:"division"`
	Subject      string    `json:"subject"`
	CreatedAt    time.Time `json:"createdAt"`
	Present      []string  `json:"present"`
	PresentCount int       `json:"presentCount"`
	Editable     bool      `json:"editable"`
	EditDeadline time.Time `json:"editDeadline"`
}

// NewSessionView projects a session onto its read model.
func NewSessionView(s *session.Session, now time.Time) SessionView {
	return SessionView{
		ID:           s.ID,
		TeacherID:    s.TeacherID,
		Year:         s.Year.Int(),
		Division:     s.Division.String(),
		Subject:      s.Subject,
		CreatedAt:    s.CreatedAt,
		Present:      s.PresentIDs(),
		PresentCount: s.PresentCount(),
		Editable:     s.Editable(now),
		EditDeadline: s.EditDeadline(),
	}
}

// GetSessionHandler answers single-session lookups.
type GetSessionHandler struct {
	sessionRepo session.Repository
	clock       func() time.Time
}

// NewGetSessionHandler creates a new GetSessionHandler.
func NewGetSessionHandler(sessionRepo session.Repository) *GetSessionHandler {
	return &GetSessionHandler{
		sessionRepo: sessionRepo,
		clock:       time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (h *GetSessionHandler) WithClock(clock func() time.Time) *GetSessionHandler {
	h.clock = clock
	return h
}

// Handle returns the session view, or shared.ErrSessionNotFound.
func (h *GetSessionHandler) Handle(ctx context.Context, sessionID string) (*SessionView, error) {
	s, err := h.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	view := NewSessionView(s, h.clock())
	return &view, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CURRENT TOKEN QUERY
// The session screen polls this to keep the rendered code fresh.
// ══════════════════════════════════════════════════════════════════════════════

// TokenSource is the slice of the issuer consumed by token queries.
type TokenSource interface {
	CurrentToken(sessionID string) (session.Token, error)
}

// TokenView is the read model for the current token.
type TokenView struct {
	SessionID string        `json:"sessionId"`
	Token     session.Token `json:"token"`
}

// CurrentTokenHandler answers current-token lookups.
type CurrentTokenHandler struct {
	sessionRepo session.Repository
	tokens      TokenSource
}

// NewCurrentTokenHandler creates a new CurrentTokenHandler.
func NewCurrentTokenHandler(sessionRepo session.Repository, tokens TokenSource) *CurrentTokenHandler {
	return &CurrentTokenHandler{
		sessionRepo: sessionRepo,
		tokens:      tokens,
	}
}

// Handle returns the freshest token for a session. The session must exist;
// a session without an issuing context reports shared.ErrSessionClosed.
func (h *CurrentTokenHandler) Handle(ctx context.Context, sessionID string) (*TokenView, error) {
	if _, err := h.sessionRepo.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}

	token, err := h.tokens.CurrentToken(sessionID)
	if err != nil {
		return nil, err
	}

	return &TokenView{SessionID: sessionID, Token: token}, nil
}
