package session

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOKENS
//
// A token is an ephemeral, session-scoped credential surfaced as a scannable
// code. Validity is derived purely from recency relative to the session's
// live token history - tokens are never persisted.
//
// Known weakness: the payload is opaque but unsigned (trust-by-possession,
// matching the reference client). Anyone who has seen a payload can replay it
// within the acceptance window. HMAC binding is deliberately not applied here.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// TokenType tags the payload so scanners can ignore unrelated codes.
	TokenType = "ATTENDANCE_QR"

	// DefaultTokenPeriod is how often a fresh token is issued while a
	// session's issuing view is open.
	DefaultTokenPeriod = 5 * time.Second

	// DefaultWindowSize is the acceptance window W: the current token plus
	// the previous W-1 remain valid; anything older is rejected even if
	// well-formed.
	DefaultWindowSize = 3
)

// Token is the opaque value relayed back by a scanner.
type Token string

// TokenPayload is the structure embedded in a token.
type TokenPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	TeacherID string `json:"teacherId"`
	IssuedAt  int64  `json:"issuedAt"` // unix milliseconds
}

// NewTokenPayload builds a payload for the given session at the given instant.
func NewTokenPayload(sessionID, teacherID string, issuedAt time.Time) TokenPayload {
	return TokenPayload{
		Type:      TokenType,
		SessionID: sessionID,
		TeacherID: teacherID,
		IssuedAt:  issuedAt.UnixMilli(),
	}
}

// Encode serializes the payload into an opaque token.
func (p TokenPayload) Encode() Token {
	raw, _ := json.Marshal(p)
	return Token(base64.StdEncoding.EncodeToString(raw))
}

// DecodeToken parses an opaque token back into its payload.
// Returns ErrTokenMalformed for anything that is not a well-formed
// attendance payload; a malformed token never mutates state.
func DecodeToken(t Token) (TokenPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(string(t))
	if err != nil {
		return TokenPayload{}, shared.ErrTokenMalformed
	}
	var p TokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return TokenPayload{}, shared.ErrTokenMalformed
	}
	if p.Type != TokenType || p.SessionID == "" {
		return TokenPayload{}, shared.ErrTokenMalformed
	}
	return p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Acceptance window
// ─────────────────────────────────────────────────────────────────────────────

// TokenWindow holds the last W issued tokens for a session. It is a plain
// value type; callers provide their own synchronization (token generation is
// single-writer per issuing context).
type TokenWindow struct {
	tokens []Token
	size   int
}

// NewTokenWindow creates a window bounded to the given size.
// A non-positive size falls back to DefaultWindowSize.
func NewTokenWindow(size int) *TokenWindow {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &TokenWindow{size: size}
}

// Append adds a freshly issued token, dropping the oldest once the window
// is full.
func (w *TokenWindow) Append(t Token) {
	w.tokens = append(w.tokens, t)
	if len(w.tokens) > w.size {
		w.tokens = w.tokens[len(w.tokens)-w.size:]
	}
}

// Contains reports whether the token is within the acceptance window.
func (w *TokenWindow) Contains(t Token) bool {
	for _, issued := range w.tokens {
		if issued == t {
			return true
		}
	}
	return false
}

// Current returns the most recently issued token, or "" if none.
func (w *TokenWindow) Current() Token {
	if len(w.tokens) == 0 {
		return ""
	}
	return w.tokens[len(w.tokens)-1]
}

// Len returns the number of tokens currently in the window.
func (w *TokenWindow) Len() int {
	return len(w.tokens)
}

// Clear drops the whole window. Used when an issuing context ends - a closed
// session cannot be scanned into, even with a replayed token.
func (w *TokenWindow) Clear() {
	w.tokens = nil
}
