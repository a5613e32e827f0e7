package session

import (
	"context"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// The Session Store is the only mutable shared resource in the system.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines the contract of the Session Store.
//
// All mutations to a single session's present-set must be linearized by the
// implementation (row lock, per-session mutex, or transaction); mutations to
// different sessions may proceed fully in parallel.
type Repository interface {
	// Create persists a new session.
	// Returns shared.ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, s *Session) error

	// GetByID returns a session by ID.
	// Returns shared.ErrSessionNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Session, error)

	// Delete removes the session and all derived records.
	// A second delete reports shared.ErrSessionNotFound, which callers treat
	// as already-satisfied.
	Delete(ctx context.Context, id string) error

	// ListRecentByTeacher returns sessions created by the teacher within the
	// lookback window, newest first.
	ListRecentByTeacher(ctx context.Context, teacherID string, within time.Duration, now time.Time) ([]*Session, error)

	// ListForDay returns the teacher's sessions created on the given calendar
	// day, oldest first. Used by the record screens.
	ListForDay(ctx context.Context, teacherID string, dayStart, dayEnd time.Time) ([]*Session, error)

	// ListByCohortSubject returns all sessions matching (year, division,
	// subject), the input of per-subject aggregation.
	ListByCohortSubject(ctx context.Context, cohort shared.Cohort, subject string) ([]*Session, error)

	// ListCohortSubjects returns the distinct subjects ever taught to the
	// cohort, the union used by cohort-wide summaries.
	ListCohortSubjects(ctx context.Context, cohort shared.Cohort) ([]string, error)

	// AddPresent atomically inserts an identity into the session's
	// present-set. Returns true if newly added, false if it was already
	// there. The insert is idempotent - never an error, never a double count.
	AddPresent(ctx context.Context, sessionID, identity string) (bool, error)

	// RemovePresent atomically removes an identity from the present-set.
	// Returns true if the identity was present before.
	RemovePresent(ctx context.Context, sessionID, identity string) (bool, error)

	// ReplacePresent atomically replaces the whole present-set. Used by the
	// mark-all operations, which are computed against the roster at call
	// time.
	ReplacePresent(ctx context.Context, sessionID string, identities []string) error
}
