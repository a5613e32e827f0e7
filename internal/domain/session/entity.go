// Package session contains the domain model of the attendance session
// protocol. This is the core of the business logic - no external dependencies.
package session

import (
	"sort"
	"strings"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// EditWindow is how long after creation a session accepts manual edits.
	// Once it elapses the session transitions Editable -> Locked; there is no
	// reverse transition and no explicit unlock.
	EditWindow = time.Hour

	// DefaultRecentWindow is the default lookback for "recent sessions for
	// teacher" queries.
	DefaultRecentWindow = time.Hour
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session represents one teaching event for a (year, division, subject,
// teacher) tuple, with a present-set and a time-bounded edit window.
type Session struct {
	// ID is the opaque unique identifier (UUID in string form).
	ID string

	// TeacherID identifies the teacher who opened the session.
	TeacherID string

	// Year is the academic year of the cohort (1-4).
	Year shared.Year

	// Division is the cohort division (single uppercase letter).
	Division shared.Division

	// Subject is the subject being taught.
	Subject string

	// CreatedAt is when the session was opened. The edit-lock deadline is
	// fixed relative to this instant.
	CreatedAt time.Time

	// Present is the set of identities marked present. Insertion order is
	// irrelevant; membership is what matters.
	Present map[string]bool
}

// New creates a session with an empty present-set.
// Returns a validation error if any required field is absent or out of range.
func New(id, teacherID string, year shared.Year, division shared.Division, subject string, now time.Time) (*Session, error) {
	s := &Session{
		ID:        id,
		TeacherID: strings.TrimSpace(teacherID),
		Year:      year,
		Division:  division,
		Subject:   strings.TrimSpace(subject),
		CreatedAt: now,
		Present:   make(map[string]bool),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the session's invariants.
func (s *Session) Validate() error {
	if s.TeacherID == "" {
		return shared.ErrInvalidTeacherID
	}
	if !s.Year.IsValid() {
		return shared.ErrInvalidYear
	}
	if !s.Division.IsValid() {
		return shared.ErrInvalidDivision
	}
	if s.Subject == "" {
		return shared.ErrInvalidSubject
	}
	return nil
}

// Cohort returns the (year, division) pair this session was taught to.
func (s *Session) Cohort() shared.Cohort {
	return shared.NewCohort(s.Year, s.Division)
}

// ─────────────────────────────────────────────────────────────────────────────
// Present-set operations
// ─────────────────────────────────────────────────────────────────────────────

// MarkPresent adds an identity to the present-set. Returns true if the
// identity was newly added, false if it was already present (a no-op, never
// an error - re-scanning must not double count).
func (s *Session) MarkPresent(identity string) bool {
	if s.Present == nil {
		s.Present = make(map[string]bool)
	}
	if s.Present[identity] {
		return false
	}
	s.Present[identity] = true
	return true
}

// MarkAbsent removes an identity from the present-set. Returns true if the
// identity was present before, false if the removal was a no-op.
// A subsequent scan by the same identity can re-add them.
func (s *Session) MarkAbsent(identity string) bool {
	if !s.Present[identity] {
		return false
	}
	delete(s.Present, identity)
	return true
}

// IsPresent reports whether the identity is in the present-set.
func (s *Session) IsPresent(identity string) bool {
	return s.Present[identity]
}

// PresentIDs returns the present-set as a sorted slice for deterministic
// output.
func (s *Session) PresentIDs() []string {
	ids := make([]string, 0, len(s.Present))
	for id := range s.Present {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PresentCount returns the size of the present-set.
func (s *Session) PresentCount() int {
	return len(s.Present)
}

// ─────────────────────────────────────────────────────────────────────────────
// Edit-lock policy
// ─────────────────────────────────────────────────────────────────────────────

// Editable reports whether manual corrections are still permitted at the
// given instant. The boundary is inclusive: an edit exactly at the deadline
// is still allowed.
func (s *Session) Editable(now time.Time) bool {
	return !now.After(s.EditDeadline())
}

// EditDeadline returns the instant after which manual edits are rejected.
func (s *Session) EditDeadline() time.Time {
	return s.CreatedAt.Add(EditWindow)
}

// CheckEditable returns ErrEditWindowExpired once the session is locked.
// Reads and session creation are unaffected by the lock.
func (s *Session) CheckEditable(now time.Time) error {
	if !s.Editable(now) {
		return shared.ErrEditWindowExpired
	}
	return nil
}

// Clone returns a deep copy of the session. Repositories hand out clones so
// callers cannot mutate stored state without going through the store.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Present = make(map[string]bool, len(s.Present))
	for id := range s.Present {
		cp.Present[id] = true
	}
	return &cp
}
