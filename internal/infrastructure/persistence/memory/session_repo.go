// Package memory provides an in-memory implementation of the session store.
// Used in development mode (no DATABASE_URL) and by tests. Mutations to a
// single session are linearized by a per-session mutex; different sessions
// never contend.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// SessionRepository is an in-memory session.Repository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// entry pairs a stored session with its own lock so present-set mutations on
// one session do not block the others.
type entry struct {
	mu sync.Mutex
	s  *session.Session
}

// NewSessionRepository creates an empty in-memory session store.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*entry)}
}

// Create persists a new session.
func (r *SessionRepository) Create(_ context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return shared.NewDomainError("session", "Create", shared.ErrAlreadyExists, "session already exists")
	}
	r.sessions[s.ID] = &entry{s: s.Clone()}
	return nil
}

// GetByID returns a clone of the stored session.
func (r *SessionRepository) GetByID(_ context.Context, id string) (*session.Session, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Clone(), nil
}

// Delete removes the session. A second delete reports not-found.
func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return shared.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// ListRecentByTeacher returns the teacher's sessions created within the
// lookback window, newest first.
func (r *SessionRepository) ListRecentByTeacher(_ context.Context, teacherID string, within time.Duration, now time.Time) ([]*session.Session, error) {
	cutoff := now.Add(-within)
	out := r.collect(func(s *session.Session) bool {
		return s.TeacherID == teacherID && !s.CreatedAt.Before(cutoff)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListForDay returns the teacher's sessions in [dayStart, dayEnd), oldest
// first.
func (r *SessionRepository) ListForDay(_ context.Context, teacherID string, dayStart, dayEnd time.Time) ([]*session.Session, error) {
	out := r.collect(func(s *session.Session) bool {
		return s.TeacherID == teacherID && !s.CreatedAt.Before(dayStart) && s.CreatedAt.Before(dayEnd)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListByCohortSubject returns all sessions for (year, division, subject).
// Subject match is case-insensitive, mirroring how record screens query.
func (r *SessionRepository) ListByCohortSubject(_ context.Context, cohort shared.Cohort, subject string) ([]*session.Session, error) {
	out := r.collect(func(s *session.Session) bool {
		return s.Year == cohort.Year && s.Division == cohort.Division && strings.EqualFold(s.Subject, subject)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListCohortSubjects returns the distinct subjects ever taught to the cohort.
func (r *SessionRepository) ListCohortSubjects(_ context.Context, cohort shared.Cohort) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]string)
	for _, e := range r.sessions {
		e.mu.Lock()
		if e.s.Year == cohort.Year && e.s.Division == cohort.Division {
			seen[strings.ToLower(e.s.Subject)] = e.s.Subject
		}
		e.mu.Unlock()
	}
	subjects := make([]string, 0, len(seen))
	for _, subject := range seen {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// AddPresent atomically inserts an identity into the present-set.
func (r *SessionRepository) AddPresent(_ context.Context, sessionID, identity string) (bool, error) {
	e, err := r.entry(sessionID)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.MarkPresent(identity), nil
}

// RemovePresent atomically removes an identity from the present-set.
func (r *SessionRepository) RemovePresent(_ context.Context, sessionID, identity string) (bool, error) {
	e, err := r.entry(sessionID)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.MarkAbsent(identity), nil
}

// ReplacePresent atomically replaces the whole present-set.
func (r *SessionRepository) ReplacePresent(_ context.Context, sessionID string, identities []string) error {
	e, err := r.entry(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Present = make(map[string]bool, len(identities))
	for _, id := range identities {
		e.s.Present[id] = true
	}
	return nil
}

func (r *SessionRepository) entry(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	return e, nil
}

func (r *SessionRepository) collect(match func(*session.Session) bool) []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*session.Session
	for _, e := range r.sessions {
		e.mu.Lock()
		if match(e.s) {
			out = append(out, e.s.Clone())
		}
		e.mu.Unlock()
	}
	return out
}
