package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements session.Repository for PostgreSQL.
// Present-set mutations are linearized by the session_present primary key;
// ReplacePresent additionally takes a row lock on the session.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

// sessionColumns is the aggregate projection shared by every read query.
const sessionColumns = `
	s.id, s.teacher_id, s.year, s.division, s.subject, s.created_at,
	COALESCE(ARRAY_AGG(p.identity) FILTER (WHERE p.identity IS NOT NULL), '{}')
`

const sessionGroupBy = ` GROUP BY s.id, s.teacher_id, s.year, s.division, s.subject, s.created_at`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create persists a new session with an empty present-set.
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	query := `
		INSERT INTO sessions (id, teacher_id, year, division, subject, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.TeacherID,
		s.Year.Int(),
		string(s.Division),
		s.Subject,
		s.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("session", "Create", shared.ErrAlreadyExists, "session already exists")
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID returns a session by ID with its full present-set.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*session.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions s
		LEFT JOIN session_present p ON p.session_id = s.id
		WHERE s.id = $1
	` + sessionGroupBy

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanSession(row)
}

// Delete removes the session; present-set rows go with it via ON DELETE
// CASCADE. A second delete reports not-found.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrSessionNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Listing queries
// ─────────────────────────────────────────────────────────────────────────────

// ListRecentByTeacher returns the teacher's sessions created within the
// lookback window, newest first.
func (r *SessionRepository) ListRecentByTeacher(ctx context.Context, teacherID string, within time.Duration, now time.Time) ([]*session.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions s
		LEFT JOIN session_present p ON p.session_id = s.id
		WHERE s.teacher_id = $1 AND s.created_at >= $2
	` + sessionGroupBy + `
		ORDER BY s.created_at DESC
	`

	rows, err := r.conn.Query(ctx, query, teacherID, now.Add(-within))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sessions: %w", err)
	}
	defer rows.Close()

	return r.scanSessions(rows)
}

// ListForDay returns the teacher's sessions in [dayStart, dayEnd), oldest
// first.
func (r *SessionRepository) ListForDay(ctx context.Context, teacherID string, dayStart, dayEnd time.Time) ([]*session.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions s
		LEFT JOIN session_present p ON p.session_id = s.id
		WHERE s.teacher_id = $1 AND s.created_at >= $2 AND s.created_at < $3
	` + sessionGroupBy + `
		ORDER BY s.created_at ASC
	`

	rows, err := r.conn.Query(ctx, query, teacherID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query day sessions: %w", err)
	}
	defer rows.Close()

	return r.scanSessions(rows)
}

// ListByCohortSubject returns all sessions for (year, division, subject).
// Subject match is case-insensitive.
func (r *SessionRepository) ListByCohortSubject(ctx context.Context, cohort shared.Cohort, subject string) ([]*session.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions s
		LEFT JOIN session_present p ON p.session_id = s.id
		WHERE s.year = $1 AND s.division = $2 AND LOWER(s.subject) = LOWER($3)
	` + sessionGroupBy + `
		ORDER BY s.created_at ASC
	`

	rows, err := r.conn.Query(ctx, query, cohort.Year.Int(), string(cohort.Division), subject)
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort sessions: %w", err)
	}
	defer rows.Close()

	return r.scanSessions(rows)
}

// ListCohortSubjects returns the distinct subjects ever taught to the cohort.
func (r *SessionRepository) ListCohortSubjects(ctx context.Context, cohort shared.Cohort) ([]string, error) {
	query := `
		SELECT DISTINCT ON (LOWER(subject)) subject
		FROM sessions
		WHERE year = $1 AND division = $2
		ORDER BY LOWER(subject)
	`

	rows, err := r.conn.Query(ctx, query, cohort.Year.Int(), string(cohort.Division))
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort subjects: %w", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, subject)
	}

	return subjects, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Present-set mutations
// ─────────────────────────────────────────────────────────────────────────────

// AddPresent atomically inserts an identity into the present-set.
// The composite primary key makes the insert idempotent: a duplicate hits
// ON CONFLICT DO NOTHING and reports false, never an error.
func (r *SessionRepository) AddPresent(ctx context.Context, sessionID, identity string) (bool, error) {
	query := `
		INSERT INTO session_present (session_id, identity)
		VALUES ($1, $2)
		ON CONFLICT (session_id, identity) DO NOTHING
	`

	result, err := r.conn.Exec(ctx, query, sessionID, identity)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, shared.ErrSessionNotFound
		}
		return false, fmt.Errorf("failed to add present: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// RemovePresent atomically removes an identity from the present-set.
func (r *SessionRepository) RemovePresent(ctx context.Context, sessionID, identity string) (bool, error) {
	result, err := r.conn.Exec(ctx,
		"DELETE FROM session_present WHERE session_id = $1 AND identity = $2",
		sessionID, identity,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove present: %w", err)
	}

	if result.RowsAffected() == 1 {
		return true, nil
	}

	// Distinguish a no-op removal from a missing session.
	exists, err := r.exists(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, shared.ErrSessionNotFound
	}
	return false, nil
}

// ReplacePresent atomically replaces the whole present-set inside a
// transaction, holding the session row lock for the duration.
func (r *SessionRepository) ReplacePresent(ctx context.Context, sessionID string, identities []string) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, "SELECT id FROM sessions WHERE id = $1 FOR UPDATE", sessionID).Scan(&locked)
		if IsNoRows(err) {
			return shared.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM session_present WHERE session_id = $1", sessionID); err != nil {
			return fmt.Errorf("failed to clear present set: %w", err)
		}

		for _, identity := range identities {
			_, err := tx.Exec(ctx, `
				INSERT INTO session_present (session_id, identity)
				VALUES ($1, $2)
				ON CONFLICT (session_id, identity) DO NOTHING
			`, sessionID, identity)
			if err != nil {
				return fmt.Errorf("failed to insert present: %w", err)
			}
		}

		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

func (r *SessionRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)",
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return exists, nil
}

// scanSession scans a single session (with aggregated present-set) from a row.
func (r *SessionRepository) scanSession(row pgx.Row) (*session.Session, error) {
	s, err := scanSessionFields(row.Scan)
	if IsNoRows(err) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return s, nil
}

// scanSessions scans multiple sessions from rows.
func (r *SessionRepository) scanSessions(rows pgx.Rows) ([]*session.Session, error) {
	var sessions []*session.Session

	for rows.Next() {
		s, err := scanSessionFields(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return sessions, nil
}

func scanSessionFields(scan func(dest ...any) error) (*session.Session, error) {
	var s session.Session
	var year int
	var division string
	var present []string

	err := scan(
		&s.ID,
		&s.TeacherID,
		&year,
		&division,
		&s.Subject,
		&s.CreatedAt,
		&present,
	)
	if err != nil {
		return nil, err
	}

	s.Year = shared.Year(year)
	s.Division = shared.Division(division)
	s.Present = make(map[string]bool, len(present))
	for _, identity := range present {
		s.Present[identity] = true
	}

	return &s, nil
}
