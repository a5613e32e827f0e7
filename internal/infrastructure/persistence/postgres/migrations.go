// Package postgres implements the PostgreSQL session store for Attendance Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create sessions and present-set tables
-- Version: 001

-- One row per attendance session (teaching event)
CREATE TABLE IF NOT EXISTS sessions (
    id UUID PRIMARY KEY,
    teacher_id VARCHAR(100) NOT NULL,
    year SMALLINT NOT NULL,
    division CHAR(1) NOT NULL,
    subject VARCHAR(120) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_year CHECK (year BETWEEN 1 AND 4),
    CONSTRAINT valid_division CHECK (division ~ '^[A-Z]$'),
    CONSTRAINT nonempty_subject CHECK (length(trim(subject)) > 0)
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_sessions_teacher_created ON sessions(teacher_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_cohort ON sessions(year, division);
CREATE INDEX IF NOT EXISTS idx_sessions_cohort_subject ON sessions(year, division, LOWER(subject));

-- Present-set membership. The composite primary key makes inserts naturally
-- idempotent: a re-scan hits ON CONFLICT DO NOTHING and never double counts.
CREATE TABLE IF NOT EXISTS session_present (
    session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    identity VARCHAR(100) NOT NULL,
    marked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (session_id, identity)
);

CREATE INDEX IF NOT EXISTS idx_session_present_identity ON session_present(identity);
`

const migration001Down = `
DROP TABLE IF EXISTS session_present;
DROP TABLE IF EXISTS sessions;
`
