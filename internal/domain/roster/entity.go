// Package roster defines the read-only boundary to the roster store: the
// authoritative enrolled-identity list per (year, division). The store itself
// is an external collaborator; this package only models the fields consumed.
package roster

import (
	"context"
	"strings"

	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// Entry is one enrolled identity within a cohort roster.
type Entry struct {
	// Identity is the opaque identity string (e.g. a university roll number).
	Identity string

	// Name is the display name, used to sort aggregate rows.
	Name string

	// Subjects lists the subjects the identity is enrolled in. Attendance for
	// a subject outside this list is reported as not-applicable, never as a
	// misleading 0%.
	Subjects []string
}

// EnrolledIn reports whether the entry is enrolled in the subject.
// Subject comparison is case-insensitive, matching the session store.
func (e Entry) EnrolledIn(subject string) bool {
	for _, s := range e.Subjects {
		if strings.EqualFold(s, subject) {
			return true
		}
	}
	return false
}

// IdentityRecord is the per-identity view returned by the roster store.
type IdentityRecord struct {
	Identity string
	Name     string
	Year     shared.Year
	Division shared.Division
	Subjects []string
}

// EnrolledIn reports whether the record is enrolled in the subject.
func (r IdentityRecord) EnrolledIn(subject string) bool {
	for _, s := range r.Subjects {
		if strings.EqualFold(s, subject) {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// PROVIDER INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Provider is the read-only contract consumed from the roster store.
// Implementations live in infrastructure/external; loose upstream payloads
// are normalized into these strict records at that boundary, once.
type Provider interface {
	// GetRoster returns the enrolled identities for a cohort.
	// Returns shared.ErrRosterUnavailable when the upstream cannot be
	// reached; batch aggregation recovers from that per-identity.
	GetRoster(ctx context.Context, cohort shared.Cohort) ([]Entry, error)

	// GetIdentityRecord returns the cohort and enrolled subjects for one
	// identity. Returns shared.ErrIdentityNotFound for unknown identities.
	GetIdentityRecord(ctx context.Context, identity string) (IdentityRecord, error)
}

// Cache is a read-through cache for cohort rosters, typically Redis-backed.
// A cache failure is never fatal - callers fall back to the Provider.
type Cache interface {
	// GetRoster returns the cached roster for a cohort, or a miss error.
	GetRoster(ctx context.Context, cohort shared.Cohort) ([]Entry, error)

	// SetRoster stores a roster for a cohort.
	SetRoster(ctx context.Context, cohort shared.Cohort, entries []Entry) error

	// Invalidate drops the cached roster for a cohort.
	Invalidate(ctx context.Context, cohort shared.Cohort) error
}
