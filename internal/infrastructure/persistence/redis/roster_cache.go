package redis

import (
	"context"
	"errors"

	"github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// RosterCache implements roster.Cache using the generic Redis Cache.
// A cache failure here is never fatal: the roster client falls back to the
// upstream store on any error, so all methods degrade to a miss.
type RosterCache struct {
	cache *Cache
}

// NewRosterCache creates a new RosterCache.
func NewRosterCache(cache *Cache) *RosterCache {
	return &RosterCache{cache: cache}
}

// cachedEntry is the stored form of a roster entry.
type cachedEntry struct {
	Identity string   `json:"identity"`
	Name     string   `json:"name"`
	Subjects []string `json:"subjects"`
}

// GetRoster returns the cached roster for a cohort, or ErrCacheMiss.
func (r *RosterCache) GetRoster(ctx context.Context, cohort shared.Cohort) ([]roster.Entry, error) {
	var stored []cachedEntry
	if err := r.cache.Get(ctx, RosterKey(cohort.String()), &stored); err != nil {
		return nil, err
	}

	entries := make([]roster.Entry, len(stored))
	for i, e := range stored {
		entries[i] = roster.Entry{
			Identity: e.Identity,
			Name:     e.Name,
			Subjects: e.Subjects,
		}
	}
	return entries, nil
}

// SetRoster stores a roster for a cohort with the default roster TTL.
func (r *RosterCache) SetRoster(ctx context.Context, cohort shared.Cohort, entries []roster.Entry) error {
	stored := make([]cachedEntry, len(entries))
	for i, e := range entries {
		stored[i] = cachedEntry{
			Identity: e.Identity,
			Name:     e.Name,
			Subjects: e.Subjects,
		}
	}
	return r.cache.Set(ctx, RosterKey(cohort.String()), stored, TTLRosterCache)
}

// Invalidate drops the cached roster for a cohort.
func (r *RosterCache) Invalidate(ctx context.Context, cohort shared.Cohort) error {
	return r.cache.Delete(ctx, RosterKey(cohort.String()))
}

// IsMiss reports whether the error is a cache miss rather than a failure.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
