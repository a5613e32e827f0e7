package query

import (
	"context"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECENT SESSIONS QUERY
// "What did I just open?" - the teacher's landing view after a restart or an
// accidental back-swipe. Also the per-day listing behind the record screens.
// ══════════════════════════════════════════════════════════════════════════════

// RecentSessionsQuery asks for a teacher's recently created sessions.
type RecentSessionsQuery struct {
	// TeacherID is the owning teacher.
	TeacherID string

	// Within is the lookback window; zero falls back to the default.
	Within time.Duration
}

// RecentSessionsHandler answers recent-session lookups.
type RecentSessionsHandler struct {
	sessionRepo session.Repository
	clock       func() time.Time
}

// NewRecentSessionsHandler creates a new RecentSessionsHandler.
func NewRecentSessionsHandler(sessionRepo session.Repository) *RecentSessionsHandler {
	return &RecentSessionsHandler{
		sessionRepo: sessionRepo,
		clock:       time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (h *RecentSessionsHandler) WithClock(clock func() time.Time) *RecentSessionsHandler {
	h.clock = clock
	return h
}

// Handle returns the teacher's sessions created within the window, newest
// first. An unknown teacher simply has no sessions.
func (h *RecentSessionsHandler) Handle(ctx context.Context, q RecentSessionsQuery) ([]SessionView, error) {
	within := q.Within
	if within <= 0 {
		within = session.DefaultRecentWindow
	}

	now := h.clock()
	sessions, err := h.sessionRepo.ListRecentByTeacher(ctx, q.TeacherID, within, now)
	if err != nil {
		return nil, err
	}

	return projectViews(sessions, now), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAY LISTING QUERY
// ══════════════════════════════════════════════════════════════════════════════

// DayListingQuery asks for a teacher's sessions on one campus calendar day.
type DayListingQuery struct {
	// TeacherID is the owning teacher.
	TeacherID string

	// Day is any instant within the requested day; bounds are computed in
	// campus time.
	Day time.Time
}

// DayListingHandler answers per-day session listings.
type DayListingHandler struct {
	sessionRepo session.Repository
	clock       func() time.Time
}

// NewDayListingHandler creates a new DayListingHandler.
func NewDayListingHandler(sessionRepo session.Repository) *DayListingHandler {
	return &DayListingHandler{
		sessionRepo: sessionRepo,
		clock:       time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (h *DayListingHandler) WithClock(clock func() time.Time) *DayListingHandler {
	h.clock = clock
	return h
}

// Handle returns the teacher's sessions for the day, oldest first. Day
// boundaries follow the campus timezone, so a session opened at 23:55 campus
// time lands on that day regardless of the server's zone.
func (h *DayListingHandler) Handle(ctx context.Context, q DayListingQuery) ([]SessionView, error) {
	day := q.Day
	if day.IsZero() {
		day = h.clock()
	}

	dayStart, dayEnd := timeutil.DayBounds(day)
	sessions, err := h.sessionRepo.ListForDay(ctx, q.TeacherID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	return projectViews(sessions, h.clock()), nil
}

// projectViews maps sessions onto their read models.
func projectViews(sessions []*session.Session, now time.Time) []SessionView {
	views := make([]SessionView, len(sessions))
	for i, s := range sessions {
		views[i] = NewSessionView(s, now)
	}
	return views
}
