package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/persistence/memory"
)

// seedSubjectSessions creates n sessions for (3A, subject) and marks the
// identity present in the first `attended` of them.
func seedSubjectSessions(t *testing.T, repo *memory.SessionRepository, subject string, n, attended int, identity string) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := subject + "-" + string(rune('a'+i))
		s, err := session.New(id, "teacher-1", 3, "A", subject, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, s))
		if i < attended {
			_, err := repo.AddPresent(ctx, id, identity)
			require.NoError(t, err)
		}
	}
}

func identityProvider() *stubProvider {
	return &stubProvider{
		records: map[string]roster.IdentityRecord{
			"stu-1": {
				Identity: "stu-1",
				Name:     "Asel",
				Year:     3,
				Division: "A",
				Subjects: []string{"Mathematics", "Physics"},
			},
		},
	}
}

func TestIdentitySummary_Percentages(t *testing.T) {
	repo := memory.NewSessionRepository()
	seedSubjectSessions(t, repo, "Mathematics", 3, 2, "stu-1")
	seedSubjectSessions(t, repo, "Physics", 3, 1, "stu-1")
	h := NewIdentitySummaryHandler(repo, identityProvider(), nil)

	view, err := h.Handle(context.Background(), IdentitySummaryQuery{Identity: "stu-1"})
	require.NoError(t, err)

	assert.Equal(t, "stu-1", view.Identity)
	assert.Equal(t, 3, view.Year)
	assert.Equal(t, "A", view.Division)
	require.Len(t, view.Subjects, 2)

	maths := view.Subjects[0]
	assert.Equal(t, "Mathematics", maths.Subject)
	assert.True(t, maths.HasData)
	assert.Equal(t, 2, maths.Attended)
	assert.Equal(t, 3, maths.Total)
	assert.Equal(t, 67, maths.Percentage)

	physics := view.Subjects[1]
	assert.Equal(t, "Physics", physics.Subject)
	assert.Equal(t, 1, physics.Attended)
	assert.Equal(t, 33, physics.Percentage)
}

func TestIdentitySummary_NoSessionsYet(t *testing.T) {
	repo := memory.NewSessionRepository()
	h := NewIdentitySummaryHandler(repo, identityProvider(), nil)

	view, err := h.Handle(context.Background(), IdentitySummaryQuery{Identity: "stu-1"})
	require.NoError(t, err)
	require.Len(t, view.Subjects, 2)

	// No sessions means no data, never a fake 0%.
	for _, subject := range view.Subjects {
		assert.False(t, subject.HasData)
		assert.False(t, subject.NotApplicable)
		assert.Equal(t, 0, subject.Total)
	}
}

func TestIdentitySummary_NotApplicableSubject(t *testing.T) {
	repo := memory.NewSessionRepository()
	// Biology was taught to 3A but stu-1 is not enrolled in it.
	seedSubjectSessions(t, repo, "Biology", 2, 0, "stu-2")
	h := NewIdentitySummaryHandler(repo, identityProvider(), nil)

	view, err := h.Handle(context.Background(), IdentitySummaryQuery{Identity: "stu-1"})
	require.NoError(t, err)
	require.Len(t, view.Subjects, 3)

	assert.Equal(t, "Biology", view.Subjects[0].Subject)
	assert.True(t, view.Subjects[0].NotApplicable)
	assert.False(t, view.Subjects[0].HasData)
}

func TestIdentitySummary_RequestedSubjects(t *testing.T) {
	repo := memory.NewSessionRepository()
	seedSubjectSessions(t, repo, "Mathematics", 2, 1, "stu-1")
	h := NewIdentitySummaryHandler(repo, identityProvider(), nil)

	// Chemistry was never taught to 3A and stu-1 is not enrolled in it; asking
	// about it still yields a row, flagged not-applicable.
	view, err := h.Handle(context.Background(), IdentitySummaryQuery{
		Identity: "stu-1",
		Subjects: []string{"Chemistry", "mathematics"},
	})
	require.NoError(t, err)
	require.Len(t, view.Subjects, 3)

	chemistry := view.Subjects[0]
	assert.Equal(t, "Chemistry", chemistry.Subject)
	assert.True(t, chemistry.NotApplicable)
	assert.False(t, chemistry.HasData)

	// A requested spelling of an enrolled subject does not duplicate the row.
	maths := view.Subjects[1]
	assert.Equal(t, "Mathematics", maths.Subject)
	assert.True(t, maths.HasData)
	assert.Equal(t, 1, maths.Attended)
	assert.Equal(t, 2, maths.Total)
}

func TestIdentitySummary_Errors(t *testing.T) {
	repo := memory.NewSessionRepository()
	h := NewIdentitySummaryHandler(repo, identityProvider(), nil)

	_, err := h.Handle(context.Background(), IdentitySummaryQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidIdentity)

	_, err = h.Handle(context.Background(), IdentitySummaryQuery{Identity: "stu-unknown"})
	assert.ErrorIs(t, err, shared.ErrIdentityNotFound)

	noProvider := NewIdentitySummaryHandler(repo, nil, nil)
	_, err = noProvider.Handle(context.Background(), IdentitySummaryQuery{Identity: "stu-1"})
	assert.ErrorIs(t, err, shared.ErrRosterUnavailable)
}

func TestRoundPercent(t *testing.T) {
	tests := []struct {
		attended, total, want int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{1, 8, 13},
		{3, 3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundPercent(tt.attended, tt.total), "%d/%d", tt.attended, tt.total)
	}
}

func TestUnionSubjects(t *testing.T) {
	got := unionSubjects(
		[]string{"Mathematics", "physics", ""},
		[]string{"PHYSICS", "Biology", "Mathematics"},
	)
	// Case-insensitive dedup, first spelling wins, sorted.
	assert.Equal(t, []string{"Biology", "Mathematics", "physics"}, got)
}
