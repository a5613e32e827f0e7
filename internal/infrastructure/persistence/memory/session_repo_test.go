package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

func mustSession(t *testing.T, id, teacherID string, year shared.Year, division shared.Division, subject string, createdAt time.Time) *session.Session {
	t.Helper()
	s, err := session.New(id, teacherID, year, division, subject, createdAt)
	require.NoError(t, err)
	return s
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	s := mustSession(t, "sess-1", "teacher-1", 3, "A", "Mathematics", time.Now())

	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", got.TeacherID)
	assert.Equal(t, "Mathematics", got.Subject)

	// The store hands out clones; mutating the result must not leak back.
	got.MarkPresent("stu-1")
	again, err := repo.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.PresentCount())
}

func TestSessionRepository_Create_Duplicate(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	s := mustSession(t, "sess-1", "teacher-1", 3, "A", "Mathematics", time.Now())

	require.NoError(t, repo.Create(ctx, s))
	assert.ErrorIs(t, repo.Create(ctx, s), shared.ErrAlreadyExists)
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	repo := NewSessionRepository()
	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSessionRepository_Delete(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	s := mustSession(t, "sess-1", "teacher-1", 3, "A", "Mathematics", time.Now())
	require.NoError(t, repo.Create(ctx, s))

	require.NoError(t, repo.Delete(ctx, "sess-1"))

	_, err := repo.GetByID(ctx, "sess-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// The second delete reports not-found.
	assert.ErrorIs(t, repo.Delete(ctx, "sess-1"), shared.ErrNotFound)
}

func TestSessionRepository_ListRecentByTeacher(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, mustSession(t, "old", "teacher-1", 3, "A", "Maths", now.Add(-2*time.Hour))))
	require.NoError(t, repo.Create(ctx, mustSession(t, "mid", "teacher-1", 3, "A", "Maths", now.Add(-30*time.Minute))))
	require.NoError(t, repo.Create(ctx, mustSession(t, "new", "teacher-1", 3, "A", "Maths", now.Add(-5*time.Minute))))
	require.NoError(t, repo.Create(ctx, mustSession(t, "other", "teacher-2", 3, "A", "Maths", now.Add(-5*time.Minute))))

	out, err := repo.ListRecentByTeacher(ctx, "teacher-1", time.Hour, now)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].ID)
	assert.Equal(t, "mid", out[1].ID)
}

func TestSessionRepository_ListForDay(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	dayStart := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	require.NoError(t, repo.Create(ctx, mustSession(t, "b", "teacher-1", 3, "A", "Maths", dayStart.Add(11*time.Hour))))
	require.NoError(t, repo.Create(ctx, mustSession(t, "a", "teacher-1", 3, "A", "Maths", dayStart.Add(9*time.Hour))))
	require.NoError(t, repo.Create(ctx, mustSession(t, "yesterday", "teacher-1", 3, "A", "Maths", dayStart.Add(-time.Hour))))
	require.NoError(t, repo.Create(ctx, mustSession(t, "tomorrow", "teacher-1", 3, "A", "Maths", dayEnd)))

	out, err := repo.ListForDay(ctx, "teacher-1", dayStart, dayEnd)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestSessionRepository_ListByCohortSubject_CaseInsensitive(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, mustSession(t, "s1", "teacher-1", 3, "A", "Maths", now)))
	require.NoError(t, repo.Create(ctx, mustSession(t, "s2", "teacher-1", 3, "A", "maths", now.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, mustSession(t, "s3", "teacher-1", 3, "B", "Maths", now)))
	require.NoError(t, repo.Create(ctx, mustSession(t, "s4", "teacher-1", 3, "A", "Physics", now)))

	out, err := repo.ListByCohortSubject(ctx, shared.NewCohort(3, "A"), "MATHS")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "s1", out[0].ID)
	assert.Equal(t, "s2", out[1].ID)
}

func TestSessionRepository_ListCohortSubjects(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, mustSession(t, "s1", "teacher-1", 3, "A", "Physics", now)))
	require.NoError(t, repo.Create(ctx, mustSession(t, "s2", "teacher-1", 3, "A", "physics", now)))
	require.NoError(t, repo.Create(ctx, mustSession(t, "s3", "teacher-2", 3, "A", "Maths", now)))
	require.NoError(t, repo.Create(ctx, mustSession(t, "s4", "teacher-1", 2, "A", "Biology", now)))

	subjects, err := repo.ListCohortSubjects(ctx, shared.NewCohort(3, "A"))
	require.NoError(t, err)
	assert.Len(t, subjects, 2)
	assert.Contains(t, subjects, "Maths")
}

func TestSessionRepository_PresentSet(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, mustSession(t, "sess-1", "teacher-1", 3, "A", "Maths", time.Now())))

	added, err := repo.AddPresent(ctx, "sess-1", "stu-1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.AddPresent(ctx, "sess-1", "stu-1")
	require.NoError(t, err)
	assert.False(t, added)

	removed, err := repo.RemovePresent(ctx, "sess-1", "stu-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemovePresent(ctx, "sess-1", "stu-1")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.AddPresent(ctx, "missing", "stu-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSessionRepository_ReplacePresent(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, mustSession(t, "sess-1", "teacher-1", 3, "A", "Maths", time.Now())))

	_, err := repo.AddPresent(ctx, "sess-1", "stu-1")
	require.NoError(t, err)

	require.NoError(t, repo.ReplacePresent(ctx, "sess-1", []string{"stu-2", "stu-3"}))

	got, err := repo.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-2", "stu-3"}, got.PresentIDs())

	require.NoError(t, repo.ReplacePresent(ctx, "sess-1", nil))
	got, err = repo.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.PresentCount())
}

func TestSessionRepository_ConcurrentAddPresent(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, mustSession(t, "sess-1", "teacher-1", 3, "A", "Maths", time.Now())))

	const goroutines = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	newlyAdded := 0

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := repo.AddPresent(ctx, "sess-1", "stu-1")
			assert.NoError(t, err)
			if added {
				mu.Lock()
				newlyAdded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Exactly one of the racing scans counts; the rest are duplicates.
	assert.Equal(t, 1, newlyAdded)

	got, err := repo.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.PresentCount())
}
