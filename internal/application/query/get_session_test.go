package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/persistence/memory"
)

func seedOne(t *testing.T, repo *memory.SessionRepository, id string, createdAt time.Time) *session.Session {
	t.Helper()
	s, err := session.New(id, "teacher-1", 3, "A", "Mathematics", createdAt)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), s))
	return s
}

func TestGetSession_View(t *testing.T) {
	repo := memory.NewSessionRepository()
	createdAt := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	seedOne(t, repo, "sess-1", createdAt)
	ctx := context.Background()
	_, err := repo.AddPresent(ctx, "sess-1", "stu-2")
	require.NoError(t, err)
	_, err = repo.AddPresent(ctx, "sess-1", "stu-1")
	require.NoError(t, err)

	h := NewGetSessionHandler(repo).WithClock(func() time.Time { return createdAt.Add(30 * time.Minute) })

	view, err := h.Handle(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", view.ID)
	assert.Equal(t, 3, view.Year)
	assert.Equal(t, "A", view.Division)
	assert.Equal(t, []string{"stu-1", "stu-2"}, view.Present)
	assert.Equal(t, 2, view.PresentCount)
	assert.True(t, view.Editable)
	assert.Equal(t, createdAt.Add(time.Hour), view.EditDeadline)
}

func TestGetSession_LockedView(t *testing.T) {
	repo := memory.NewSessionRepository()
	createdAt := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	seedOne(t, repo, "sess-1", createdAt)

	h := NewGetSessionHandler(repo).WithClock(func() time.Time { return createdAt.Add(2 * time.Hour) })

	view, err := h.Handle(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, view.Editable)
}

func TestGetSession_NotFound(t *testing.T) {
	h := NewGetSessionHandler(memory.NewSessionRepository())
	_, err := h.Handle(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCurrentToken(t *testing.T) {
	repo := memory.NewSessionRepository()
	seedOne(t, repo, "sess-1", time.Now())

	h := NewCurrentTokenHandler(repo, &stubTokens{token: "tok-1"})

	view, err := h.Handle(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", view.SessionID)
	assert.Equal(t, session.Token("tok-1"), view.Token)
}

func TestCurrentToken_SessionMissing(t *testing.T) {
	h := NewCurrentTokenHandler(memory.NewSessionRepository(), &stubTokens{token: "tok-1"})
	_, err := h.Handle(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCurrentToken_IssuingStopped(t *testing.T) {
	repo := memory.NewSessionRepository()
	seedOne(t, repo, "sess-1", time.Now())

	h := NewCurrentTokenHandler(repo, &stubTokens{err: shared.ErrSessionClosed})
	_, err := h.Handle(context.Background(), "sess-1")
	assert.ErrorIs(t, err, shared.ErrSessionClosed)
}
