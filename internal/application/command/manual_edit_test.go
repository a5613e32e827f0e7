package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/persistence/memory"
)

func TestManualEdit_SetPresent_SetAbsent(t *testing.T) {
	repo := memory.NewSessionRepository()
	seedSession(t, repo)
	h := NewManualEditHandler(repo, nil, nil, nil)
	ctx := context.Background()

	result, err := h.Handle(ctx, ManualEditCommand{SessionID: "sess-1", Identity: "stu-1", Operation: OpSetPresent})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Affected)

	// Marking again changes nothing.
	result, err = h.Handle(ctx, ManualEditCommand{SessionID: "sess-1", Identity: "stu-1", Operation: OpSetPresent})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Affected)

	result, err = h.Handle(ctx, ManualEditCommand{SessionID: "sess-1", Identity: "stu-1", Operation: OpSetAbsent})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Affected)

	result, err = h.Handle(ctx, ManualEditCommand{SessionID: "sess-1", Identity: "stu-1", Operation: OpSetAbsent})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Affected)
}

func TestManualEdit_EditLock(t *testing.T) {
	repo := memory.NewSessionRepository()
	s := seedSession(t, repo)
	h := NewManualEditHandler(repo, nil, nil, nil).
		WithClock(func() time.Time { return s.CreatedAt.Add(61 * time.Minute) })

	_, err := h.Handle(context.Background(), ManualEditCommand{
		SessionID: "sess-1", Identity: "stu-1", Operation: OpSetPresent,
	})
	assert.ErrorIs(t, err, shared.ErrEditWindowExpired)

	stored, _ := repo.GetByID(context.Background(), "sess-1")
	assert.Equal(t, 0, stored.PresentCount())
}

func TestManualEdit_EditLock_BoundaryInclusive(t *testing.T) {
	repo := memory.NewSessionRepository()
	s := seedSession(t, repo)
	h := NewManualEditHandler(repo, nil, nil, nil).
		WithClock(func() time.Time { return s.EditDeadline() })

	_, err := h.Handle(context.Background(), ManualEditCommand{
		SessionID: "sess-1", Identity: "stu-1", Operation: OpSetPresent,
	})
	assert.NoError(t, err)
}

func TestManualEdit_MarkAllPresent(t *testing.T) {
	repo := memory.NewSessionRepository()
	seedSession(t, repo)
	provider := &stubProvider{entries: []roster.Entry{
		{Identity: "stu-1", Subjects: []string{"Mathematics"}},
		{Identity: "stu-2", Subjects: []string{"Mathematics", "Physics"}},
		{Identity: "stu-3", Subjects: []string{"Physics"}},
	}}
	bus := &captureBus{}
	h := NewManualEditHandler(repo, provider, bus, nil)
	ctx := context.Background()

	result, err := h.Handle(ctx, ManualEditCommand{SessionID: "sess-1", Operation: OpMarkAllPresent})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Affected)

	stored, _ := repo.GetByID(ctx, "sess-1")
	assert.Equal(t, []string{"stu-1", "stu-2"}, stored.PresentIDs())

	events := bus.published()
	require.Len(t, events, 1)
	override, ok := events[0].(shared.ManualOverrideEvent)
	require.True(t, ok)
	assert.Equal(t, string(OpMarkAllPresent), override.Operation)
}

func TestManualEdit_MarkAllPresent_CountsOnlyChanged(t *testing.T) {
	repo := memory.NewSessionRepository()
	seedSession(t, repo)
	provider := &stubProvider{entries: []roster.Entry{
		{Identity: "stu-1", Subjects: []string{"Mathematics"}},
		{Identity: "stu-2", Subjects: []string{"Mathematics"}},
	}}
	h := NewManualEditHandler(repo, provider, nil, nil)
	ctx := context.Background()

	// stu-1 stays present, stu-9 is dropped, stu-2 is added: two changes,
	// even though the set size is unchanged.
	for _, id := range []string{"stu-1", "stu-9"} {
		_, err := repo.AddPresent(ctx, "sess-1", id)
		require.NoError(t, err)
	}

	result, err := h.Handle(ctx, ManualEditCommand{SessionID: "sess-1", Operation: OpMarkAllPresent})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Affected)

	stored, _ := repo.GetByID(ctx, "sess-1")
	assert.Equal(t, []string{"stu-1", "stu-2"}, stored.PresentIDs())

	// Re-running changes nothing.
	result, err = h.Handle(ctx, ManualEditCommand{SessionID: "sess-1", Operation: OpMarkAllPresent})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Affected)
}

func TestManualEdit_MarkAllPresent_NoProvider(t *testing.T) {
	repo := memory.NewSessionRepository()
	seedSession(t, repo)
	h := NewManualEditHandler(repo, nil, nil, nil)

	_, err := h.Handle(context.Background(), ManualEditCommand{SessionID: "sess-1", Operation: OpMarkAllPresent})
	assert.ErrorIs(t, err, shared.ErrRosterUnavailable)
}

func TestManualEdit_MarkAllAbsent(t *testing.T) {
	repo := memory.NewSessionRepository()
	seedSession(t, repo)
	h := NewManualEditHandler(repo, nil, nil, nil)
	ctx := context.Background()

	for _, id := range []string{"stu-1", "stu-2", "stu-3"} {
		_, err := repo.AddPresent(ctx, "sess-1", id)
		require.NoError(t, err)
	}

	result, err := h.Handle(ctx, ManualEditCommand{SessionID: "sess-1", Operation: OpMarkAllAbsent})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Affected)

	stored, _ := repo.GetByID(ctx, "sess-1")
	assert.Equal(t, 0, stored.PresentCount())
}

func TestManualEdit_Validation(t *testing.T) {
	repo := memory.NewSessionRepository()
	seedSession(t, repo)
	h := NewManualEditHandler(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, ManualEditCommand{Identity: "stu-1", Operation: OpSetPresent})
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)

	_, err = h.Handle(ctx, ManualEditCommand{SessionID: "sess-1", Operation: OpSetPresent})
	assert.ErrorIs(t, err, shared.ErrInvalidIdentity)

	_, err = h.Handle(ctx, ManualEditCommand{SessionID: "sess-1", Operation: "promote"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestManualEdit_UnknownSession(t *testing.T) {
	h := NewManualEditHandler(memory.NewSessionRepository(), nil, nil, nil)

	_, err := h.Handle(context.Background(), ManualEditCommand{
		SessionID: "missing", Identity: "stu-1", Operation: OpSetPresent,
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
