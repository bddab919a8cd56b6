package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extflow/internal/db"
	"extflow/internal/domain"
	"extflow/internal/migrate"
	"extflow/internal/workflow"
)

func openJournal(t *testing.T) Journal {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	j := New(conn)
	j.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return j
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	entries := []domain.JournalEntry{
		{RequestID: "r1", ProjectID: "p1", ActorID: "u1", Role: "formulador", FromStatus: "en_formulacion", ToStatus: "en_revision_director", Outcome: domain.OutcomeSucceeded},
		{RequestID: "r2", ProjectID: "p1", ActorID: "u2", FromStatus: "en_revision_director", ToStatus: "aprobado", Outcome: domain.OutcomeForbidden, Message: "no workflow role"},
		{RequestID: "r3", ProjectID: "p2", ActorID: "u3", Role: "decano", FromStatus: "en_revision_decano", ToStatus: "en_revision_fries", Outcome: domain.OutcomeFailed, Message: "boom"},
	}
	for _, e := range entries {
		require.NoError(t, j.Record(ctx, e))
	}

	latest, err := j.Latest(ctx, 10, 0, Filter{})
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, "r3", latest[0].RequestID)
	assert.Equal(t, "2024-03-01T12:00:00Z", latest[0].TS)
	assert.Empty(t, latest[1].Role)
	assert.Equal(t, "no workflow role", latest[1].Message)

	byProject, err := j.Latest(ctx, 10, 0, Filter{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Len(t, byProject, 2)

	older, err := j.Latest(ctx, 10, latest[0].ID, Filter{})
	require.NoError(t, err)
	assert.Len(t, older, 2)

	after, err := j.After(ctx, 10, latest[2].ID, Filter{Outcome: domain.OutcomeFailed})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "p2", after[0].ProjectID)

	id, err := j.LatestID(ctx)
	require.NoError(t, err)
	assert.Equal(t, latest[0].ID, id)

	counts, err := j.CountByOutcome(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{domain.OutcomeSucceeded: 1, domain.OutcomeForbidden: 1}, counts)
}

func TestEmptyJournal(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	id, err := j.LatestID(ctx)
	require.NoError(t, err)
	assert.Zero(t, id)
	got, err := j.After(ctx, 0, 0, Filter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecordRejectsUnknownOutcome(t *testing.T) {
	j := openJournal(t)
	err := j.Record(context.Background(), domain.JournalEntry{RequestID: "r", ProjectID: "p", FromStatus: "a", ToStatus: "b", Outcome: "maybe"})
	assert.Error(t, err)
}

type okBackend struct{}

func (okBackend) ChangeStatus(_ context.Context, id string, next domain.Status) (domain.Project, error) {
	return domain.Project{ID: id, Status: next}, nil
}

type failingBackend struct{}

func (failingBackend) ChangeStatus(context.Context, string, domain.Status) (domain.Project, error) {
	return domain.Project{}, errors.New("unreachable")
}

func TestEngineJournalsEveryOutcome(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	eng := workflow.New(okBackend{}, nil)
	eng.Journal = j
	p := domain.Project{ID: "p1", Status: domain.StatusEnRevisionFries}
	fries := domain.Actor{UserID: "u7", Roles: []domain.Role{domain.RoleFries}}
	_, err := eng.RequestTransition(ctx, p, fries, domain.StatusEnRevisionVicerrectoria)
	require.NoError(t, err)
	_, err = eng.RequestTransition(ctx, p, domain.Actor{UserID: "u1", Roles: []domain.Role{domain.RoleFormulador}}, domain.StatusAprobado)
	require.ErrorIs(t, err, workflow.ErrForbidden)

	eng.Backend = failingBackend{}
	_, err = eng.RequestTransition(ctx, p, fries, domain.StatusAprobado)
	require.ErrorIs(t, err, workflow.ErrTransitionFailed)

	got, err := j.After(ctx, 10, 0, Filter{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.OutcomeSucceeded, got[0].Outcome)
	assert.Equal(t, "fries", got[0].Role)
	assert.Equal(t, domain.OutcomeForbidden, got[1].Outcome)
	assert.Equal(t, domain.OutcomeFailed, got[2].Outcome)
	assert.Equal(t, workflow.DefaultFailureMessage, got[2].Message)
	assert.NotEqual(t, got[0].RequestID, got[1].RequestID)
}
