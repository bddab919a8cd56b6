package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extflow/internal/config"
	"extflow/internal/domain"
	"extflow/internal/journal"
)

func TestOpenWiresJournalAndEngine(t *testing.T) {
	uni := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"_id":"p1","status":"`+body["nextStatus"]+`"}`)
	}))
	defer uni.Close()

	cfg := config.Default(uni.URL)
	cfg.Workflow.EnforceRequirements = true
	ctx := context.Background()
	a, err := Open(ctx, t.TempDir(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Journal)
	assert.True(t, a.Engine.EnforceRequirements)

	admin := domain.Actor{UserID: "u8", Roles: []domain.Role{domain.RoleAdministrador}}
	got, err := a.Engine.RequestTransition(ctx, domain.Project{ID: "p1", Status: domain.StatusAprobado}, admin, domain.StatusEnFormulacion)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnFormulacion, got.Status)

	entries, err := a.Journal.Latest(ctx, 10, 0, journal.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutcomeSucceeded, entries[0].Outcome)

	h, err := a.Handler()
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestOpenWithoutJournal(t *testing.T) {
	cfg := config.Default("http://127.0.0.1:1")
	off := false
	cfg.Journal.Enabled = &off
	a, err := Open(context.Background(), t.TempDir(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Journal)
	assert.Nil(t, a.DB)
	a.StartWebhooks(context.Background())
}

func TestOpenHonoursJournalPath(t *testing.T) {
	cfg := config.Default("http://127.0.0.1:1")
	cfg.Journal.Path = filepath.Join(t.TempDir(), "audit", "transitions.db")
	ws := t.TempDir()
	a, err := Open(context.Background(), ws, cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.FileExists(t, cfg.Journal.Path)
	assert.NoFileExists(t, filepath.Join(ws, ".extflow", "extflow.db"))
}
