package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extflow/internal/domain"
	"extflow/internal/workflow"
)

func TestChangeStatusSendsBodyAndToken(t *testing.T) {
	payload := `{"_id":"p1","status":"en_revision_decano","createdBy":"u1","custom":{"kept":true}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/project/p1/change-status", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"nextStatus": "en_revision_decano"}, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, payload)
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/", time.Second)
	ctx := WithToken(context.Background(), "tok-123")
	p, err := c.ChangeStatus(ctx, "p1", domain.StatusEnRevisionDecano)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, domain.StatusEnRevisionDecano, p.Status)
	assert.Equal(t, "u1", p.CreatedBy.ID)
	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(out))
}

func TestErrorPayloadMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"top level", `{"message":"El proyecto ya fue aprobado"}`, "El proyecto ya fue aprobado"},
		{"envelope", `{"error":{"code":"conflict","message":"Estado inválido"}}`, "Estado inválido"},
		{"no message", `{"status":"fail"}`, ""},
		{"not json", `<html>bad gateway</html>`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL, time.Second).ChangeStatus(context.Background(), "p1", domain.StatusAprobado)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
			assert.Equal(t, tc.want, apiErr.Message)
			assert.Equal(t, tc.body, apiErr.Body)
		})
	}
}

func TestEngineSurfacesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"message":"No eres el decano de esta facultad"}`)
	}))
	defer srv.Close()

	eng := workflow.New(New(srv.URL, time.Second), nil)
	_, err := eng.RequestTransition(context.Background(),
		domain.Project{ID: "p1", Status: domain.StatusEnRevisionDecano},
		domain.Actor{UserID: "u2", Roles: []domain.Role{domain.RoleDecano}},
		domain.StatusEnRevisionFries)
	var tf workflow.TransitionFailedError
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, "No eres el decano de esta facultad", tf.Message)
	assert.Equal(t, http.StatusForbidden, tf.StatusCode)
}

func TestChangeStatusWithoutRecordFails(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"no content", http.StatusNoContent, ""},
		{"empty ok", http.StatusOK, ""},
		{"null", http.StatusOK, "null"},
		{"empty object", http.StatusOK, "{}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			p, err := New(srv.URL, time.Second).ChangeStatus(context.Background(), "p1", domain.StatusEnRevisionDecano)
			require.ErrorIs(t, err, ErrEmptyRecord)
			assert.Empty(t, p.ID)

			eng := workflow.New(New(srv.URL, time.Second), nil)
			got, err := eng.RequestTransition(context.Background(),
				domain.Project{ID: "p1", Status: domain.StatusEnRevisionDirector},
				domain.Actor{UserID: "u3", Roles: []domain.Role{domain.RoleDirectorPrograma}},
				domain.StatusEnRevisionDecano)
			var tf workflow.TransitionFailedError
			require.ErrorAs(t, err, &tf)
			assert.Equal(t, workflow.DefaultFailureMessage, tf.Message)
			assert.Empty(t, got.ID)
		})
	}
}

func TestListDocumentsAndDelete(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/project/p1/documents":
			_, _ = io.WriteString(w, `[{"_id":"d1","name":"acta.pdf","uploadedBy":{"_id":"u1","name":"Ana"}},{"_id":"d2","uploadedBy":"u2"}]`)
		case r.Method == http.MethodDelete && r.URL.Path == "/document/d1":
			deleted = "d1"
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	docs, err := c.ListDocuments(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "u1", docs[0].UploadedBy.ID)
	assert.Equal(t, "u2", docs[1].UploadedBy.ID)

	require.NoError(t, c.DeleteDocument(context.Background(), "d1"))
	assert.Equal(t, "d1", deleted)

	err = c.DeleteDocument(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.GetStatus())
}

func TestAddComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/project/p1/comments", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"_id":"c1","text":"`+body["text"]+`","author":"u3","status":"en_revision_director"}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL, 0).AddComment(context.Background(), "p1", "Ajustar presupuesto")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "Ajustar presupuesto", c.Text)
	assert.Equal(t, "u3", c.Author.ID)
	assert.Equal(t, domain.StatusEnRevisionDirector, c.Status)
}

func TestTokenFromContext(t *testing.T) {
	assert.Empty(t, TokenFromContext(context.Background()))
	assert.Equal(t, "abc", TokenFromContext(WithToken(context.Background(), "abc")))
}
