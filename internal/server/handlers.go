package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"extflow/internal/domain"
	"extflow/internal/journal"
	"extflow/internal/workflow"
)

type projectPath struct {
	ProjectID string `path:"project_id"`
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current actor and main workflow role",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		actor, authErr := requireUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: meResponse(actor)}, nil
	})
}

func registerWorkflow(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "project-workflow",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/workflow",
		Summary:     "Transitions, comment and document rights for the current actor",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body WorkflowResponse `json:"body"`
	}, error) {
		p, err := cfg.Backend.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkflowResponse `json:"body"`
		}{Body: workflowResponse(p, actorFromContext(ctx), cfg.Engine.EnforceRequirements)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-transition",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/transitions",
		Summary:     "Move a project to another status",
		Description: "The project is read from the backend, the transition is authorized against the " +
			"actor's main role and forwarded once. The response carries the backend record and " +
			"where the view should go next.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      TransitionRequest
	}) (*struct {
		Body TransitionResponse `json:"body"`
	}, error) {
		next := domain.Status(strings.TrimSpace(input.Body.NextStatus))
		p, err := cfg.Backend.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		actor := actorFromContext(ctx)
		updated, err := cfg.Engine.RequestTransition(ctx, p, actor, next)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TransitionResponse `json:"body"`
		}{Body: TransitionResponse{
			Project:    updated,
			Navigation: workflow.NavigationAfter(next, actor),
		}}, nil
	})
}

func registerDocuments(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/documents",
		Summary:     "Project documents with the actor's rights on each",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body DocumentListResponse `json:"body"`
	}, error) {
		p, err := cfg.Backend.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		docs, err := cfg.Backend.ListDocuments(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		actor := actorFromContext(ctx)
		resp := DocumentListResponse{
			Items:       make([]DocumentResponse, 0, len(docs)),
			Permissions: workflow.Permissions(p, actor, nil),
		}
		for i := range docs {
			resp.Items = append(resp.Items, DocumentResponse{
				Document:    docs[i],
				Permissions: workflow.Permissions(p, actor, &docs[i]),
			})
		}
		return &struct {
			Body DocumentListResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-document",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/documents/{document_id}",
		Summary:     "Delete a project document",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		DocumentID string `path:"document_id"`
	}) (*struct{}, error) {
		p, err := cfg.Backend.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		docs, err := cfg.Backend.ListDocuments(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		var doc *domain.Document
		for i := range docs {
			if docs[i].ID == input.DocumentID {
				doc = &docs[i]
				break
			}
		}
		if doc == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "document not found", map[string]any{"document_id": input.DocumentID})
		}
		actor := actorFromContext(ctx)
		if !workflow.Permissions(p, actor, doc).CanDelete {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "No tienes permisos para eliminar este documento.", map[string]any{"document_id": doc.ID})
		}
		if err := cfg.Backend.DeleteDocument(ctx, doc.ID); err != nil {
			return nil, handleError(err)
		}
		cfg.logger().Info("document deleted",
			zap.String("project_id", p.ID),
			zap.String("document_id", doc.ID),
			zap.String("actor_id", actor.UserID),
		)
		return &struct{}{}, nil
	})
}

func registerComments(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-comment",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/comments",
		Summary:       "Add a review comment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      CommentRequest
	}) (*struct {
		Body domain.Comment `json:"body"`
	}, error) {
		text := strings.TrimSpace(input.Body.Text)
		if text == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "text is required", nil)
		}
		p, err := cfg.Backend.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		decision := workflow.CanComment(p, actorFromContext(ctx))
		if !decision.Allowed {
			return nil, newAPIError(http.StatusForbidden, "comment_not_allowed", decision.Reason, map[string]any{"status": p.Status})
		}
		c, err := cfg.Backend.AddComment(ctx, input.ProjectID, text)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Comment `json:"body"`
		}{Body: c}, nil
	})
}

func registerTable(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "transition-table",
		Method:      http.MethodGet,
		Path:        "/transitions/table",
		Summary:     "Transition table in role priority order",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body TableResponse `json:"body"`
	}, error) {
		return &struct {
			Body TableResponse `json:"body"`
		}{Body: TableResponse{
			RolePriority: append([]domain.Role(nil), workflow.RolePriority...),
			Table:        workflow.Table(),
			Statuses:     append([]domain.Status(nil), domain.Statuses...),
		}}, nil
	})
}

func registerJournal(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-journal",
		Method:      http.MethodGet,
		Path:        "/journal",
		Summary:     "Recent transition attempts",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
		Outcome   string `query:"outcome" enum:"succeeded,forbidden,failed,incomplete"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    string `query:"cursor"`
	}) (*struct {
		Body JournalPage `json:"body"`
	}, error) {
		if !workflow.Classify(actorFromContext(ctx)).Privileged() {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "journal is restricted to administrador and fries", nil)
		}
		if cfg.Journal == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "journal disabled", nil)
		}
		limit := normalizeLimit(input.Limit)
		var before int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			before = parsed
		}
		items, err := cfg.Journal.Latest(ctx, limit+1, before, journal.Filter{ProjectID: input.ProjectID, Outcome: input.Outcome})
		if err != nil {
			return nil, handleError(err)
		}
		page := JournalPage{Items: items}
		if len(items) > limit {
			page.Items = items[:limit]
			page.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		return &struct {
			Body JournalPage `json:"body"`
		}{Body: page}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		userID := strings.TrimSpace(input.Body.UserID)
		if userID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, userID, input.Body.Roles, 12*time.Hour)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
