package server

import (
	"extflow/internal/domain"
	"extflow/internal/workflow"
)

// Request payloads

type TransitionRequest struct {
	NextStatus string `json:"next_status" minLength:"1" example:"en_revision_director"`
}

type CommentRequest struct {
	Text string `json:"text" example:"Revisar el presupuesto del segundo semestre."`
}

type DevLoginRequest struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
}

// Response payloads

type MeResponse struct {
	UserID   string        `json:"user_id"`
	Roles    []domain.Role `json:"roles"`
	MainRole domain.Role   `json:"main_role,omitempty"`
}

type CommentDecisionResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type WorkflowResponse struct {
	ProjectID           string                       `json:"project_id"`
	Status              domain.Status                `json:"status"`
	MainRole            domain.Role                  `json:"main_role,omitempty"`
	Transitions         []domain.Status              `json:"transitions"`
	Comment             CommentDecisionResponse      `json:"comment"`
	Documents           workflow.DocumentPermissions `json:"documents"`
	Requirements        []string                     `json:"requirements"`
	MissingFields       []string                     `json:"missing_fields"`
	EnforceRequirements bool                         `json:"enforce_requirements"`
}

type TransitionResponse struct {
	Project    domain.Project      `json:"project"`
	Navigation workflow.Navigation `json:"navigation" enum:"list,detail"`
}

type DocumentResponse struct {
	Document    domain.Document              `json:"document"`
	Permissions workflow.DocumentPermissions `json:"permissions"`
}

type DocumentListResponse struct {
	Items       []DocumentResponse           `json:"items"`
	Permissions workflow.DocumentPermissions `json:"permissions"`
}

type TableResponse struct {
	RolePriority []domain.Role              `json:"role_priority"`
	Table        []workflow.RoleTransitions `json:"table"`
	Statuses     []domain.Status            `json:"statuses"`
}

type JournalPage struct {
	Items      []domain.JournalEntry `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func meResponse(a domain.Actor) MeResponse {
	role, _ := workflow.MainRole(a)
	return MeResponse{
		UserID:   a.UserID,
		Roles:    nonNilSlice(a.Roles),
		MainRole: role,
	}
}

func workflowResponse(p domain.Project, a domain.Actor, enforce bool) WorkflowResponse {
	role, _ := workflow.MainRole(a)
	decision := workflow.CanComment(p, a)
	return WorkflowResponse{
		ProjectID:           p.ID,
		Status:              p.Status,
		MainRole:            role,
		Transitions:         workflow.AvailableTransitions(p, a),
		Comment:             CommentDecisionResponse{Allowed: decision.Allowed, Reason: decision.Reason},
		Documents:           workflow.Permissions(p, a, nil),
		Requirements:        workflow.Requirements(p),
		MissingFields:       workflow.MissingFields(p),
		EnforceRequirements: enforce,
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
