package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"extflow/internal/domain"
)

// Backend persists status changes. It is the only side effect of a transition.
type Backend interface {
	ChangeStatus(ctx context.Context, projectID string, next domain.Status) (domain.Project, error)
}

// Recorder keeps a trail of transition attempts. Recording failures are
// logged and never change the outcome of a transition.
type Recorder interface {
	Record(ctx context.Context, entry domain.JournalEntry) error
}

// Navigation tells the view where to go after a successful transition.
type Navigation string

const (
	NavigateToList Navigation = "list"
	StayOnDetail   Navigation = "detail"
)

type Engine struct {
	Backend Backend
	Journal Recorder
	Logger  *zap.Logger
	Now     func() time.Time

	// EnforceRequirements turns the requirements gate into a precondition for
	// destinations that move a project forward.
	EnforceRequirements bool
}

func New(backend Backend, logger *zap.Logger) Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Engine{
		Backend: backend,
		Logger:  logger,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// AvailableTransitions returns the statuses the actor may move the project to,
// in table order, without the current status.
func AvailableTransitions(p domain.Project, actor domain.Actor) []domain.Status {
	out := []domain.Status{}
	if !p.Status.Valid() {
		return out
	}
	role, ok := MainRole(actor)
	if !ok {
		return out
	}
	for _, s := range transitionTable[role] {
		if s != p.Status {
			out = append(out, s)
		}
	}
	return out
}

// CanTransition reports whether next is among the available transitions.
func CanTransition(p domain.Project, actor domain.Actor, next domain.Status) bool {
	for _, s := range AvailableTransitions(p, actor) {
		if s == next {
			return true
		}
	}
	return false
}

// NavigationAfter decides where the view goes once a transition to next has
// been persisted. Leaving formulation or reaching a terminal state, as well as
// any move made by a reviewing role, ends the actor's work on the project.
func NavigationAfter(next domain.Status, actor domain.Actor) Navigation {
	switch next {
	case domain.StatusEnFormulacion, domain.StatusAprobado, domain.StatusRechazado:
		return NavigateToList
	}
	if Classify(actor).Reviewer() {
		return NavigateToList
	}
	return StayOnDetail
}

// RequestTransition authorizes and persists a status change. The returned
// project is the backend's record; nothing is mutated locally. Each call makes
// at most one backend request and is never deduplicated or retried.
func (e Engine) RequestTransition(ctx context.Context, p domain.Project, actor domain.Actor, next domain.Status) (domain.Project, error) {
	// The request runs to completion once accepted, even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	role, _ := MainRole(actor)
	entry := domain.JournalEntry{
		RequestID:  uuid.NewString(),
		ProjectID:  p.ID,
		ActorID:    actor.UserID,
		Role:       string(role),
		FromStatus: string(p.Status),
		ToStatus:   string(next),
	}
	log := e.logger().With(
		zap.String("request_id", entry.RequestID),
		zap.String("project_id", p.ID),
		zap.String("actor_id", actor.UserID),
		zap.String("role", string(role)),
		zap.String("from", string(p.Status)),
		zap.String("to", string(next)),
	)

	if !CanTransition(p, actor, next) {
		err := ForbiddenError{Role: role, From: p.Status, To: next}
		log.Warn("transition forbidden")
		e.record(ctx, log, entry, domain.OutcomeForbidden, err.Error())
		return domain.Project{}, err
	}
	if e.EnforceRequirements && RequiresCompleteness(next) {
		if missing := Requirements(p); len(missing) > 0 {
			err := RequirementsError{To: next, Missing: missing}
			log.Info("transition blocked by requirements", zap.Int("missing", len(missing)))
			e.record(ctx, log, entry, domain.OutcomeIncomplete, err.Error())
			return domain.Project{}, err
		}
	}
	if e.Backend == nil {
		err := transitionFailed(errors.New("backend not configured"))
		log.Error("transition failed", zap.Error(err.Err))
		e.record(ctx, log, entry, domain.OutcomeFailed, err.Message)
		return domain.Project{}, err
	}

	updated, err := e.Backend.ChangeStatus(ctx, p.ID, next)
	if err == nil && updated.ID == "" {
		err = errEmptyRecord
	}
	if err != nil {
		tf := transitionFailed(err)
		log.Error("transition failed", zap.Int("status_code", tf.StatusCode), zap.Error(err))
		e.record(ctx, log, entry, domain.OutcomeFailed, tf.Message)
		return domain.Project{}, tf
	}
	if updated.Status != next {
		log.Warn("backend returned a different status", zap.String("returned", string(updated.Status)))
	}
	e.record(ctx, log, entry, domain.OutcomeSucceeded, "")
	return updated, nil
}

func (e Engine) record(ctx context.Context, log *zap.Logger, entry domain.JournalEntry, outcome, message string) {
	if e.Journal == nil {
		return
	}
	entry.TS = e.now().UTC().Format(time.RFC3339)
	entry.Outcome = outcome
	entry.Message = message
	if err := e.Journal.Record(ctx, entry); err != nil {
		log.Warn("journal write failed", zap.Error(err))
	}
}
