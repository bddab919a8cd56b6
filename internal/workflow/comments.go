package workflow

import "extflow/internal/domain"

// CommentDecision says whether an actor may add a review comment, and why not.
type CommentDecision struct {
	Allowed bool
	Reason  string
}

const (
	reasonFormulador    = "Los formuladores no pueden agregar comentarios de revisión."
	reasonDirector      = "Solo puedes comentar cuando el proyecto está en revisión del director de programa."
	reasonDecano        = "Solo puedes comentar cuando el proyecto está en revisión del decano."
	reasonVicerrectoria = "Solo puedes comentar cuando el proyecto está en revisión de vicerrectoría."
	reasonNoPermission  = "No tienes permisos para comentar en este proyecto."
)

// CanComment applies the comment policy. Administrador and fries may always
// comment; stage reviewers only while the project sits at their stage.
func CanComment(p domain.Project, actor domain.Actor) CommentDecision {
	caps := Classify(actor)
	if caps.Privileged() {
		return CommentDecision{Allowed: true}
	}
	if caps.ReviewsAt(p.Status) {
		return CommentDecision{Allowed: true}
	}
	switch {
	case caps.Formulador:
		return CommentDecision{Reason: reasonFormulador}
	case caps.Vicerrectoria:
		return CommentDecision{Reason: reasonVicerrectoria}
	case caps.Decano:
		return CommentDecision{Reason: reasonDecano}
	case caps.DirectorPrograma:
		return CommentDecision{Reason: reasonDirector}
	}
	return CommentDecision{Reason: reasonNoPermission}
}
