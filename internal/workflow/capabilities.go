package workflow

import "extflow/internal/domain"

// Capabilities is the role classification shared by every policy in this
// package. Policies read these flags instead of matching role strings.
type Capabilities struct {
	MainRole         domain.Role
	Administrador    bool
	Fries            bool
	Vicerrectoria    bool
	Decano           bool
	DirectorPrograma bool
	Formulador       bool
}

// Classify derives the capabilities of an actor. An actor without roles gets
// the zero value, which every policy treats as "deny".
func Classify(actor domain.Actor) Capabilities {
	main, _ := MainRole(actor)
	return Capabilities{
		MainRole:         main,
		Administrador:    actor.Has(domain.RoleAdministrador),
		Fries:            actor.Has(domain.RoleFries),
		Vicerrectoria:    actor.Has(domain.RoleVicerrectoria),
		Decano:           actor.Has(domain.RoleDecano),
		DirectorPrograma: actor.Has(domain.RoleDirectorPrograma),
		Formulador:       actor.Has(domain.RoleFormulador),
	}
}

// Privileged reports administrador or fries, the roles with blanket rights.
func (c Capabilities) Privileged() bool {
	return c.Administrador || c.Fries
}

// Reviewer reports whether the actor holds a role that hands the project on
// to the next stage after acting on it.
func (c Capabilities) Reviewer() bool {
	return c.DirectorPrograma || c.Decano || c.Fries || c.Vicerrectoria
}

// ReviewsAt reports whether one of the actor's stage-bound reviewer roles owns
// status. Privileged roles are not stage-bound and are not considered here.
func (c Capabilities) ReviewsAt(status domain.Status) bool {
	switch status {
	case domain.StatusEnRevisionDirector:
		return c.DirectorPrograma
	case domain.StatusEnRevisionDecano:
		return c.Decano
	case domain.StatusEnRevisionVicerrectoria:
		return c.Vicerrectoria
	}
	return false
}
