package workflow

import "extflow/internal/domain"

// RolePriority is the order used to pick an actor's main workflow role when
// several are held. Destinations are never merged across roles.
var RolePriority = []domain.Role{
	domain.RoleAdministrador,
	domain.RoleFries,
	domain.RoleVicerrectoria,
	domain.RoleDecano,
	domain.RoleDirectorPrograma,
	domain.RoleFormulador,
}

var escalatedDestinations = []domain.Status{
	domain.StatusEnFormulacion,
	domain.StatusEnRevisionDirector,
	domain.StatusEnRevisionDecano,
	domain.StatusEnRevisionFries,
	domain.StatusEnRevisionVicerrectoria,
	domain.StatusAprobado,
	domain.StatusRechazado,
}

// transitionTable maps a role to the statuses it may move a project to,
// regardless of the current status.
var transitionTable = map[domain.Role][]domain.Status{
	domain.RoleFormulador: {
		domain.StatusEnRevisionDirector,
	},
	domain.RoleDirectorPrograma: {
		domain.StatusEnFormulacion,
		domain.StatusEnRevisionDecano,
	},
	domain.RoleDecano: {
		domain.StatusEnFormulacion,
		domain.StatusEnRevisionFries,
	},
	domain.RoleFries:         escalatedDestinations,
	domain.RoleAdministrador: escalatedDestinations,
	domain.RoleVicerrectoria: {
		domain.StatusEnFormulacion,
		domain.StatusAprobado,
		domain.StatusRechazado,
	},
}

// RoleTransitions is one row of the transition table.
type RoleTransitions struct {
	Role         domain.Role     `json:"role"`
	Destinations []domain.Status `json:"destinations"`
}

// Destinations returns the statuses role may move a project to, in declared
// order. Roles outside the table get an empty list.
func Destinations(role domain.Role) []domain.Status {
	dst := transitionTable[role]
	out := make([]domain.Status, len(dst))
	copy(out, dst)
	return out
}

// MainRole resolves the single role whose destinations apply to the actor.
func MainRole(actor domain.Actor) (domain.Role, bool) {
	for _, role := range RolePriority {
		if _, ok := transitionTable[role]; !ok {
			continue
		}
		if actor.Has(role) {
			return role, true
		}
	}
	return "", false
}

// Table returns the transition table in role priority order.
func Table() []RoleTransitions {
	rows := make([]RoleTransitions, 0, len(RolePriority))
	for _, role := range RolePriority {
		rows = append(rows, RoleTransitions{Role: role, Destinations: Destinations(role)})
	}
	return rows
}
