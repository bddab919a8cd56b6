package workflow

import (
	"fmt"
	"strings"

	"extflow/internal/domain"
)

type requirement struct {
	field   string
	message string
	missing func(domain.Project) bool
}

var requirements = []requirement{
	{"code", "Falta el código del proyecto.", func(p domain.Project) bool { return blank(p.Code) }},
	{"title", "Falta el título del proyecto.", func(p domain.Project) bool { return blank(p.Title) }},
	{"type", "Falta el tipo de proyecto.", func(p domain.Project) bool { return blank(p.Type) }},
	{"year", "Falta el año.", func(p domain.Project) bool { return blank(string(p.Year)) }},
	{"semester", "Falta el semestre.", func(p domain.Project) bool { return blank(string(p.Semester)) }},
	{"faculty", "Falta la facultad.", func(p domain.Project) bool {
		return p.Faculty == nil || (blank(p.Faculty.ID) && blank(p.Faculty.Name))
	}},
	{"description", "Falta la descripción.", func(p domain.Project) bool { return blank(p.Description) }},
	{"justification", "Falta la justificación.", func(p domain.Project) bool { return blank(p.Justification) }},
	{"location", "Falta la ubicación.", func(p domain.Project) bool { return blank(p.Location) }},
	{"generalObjective", "Falta el objetivo general.", func(p domain.Project) bool { return blank(p.GeneralObjective) }},
	{"specificObjectives", "Debe registrar al menos un objetivo específico.", func(p domain.Project) bool {
		return !anyFilled(p.SpecificObjectives)
	}},
	{"populations", "Debe registrar al menos una población beneficiaria.", func(p domain.Project) bool {
		return !hasPopulation(p.Populations)
	}},
	{"results", "Debe registrar al menos un resultado esperado.", func(p domain.Project) bool { return !anyFilled(p.Results) }},
	{"impacts", "Debe registrar al menos un impacto esperado.", func(p domain.Project) bool { return !anyFilled(p.Impacts) }},
	{"director", "Debe asignar un director al proyecto.", func(p domain.Project) bool {
		return p.Director == nil || blank(p.Director.ID)
	}},
}

// Requirements lists, in a fixed order, why the project is not ready to move
// forward. An empty list means every mandatory field is filled in.
func Requirements(p domain.Project) []string {
	out := []string{}
	for _, req := range requirements {
		if req.missing(p) {
			out = append(out, req.message)
		}
	}
	return out
}

// MissingFields returns the field names behind Requirements.
func MissingFields(p domain.Project) []string {
	out := []string{}
	for _, req := range requirements {
		if req.missing(p) {
			out = append(out, req.field)
		}
	}
	return out
}

// RequiresCompleteness reports whether moving to next counts as progress
// that the requirements gate applies to.
func RequiresCompleteness(next domain.Status) bool {
	return next != domain.StatusEnFormulacion && next != domain.StatusRechazado
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func anyFilled(items []string) bool {
	for _, it := range items {
		if !blank(it) {
			return true
		}
	}
	return false
}

func hasPopulation(populations map[string][]any) bool {
	for _, entries := range populations {
		for _, entry := range entries {
			switch v := entry.(type) {
			case nil:
			case string:
				if !blank(v) {
					return true
				}
			case map[string]any:
				if len(v) > 0 {
					return true
				}
			default:
				if !blank(fmt.Sprint(v)) {
					return true
				}
			}
		}
	}
	return false
}
