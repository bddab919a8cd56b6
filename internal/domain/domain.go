package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Status is the lifecycle state of an extension project.
type Status string

const (
	StatusEnFormulacion           Status = "en_formulacion"
	StatusEnRevisionDirector      Status = "en_revision_director"
	StatusEnRevisionDecano        Status = "en_revision_decano"
	StatusEnRevisionFries         Status = "en_revision_fries"
	StatusEnRevisionVicerrectoria Status = "en_revision_vicerrectoria"
	StatusAprobado                Status = "aprobado"
	StatusRechazado               Status = "rechazado"
)

// Statuses lists every project status in lifecycle order.
var Statuses = []Status{
	StatusEnFormulacion,
	StatusEnRevisionDirector,
	StatusEnRevisionDecano,
	StatusEnRevisionFries,
	StatusEnRevisionVicerrectoria,
	StatusAprobado,
	StatusRechazado,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the forward flow. Escalated roles may still
// route a terminal project back.
func (s Status) Terminal() bool {
	return s == StatusAprobado || s == StatusRechazado
}

// Role is a role string carried by a signed-in user.
type Role string

const (
	RoleFormulador       Role = "formulador"
	RoleDirectorPrograma Role = "director_programa"
	RoleDecano           Role = "decano"
	RoleFries            Role = "fries"
	RoleVicerrectoria    Role = "vicerrectoria"
	RoleAdministrador    Role = "administrador"
	RoleDocente          Role = "docente"
	RoleEstudiante       Role = "estudiante"
)

// Actor is the signed-in person acting on a project.
type Actor struct {
	UserID string `json:"user_id"`
	Roles  []Role `json:"roles"`
}

// Has reports whether the actor holds role r.
func (a Actor) Has(r Role) bool {
	for _, held := range a.Roles {
		if held == r {
			return true
		}
	}
	return false
}

// HasAny reports whether the actor holds at least one of roles.
func (a Actor) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if a.Has(r) {
			return true
		}
	}
	return false
}

// UserRef points at a user. The backend sends either a bare id or an
// embedded user document.
type UserRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func (u *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = UserRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*u = UserRef{ID: id}
		return nil
	}
	var doc struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	u.ID = firstNonEmpty(doc.MongoID, doc.ID)
	u.Name = doc.Name
	u.Email = doc.Email
	return nil
}

// Faculty is the academic unit a project belongs to.
type Faculty struct {
	ID     string   `json:"_id"`
	Name   string   `json:"name,omitempty"`
	Decano *UserRef `json:"decano,omitempty"`
}

// Program is the academic program a project belongs to.
type Program struct {
	ID       string   `json:"_id"`
	Name     string   `json:"name,omitempty"`
	Director *UserRef `json:"director,omitempty"`
}

// Entity is an external organization taking part in a project.
type Entity struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

// Document is a file attached to a project.
type Document struct {
	ID         string  `json:"_id"`
	ProjectID  string  `json:"project,omitempty"`
	Name       string  `json:"name,omitempty"`
	URL        string  `json:"url,omitempty"`
	UploadedBy UserRef `json:"uploadedBy"`
	CreatedAt  string  `json:"createdAt,omitempty"`
}

// Comment is a reviewer note on a project.
type Comment struct {
	ID        string  `json:"_id,omitempty"`
	ProjectID string  `json:"project,omitempty"`
	Author    UserRef `json:"author"`
	Text      string  `json:"text"`
	Status    Status  `json:"status,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

// Text is a scalar the backend may encode as a string or a number.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*t = Text(n.String())
	}
	return nil
}

// Int returns the numeric value of t, or 0 when it is not a number.
func (t Text) Int() int {
	n, err := strconv.Atoi(strings.TrimSpace(string(t)))
	if err != nil {
		return 0
	}
	return n
}

// Project is an extension project as returned by the backend.
type Project struct {
	ID                 string           `json:"_id"`
	Code               string           `json:"code,omitempty"`
	Title              string           `json:"title,omitempty"`
	Type               string           `json:"type,omitempty"`
	Year               Text             `json:"year,omitempty"`
	Semester           Text             `json:"semester,omitempty"`
	Status             Status           `json:"status"`
	CreatedBy          UserRef          `json:"createdBy"`
	Faculty            *Faculty         `json:"faculty,omitempty"`
	Program            *Program         `json:"program,omitempty"`
	Director           *UserRef         `json:"director,omitempty"`
	Description        string           `json:"description,omitempty"`
	Justification      string           `json:"justification,omitempty"`
	Location           string           `json:"location,omitempty"`
	GeneralObjective   string           `json:"generalObjective,omitempty"`
	SpecificObjectives []string         `json:"specificObjectives,omitempty"`
	Populations        map[string][]any `json:"populations,omitempty"`
	Results            []string         `json:"results,omitempty"`
	Impacts            []string         `json:"impacts,omitempty"`
	Entities           []Entity         `json:"entities,omitempty"`
	Documents          []Document       `json:"documents,omitempty"`
	StartDate          string           `json:"startDate,omitempty"`
	EndDate            string           `json:"endDate,omitempty"`

	// Raw is the exact payload the backend returned for this record.
	Raw json.RawMessage `json:"-"`
}

func (p *Project) UnmarshalJSON(data []byte) error {
	type plain Project
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if decoded.ID == "" {
		var alt struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(data, &alt)
		decoded.ID = alt.ID
	}
	*p = Project(decoded)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the backend payload untouched when one is attached.
func (p Project) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	type plain Project
	return json.Marshal(plain(p))
}

// Attempt outcomes recorded in the transition journal.
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeForbidden  = "forbidden"
	OutcomeFailed     = "failed"
	OutcomeIncomplete = "incomplete"
)

// JournalEntry records one transition attempt.
type JournalEntry struct {
	ID         int64  `json:"id"`
	RequestID  string `json:"request_id"`
	TS         string `json:"ts" format:"date-time"`
	ProjectID  string `json:"project_id"`
	ActorID    string `json:"actor_id"`
	Role       string `json:"role,omitempty"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Outcome    string `json:"outcome" enum:"succeeded,forbidden,failed,incomplete"`
	Message    string `json:"message,omitempty"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
