package workflow

import (
	"errors"
	"fmt"
	"strings"

	"extflow/internal/domain"
)

var (
	// ErrForbidden matches any ForbiddenError.
	ErrForbidden = errors.New("transition forbidden")
	// ErrTransitionFailed matches any TransitionFailedError.
	ErrTransitionFailed = errors.New("transition failed")
	// ErrRequirementsMissing matches any RequirementsError.
	ErrRequirementsMissing = errors.New("project requirements missing")
)

// errEmptyRecord marks a backend answer that confirmed nothing.
var errEmptyRecord = errors.New("backend returned an empty project record")

// DefaultFailureMessage is shown when the backend gives no usable message.
const DefaultFailureMessage = "No se pudo cambiar el estado del proyecto. Intenta de nuevo."

// ForbiddenError indicates the actor may not move the project to the
// requested status.
type ForbiddenError struct {
	Role domain.Role
	From domain.Status
	To   domain.Status
}

func (e ForbiddenError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("no workflow role allows %s -> %s", e.From, e.To)
	}
	return fmt.Sprintf("role %s cannot move project %s -> %s", e.Role, e.From, e.To)
}

func (e ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// TransitionFailedError indicates the backend did not persist the transition.
type TransitionFailedError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e TransitionFailedError) Error() string { return e.Message }

func (e TransitionFailedError) Unwrap() error { return e.Err }

func (e TransitionFailedError) Is(target error) bool { return target == ErrTransitionFailed }

// RequirementsError is returned instead of calling the backend when
// requirement enforcement is on and the project is incomplete.
type RequirementsError struct {
	To      domain.Status
	Missing []string
}

func (e RequirementsError) Error() string {
	return fmt.Sprintf("project incomplete for %s: %s", e.To, strings.Join(e.Missing, "; "))
}

func (e RequirementsError) Is(target error) bool { return target == ErrRequirementsMissing }

// serverMessenger is implemented by backend errors that carry the message
// from the error payload.
type serverMessenger interface {
	ServerMessage() string
}

type statusCoder interface {
	GetStatus() int
}

func transitionFailed(err error) TransitionFailedError {
	tf := TransitionFailedError{Message: DefaultFailureMessage, Err: err}
	var sm serverMessenger
	if errors.As(err, &sm) {
		if msg := strings.TrimSpace(sm.ServerMessage()); msg != "" {
			tf.Message = msg
		}
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		tf.StatusCode = sc.GetStatus()
	}
	return tf
}
