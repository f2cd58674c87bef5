package composer

import "errors"

var (
	// ErrTemplateNotFound is returned for unknown template keys. Callers
	// treat it as a no-op and leave the current draft untouched.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrSessionClosed is returned when a mutation reaches a closed session
	ErrSessionClosed = errors.New("composer session is closed")

	// ErrSubmitInFlight is returned when a mutation arrives while a submit
	// is outstanding for the session
	ErrSubmitInFlight = errors.New("submit already in progress")

	// ErrAttachmentNotFound is returned when removing an unknown attachment
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// ValidationError is a field-level validation failure. It blocks the
// Editing -> Submitting transition without touching the draft.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// ValidationErrors groups the field-level failures of one submit attempt
type ValidationErrors []*ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msg := e[0].Error()
	for _, v := range e[1:] {
		msg += "; " + v.Error()
	}
	return msg
}
