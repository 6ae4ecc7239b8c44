package kanban

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned when an operation names an unknown task.
	ErrTaskNotFound = errors.New("task not found")

	// ErrMeetingNotFound is returned when an operation names an unknown meeting.
	ErrMeetingNotFound = errors.New("meeting not found")
)

// PermissionError is returned when the acting user's role lacks a capability.
// The rejected operation leaves all state unchanged.
type PermissionError struct {
	Role       UserRole
	Capability Capability
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("role %s may not %s", e.Role, e.Capability)
}

// ValidationError is returned when required user input is missing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func required(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "required"}
}

// IsPermission reports whether err is a PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
