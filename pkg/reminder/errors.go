package reminder

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks an unknown reminder or assignment id.
	ErrNotFound = errors.New("reminder not found")
	// ErrForbidden marks a non-creator attempting to share or edit.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidOperation marks a structurally impossible request, such as
	// accepting one's own reminder.
	ErrInvalidOperation = errors.New("invalid operation")
)

// ValidationError rejects a request before any state change.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid field %q", e.Field)
}
