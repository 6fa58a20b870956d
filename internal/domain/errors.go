package domain

import (
	"errors"
	"fmt"
)

// ErrMappingConflict indicates that two writers raced on the same
// (tenant, canonical key) pair. The whole Write call is safe to retry.
var ErrMappingConflict = errors.New("mapping write conflict")

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a missing or malformed required field on an item.
// The caller must fix the input; retrying does not help.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidUnitError reports an unrecognized unit string.
type InvalidUnitError struct {
	Unit string
}

func (e *InvalidUnitError) Error() string {
	return fmt.Sprintf("invalid unit %q", e.Unit)
}

// ConfigurationError reports a missing, malformed, or empty rule file.
// Fatal at startup, never raised at request time.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
