package models

import (
	"errors"
	"fmt"
)

// ErrMissingID is wrapped by every ValidationError.
var ErrMissingID = errors.New("missing required id")

// ValidationError reports that the caller omitted a required id.
type ValidationError struct {
	Op    string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Field, ErrMissingID)
}

func (e *ValidationError) Unwrap() error {
	return ErrMissingID
}

// RequireID returns a ValidationError when id is empty.
func RequireID[T ~string](op, field string, id T) error {
	if id == "" {
		return &ValidationError{Op: op, Field: field}
	}
	return nil
}

// ShapeError describes one canvas field that did not have the expected shape
// and was replaced by its default.
type ShapeError struct {
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("malformed canvas field %q: %s", e.Field, e.Reason)
}
