// Package apperr defines the error taxonomy shared by the tutoring and
// reporting services and the HTTP layer that maps it to status codes.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or invalid caller-supplied field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Required builds a ValidationError for a missing field.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "required"}
}

// NotFoundError reports a missing conversation, problem or report.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// GenerationError wraps a failed or unusable generation call.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation failed: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ErrDecodeTolerated marks a hidden state fragment that was missing or
// malformed. It never leaves the codec as a returned error.
var ErrDecodeTolerated = errors.New("state fragment tolerated")

// ErrEmptyGeneration is the cause attached when a backend returns no text.
var ErrEmptyGeneration = errors.New("empty response")

// IsValidation, IsNotFound and IsGeneration classify an error chain.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsGeneration(err error) bool {
	var g *GenerationError
	return errors.As(err, &g)
}
