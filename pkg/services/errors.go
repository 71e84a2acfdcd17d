// Package services is the orchestration layer between the HTTP surface
// and the engine packages: each service owns one domain (agents,
// workflows, traces, budgets, gates, comparisons) and translates
// between transport requests and engine calls.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when creating a duplicate entity.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDenied is returned when a hook or governance decision blocks
	// the operation.
	ErrDenied = errors.New("operation denied")
)

// ValidationError wraps field-specific validation errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// DeniedError carries the reason an operation was blocked.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("denied: %s", e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return ErrDenied
}
