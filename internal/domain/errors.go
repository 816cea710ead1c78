// Package domain provides core domain types shared across modules.
package domain

import "fmt"

// NotFoundError indicates a referenced entity does not exist.
// Surfaced to the caller as-is; never retried.
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (e NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// NewNotFound creates a NotFoundError for an entity with an identifier
func NewNotFound(entity string, id interface{}) NotFoundError {
	return NotFoundError{Entity: entity, ID: id}
}

// InsufficientDataError indicates too few holdings or observations exist
// for the requested statistic. Surfaced, never silently defaulted.
type InsufficientDataError struct {
	Message string
}

func (e InsufficientDataError) Error() string {
	return e.Message
}

// NewInsufficientData creates an InsufficientDataError with a message
func NewInsufficientData(format string, args ...interface{}) InsufficientDataError {
	return InsufficientDataError{Message: fmt.Sprintf(format, args...)}
}

// ValidationError indicates malformed caller input, rejected before any
// computation starts.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidation creates a ValidationError for a field
func NewValidation(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}
