package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Specific errors below wrap one of these so callers can
// branch on either the category or the exact condition with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrInvalidRecurrenceKind    = fmt.Errorf("invalid recurrence kind: %w", ErrValidation)
	ErrInvalidAmount            = fmt.Errorf("invalid amount: %w", ErrValidation)
	ErrInvalidDate              = fmt.Errorf("invalid date: %w", ErrValidation)
	ErrInviteNotFound           = fmt.Errorf("invite: %w", ErrNotFound)
	ErrMemberNotFound           = fmt.Errorf("member: %w", ErrNotFound)
	ErrHouseholdNotFound        = fmt.Errorf("household: %w", ErrNotFound)
	ErrOwnerAlreadyHasHousehold = fmt.Errorf("user already owns a household: %w", ErrConflict)
	ErrMemberExists             = fmt.Errorf("user is already invited or a member: %w", ErrConflict)
	ErrEmailTaken               = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrConcurrentUpdate         = fmt.Errorf("record changed by another writer: %w", ErrConflict)
)

// FieldError describes a validation problem with a single input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field-level problems.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("validation: %d errors (%s)", len(e.Errors), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// fieldErrors accumulates FieldErrors and turns into an error only when non-empty.
type fieldErrors []FieldError

func (f *fieldErrors) add(field, message string) {
	*f = append(*f, FieldError{Field: field, Message: message})
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Errors: f}
}
