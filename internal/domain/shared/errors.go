// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "session", "roster"
	Op      string // Operation that failed, e.g., "Create", "Scan"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Session domain errors
var (
	ErrSessionNotFound   = NewDomainError("session", "Find", ErrNotFound, "session not found")
	ErrInvalidYear       = NewDomainError("session", "Validate", ErrValueOutOfRange, "year must be between 1 and 4")
	ErrInvalidDivision   = NewDomainError("session", "Validate", ErrInvalidFormat, "division must be a single uppercase letter")
	ErrInvalidSubject    = NewDomainError("session", "Validate", ErrEmptyValue, "subject is required")
	ErrInvalidTeacherID  = NewDomainError("session", "Validate", ErrEmptyValue, "teacher ID is required")
	ErrInvalidIdentity   = NewDomainError("session", "Validate", ErrEmptyValue, "identity is required")
	ErrEditWindowExpired = NewDomainError("session", "Edit", ErrExpired, "edit window has expired")
)

// Token errors
var (
	ErrTokenExpired   = NewDomainError("token", "Validate", ErrExpired, "token is outside the acceptance window")
	ErrTokenMalformed = NewDomainError("token", "Decode", ErrInvalidFormat, "token payload is malformed")
	ErrSessionClosed  = NewDomainError("token", "Validate", ErrInvalidState, "session is no longer issuing tokens")
)

// Roster domain errors
var (
	ErrRosterUnavailable = NewDomainError("roster", "Fetch", ErrServiceUnavailable, "roster provider is unavailable")
	ErrIdentityNotFound  = NewDomainError("roster", "Find", ErrNotFound, "identity not found in roster")
	ErrNotEnrolled       = NewDomainError("roster", "Check", ErrForbidden, "identity is not enrolled in this cohort")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
