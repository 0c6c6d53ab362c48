// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
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
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState = errors.New("invalid state")

	// Concurrency errors
	ErrTransactionConflict    = errors.New("transaction conflict")
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Infrastructure errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")

	// Badge errors
	ErrUnknownCriteria = errors.New("unknown badge criteria")

	// ErrCouldNotRecord is the generic failure surfaced to callers of activity recording.
	ErrCouldNotRecord = errors.New("could not record activity")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "stats", "badge", "activity"
	Op      string // Operation that failed, e.g., "Save", "Record"
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

// Stats domain errors
var (
	ErrStatsNotFound = NewDomainError("stats", "Get", ErrNotFound, "user stats not found")
	ErrVersionSkew   = NewDomainError("stats", "Save", ErrTransactionConflict, "document version changed")
)

// Badge domain errors
var (
	ErrBadgeNotFound        = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
	ErrInvalidBadgeCriteria = NewDomainError("badge", "Validate", ErrInvalidInput, "invalid badge criteria")
)

// Activity domain errors
var (
	ErrEmptyUserID     = NewDomainError("activity", "Validate", ErrEmptyValue, "user id is required")
	ErrInvalidPayload  = NewDomainError("activity", "Validate", ErrValidation, "invalid activity payload")
	ErrUnknownActivity = NewDomainError("activity", "Classify", ErrInvalidInput, "unknown activity type")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConflict checks if the error is an optimistic-concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTransactionConflict) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return IsConflict(err) ||
		errors.Is(err, ErrTimeout)
}
