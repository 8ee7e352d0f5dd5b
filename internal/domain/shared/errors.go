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
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// Persistence/infrastructure errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrSerialization    = errors.New("serialization failure")
	ErrTimeout          = errors.New("operation timeout")
	ErrRateLimited      = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "behavior", "stage", "progress"
	Op      string // Operation that failed, e.g., "Append", "Award"
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

// Behavior domain errors
var (
	ErrInvalidLearnerID       = NewDomainError("behavior", "Validate", ErrInvalidID, "invalid learner ID")
	ErrInvalidSessionID       = NewDomainError("behavior", "Validate", ErrInvalidID, "invalid session ID")
	ErrUnknownInteractionType = NewDomainError("behavior", "Validate", ErrInvalidInput, "unknown interaction type")
	ErrMalformedEvent         = NewDomainError("behavior", "Validate", ErrInvalidFormat, "malformed behavioral event")
	ErrEventLogUnavailable    = NewDomainError("behavior", "Append", ErrStoreUnavailable, "event log unavailable")
)

// Stage domain errors
var (
	ErrUnknownStage       = NewDomainError("stage", "Resolve", ErrInvalidInput, "unknown stage")
	ErrProfileNotFound    = NewDomainError("stage", "Profile", ErrNotFound, "stage profile not found")
	ErrAssessmentExpired  = NewDomainError("stage", "Cache", ErrExpired, "cached assessment expired")
	ErrAssessmentNotReady = NewDomainError("stage", "Progress", ErrInvalidState, "not enough data for stage progress")
)

// Progress domain errors
var (
	ErrMetricsNotFound    = NewDomainError("progress", "Find", ErrNotFound, "progress metrics not found")
	ErrBadgeNotFound      = NewDomainError("progress", "Find", ErrNotFound, "badge not found")
	ErrBadgeAlreadyEarned = NewDomainError("progress", "Award", ErrAlreadyExists, "badge already earned")
	ErrUnknownBadgeType   = NewDomainError("progress", "Validate", ErrInvalidInput, "unknown badge type")
	ErrMetricsConflict    = NewDomainError("progress", "Upsert", ErrConcurrentModification, "progress metrics changed concurrently")
	ErrStoreDegraded      = NewDomainError("progress", "Store", ErrStoreUnavailable, "progress store unavailable")
)

// Notification domain errors
var (
	ErrNotificationNotFound = NewDomainError("notification", "Find", ErrNotFound, "notification not found")
	ErrNotificationFailed   = NewDomainError("notification", "Persist", ErrStoreUnavailable, "failed to persist notification")
	ErrTooManyNotifications = NewDomainError("notification", "Create", ErrRateLimited, "too many notifications")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
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

// IsStoreUnavailable checks if the error indicates a degraded store.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
