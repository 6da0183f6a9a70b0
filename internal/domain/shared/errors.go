// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
// Every failure path in the subsystem resolves to one of these kinds; no
// operation surfaces a bare, unclassified error.
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors - rejected immediately, never retried
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidPlan     = errors.New("unknown subscription plan")

	// State errors
	ErrStateTransition        = errors.New("invalid state transition")
	ErrSubscriptionNotActive  = errors.New("subscription is not active")
	ErrSubscriptionCancelled  = errors.New("subscription is cancelled")
	ErrQuotaExceeded          = errors.New("session quota exceeded for billing cycle")
	ErrSchedulingConflict     = errors.New("session conflicts with an existing booking")
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Store / external service errors - safe to retry with backoff
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrExternalService  = errors.New("external service error")
	ErrTimeout          = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "encadrement", "session", "messaging"
	Op      string // Operation that failed, e.g., "Schedule", "Cancel"
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

// Encadrement domain errors
var (
	ErrEncadrementNotFound    = NewDomainError("encadrement", "Find", ErrNotFound, "encadrement not found")
	ErrUnknownFormule         = NewDomainError("encadrement", "Validate", ErrInvalidPlan, "formule is not in the plan table")
	ErrEncadrementTerminal    = NewDomainError("encadrement", "Transition", ErrStateTransition, "cancelled encadrement cannot change state")
	ErrEncadrementNotPausable = NewDomainError("encadrement", "Pause", ErrStateTransition, "only an active encadrement can be paused")
	ErrEncadrementNotResumed  = NewDomainError("encadrement", "Resume", ErrStateTransition, "only a paused encadrement can be resumed")
)

// Session domain errors
var (
	ErrSessionNotFound      = NewDomainError("session", "Find", ErrNotFound, "session not found")
	ErrSessionNotConfirmed  = NewDomainError("session", "Complete", ErrStateTransition, "session must be confirmed before completion")
	ErrSessionNotScheduled  = NewDomainError("session", "Confirm", ErrStateTransition, "only a scheduled session can be confirmed")
	ErrSessionNotCancelable = NewDomainError("session", "Cancel", ErrStateTransition, "completed or cancelled sessions cannot be cancelled")
	ErrSessionQuotaReached  = NewDomainError("session", "Schedule", ErrQuotaExceeded, "monthly session quota reached")
	ErrSessionOverlap       = NewDomainError("session", "Schedule", ErrSchedulingConflict, "teacher already has a session in this window")
)

// Messaging domain errors
var (
	ErrMessageNotFound  = NewDomainError("messaging", "Find", ErrNotFound, "message not found")
	ErrNotRecipient     = NewDomainError("messaging", "MarkRead", ErrForbidden, "only the recipient can mark a message read")
	ErrChannelCancelled = NewDomainError("messaging", "Send", ErrSubscriptionCancelled, "messaging is closed on a cancelled encadrement")
)

// Progress domain errors
var (
	ErrProgressOutOfRange = NewDomainError("progress", "Update", ErrValueOutOfRange, "progress must be between 0 and 100")
)

// Resource domain errors
var (
	ErrResourceNotFound    = NewDomainError("resource", "Find", ErrNotFound, "resource not found")
	ErrInvalidResourceType = NewDomainError("resource", "Validate", ErrInvalidInput, "invalid resource type")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
// Validation failures are rejected immediately with no retry.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidPlan) ||
		errors.Is(err, ErrForbidden)
}

// IsBusinessRejection checks if the error is a business-rule rejection that
// must be surfaced verbatim to the caller, never silently resolved.
func IsBusinessRejection(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrSchedulingConflict) ||
		errors.Is(err, ErrStateTransition) ||
		errors.Is(err, ErrSubscriptionNotActive) ||
		errors.Is(err, ErrSubscriptionCancelled)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
