package errors

import (
	"errors"
	"fmt"
)

var (
	// Intent errors
	ErrIntentNotFound = errors.New("intent not found")
	ErrIntentLost     = errors.New("payment confirmed but intent was lost")

	// Payment gateway errors
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	ErrSessionNotFound     = errors.New("checkout session not found")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrGatewayTimeout      = errors.New("payment gateway timeout")

	// Trip errors
	ErrTripNotFound       = errors.New("trip not found")
	ErrDuplicateJoinCode  = errors.New("duplicate join code")
	ErrDuplicateTrip      = errors.New("trip already exists for correlation key")
	ErrCreationTimeout    = errors.New("trip creation timed out")
	ErrCreationInProgress = errors.New("trip creation already in progress")

	// Idempotency errors
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidationFailed) match any field-level failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
