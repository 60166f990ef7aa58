package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeCapacityExceeded indicates a verifier cannot accept more work
	ErrorTypeCapacityExceeded ErrorType = "CAPACITY_EXCEEDED"

	// ErrorTypeNotAVerifier indicates the user lacks the verifier capability
	ErrorTypeNotAVerifier ErrorType = "NOT_A_VERIFIER"

	// ErrorTypeConflictOfInterest indicates the verifier owns the prescription
	ErrorTypeConflictOfInterest ErrorType = "CONFLICT_OF_INTEREST"

	// ErrorTypeMissingJustification indicates a decision lacks required notes
	ErrorTypeMissingJustification ErrorType = "MISSING_JUSTIFICATION"

	// ErrorTypeDecisionNotAllowed indicates an illegal state transition
	ErrorTypeDecisionNotAllowed ErrorType = "DECISION_NOT_ALLOWED"

	// ErrorTypeConcurrencyConflict indicates a lost-update race was detected
	ErrorTypeConcurrencyConflict ErrorType = "CONCURRENCY_CONFLICT"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewCapacityExceededError creates a new capacity exceeded error
func NewCapacityExceededError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeCapacityExceeded,
		Message: message,
	}
}

// NewNotAVerifierError creates a new not-a-verifier error
func NewNotAVerifierError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotAVerifier,
		Message: message,
	}
}

// NewConflictOfInterestError creates a new conflict of interest error
func NewConflictOfInterestError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflictOfInterest,
		Message: message,
	}
}

// NewMissingJustificationError creates a new missing justification error
func NewMissingJustificationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeMissingJustification,
		Message: message,
	}
}

// NewDecisionNotAllowedError creates a new decision not allowed error
func NewDecisionNotAllowedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeDecisionNotAllowed,
		Message: message,
	}
}

// NewConcurrencyConflictError creates a new concurrency conflict error
func NewConcurrencyConflictError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeConcurrencyConflict,
		Message: message,
		Err:     err,
	}
}
