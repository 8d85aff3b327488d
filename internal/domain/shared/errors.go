package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every stocktaking operation.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeLocationMismatch  = "LOCATION_MISMATCH"
	CodeInvalidTransition = "INVALID_STATE_TRANSITION"
	CodeNotFound          = "NOT_FOUND"
	CodeNetwork           = "NETWORK_ERROR"
	CodePartialFailure    = "PARTIAL_FAILURE"
	CodeForbidden         = "FORBIDDEN"

	// CodeConcurrentModification means the stored aggregate changed after it was loaded
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target carries the same code, so sentinel comparisons
// keep working when messages differ.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrValidation        = NewDomainError(CodeValidation, "Invalid input provided")
	ErrLocationMismatch  = NewDomainError(CodeLocationMismatch, "Scanned location does not match the assigned location")
	ErrInvalidTransition = NewDomainError(CodeInvalidTransition, "Operation not allowed in current state")
	ErrNotFound          = NewDomainError(CodeNotFound, "Resource not found")
	ErrNetwork           = NewDomainError(CodeNetwork, "Upstream service unavailable")
	ErrPartialFailure    = NewDomainError(CodePartialFailure, "Batch partially applied")
	ErrForbidden         = NewDomainError(CodeForbidden, "Access to this resource is forbidden")

	ErrConcurrentModification = NewDomainError(CodeConcurrentModification, "The record was modified by another user, reload and try again")
)

// Validation returns a VALIDATION_ERROR with a formatted message
func Validation(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// InvalidTransition returns an INVALID_STATE_TRANSITION with a formatted message
func InvalidTransition(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidTransition, fmt.Sprintf(format, args...))
}

// NotFound returns a NOT_FOUND error naming the missing resource
func NotFound(resource string, id any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %v not found", resource, id))
}

// Forbidden returns a FORBIDDEN error
func Forbidden(format string, args ...any) *DomainError {
	return NewDomainError(CodeForbidden, fmt.Sprintf(format, args...))
}

// Network wraps a transport failure (database, cache, object storage) so
// callers can tell it apart from business rule violations.
func Network(op string, cause error) *DomainError {
	return &DomainError{
		Code:    CodeNetwork,
		Message: fmt.Sprintf("%s: %v", op, cause),
		cause:   cause,
	}
}

// CodeOf extracts the domain error code from err, or "" if err is not a DomainError.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	var pf *PartialFailureError
	if errors.As(err, &pf) {
		return CodePartialFailure
	}
	return ""
}

// IsCode reports whether err carries the given domain error code
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
