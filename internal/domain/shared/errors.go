package shared

import "fmt"

// Error codes shared by every bounded context
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeSearchUnavailable   = "SEARCH_UNAVAILABLE"
	CodePersistence         = "PERSISTENCE_ERROR"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
)

// DomainError represents a domain-level error.
// Two DomainErrors match under errors.Is when their codes are equal.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of the error with a different message
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{Code: e.Code, Message: message, cause: e.cause}
}

// WithCause returns a copy of the error wrapping cause
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, cause: cause}
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
	ErrValidation          = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInsufficientBalance = NewDomainError(CodeInsufficientBalance, "Insufficient points balance")
	ErrSearchUnavailable   = NewDomainError(CodeSearchUnavailable, "Search is temporarily unavailable")
	ErrPersistence         = NewDomainError(CodePersistence, "Failed to persist changes")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
)

// NewValidationError creates a validation error with a caller-facing message
func NewValidationError(format string, args ...any) *DomainError {
	return ErrValidation.WithMessage(fmt.Sprintf(format, args...))
}

// NewNotFoundError creates a not-found error naming the missing resource
func NewNotFoundError(resource string) *DomainError {
	return ErrNotFound.WithMessage(resource + " not found")
}

// NewPersistenceError wraps a store failure
func NewPersistenceError(op string, cause error) *DomainError {
	return &DomainError{Code: CodePersistence, Message: "failed to " + op, cause: cause}
}

// NewSearchUnavailableError wraps a search index failure
func NewSearchUnavailableError(cause error) *DomainError {
	return ErrSearchUnavailable.WithCause(cause)
}
