package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so errors.Is matches
// both the sentinels below and errors built with NewDomainError.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidDateRange    = "INVALID_DATE_RANGE"
	CodeOutOfCapacity       = "OUT_OF_CAPACITY"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeInvalidState        = "INVALID_STATE"
	CodeRuleValidation      = "RULE_VALIDATION_ERROR"
	CodeInvalidInput        = "INVALID_INPUT"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidDateRange    = NewDomainError(CodeInvalidDateRange, "End date is before start date")
	ErrOutOfCapacity       = NewDomainError(CodeOutOfCapacity, "Insufficient capacity available")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrRuleValidation      = NewDomainError(CodeRuleValidation, "Pricing rule is invalid")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
)

// NewNotFoundError creates a NOT_FOUND error naming the missing resource
func NewNotFoundError(resource, key string) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, key))
}

// NewRuleValidationError creates a RULE_VALIDATION_ERROR for a single field
func NewRuleValidationError(field, reason string) *DomainError {
	return NewDomainError(CodeRuleValidation, fmt.Sprintf("%s: %s", field, reason))
}
