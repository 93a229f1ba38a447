package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a domain error for transport mapping.
type ErrorCode string

const (
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeInvalidState ErrorCode = "INVALID_STATE"
	CodeForbidden    ErrorCode = "FORBIDDEN"
)

// Error is the base type for all domain errors.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewValidationError reports malformed or missing input.
func NewValidationError(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// NewNotFoundError reports that an entity could not be resolved by identifier.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

// NewConflictError reports a uniqueness or concurrent-modification conflict.
func NewConflictError(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// NewInvalidStateError reports a precondition violation: the entity is not in
// the status the requested action requires. The message names the required
// prior status so callers can surface the specific rule violated.
func NewInvalidStateError(action, current, required string) *Error {
	return &Error{
		Code:    CodeInvalidState,
		Message: fmt.Sprintf("cannot %s: booking must be %s, current status is %s", action, required, current),
	}
}

// NewForbiddenError reports that the acting user may not touch the entity.
func NewForbiddenError(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

// CodeOf extracts the ErrorCode from err, or empty string for non-domain errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsConflict reports whether err is a conflict domain error.
func IsConflict(err error) bool {
	return CodeOf(err) == CodeConflict
}

// IsNotFound reports whether err is a not-found domain error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}
