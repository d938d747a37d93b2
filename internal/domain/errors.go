package domain

import (
	"errors"
	"fmt"
)

// Error codes. Each maps to one HTTP status in the handler package.
const (
	EINVALID      = "invalid"
	EUNAUTHORIZED = "unauthorized"
	ENOTFOUND     = "not_found"
	ECONFLICT     = "conflict"
	ERATELIMIT    = "rate_limit"
	EINTERNAL     = "internal"
)

// internalMessage replaces the message of every EINTERNAL error shown to a
// client.
const internalMessage = "An internal error occurred. Please try again later."

// Error is a failure with a client-safe Message and a machine-readable Code.
// Op names the failing operation, e.g. "UserService.Register", and is only
// ever logged.
type Error struct {
	Code    string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code, op, message string, cause error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: cause}
}

// Errorf builds an Error with a formatted message.
func Errorf(code, op, format string, args ...any) *Error {
	return newError(code, op, fmt.Sprintf(format, args...), nil)
}

func NotFound(op, resource, id string) *Error {
	return newError(ENOTFOUND, op, fmt.Sprintf("%s with ID %q not found", resource, id), nil)
}

func Unauthorized(op, message string) *Error {
	return newError(EUNAUTHORIZED, op, message, nil)
}

func Conflict(op, message string) *Error {
	return newError(ECONFLICT, op, message, nil)
}

// RateLimit reports a client that exceeded its request allowance.
func RateLimit(op string) *Error {
	return newError(ERATELIMIT, op, "Too many requests. Please try again later.", nil)
}

// Internal wraps err. Its message is logged, never shown.
func Internal(err error, op, message string) *Error {
	return newError(EINTERNAL, op, message, err)
}

// ErrorCode returns the code of the first Error in err's chain. Validation
// errors are EINVALID; anything unrecognised is EINTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return EINVALID
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the message safe to show a client.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok && e.Code != EINTERNAL {
		return e.Message
	}
	return internalMessage
}

// ErrorOp returns the Op of the first Error in err's chain.
func ErrorOp(err error) string {
	if e, ok := asError(err); ok {
		return e.Op
	}
	return ""
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ValidationError collects per-field messages, keyed by field name.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed (%d fields)", e.Op, len(e.Fields))
}

func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

// AddFieldError records message against field on the ValidationError in
// err's chain, or starts a new one when there is none.
func AddFieldError(err error, field, message string) *ValidationError {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return NewValidationError("", field, message)
	}
	ve.Fields[field] = message
	return ve
}
