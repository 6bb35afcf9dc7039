// Package errors provides standardized domain errors with codes for the
// LinkStash sync core.
//
// Usage:
//
//	// In mutators - return typed errors
//	if nameTaken {
//	    return errors.Validationf("tag %q already exists", name)
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrSyncTransient) {
//	    // leave the queue item for the next drain pass
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the sync core.
const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeValidation    Code = "VALIDATION"
	CodeStorage       Code = "STORAGE"
	CodeSyncTransient Code = "SYNC_TRANSIENT"
	CodeSyncRejected  Code = "SYNC_REJECTED"
	CodeInternal      Code = "INTERNAL"
)

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Details any    `json:"details,omitempty"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Retryable reports whether the error is worth another drain pass.
// Rejected operations are retried too; the engine makes no fast-fail
// distinction, both kinds just count against the attempt ceiling.
func (e *Error) Retryable() bool {
	return e.Code == CodeSyncTransient || e.Code == CodeSyncRejected
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound      = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation    = &Error{Code: CodeValidation, Message: "validation error"}
	ErrStorage       = &Error{Code: CodeStorage, Message: "storage error"}
	ErrSyncTransient = &Error{Code: CodeSyncTransient, Message: "transient sync failure"}
	ErrSyncRejected  = &Error{Code: CodeSyncRejected, Message: "sync operation rejected"}
	ErrInternal      = &Error{Code: CodeInternal, Message: "internal error"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Storage wraps a local persistence failure. Callers must never see a raw
// storage engine error.
func Storage(err error) *Error {
	return &Error{Code: CodeStorage, Message: "storage error", cause: err}
}

// Storagef creates a storage error with formatted message.
func Storagef(format string, args ...any) *Error {
	return &Error{Code: CodeStorage, Message: fmt.Sprintf(format, args...)}
}

// Transient wraps a network-level or server-side failure that is worth
// retrying on the next drain pass.
func Transient(err error) *Error {
	return &Error{Code: CodeSyncTransient, Message: "transient sync failure", cause: err}
}

// Transientf creates a transient sync error with formatted message.
func Transientf(format string, args ...any) *Error {
	return &Error{Code: CodeSyncTransient, Message: fmt.Sprintf(format, args...)}
}

// Rejected marks an operation the server refused outright (4xx).
func Rejected(msg string) *Error {
	return &Error{Code: CodeSyncRejected, Message: msg}
}

// Rejectedf creates a rejected sync error with formatted message.
func Rejectedf(format string, args ...any) *Error {
	return &Error{Code: CodeSyncRejected, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// FromStatus maps a remote HTTP status code onto the sync error taxonomy:
// 5xx is transient, 4xx is rejected. 2xx never reaches this function.
func FromStatus(status int, msg string) *Error {
	if status >= http.StatusInternalServerError {
		return &Error{Code: CodeSyncTransient, Message: msg}
	}
	return &Error{Code: CodeSyncRejected, Message: msg}
}
