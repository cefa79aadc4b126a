package domain

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	// CodeConnection covers store unreachable, auth failure and rejected writes.
	CodeConnection Code = "connection"
	// CodeConflictExhausted is a transaction that kept losing its race.
	CodeConflictExhausted Code = "conflict_exhausted"
	// CodeNotConfigured is a write to a room section the host never declared.
	CodeNotConfigured Code = "not_configured"
	// CodeNotOwner is an owner operation from a session that no longer owns the room.
	CodeNotOwner Code = "not_owner"
	// CodeIneligible is an ownership target that is offline, waiting or unknown.
	CodeIneligible Code = "ineligible"
	// CodeClosed is an operation on a session that has been torn down.
	CodeClosed Code = "closed"
	// CodeInvalidInput is a malformed request from the outer surface.
	CodeInvalidInput Code = "invalid_input"
)

// Error is the domain error type.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Internal message for logs
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first domain error in err's chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// Sentinels for errors.Is checks.
var (
	ErrConnection        = New(CodeConnection, "store connection failed")
	ErrConflictExhausted = New(CodeConflictExhausted, "transaction retries exhausted")
	ErrNotConfigured     = New(CodeNotConfigured, "public data was not declared for this room")
	ErrNotOwner          = New(CodeNotOwner, "session does not own the room")
	ErrIneligible        = New(CodeIneligible, "participant cannot take ownership")
	ErrClosed            = New(CodeClosed, "session is closed")
	ErrInvalidInput      = New(CodeInvalidInput, "invalid input")
)
