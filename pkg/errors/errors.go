// Package errors provides structured error types for govend.
//
// Every failure raised by the resolver, the installer and the snapshot cache
// carries a machine-readable [Code] so that callers can attribute blame
// without string matching:
//   - INVALID_*: configuration and input validation failures
//   - UNRESOLVED_PACKAGE / UNRECOGNIZED_PACKAGE / INCOMPLETE_PACKAGE: an
//     import path or notation could not be mapped to an origin
//   - FETCH_FAILED: a VCS or module proxy operation failed
//   - FILESYSTEM_ERROR: directory creation, deletion or listing failed
//   - CACHE_ERROR: the snapshot cache could not be persisted
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnresolved, "cannot resolve %s", path)
//	if errors.Is(err, errors.ErrCodeUnresolved) {
//	    // report and stop
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFetch, origErr, "git ls-remote %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input and configuration errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeConfig        Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidImport Code = "INVALID_IMPORT_PATH"

	// Resolution errors
	ErrCodeUnresolved   Code = "UNRESOLVED_PACKAGE"
	ErrCodeUnrecognized Code = "UNRECOGNIZED_PACKAGE"
	ErrCodeIncomplete   Code = "INCOMPLETE_PACKAGE"
	ErrCodeNotFound     Code = "NOT_FOUND"

	// Fetch errors
	ErrCodeFetch   Code = "FETCH_FAILED"
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Local state errors
	ErrCodeFilesystem Code = "FILESYSTEM_ERROR"
	ErrCodeCache      Code = "CACHE_ERROR"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Filesystem wraps an I/O failure on path. It returns nil if cause is nil.
func Filesystem(cause error, op, path string) error {
	if cause == nil {
		return nil
	}
	return Wrap(ErrCodeFilesystem, cause, "%s %s", op, path)
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

