// Package errors provides structured error types for whatschanged.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP API and the resolver
//   - Machine-readable error codes for programmatic handling
//   - A split between per-dependency failures and batch-fatal failures
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - PACKAGE_NOT_FOUND, SCHEMA_MISMATCH: one dependency cannot be resolved
//   - FETCH_FAILED, RATE_LIMITED: Release host failures
//   - STORAGE_ERROR: the release store failed
//
// Per-dependency codes ([ErrCodePackageNotFound], [ErrCodeSchemaMismatch],
// [ErrCodeInvalidVersion]) are folded into a packageNotFound result by the
// resolver. [ErrCodeRateLimited] always aborts the whole batch.
//
// # Usage
//
//	err := errors.New(errors.ErrCodePackageNotFound, "no repository for %s", name)
//	if errors.Is(err, errors.ErrCodePackageNotFound) {
//	    // Degrade to a packageNotFound entry
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFetchFailed, origErr, "list releases %s/%s", owner, repo)
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidPackage  Code = "INVALID_PACKAGE"
	ErrCodeInvalidVersion  Code = "INVALID_VERSION"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"

	// Per-dependency failures
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"
	ErrCodeSchemaMismatch  Code = "SCHEMA_MISMATCH"

	// Release host failures
	ErrCodeFetchFailed Code = "FETCH_FAILED"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Release store failures
	ErrCodeStorage Code = "STORAGE_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
	Status  int    // HTTP status of the upstream response, if any
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

// FetchFailed creates an ErrCodeFetchFailed error carrying the upstream status.
func FetchFailed(status int, format string, args ...any) *Error {
	e := New(ErrCodeFetchFailed, format, args...)
	e.Status = status
	return e
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code,
// and treats a *RateLimitedError as ErrCodeRateLimited.
func Is(err error, code Code) bool {
	return GetCode(err) == code && err != nil
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error or *RateLimitedError.
func GetCode(err error) Code {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return ErrCodeRateLimited
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// StatusOf returns the upstream HTTP status recorded on err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RateLimitedError is returned when the release host reports an exhausted quota.
type RateLimitedError struct {
	Reset   time.Time // When the quota window resets, zero if unknown
	Message string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	msg := "rate limited"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if !e.Reset.IsZero() {
		msg += fmt.Sprintf(" (resets at %s)", e.Reset.UTC().Format(time.RFC3339))
	}
	return msg
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}

// RetryAfter returns how long until the quota resets, relative to now.
func (e *RateLimitedError) RetryAfter(now time.Time) time.Duration {
	if e.Reset.IsZero() || !e.Reset.After(now) {
		return 0
	}
	return e.Reset.Sub(now)
}
