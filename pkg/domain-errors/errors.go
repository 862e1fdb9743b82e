// Package domainerrors defines the coded error type shared by services and
// transport. Stores return sentinel errors; services wrap them with a code;
// transport maps codes to HTTP statuses.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for propagation policy and HTTP mapping.
type Code string

const (
	// CodeValidation marks a missing or malformed client-supplied field,
	// including absent fee proofs. Never retried by the server.
	CodeValidation Code = "validation"
	// CodeInvalidTransition marks a lifecycle precondition violation
	// (e.g. deciding a request that is still pending).
	CodeInvalidTransition Code = "invalid_transition"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	// CodeUnavailable marks ledger build operations refused because the
	// RPC endpoint or authority key is not configured.
	CodeUnavailable Code = "unavailable"
	// CodeSubmissionFailed marks a broadcast or confirmation failure for a
	// signed ledger transaction. Surfaced, never auto-retried.
	CodeSubmissionFailed Code = "submission_failed"
	CodeUnauthorized     Code = "unauthorized"
	CodeForbidden        Code = "forbidden"
	CodeInternal         Code = "internal"
)

// Error carries a code, a user-visible reason, and an optional cause.
type Error struct {
	Code   Code
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with no cause.
func New(code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

// Wrap attaches a code and reason to an underlying error.
func Wrap(err error, code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
