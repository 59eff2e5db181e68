// Package domainerrors defines the coded error type every lifecycle operation
// returns. Codes form a closed taxonomy; transport layers map them to their own
// status vocabulary, services match on them, and nothing in this module panics
// for an expected failure path.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error into the taxonomy callers are allowed to branch on.
type Code string

const (
	// CodeValidation marks malformed input: bad identifier syntax, a missing or
	// invalid per-type business field. Recoverable by fixing the input.
	CodeValidation Code = "validation"

	// State machine conflicts. The client asked for a transition the entity's
	// current state forbids; retrying without a state change will fail again.
	CodeAlreadyProcessed  Code = "already_processed"
	CodeIllegalTransition Code = "illegal_transition"
	CodeIllegalState      Code = "illegal_state"
	CodeExpired           Code = "expired"

	// Signing use-case guards.
	CodeAlreadyGranted    Code = "already_granted"
	CodePendingSubmission Code = "pending_contract_submission"

	// CodeNotAuthorized means the acting party does not hold the required
	// relationship to the entity. Distinct from CodeNotFound so existence
	// information leaks consistently or not at all.
	CodeNotAuthorized Code = "not_authorized"

	CodeNotFound Code = "not_found"

	// CodeDependency covers external collaborator failures (signer, person
	// directory, storage). The only category a caller may sensibly retry.
	CodeDependency Code = "dependency"
	CodeTimeout    Code = "timeout"

	// CodeInternal is reserved for invariant violations and wiring bugs.
	CodeInternal Code = "internal"
)

// Error carries a code, a caller-facing message and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with a fixed message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable through errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// CodeOf extracts the outermost code from err.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
