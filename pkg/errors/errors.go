// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling for the arena tournament core.
// Every failure that crosses a package boundary carries an ErrorCode so the
// orchestrator can tell recoverable adapter noise from round-fatal conditions.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies arena errors for degradation and recovery decisions.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeTimeout indicates an adapter call exceeded its per-call timeout.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeUnreachable indicates the language-model backend could not be reached.
	CodeUnreachable ErrorCode = "UNREACHABLE"

	// CodeMalformed indicates the backend returned a response that could not
	// be interpreted (bad status, undecodable body).
	CodeMalformed ErrorCode = "MALFORMED"

	// CodeNoQuorum indicates every voter abstained in a round. Round-fatal.
	CodeNoQuorum ErrorCode = "NO_QUORUM"

	// CodeInvalidConfig indicates pre-run configuration validation failed.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// CodeInvariant indicates a population or lineage invariant was violated.
	// Must never occur in correct execution; always fatal, never corrected.
	CodeInvariant ErrorCode = "INVARIANT_VIOLATION"
)

// Error is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Recoverable bool                   `json:"recoverable"`
		Context     map[string]interface{} `json:"context,omitempty"`
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Recoverable: e.Recoverable,
		Context:     e.Context,
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// CodeOf returns the ErrorCode of err, or CodeInternal if err is not an
// arena Error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if ae, ok := err.(*Error); ok {
		return ae.Code
	}
	return CodeInternal
}

// IsAdapterFailure reports whether err is a per-call adapter failure that
// degrades to an abstention or empty answer instead of aborting the round.
func IsAdapterFailure(err error) bool {
	switch CodeOf(err) {
	case CodeTimeout, CodeUnreachable, CodeMalformed:
		return true
	}
	return false
}
