// Package domainerrors carries the error taxonomy shared by services, stores and transports.
//
// Services return *Error values tagged with a Code; transports translate codes into
// status codes without inspecting messages. Infrastructure facts (not found, conflict)
// live in pkg/platform/sentinel and are translated by services.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure.
type Code string

// Generic codes.
const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvalidRequest     Code = "invalid_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Consent window rule violations. Each one rejects a single requested operation and
// leaves state untouched.
const (
	CodeInsufficientDuration       Code = "insufficient_duration"
	CodeStartInPast                Code = "start_in_past"
	CodeOverlappingActiveWindow    Code = "overlapping_active_window"
	CodeNoConsentFound             Code = "no_consent_found"
	CodeAlreadyExpired             Code = "already_expired"
	CodeNotYetActive               Code = "not_yet_active"
	CodeTooCloseToExpiry           Code = "too_close_to_expiry"
	CodeCannotCancelStartedConsent Code = "cannot_cancel_started_consent"
	CodeMismatchedArrayLengths     Code = "mismatched_array_lengths"
	CodeIndexOutOfBounds           Code = "index_out_of_bounds"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// GetCode returns the outermost code in err's chain, or CodeInternal for uncoded errors.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
