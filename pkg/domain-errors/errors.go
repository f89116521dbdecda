// Package domainerrors defines coded errors shared between services and the
// transport layer. Stores wrap sentinel errors; services translate those into
// coded errors here so handlers can map them onto HTTP responses and the UI
// can key notifications off stable codes.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of domain failure.
type Code string

const (
	// Transport-level codes.
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal"

	// Register-flow codes. These are part of the UI contract: each one maps
	// to a distinct operator-facing recovery path.
	CodeValidation        Code = "validation"
	CodeStockExceeded     Code = "stock_exceeded"
	CodeSessionNotOpen    Code = "session_not_open"
	CodePaymentIncomplete Code = "payment_incomplete"
	CodeStockConflict     Code = "stock_conflict"
	CodeCommitPartial     Code = "commit_partial_failure"
)

// Error is a coded domain error. Details carries structured context the UI
// needs to recover (remaining amount, offending product, completed steps).
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithDetail returns the error with an extra structured detail attached.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// As unwraps err into an *Error when possible.
func As(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}
