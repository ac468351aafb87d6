// Package apperr defines the error taxonomy surfaced by stores and actions.
// Every error carries a stable Code so presentation clients can branch on it
// without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeSubscription Code = "SUBSCRIPTION_FAILED"
	CodeParse        Code = "PARSE_FAILED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeValidation   Code = "VALIDATION_FAILED"
	CodeProcedure    Code = "PROCEDURE_FAILED"
)

// SubscriptionError is recorded when a live query fails to open or is
// interrupted. The mirror keeps its last known-good content.
type SubscriptionError struct {
	Store string
	Err   error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Store, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// Code returns CodeSubscription.
func (e *SubscriptionError) Code() Code { return CodeSubscription }

// ParseError marks malformed local or remote data. The affected feature
// degrades to its empty state.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Code returns CodeParse.
func (e *ParseError) Code() Code { return CodeParse }

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Code returns CodeNotFound.
func (e *NotFoundError) Code() Code { return CodeNotFound }

// ValidationError blocks a user action locally. Message is user-facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Code returns CodeValidation.
func (e *ValidationError) Code() Code { return CodeValidation }

// ProcedureError wraps a failed remote procedure call. Prior state is left
// unchanged and the call may be retried by the user.
type ProcedureError struct {
	Procedure string
	CallID    string
	Err       error
}

func (e *ProcedureError) Error() string {
	return fmt.Sprintf("%s failed, please try again: %v", e.Procedure, e.Err)
}

func (e *ProcedureError) Unwrap() error { return e.Err }

// Code returns CodeProcedure.
func (e *ProcedureError) Code() Code { return CodeProcedure }

// Retryable reports whether the user can retry the action.
func (e *ProcedureError) Retryable() bool { return true }

type coded interface {
	Code() Code
}

// CodeOf returns the Code of the first coded error in err's chain, or an
// empty Code when none is present.
func CodeOf(err error) Code {
	var c coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Invalid is shorthand for a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
