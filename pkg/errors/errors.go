// Package errors provides structured error types for the urbanknots engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI, API and library callers
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes map onto the three failure classes of the engine:
//   - INVALID_*: Specification errors (malformed linking schemes, bad expressions)
//   - DATA_INTEGRITY, JOIN_NOT_FOUND, NON_MANIFOLD: Data-integrity errors found while
//     building meshes or resolving knots
//   - UNSUPPORTED: A layer was asked for a level or operation it does not support
//
// None of these are retryable: resolving the same inputs again is deterministic.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d has no in layer", id, i)
//	if errors.Is(err, errors.ErrCodeInvalidSpec) {
//	    // Surface to the author of the knot
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDataIntegrity, origErr, "load features for %s", layerID)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Specification errors
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidSpec       Code = "INVALID_SPEC"
	ErrCodeInvalidExpression Code = "INVALID_EXPRESSION"
	ErrCodeInvalidProject    Code = "INVALID_PROJECT"
	ErrCodeInvalidPath       Code = "INVALID_PATH"

	// Data-integrity errors
	ErrCodeDataIntegrity Code = "DATA_INTEGRITY"
	ErrCodeJoinNotFound  Code = "JOIN_NOT_FOUND"
	ErrCodeNonManifold   Code = "NON_MANIFOLD"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeLayerNotFound    Code = "LAYER_NOT_FOUND"
	ErrCodeKnotNotFound     Code = "KNOT_NOT_FOUND"
	ErrCodeFileNotFound     Code = "FILE_NOT_FOUND"
	ErrCodeDocumentNotFound Code = "DOCUMENT_NOT_FOUND"

	// Unsupported-operation errors
	ErrCodeUnsupported Code = "UNSUPPORTED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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

// UserMessage returns a user-friendly message for the error: the whole
// cause chain with the code prefixes left out.
// For errors without an *Error in their chain, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	// Keep context added by fmt.Errorf wrappers outside the first *Error.
	var prefix string
	if full, inner := err.Error(), e.Error(); full != inner && strings.HasSuffix(full, inner) {
		prefix = full[:len(full)-len(inner)]
	}
	msg := prefix + e.Message
	if e.Cause != nil {
		msg += ": " + UserMessage(e.Cause)
	}
	return msg
}

// Class groups codes into the three failure classes of the engine.
type Class string

const (
	ClassSpecification Class = "specification"
	ClassDataIntegrity Class = "data-integrity"
	ClassUnsupported   Class = "unsupported"
	ClassOther         Class = "other"
)

// ClassOf returns the failure class of err.
func ClassOf(err error) Class {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidSpec, ErrCodeInvalidExpression, ErrCodeInvalidProject:
		return ClassSpecification
	case ErrCodeDataIntegrity, ErrCodeJoinNotFound, ErrCodeNonManifold:
		return ClassDataIntegrity
	case ErrCodeUnsupported:
		return ClassUnsupported
	default:
		return ClassOther
	}
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch ClassOf(err) {
	case ClassSpecification:
		return 400
	case ClassDataIntegrity:
		return 422
	case ClassUnsupported:
		return 501
	}
	switch GetCode(err) {
	case ErrCodeNotFound, ErrCodeLayerNotFound, ErrCodeKnotNotFound, ErrCodeFileNotFound, ErrCodeDocumentNotFound:
		return 404
	}
	return 500
}
