// Package apperrors provides the typed error taxonomy for BenchVault.
//
// Every component returns an *AppError (or wraps one); the HTTP surface is
// the only layer that converts a kind to a status code. User-visible
// failures are JSON bodies of the form {"detail": "<message>"}.
//
// Kinds and their HTTP mapping:
//   - Unauthorized -> 401: no token, wrong scheme, bad signature, expired,
//     wrong token type
//   - Forbidden    -> 403: authenticated but the caller lacks the right
//   - NotFound     -> 404: load of an unknown id / read of an unknown group
//   - Conflict     -> 409: duplicate username, group, role, or benchmark
//     hash within a visible scope
//   - Validation   -> 422: malformed request body
//   - Storage      -> 502: backend I/O failure
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP mapping.
type Kind int

const (
	KindUnauthorized Kind = iota
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
	KindStorage
)

// AppError is a classified error. Message is user-visible; Err carries the
// wrapped cause for logs only.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error's kind.
func (e *AppError) Status() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Detail is the wire shape of every error response.
type Detail struct {
	Detail string `json:"detail"`
}

// Response returns the JSON body for the error.
func (e *AppError) Response() Detail {
	return Detail{Detail: e.Message}
}

// Unauthorized builds a 401 error.
func Unauthorized(msg string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: msg}
}

// Forbidden builds a 403 error.
func Forbidden(msg string) *AppError {
	return &AppError{Kind: KindForbidden, Message: msg}
}

// NotFound builds a 404 error.
func NotFound(msg string) *AppError {
	return &AppError{Kind: KindNotFound, Message: msg}
}

// Conflict builds a 409 error.
func Conflict(msg string) *AppError {
	return &AppError{Kind: KindConflict, Message: msg}
}

// Validation builds a 422 error.
func Validation(msg string) *AppError {
	return &AppError{Kind: KindValidation, Message: msg}
}

// Storage wraps a backend failure.
func Storage(msg string, err error) *AppError {
	return &AppError{Kind: KindStorage, Message: msg, Err: err}
}

// As extracts an *AppError from an error chain. Unclassified errors are
// treated as storage failures so handlers never leak raw backend messages.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Kind: KindStorage, Message: "storage backend failure", Err: err}
}

// IsNotFound reports whether the error chain classifies as NotFound.
// Delete operations use this to swallow missing rows (idempotence).
func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == KindNotFound
}
