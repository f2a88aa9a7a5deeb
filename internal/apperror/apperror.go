// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services return these errors; handlers translate them into HTTP status
// codes with Status. A skipped delivery or a duplicate briefing is NOT an
// error and never travels through this package.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel category
	Message string // shown to the client verbatim
	Field   string // offending input field, if any
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundMessage is NotFound with a caller-supplied message, for resources
// whose clients expect a fixed wording (e.g. "Task with ID x not found.").
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation, such as a second delivery log
// row for the same fingerprint.
func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists for %s", resource, key),
	}
}

// Forbidden marks an attempt to touch another user's row.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized marks a request whose credential (signed link, API key,
// session token) did not verify.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// kinds is ordered: the first sentinel in the chain wins.
var kinds = []struct {
	sentinel error
	status   int
	code     string
}{
	{ErrValidation, http.StatusBadRequest, "validation_error"},
	{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrForbidden, http.StatusForbidden, "forbidden"},
	{ErrConflict, http.StatusConflict, "conflict"},
}

// Status returns the HTTP status and machine-readable code for err.
// Anything outside the taxonomy is a 500 "internal_error".
func Status(err error) (int, string) {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}
