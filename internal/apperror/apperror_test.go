package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("task", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("description", "Task description is required."),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("delivery_log", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("Invalid unsubscribe token."),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "NotFoundMessage wraps ErrNotFound",
			err:       NotFoundMessage("Task with ID t1 not found."),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "Unauthorized does NOT match ErrForbidden",
			err:       Unauthorized("bad token"),
			target:    ErrForbidden,
			wantMatch: false,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("task", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrNotFound",
			err:       ValidationFailed("status", "Invalid status value."),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("task", "abc123"),
			wantMessage: "task not found with id abc123",
		},
		{
			name:        "NotFoundMessage keeps the caller wording",
			err:         NotFoundMessage("Task with ID 42 not found."),
			wantMessage: "Task with ID 42 not found.",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("description", "Task description is required."),
			wantMessage: "Task description is required.",
		},
		{
			name:        "Conflict message includes resource and key",
			err:         Conflict("delivery_log", "abc123"),
			wantMessage: "delivery_log already exists for abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("task", "abc123")
	unwrapped := err.Unwrap()

	if unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("deadline", "Invalid deadline format. Please use ISO format or YYYY-MM-DD.")

	if err.Field != "deadline" {
		t.Errorf("Field = %q, want %q", err.Field, "deadline")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", ValidationFailed("status", "Invalid status value."), http.StatusBadRequest, "validation_error"},
		{"unauthorized", Unauthorized("bad link"), http.StatusUnauthorized, "unauthorized"},
		{"not found", NotFound("task", "t1"), http.StatusNotFound, "not_found"},
		{"forbidden", Forbidden("not yours"), http.StatusForbidden, "forbidden"},
		{"conflict", Conflict("delivery_log", "fp"), http.StatusConflict, "conflict"},
		{"wrapped", fmt.Errorf("creating task: %w", ValidationFailed("deadline", "bad")), http.StatusBadRequest, "validation_error"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Status(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("Status() = (%d, %q), want (%d, %q)", status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}
