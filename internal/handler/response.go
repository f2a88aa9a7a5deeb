// Package handler contains the HTTP handlers. Handlers decode the request,
// call one service method and encode the result; every rule lives in the
// service layer.
package handler

// RESPONSE HELPERS:
// Every JSON response goes through writeJSON and every failure through
// writeError, so all errors share one shape:
//
//	{"error": "not_found", "message": "Task with ID abc not found."}
//
// The frontend can always parse an error the same way, whatever the status.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/auth"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/service"
)

// secretMissingMessage is shown when signed links cannot be verified because
// the server has no subscription secret.
const secretMissingMessage = "Subscription secret key is not configured."

// ErrorResponse is the error body returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable, e.g. "not_found"
	Message string `json:"message"` // human-readable
}

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader; anything set after the first body byte is ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to a status code with errors.Is, which
// walks the whole chain:
//
//	service returns: fmt.Errorf("creating task: %w", apperror.ValidationFailed(...))
//	errors.Is walks: outer error, then AppError, then ErrValidation
//
// Unknown errors become a generic 500. Internal details (SQL, file paths)
// never reach the client.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrSecretNotConfigured) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: secretMissingMessage,
		})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, code := apperror.Status(err)
		writeJSON(w, status, ErrorResponse{
			Error:   code,
			Message: appErr.Message,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a bounded JSON body into v. A malformed body is a
// validation error with the same wording the services use.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON format.")
	}
	return nil
}

// currentUser returns the user resolved by auth.RequireUser. Routes that
// call it are always mounted behind that middleware, so a miss is a
// wiring bug and answers 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid user identity required"))
	}
	return u, ok
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
