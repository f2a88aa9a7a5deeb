package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/service"
)

type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// HandleGet returns the caller's latest profile snapshot.
//
// HTTP: GET /api/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	snap, err := h.profiles.Get(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleUpdate merges the body into the profile, or replaces it wholesale
// with ?replace=true. The body is passed through undecoded so the service
// owns the JSON validation.
//
// HTTP: PUT /api/profile?replace=false
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	replace := false
	if raw := r.URL.Query().Get("replace"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, apperror.ValidationFailed("replace", "replace must be true or false"))
			return
		}
		replace = v
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON format."))
		return
	}

	snap, err := h.profiles.UpdateJSON(r.Context(), user.ID, body, replace)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
