package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/life-tracker/internal/auth"
	"github.com/sakif/life-tracker/internal/service"
)

// SessionHandler issues session tokens to the trusted frontend.
type SessionHandler struct {
	sessions *service.SessionService
	logger   *slog.Logger
}

func NewSessionHandler(sessions *service.SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// HandleStart exchanges the identity headers for a JWT.
//
// HTTP: POST /api/session (X-Internal-API-Key, X-User-Email, X-User-Name)
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Start(r.Context(),
		r.Header.Get(auth.UserEmailHeader),
		r.Header.Get(auth.UserNameHeader),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
