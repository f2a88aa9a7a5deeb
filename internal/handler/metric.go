package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/life-tracker/internal/service"
)

type MetricHandler struct {
	metrics *service.MetricService
	appURL  string
	logger  *slog.Logger
}

// NewMetricHandler creates the handler. appURL is where a mood link lands
// after the mood is recorded.
func NewMetricHandler(metrics *service.MetricService, appURL string, logger *slog.Logger) *MetricHandler {
	return &MetricHandler{metrics: metrics, appURL: appURL, logger: logger}
}

// HandleListDaily returns the caller's recent daily metrics.
//
// HTTP: GET /api/metrics/daily?limit=30
func (h *MetricHandler) HandleListDaily(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultMetricLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics, err := h.metrics.List(r.Context(), user.Email, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// HandleLogMood records the mood from a one-tap email link, then sends the
// browser on to the app.
//
// HTTP: GET /metrics/log_mood_via_redirect?email&date&mood_value&mood_emoji&token
func (h *MetricHandler) HandleLogMood(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	_, err := h.metrics.LogMood(r.Context(), service.MoodEntry{
		Email: q.Get("email"),
		Date:  q.Get("date"),
		Value: q.Get("mood_value"),
		Emoji: q.Get("mood_emoji"),
		Token: q.Get("token"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, h.appURL, http.StatusSeeOther)
}
