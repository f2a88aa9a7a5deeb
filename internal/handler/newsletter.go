package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/life-tracker/internal/delivery"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/service"
)

// BatchRunner runs the daily briefing batch. *delivery.BatchRunner.
type BatchRunner interface {
	Run(ctx context.Context) (*delivery.Summary, error)
}

// Briefer briefs a single user. *delivery.Briefer.
type Briefer interface {
	Brief(ctx context.Context, user *model.User) (*delivery.Result, error)
}

// OpenTracker records that a briefing was opened. *delivery.Tracker.
type OpenTracker interface {
	MarkOpened(ctx context.Context, logID string)
}

// NewsletterHandler serves the emailed links, the open-tracking pixel and
// the scheduler's batch trigger.
type NewsletterHandler struct {
	subscriptions *service.SubscriptionService
	tracker       OpenTracker
	batch         BatchRunner
	logger        *slog.Logger
}

func NewNewsletterHandler(subs *service.SubscriptionService, tracker OpenTracker, batch BatchRunner, logger *slog.Logger) *NewsletterHandler {
	return &NewsletterHandler{subscriptions: subs, tracker: tracker, batch: batch, logger: logger}
}

// HandleSubscribe opts an address in from a signed link.
//
// HTTP: POST /newsletter/subscribe/{email}/{token}
func (h *NewsletterHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	pref, err := h.subscriptions.Subscribe(r.Context(), pathParam(r, "email"), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pref)
}

// HandleUnsubscribe opts an address out. GET serves the link in the email,
// POST serves the frontend.
//
// HTTP: GET|POST /newsletter/unsubscribe/{email}/{token}
func (h *NewsletterHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	res, err := h.subscriptions.Unsubscribe(r.Context(), pathParam(r, "email"), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleStatus returns an address's subscription preference.
//
// HTTP: GET /newsletter/status/{email} (internal key)
func (h *NewsletterHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	pref, err := h.subscriptions.Status(r.Context(), pathParam(r, "email"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

// HandleTrackOpen records an open and always answers with the pixel, even
// for unknown ids, so mail clients never show a broken image.
//
// HTTP: GET /newsletter/track/open/{log_id}
func (h *NewsletterHandler) HandleTrackOpen(w http.ResponseWriter, r *http.Request) {
	h.tracker.MarkOpened(r.Context(), chi.URLParam(r, "log_id"))

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(delivery.TrackingPixel)
}

// detailResponse is the body of a failed batch trigger.
type detailResponse struct {
	Detail string `json:"detail"`
}

// HandleSendDaily runs the daily batch synchronously. Per-user failures are
// part of the summary; only a batch that cannot run at all answers 500.
//
// HTTP: POST /newsletter/send-daily (internal key)
func (h *NewsletterHandler) HandleSendDaily(w http.ResponseWriter, r *http.Request) {
	sum, err := h.batch.Run(r.Context())
	if err != nil {
		h.logger.Error("scheduled briefing batch failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, detailResponse{
			Detail: "Failed to send newsletters: " + err.Error(),
		})
		return
	}

	h.logger.Info("scheduled briefing batch finished",
		slog.Int("delivered", sum.Delivered),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
	)
	w.WriteHeader(http.StatusNoContent)
}

// BriefingHandler runs the workflow and delivery for the calling user.
type BriefingHandler struct {
	briefer Briefer
	logger  *slog.Logger
}

func NewBriefingHandler(b Briefer, logger *slog.Logger) *BriefingHandler {
	return &BriefingHandler{briefer: b, logger: logger}
}

// HandleBrief answers 202 when a briefing was queued and 200 when the
// pipeline skipped it; the body says which.
//
// HTTP: POST /api/briefing
func (h *BriefingHandler) HandleBrief(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.briefer.Brief(r.Context(), user)
	if err != nil {
		h.logger.Error("briefing failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if res.Status == delivery.StatusQueued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

// pathParam returns an unescaped chi path parameter. chi matches against
// the raw path when one is present, so "%2B" arrives still encoded.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
