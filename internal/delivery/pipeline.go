// Package delivery turns a synthesized verdict into at most one email per
// unique content: it checks the subscription and the daily quota, records
// the delivery, renders signed links into the message and hands it to a
// bounded dispatch pool.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/clock"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/repository"
)

const (
	// DailyQuota is the most deliveries a user gets per QuotaWindow, in any
	// category.
	DailyQuota  = 3
	QuotaWindow = 24 * time.Hour
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusSkipped Status = "skipped"
)

// Reasons a delivery is skipped.
const (
	ReasonNotSubscribed = "not_subscribed"
	ReasonQuota         = "quota_exceeded"
	ReasonDuplicate     = "duplicate"
)

// Result is the outcome of one Deliver call. Skips are not errors.
type Result struct {
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
	LogID   string `json:"logId,omitempty"`
	Message string `json:"message"`
}

// Submitter accepts a rendered message for asynchronous sending.
type Submitter interface {
	Submit(ctx context.Context, m *Message) error
}

type PipelineStore interface {
	repository.PreferenceRepository
	repository.DeliveryRepository
}

type Pipeline struct {
	store     PipelineStore
	renderer  *Renderer
	submitter Submitter
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *PipelineMetrics
}

func NewPipeline(store PipelineStore, renderer *Renderer, submitter Submitter, clk clock.Clock, logger *slog.Logger, metrics *PipelineMetrics) *Pipeline {
	if metrics == nil {
		metrics = NewPipelineMetrics(nil)
	}
	return &Pipeline{
		store:     store,
		renderer:  renderer,
		submitter: submitter,
		clock:     clk,
		logger:    logger,
		metrics:   metrics,
	}
}

// Deliver runs the pipeline for one verdict. Each step is a precondition for
// the next; the delivery log row is written before rendering and is never
// retracted, so a later failure means logged-but-unsent rather than a
// duplicate send.
func (p *Pipeline) Deliver(ctx context.Context, user *model.User, verdict string) (*Result, error) {
	if strings.TrimSpace(verdict) == "" {
		return nil, apperror.ValidationFailed("verdict", "No insight report to send.")
	}
	log := p.logger.With(slog.String("user_id", user.ID))

	pref, err := p.store.GetPreference(ctx, user.Email)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("loading preference: %w", err)
	}
	if pref == nil || !pref.Subscribed {
		return p.skip(log, ReasonNotSubscribed,
			fmt.Sprintf("User %s is not subscribed to the newsletter. Skipping.", user.Email)), nil
	}

	now := p.clock.Now()
	sent, err := p.store.CountDeliveriesSince(ctx, user.ID, now.Add(-QuotaWindow))
	if err != nil {
		return nil, fmt.Errorf("counting deliveries: %w", err)
	}
	if sent >= DailyQuota {
		return p.skip(log, ReasonQuota,
			fmt.Sprintf("Daily limit of %d briefings reached for %s. Skipping.", DailyQuota, user.Email)), nil
	}

	entry := &model.DeliveryLog{
		UserID:      user.ID,
		Category:    model.CategoryDailyBriefing,
		Content:     verdict,
		Fingerprint: model.Fingerprint(verdict),
		SentAt:      now,
	}
	if err := p.store.CreateDeliveryLog(ctx, entry); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return p.skip(log, ReasonDuplicate,
				fmt.Sprintf("This briefing was already sent to %s. Skipping.", user.Email)), nil
		}
		return nil, fmt.Errorf("recording delivery: %w", err)
	}

	msg, err := p.renderer.Render(user, entry, now)
	if err != nil {
		return nil, fmt.Errorf("rendering briefing %s: %w", entry.ID, err)
	}

	if err := p.submitter.Submit(ctx, msg); err != nil {
		// The log row stands; the send is lost, not retried later.
		log.Error("briefing dispatch refused", slog.String("log_id", entry.ID), slog.String("error", err.Error()))
	} else {
		log.Info("briefing queued", slog.String("log_id", entry.ID))
	}

	p.metrics.deliveries.WithLabelValues(string(StatusQueued), "").Inc()
	return &Result{
		Status:  StatusQueued,
		LogID:   entry.ID,
		Message: fmt.Sprintf("Briefing queued for sending to %s.", user.Email),
	}, nil
}

func (p *Pipeline) skip(log *slog.Logger, reason, message string) *Result {
	p.metrics.deliveries.WithLabelValues(string(StatusSkipped), reason).Inc()
	log.Info("briefing skipped", slog.String("reason", reason))
	return &Result{Status: StatusSkipped, Reason: reason, Message: message}
}
