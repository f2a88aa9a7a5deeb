package service

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
	DefaultMetricLimit = 30
	MaxMetricLimit     = 366
)

// MoodEntry is the payload of a one-tap mood link.
type MoodEntry struct {
	Email string
	Date  string // YYYY-MM-DD
	Value string
	Emoji string
	Token string
}

type MetricService struct {
	metrics  repository.MetricRepository
	prefs    repository.PreferenceRepository
	verifier LinkVerifier
	clock    clock.Clock
	logger   *slog.Logger
}

func NewMetricService(metrics repository.MetricRepository, prefs repository.PreferenceRepository, verifier LinkVerifier, clk clock.Clock, logger *slog.Logger) *MetricService {
	return &MetricService{metrics: metrics, prefs: prefs, verifier: verifier, clock: clk, logger: logger}
}

// LogMood records the morning mood for (email, date). Clicking a mood link
// also subscribes an address that has no preference yet.
func (s *MetricService) LogMood(ctx context.Context, e MoodEntry) (*model.DailyMetric, error) {
	if err := verifyLink(s.verifier, e.Email, e.Token, "Invalid token."); err != nil {
		return nil, err
	}
	if _, err := time.Parse(time.DateOnly, e.Date); err != nil {
		return nil, apperror.ValidationFailed("date", "Invalid date format.")
	}

	if _, err := s.prefs.GetPreference(ctx, e.Email); err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("loading preference: %w", err)
		}
		if _, err := subscribe(ctx, s.prefs, e.Email, s.clock); err != nil {
			return nil, err
		}
	}

	mood := strings.TrimSpace(e.Emoji + " " + e.Value)
	m, err := s.metrics.UpsertDailyMetric(ctx, e.Email, e.Date, model.MetricPatch{MorningMood: &mood})
	if err != nil {
		s.logger.Error("could not log mood",
			slog.String("email", e.Email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("logging mood: %w", err)
	}

	s.logger.Info("mood logged",
		slog.String("email", e.Email),
		slog.String("date", e.Date),
	)
	return m, nil
}

// List returns the newest metrics for email.
func (s *MetricService) List(ctx context.Context, email string, limit int) ([]model.DailyMetric, error) {
	if limit <= 0 {
		limit = DefaultMetricLimit
	}
	if limit > MaxMetricLimit {
		limit = MaxMetricLimit
	}
	metrics, err := s.metrics.ListDailyMetrics(ctx, email, limit)
	if err != nil {
		return nil, fmt.Errorf("listing metrics: %w", err)
	}
	return metrics, nil
}
