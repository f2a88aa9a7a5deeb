package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/clock"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/repository"
)

// LinkVerifier checks the signature carried by an emailed action link.
// delivery.Signer is the production implementation.
type LinkVerifier interface {
	Verify(recipient, token string) bool
}

// ErrSecretNotConfigured is returned by signed-link operations when the
// server runs without a subscription secret.
var ErrSecretNotConfigured = errors.New("subscription secret not configured")

// SubscriptionService manages newsletter opt-in state. Each address has at
// most one preference row, created on first subscribe and updated in place.
type SubscriptionService struct {
	prefs    repository.PreferenceRepository
	verifier LinkVerifier
	clock    clock.Clock
	logger   *slog.Logger
}

// NewSubscriptionService creates the service. A nil verifier makes every
// signed-link call fail with ErrSecretNotConfigured.
func NewSubscriptionService(prefs repository.PreferenceRepository, verifier LinkVerifier, clk clock.Clock, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{prefs: prefs, verifier: verifier, clock: clk, logger: logger}
}

// Subscribe opts email in. An active subscription is returned untouched;
// a lapsed one is reactivated with a fresh subscribed_at.
func (s *SubscriptionService) Subscribe(ctx context.Context, email, token string) (*model.SubscriptionPreference, error) {
	if err := verifyLink(s.verifier, email, token, "Invalid subscribe token."); err != nil {
		return nil, err
	}

	existing, err := s.prefs.GetPreference(ctx, email)
	switch {
	case err == nil && existing.Subscribed:
		return existing, nil
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("loading preference: %w", err)
	}

	pref, err := subscribe(ctx, s.prefs, email, s.clock)
	if err != nil {
		return nil, err
	}
	s.logger.Info("newsletter subscription", slog.String("email", email))
	return pref, nil
}

// Unsubscribe opts email out.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, email, token string) (*StatusResponse, error) {
	if err := verifyLink(s.verifier, email, token, "Invalid unsubscribe token."); err != nil {
		return nil, err
	}

	pref, err := s.prefs.GetPreference(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(
				fmt.Sprintf("User with email %s not found or not subscribed.", email))
		}
		return nil, fmt.Errorf("loading preference: %w", err)
	}

	now := s.clock.Now()
	pref.Subscribed = false
	pref.UnsubscribedAt = &now
	if err := s.prefs.SavePreference(ctx, pref); err != nil {
		return nil, fmt.Errorf("saving preference: %w", err)
	}

	s.logger.Info("newsletter unsubscription", slog.String("email", email))
	return &StatusResponse{Status: "success", Message: "You have been successfully unsubscribed."}, nil
}

// Status returns the preference for email.
func (s *SubscriptionService) Status(ctx context.Context, email string) (*model.SubscriptionPreference, error) {
	pref, err := s.prefs.GetPreference(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(fmt.Sprintf("Preference not found for user %s", email))
		}
		return nil, fmt.Errorf("loading preference: %w", err)
	}
	return pref, nil
}

func subscribe(ctx context.Context, prefs repository.PreferenceRepository, email string, clk clock.Clock) (*model.SubscriptionPreference, error) {
	now := clk.Now()
	pref := &model.SubscriptionPreference{
		Email:        strings.TrimSpace(email),
		Subscribed:   true,
		SubscribedAt: &now,
	}
	if err := prefs.SavePreference(ctx, pref); err != nil {
		return nil, fmt.Errorf("saving preference: %w", err)
	}
	return pref, nil
}

// verifyLink runs before any state is read or written.
func verifyLink(v LinkVerifier, recipient, token, message string) error {
	if v == nil {
		return ErrSecretNotConfigured
	}
	if !v.Verify(recipient, token) {
		return apperror.Unauthorized(message)
	}
	return nil
}
