package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/repository"
)

// ProfileService reads and evolves a user's profile document. Every update
// appends a snapshot; the newest snapshot is the profile.
type ProfileService struct {
	repo   repository.ProfileRepository
	logger *slog.Logger
}

func NewProfileService(repo repository.ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{repo: repo, logger: logger}
}

// Get returns the latest snapshot, creating an empty one on first access.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.ProfileSnapshot, error) {
	p, err := s.repo.LatestProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	p = &model.ProfileSnapshot{UserID: userID, Document: model.Document{}}
	if err := s.repo.CreateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("creating empty profile: %w", err)
	}
	return p, nil
}

// UpdateJSON decodes raw as a JSON object and applies it with Update.
func (s *ProfileService) UpdateJSON(ctx context.Context, userID string, raw []byte, replace bool) (*model.ProfileSnapshot, error) {
	var patch model.Document
	if err := json.Unmarshal(raw, &patch); err != nil || patch == nil {
		return nil, apperror.ValidationFailed("content", "Invalid JSON format.")
	}
	return s.Update(ctx, userID, patch, replace)
}

// Update writes patch over the current document, wholesale when replace is
// set and by deep merge otherwise.
func (s *ProfileService) Update(ctx context.Context, userID string, patch model.Document, replace bool) (*model.ProfileSnapshot, error) {
	if patch == nil {
		patch = model.Document{}
	}

	var doc model.Document
	if replace {
		doc = patch
	} else {
		current, err := s.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		doc = model.MergeDocument(current.Document, patch)
	}

	next := &model.ProfileSnapshot{UserID: userID, Document: doc}
	if err := s.repo.CreateProfile(ctx, next); err != nil {
		s.logger.Error("failed to update profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("saving profile: %w", err)
	}

	s.logger.Info("profile updated",
		slog.String("user_id", userID),
		slog.Bool("replace", replace),
		slog.Int("keys", len(doc)),
	)
	return next, nil
}
