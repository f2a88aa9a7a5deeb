package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/clock"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/repository"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type NoteService struct {
	repo   repository.NoteRepository
	clock  clock.Clock
	logger *slog.Logger
}

func NewNoteService(repo repository.NoteRepository, clk clock.Clock, logger *slog.Logger) *NoteService {
	return &NoteService{repo: repo, clock: clk, logger: logger}
}

// Log appends a free-text entry. The category defaults to "Note".
func (s *NoteService) Log(ctx context.Context, userID, content, category string) (*model.Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "Log content cannot be empty.")
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = model.DefaultNoteCategory
	}

	note := &model.Note{
		UserID:    userID,
		Content:   content,
		Category:  category,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateNote(ctx, note); err != nil {
		s.logger.Error("failed to log note",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating note: %w", err)
	}

	s.logger.Info("note logged",
		slog.String("id", note.ID),
		slog.String("category", note.Category),
	)
	return note, nil
}

// List returns the newest notes first. limit is clamped to 1..MaxListLimit.
func (s *NoteService) List(ctx context.Context, userID string, limit, offset int) ([]model.Note, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	notes, err := s.repo.ListNotes(ctx, userID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list notes", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}
