package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/repository"
)

// StatusResponse is the {"status","message"} body returned by operations
// that have nothing else to report.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// GetOrCreate returns the user registered under email, creating it on first
// contact. The display name defaults to "Undefined"; an existing user's name
// is never overwritten.
func (s *UserService) GetOrCreate(ctx context.Context, email, name string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "user email is required")
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = model.DefaultUserName
	}
	u = &model.User{Email: email, Name: name}
	if err := s.users.CreateUser(ctx, u); err != nil {
		// A concurrent request may have created the same address first.
		if existing, getErr := s.users.GetUserByEmail(ctx, email); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created",
		slog.String("id", u.ID),
		slog.String("email", u.Email),
	)
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// Purge deletes the user and everything the user owns.
func (s *UserService) Purge(ctx context.Context, id string) (*StatusResponse, error) {
	if err := s.users.PurgeUser(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("purge failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("purging user %s: %w", id, err)
	}

	s.logger.Warn("user purged", slog.String("user_id", id))
	return &StatusResponse{
		Status:  "success",
		Message: fmt.Sprintf("All data for user %s has been purged.", id),
	}, nil
}
