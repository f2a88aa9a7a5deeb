package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/life-tracker/internal/auth"
	"github.com/sakif/life-tracker/internal/model"
)

// SessionService exchanges a trusted identity for a session token.
//
//	SessionHandler → SessionService → UserService (get or create)
//	                                ↘ TokenService (JWT)
type SessionService struct {
	users  *UserService
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewSessionService(users *UserService, tokens *auth.TokenService, logger *slog.Logger) *SessionService {
	return &SessionService{users: users, tokens: tokens, logger: logger}
}

// Session bundles the user and the token issued for them.
type Session struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresIn int         `json:"expiresIn"` // seconds
}

// Start resolves email to a user, creating it on first contact, and issues
// a token whose subject is the stored email.
func (s *SessionService) Start(ctx context.Context, email, name string) (*Session, error) {
	user, err := s.users.GetOrCreate(ctx, email, name)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(auth.Identity{Email: user.Email, Name: user.Name})
	if err != nil {
		return nil, fmt.Errorf("issuing session for %s: %w", user.Email, err)
	}

	s.logger.Info("session started", slog.String("user_id", user.ID))
	return &Session{
		User:      user,
		Token:     token,
		ExpiresIn: int(auth.DefaultTokenTTL / time.Second),
	}, nil
}
