// Package auth issues session tokens, verifies the internal API key and
// resolves the calling user for the /api routes.
//
// IDENTITY FLOW:
//  1. A trusted frontend calls POST /api/session with the internal key and
//     X-User-Email / X-User-Name, and receives a signed JWT.
//  2. Later calls carry either that JWT as a Bearer token or the raw
//     identity headers; RequireUser resolves both to a stored user.
//
// JWT STRUCTURE:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"sub":"ada@example.com","name":"Ada","iss":"life-tracker","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "life-tracker"

	// DefaultTokenTTL is the lifetime of a session token.
	DefaultTokenTTL = 12 * time.Hour
)

// Identity is what a session token asserts about its holder.
type Identity struct {
	Email string
	Name  string
}

// TokenService signs and verifies session tokens with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), ttl: DefaultTokenTTL}, nil
}

// claims is the JWT payload. "sub" holds the user's email, which is the
// stable identity everywhere else in the system.
type claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Generate signs a token for id valid for the default lifetime.
func (s *TokenService) Generate(id Identity) (string, error) {
	return s.GenerateWithDuration(id, s.ttl)
}

// GenerateWithDuration signs a token expiring after d. A negative d yields
// an already-expired token, which the tests rely on.
func (s *TokenService) GenerateWithDuration(id Identity, d time.Duration) (string, error) {
	email := strings.TrimSpace(id.Email)
	if email == "" {
		return "", errors.New("auth: token subject must not be empty")
	}

	now := time.Now()
	c := claims{
		Name: strings.TrimSpace(id.Name),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenStr and returns the identity it carries.
//
// The jwt library checks the signature and expiry. WithValidMethods stops
// a token signed with "none" (or an asymmetric algorithm) from being
// accepted, and WithIssuer rejects tokens minted for other services.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("auth: token has no subject")
	}
	return Identity{Email: c.Subject, Name: c.Name}, nil
}
