package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/life-tracker/internal/model"
)

// Header names shared with the trusted frontend.
const (
	InternalKeyHeader = "X-Internal-API-Key"
	UserEmailHeader   = "X-User-Email"
	UserNameHeader    = "X-User-Name"
)

// contextKey is package-private so no other package can read or shadow the
// values stored here.
type contextKey string

const userKey contextKey = "user"

// UserResolver finds or creates the stored user for an identity.
// service.UserService is the production implementation.
type UserResolver interface {
	GetOrCreate(ctx context.Context, email, name string) (*model.User, error)
}

// RequireInternalKey rejects requests whose X-Internal-API-Key does not
// match with 401.
func RequireInternalKey(v *KeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Verify(r.Header.Get(InternalKeyHeader)) {
				unauthorized(w, "Invalid or missing internal API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser resolves the caller and stores the user in the request
// context. A Bearer token wins over the identity headers; an invalid token
// is rejected rather than falling back to them. tokens may be nil when
// sessions are disabled.
func RequireUser(tokens *TokenService, users UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identityFromRequest(r, tokens)
			if !ok {
				unauthorized(w, "valid user identity required")
				return
			}

			user, err := users.GetOrCreate(r.Context(), id.Email, id.Name)
			if err != nil {
				logger.Warn("could not identify user",
					slog.String("email", id.Email),
					slog.String("error", err.Error()),
				)
				unauthorized(w, "valid user identity required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by RequireUser.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

func identityFromRequest(r *http.Request, tokens *TokenService) (Identity, bool) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		raw, found := strings.CutPrefix(authz, "Bearer ")
		if !found || tokens == nil {
			return Identity{}, false
		}
		id, err := tokens.Validate(strings.TrimSpace(raw))
		return id, err == nil
	}

	email := strings.TrimSpace(r.Header.Get(UserEmailHeader))
	if email == "" {
		return Identity{}, false
	}
	return Identity{Email: email, Name: r.Header.Get(UserNameHeader)}, true
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
