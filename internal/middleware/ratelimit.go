package middleware

import (
	"bytes"
	"net/http"

	"github.com/sakif/life-tracker/internal/auth"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/ratelimit"
)

// UserEmailHeader identifies the calling user on API requests.
const UserEmailHeader = auth.UserEmailHeader

// userKey identifies the caller: the user resolved by auth.RequireUser when
// present, otherwise the X-User-Email header. Empty means anonymous.
func userKey(r *http.Request) string {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		return model.NormalizeEmail(u.Email)
	}
	return model.NormalizeEmail(r.Header.Get(UserEmailHeader))
}

// Limiter is satisfied by *ratelimit.SlidingWindow.
type Limiter interface {
	Allow(key string) bool
}

// RateLimit rejects a user's request with 429 once the limiter refuses the
// user's key. Anonymous requests are not limited.
func RateLimit(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := userKey(r); key != "" && !l.Allow(key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"message":"Too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDHeader carries the client's idempotency key.
const RequestIDHeader = "X-Request-ID"

// recorder tees the response into a buffer so it can be cached.
type recorder struct {
	responseWriter
	body bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.responseWriter.Write(b)
}

// CacheResponses replays the stored response for a repeated X-Request-ID
// from the same user, marked with X-Cache: HIT. Responses are cached unless
// they are server errors, so a failed request can be retried with the same
// id. Requests without the header pass through.
func CacheResponses(cache *ratelimit.ResponseCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := userKey(r) + "|" + id

			if cached, ok := cache.Get(key); ok {
				for k, vs := range cached.Header {
					w.Header()[k] = vs
				}
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(cached.Status)
				w.Write(cached.Body)
				return
			}

			rec := &recorder{responseWriter: responseWriter{ResponseWriter: w, statusCode: http.StatusOK}}
			next.ServeHTTP(rec, r)

			if rec.statusCode < http.StatusInternalServerError {
				cache.Put(key, ratelimit.Response{
					Status: rec.statusCode,
					Header: w.Header().Clone(),
					Body:   rec.body.Bytes(),
				})
			}
		})
	}
}
