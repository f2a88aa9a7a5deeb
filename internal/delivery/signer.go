package delivery

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/sakif/life-tracker/internal/model"
)

// Signer computes and checks the token carried by emailed action links:
// hex(sha256(recipient + secret)). It satisfies service.LinkVerifier.
type Signer struct {
	secret  string
	baseURL string
}

func NewSigner(secret, apiBaseURL string) *Signer {
	return &Signer{secret: secret, baseURL: strings.TrimRight(apiBaseURL, "/")}
}

// Sign returns the token for recipient, or "" when no secret is configured.
func (s *Signer) Sign(recipient string) string {
	if s.secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(recipient + s.secret))
	return hex.EncodeToString(sum[:])
}

func (s *Signer) Verify(recipient, token string) bool {
	want := s.Sign(recipient)
	if want == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1
}

func (s *Signer) SubscribeURL(email string) string {
	return s.actionURL("subscribe", email)
}

// UnsubscribeURL returns "#" when links cannot be signed.
func (s *Signer) UnsubscribeURL(email string) string {
	return s.actionURL("unsubscribe", email)
}

func (s *Signer) actionURL(action, email string) string {
	token := s.Sign(email)
	if token == "" {
		return "#"
	}
	return s.baseURL + "/newsletter/" + action + "/" + url.PathEscape(email) + "/" + token
}

// MoodURL is the one-tap link that logs opt as the mood for date (YYYY-MM-DD).
func (s *Signer) MoodURL(email, date string, opt model.MoodOption) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("date", date)
	q.Set("mood_value", opt.Value)
	q.Set("mood_emoji", opt.Emoji)
	q.Set("token", s.Sign(email))
	return s.baseURL + "/metrics/log_mood_via_redirect?" + q.Encode()
}

func (s *Signer) TrackingURL(logID string) string {
	return s.baseURL + "/newsletter/track/open/" + url.PathEscape(logID)
}
