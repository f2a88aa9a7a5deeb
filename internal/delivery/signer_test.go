package delivery

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/life-tracker/internal/model"
)

func TestSigner_Sign(t *testing.T) {
	s := NewSigner("s3cret", "https://api.example.com")
	sum := sha256.Sum256([]byte("ada@example.com" + "s3cret"))
	assert.Equal(t, hex.EncodeToString(sum[:]), s.Sign("ada@example.com"))
	assert.Equal(t, s.Sign("ada@example.com"), s.Sign("ada@example.com"))
}

func TestSigner_Verify(t *testing.T) {
	s := NewSigner("s3cret", "https://api.example.com")
	other := NewSigner("different", "https://api.example.com")
	token := s.Sign("ada@example.com")

	tests := []struct {
		name      string
		signer    *Signer
		recipient string
		token     string
		want      bool
	}{
		{"valid", s, "ada@example.com", token, true},
		{"wrong secret", other, "ada@example.com", token, false},
		{"token for another recipient", s, "bob@example.com", token, false},
		{"empty token", s, "ada@example.com", "", false},
		{"garbage", s, "ada@example.com", "abc", false},
		{"no secret configured", NewSigner("", ""), "ada@example.com", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.signer.Verify(tt.recipient, tt.token))
		})
	}
}

func TestSigner_URLs(t *testing.T) {
	s := NewSigner("s3cret", "https://api.example.com/")
	token := s.Sign("ada@example.com")

	assert.Equal(t, "https://api.example.com/newsletter/unsubscribe/ada@example.com/"+token, s.UnsubscribeURL("ada@example.com"))
	assert.Equal(t, "https://api.example.com/newsletter/subscribe/ada@example.com/"+token, s.SubscribeURL("ada@example.com"))
	assert.Equal(t, "https://api.example.com/newsletter/track/open/log1", s.TrackingURL("log1"))

	u, err := url.Parse(s.MoodURL("ada@example.com", "2025-03-14", model.MoodOptions[0]))
	require.NoError(t, err)
	assert.Equal(t, "/metrics/log_mood_via_redirect", u.Path)
	q := u.Query()
	assert.Equal(t, "ada@example.com", q.Get("email"))
	assert.Equal(t, "2025-03-14", q.Get("date"))
	assert.Equal(t, "Amazing", q.Get("mood_value"))
	assert.Equal(t, "🤩", q.Get("mood_emoji"))
	assert.True(t, s.Verify(q.Get("email"), q.Get("token")))

	assert.Equal(t, "#", NewSigner("", "https://x").UnsubscribeURL("ada@example.com"))
}
