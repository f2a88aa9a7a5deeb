package delivery

import (
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/life-tracker/internal/model"
)

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

const testVerdict = "<li>**Ship** the beta</li>\n<li>Call _mentor_ &amp; coach</li>\n<li>\n  *Small steps every day.*\n</li>"

func testRenderer() *Renderer {
	return NewRenderer(NewSigner("s3cret", "https://api.example.com/"), "brief@example.com")
}

func TestSafeguardMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**bold**", "<strong>bold</strong>"},
		{"_under_", "<em>under</em>"},
		{"*star*", "<em>star</em>"},
		{"**a** and *b*", "<strong>a</strong> and <em>b</em>"},
		{"<em>already</em>", "<em>already</em>"},
		{"no markup", "no markup"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeguardMarkdown(tt.in))
		})
	}
}

func TestSplitClosing(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantBody    string
		wantClosing string
	}{
		{
			name:        "closing wrapped in li",
			in:          "<li>one</li><li> <em>Go!</em></li>",
			wantBody:    "<li>one</li>",
			wantClosing: "Go!",
		},
		{
			name:        "closing after list",
			in:          "<li>one</li>\n<em>Keep going.</em>",
			wantBody:    "<li>one</li>",
			wantClosing: "Keep going.",
		},
		{
			name:        "li with other content keeps li in body",
			in:          "<li>one</li><li>two <em>Go!</em></li>",
			wantBody:    "<li>one</li><li>two",
			wantClosing: "Go!",
		},
		{
			name:        "last em wins",
			in:          "<li><em>inline</em> point</li><em>Final.</em>",
			wantBody:    "<li><em>inline</em> point</li>",
			wantClosing: "Final.",
		},
		{
			name:        "unterminated em",
			in:          "<li>one</li><em>Dangling",
			wantBody:    "<li>one</li>",
			wantClosing: "Dangling",
		},
		{
			name:        "no em",
			in:          "<li>one</li>",
			wantBody:    "<li>one</li>",
			wantClosing: DefaultClosing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, closing := SplitClosing(tt.in)
			assert.Equal(t, tt.wantBody, body)
			assert.Equal(t, tt.wantClosing, closing)
		})
	}
}

func TestPlainText(t *testing.T) {
	in := "<li><strong>Ship</strong> the beta</li>\n<li>Call <em>mentor</em> &amp; coach</li>"
	assert.Equal(t, "- Ship the beta\n- Call mentor & coach", PlainText(in))
}

func TestRender(t *testing.T) {
	user := &model.User{ID: "u1", Email: "ada@example.com", Name: "Ada"}
	entry := &model.DeliveryLog{ID: "log1", UserID: "u1", Content: testVerdict}

	msg, err := testRenderer().Render(user, entry, testNow)
	require.NoError(t, err)

	assert.Equal(t, "The Opportunity Architect <brief@example.com>", msg.From)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Your Daily Briefing - March 14, 2025", msg.Subject)
	assert.Equal(t, "log1", msg.LogID)
	assert.Equal(t, "u1", msg.UserID)

	t.Run("text", func(t *testing.T) {
		g := goldie.New(t,
			goldie.WithFixtureDir("testdata/golden"),
			goldie.WithNameSuffix(".golden"),
		)
		g.Assert(t, "briefing_text", []byte(msg.Text))
	})

	t.Run("html", func(t *testing.T) {
		h := msg.HTML
		assert.Contains(t, h, "<p>Hi Ada,</p>")
		assert.Contains(t, h, "Here's your personalized update for Friday, March 14, 2025:")
		assert.Contains(t, h, "<ul><li><strong>Ship</strong> the beta</li>\n<li>Call <em>mentor</em> &amp; coach</li></ul>")
		assert.Contains(t, h, "<p>Small steps every day.</p>")
		assert.Contains(t, h, `src="https://api.example.com/newsletter/track/open/log1"`)
		assert.Contains(t, h, "https://api.example.com/newsletter/unsubscribe/ada@example.com/")
		assert.Equal(t, len(model.MoodOptions), strings.Count(h, "/metrics/log_mood_via_redirect?"))
		assert.Contains(t, h, "How are you feeling today?")
		assert.Contains(t, h, "Unsubscribe from this newsletter")
	})
}

func TestRender_NameFallsBackToEmail(t *testing.T) {
	user := &model.User{ID: "u2", Email: "grace@example.com", Name: model.DefaultUserName}
	entry := &model.DeliveryLog{ID: "log2", Content: "<li>plain</li>"}

	msg, err := testRenderer().Render(user, entry, testNow)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "<p>Hi grace,</p>")
	assert.Contains(t, msg.Text, `"`+DefaultClosing+`"`)
}

func TestRender_WithoutSecret(t *testing.T) {
	r := NewRenderer(NewSigner("", "https://api.example.com"), "brief@example.com")
	user := &model.User{ID: "u1", Email: "ada@example.com"}
	msg, err := r.Render(user, &model.DeliveryLog{ID: "l", Content: "x"}, testNow)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, `<a href="#">Unsubscribe from this newsletter</a>`)
}
