package delivery

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	htmltemplate "html/template"
	"regexp"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/sakif/life-tracker/internal/model"
)

// DefaultClosing is used when the verdict carries no emphasised closing line.
const DefaultClosing = "Stay positive, work hard, and make it happen."

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	htmlTemplate = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/briefing.html.tmpl"))
	textTemplate = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/briefing.txt.tmpl"))
)

var (
	boldPattern       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	underscorePattern = regexp.MustCompile(`_(.*?)_`)
	starPattern       = regexp.MustCompile(`\*(.*?)\*`)

	listItemPattern = regexp.MustCompile(`(?i)<li[^>]*>`)
	lineBreakTags   = regexp.MustCompile(`(?i)</li>|<br\s*/?>|</p>`)
	anyTag          = regexp.MustCompile(`<[^>]*>`)
	newlineRuns      = regexp.MustCompile(`\n{2,}`)
)

// SafeguardMarkdown converts the markdown emphasis a model sometimes mixes
// into its HTML output. Bold runs first so "**" is not read as two "*".
func SafeguardMarkdown(s string) string {
	s = boldPattern.ReplaceAllString(s, "<strong>$1</strong>")
	s = underscorePattern.ReplaceAllString(s, "<em>$1</em>")
	return starPattern.ReplaceAllString(s, "<em>$1</em>")
}

// SplitClosing separates the verdict into its body and the closing line held
// in the last <em> span. When that span is the only content of an <li>, the
// body ends before the <li>. Without any <em>, the whole text is the body and
// closing is DefaultClosing.
func SplitClosing(content string) (body, closing string) {
	emStart := strings.LastIndex(content, "<em>")
	if emStart < 0 {
		return strings.TrimSpace(content), DefaultClosing
	}

	cut := emStart
	if liStart := strings.LastIndex(content[:emStart], "<li>"); liStart >= 0 {
		if strings.TrimSpace(content[liStart+len("<li>"):emStart]) == "" {
			cut = liStart
		}
	}
	body = strings.TrimSpace(content[:cut])

	rest := content[emStart+len("<em>"):]
	if end := strings.Index(rest, "</em>"); end >= 0 {
		rest = rest[:end]
	}
	closing = strings.TrimSpace(rest)
	if closing == "" {
		closing = DefaultClosing
	}
	return body, closing
}

// PlainText flattens the briefing HTML into readable text, one list item per line.
func PlainText(body string) string {
	s := listItemPattern.ReplaceAllString(body, "\n- ")
	s = lineBreakTags.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = newlineRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n")
	return strings.TrimSpace(s)
}

// Renderer turns a verdict into a Message for one recipient.
type Renderer struct {
	signer *Signer
	sender string
}

func NewRenderer(signer *Signer, senderEmail string) *Renderer {
	return &Renderer{signer: signer, sender: senderEmail}
}

type moodLink struct {
	Emoji string
	Value string
	URL   string
}

type briefingData struct {
	Name           string
	LongDate       string
	Body           htmltemplate.HTML
	BodyText       string
	Closing        string
	Moods          []moodLink
	UnsubscribeURL string
	TrackingURL    string
}

// Render builds the message for the delivery recorded in entry. now decides
// the subject date and the date the mood links log against.
func (r *Renderer) Render(user *model.User, entry *model.DeliveryLog, now time.Time) (*Message, error) {
	now = now.UTC()
	body, closing := SplitClosing(SafeguardMarkdown(entry.Content))

	data := briefingData{
		Name:     user.DisplayName(),
		LongDate: now.Format("Monday, January 02, 2006"),
		// Verdict HTML is produced by our own synthesis worker and rendered as is.
		Body:           htmltemplate.HTML(body),
		BodyText:       PlainText(body),
		Closing:        closing,
		UnsubscribeURL: r.signer.UnsubscribeURL(user.Email),
		TrackingURL:    r.signer.TrackingURL(entry.ID),
	}
	date := now.Format(time.DateOnly)
	for _, opt := range model.MoodOptions {
		data.Moods = append(data.Moods, moodLink{
			Emoji: opt.Emoji,
			Value: opt.Value,
			URL:   r.signer.MoodURL(user.Email, date, opt),
		})
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlTemplate.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("rendering html briefing: %w", err)
	}
	if err := textTemplate.Execute(&textBuf, data); err != nil {
		return nil, fmt.Errorf("rendering text briefing: %w", err)
	}

	return &Message{
		LogID:   entry.ID,
		UserID:  user.ID,
		From:    fmt.Sprintf("The Opportunity Architect <%s>", r.sender),
		To:      user.Email,
		Subject: "Your Daily Briefing - " + now.Format("January 02, 2006"),
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
		Date:    now,
	}, nil
}
