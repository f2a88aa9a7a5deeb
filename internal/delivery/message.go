package delivery

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"time"
)

// Message is a rendered briefing ready for a Sender.
type Message struct {
	LogID   string
	UserID  string
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
	Date    time.Time
}

// Bytes encodes m as a multipart/alternative RFC 5322 message.
func (m *Message) Bytes() ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", m.Text},
		{"text/html; charset=UTF-8", m.HTML},
	} {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", part.contentType)
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("creating %s part: %w", part.contentType, err)
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("encoding %s part: %w", part.contentType, err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("encoding %s part: %w", part.contentType, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	var out bytes.Buffer
	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}
	fmt.Fprintf(&out, "From: %s\r\n", m.From)
	fmt.Fprintf(&out, "To: %s\r\n", m.To)
	fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&out, "Date: %s\r\n", date.Format(time.RFC1123Z))
	if m.LogID != "" {
		fmt.Fprintf(&out, "X-Briefing-ID: %s\r\n", m.LogID)
	}
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	out.Write(body.Bytes())
	return out.Bytes(), nil
}
