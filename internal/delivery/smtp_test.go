package delivery

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envelope is what the fake server saw for one message.
type envelope struct {
	from string
	to   string
	data string
}

// startFakeSMTP serves a single plain SMTP session. rcptReply overrides the
// answer to RCPT TO.
func startFakeSMTP(t *testing.T, rcptReply string) (int, <-chan envelope) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan envelope, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		var env envelope

		tp.PrintfLine("220 localhost ESMTP test")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch verb {
			case "EHLO", "HELO":
				tp.PrintfLine("250 localhost")
			case "MAIL":
				env.from = line
				tp.PrintfLine("250 OK")
			case "RCPT":
				env.to = line
				if rcptReply != "" {
					tp.PrintfLine("%s", rcptReply)
					continue
				}
				tp.PrintfLine("250 OK")
			case "DATA":
				tp.PrintfLine("354 go ahead")
				data, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				env.data = string(data)
				tp.PrintfLine("250 queued")
				got <- env
			case "QUIT":
				tp.PrintfLine("221 bye")
				return
			default:
				tp.PrintfLine("250 OK")
			}
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, got
}

func testMessage() *Message {
	return &Message{
		LogID:   "log1",
		From:    "The Opportunity Architect <brief@example.com>",
		To:      "ada@example.com",
		Subject: "Your Daily Briefing - March 14, 2025",
		Text:    "Hi Ada,\n- Ship the beta",
		HTML:    "<p>Hi Ada,</p><ul><li>Ship the beta</li></ul>",
		Date:    testNow,
	}
}

func TestSMTPSender_Send(t *testing.T) {
	port, got := startFakeSMTP(t, "")
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, From: "brief@example.com", Timeout: 2 * time.Second})

	require.NoError(t, s.Send(context.Background(), testMessage()))

	select {
	case env := <-got:
		assert.Equal(t, "MAIL FROM:<brief@example.com>", env.from)
		assert.Equal(t, "RCPT TO:<ada@example.com>", env.to)
		assert.Contains(t, env.data, "Subject: Your Daily Briefing - March 14, 2025")
		assert.Contains(t, env.data, "multipart/alternative")
	case <-time.After(2 * time.Second):
		t.Fatal("fake server received no message")
	}
}

func TestSMTPSender_RejectedRecipientIsPermanent(t *testing.T) {
	port, _ := startFakeSMTP(t, "550 no such user")
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, From: "brief@example.com", Timeout: 2 * time.Second})

	err := s.Send(context.Background(), testMessage())
	require.Error(t, err)
	var permanent *backoff.PermanentError
	assert.True(t, errors.As(err, &permanent), "got %v", err)
}

func TestSMTPSender_DialFailureIsRetryable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, From: "brief@example.com", Timeout: time.Second})
	err = s.Send(context.Background(), testMessage())
	require.Error(t, err)
	var permanent *backoff.PermanentError
	assert.False(t, errors.As(err, &permanent))
}

func TestMessage_Bytes(t *testing.T) {
	raw, err := testMessage().Bytes()
	require.NoError(t, err)

	m, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "The Opportunity Architect <brief@example.com>", m.Header.Get("From"))
	assert.Equal(t, "ada@example.com", m.Header.Get("To"))
	assert.Equal(t, "log1", m.Header.Get("X-Briefing-ID"))
	assert.Equal(t, "1.0", m.Header.Get("MIME-Version"))

	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(m.Body, params["boundary"])
	var types, bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p)
		require.NoError(t, err)
		types = append(types, p.Header.Get("Content-Type"))
		bodies = append(bodies, strings.ReplaceAll(string(b), "\r\n", "\n"))
	}
	assert.Equal(t, []string{"text/plain; charset=UTF-8", "text/html; charset=UTF-8"}, types)
	assert.Equal(t, []string{testMessage().Text, testMessage().HTML}, bodies)
}

func TestMessage_NonASCIISubject(t *testing.T) {
	msg := testMessage()
	msg.Subject = "Brief ☀"
	raw, err := msg.Bytes()
	require.NoError(t, err)

	m, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(m.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Brief ☀", subject)
}
