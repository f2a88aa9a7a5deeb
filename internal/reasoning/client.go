// Package reasoning talks to an OpenAI-compatible chat completions endpoint.
// It is the backend of every analysis and synthesis worker.
package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("reasoning: empty model response")

type Config struct {
	BaseURL      string
	Model        string
	APIKey       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// RPM caps requests per minute across all callers; zero disables the cap.
	RPM     int
	Timeout time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	http    *resty.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client. ctx scopes the OAuth token fetches only.
func New(ctx context.Context, cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	c := resty.NewWithClient(httpClient(ctx, cfg)).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	// A full minute's quota may be spent at once, then one request every
	// 60/RPM seconds.
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPM > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RPM)), cfg.RPM)
	}

	return &Client{http: c, model: cfg.Model, limiter: limiter, logger: logger}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends instruction as the system message and input as the user
// message and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, instruction, input string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("reasoning: waiting for quota: %w", err)
	}

	reqID := uuid.NewString()
	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", reqID).
		SetBody(&chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: instruction},
				{Role: "user", Content: input},
			},
		}).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("reasoning request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("reasoning: model status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return "", fmt.Errorf("reasoning: decode response: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("model call complete",
		slog.String("request_id", reqID),
		slog.String("model", c.model),
		slog.Duration("duration", time.Since(start)),
	)
	return cr.Choices[0].Message.Content, nil
}
