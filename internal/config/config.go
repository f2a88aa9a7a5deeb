// Package config loads the server configuration from the environment.
//
// Every variable carries the LIFETRACKER_ prefix, e.g. LIFETRACKER_HTTP_PORT
// or LIFETRACKER_SMTP_HOST. Optional integrations (SMTP, the reasoning model,
// the S3 archive) are switched off by leaving their variables empty.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix processed by Load.
const Prefix = "LIFETRACKER"

// Config holds the configuration for the server and the CLI commands.
type Config struct {
	// HTTP
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage
	DBPath string `envconfig:"DB_PATH" default:"data/lifetracker.db"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Secrets. JWTSecret disables /api/session when empty; InternalAPIKey
	// must be set for the internal routes to accept anything.
	JWTSecret          string `envconfig:"JWT_SECRET"`
	InternalAPIKey     string `envconfig:"INTERNAL_API_KEY"`
	SubscriptionSecret string `envconfig:"SUBSCRIPTION_SECRET"`

	// Links embedded in briefings
	APIBaseURL string `envconfig:"API_BASE_URL" default:"http://localhost:8080"`
	AppURL     string `envconfig:"APP_URL" default:"http://localhost:8501"`

	// Mail
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SenderEmail  string `envconfig:"SENDER_EMAIL"`

	// Reasoning model
	ModelBaseURL      string        `envconfig:"MODEL_BASE_URL"`
	ModelName         string        `envconfig:"MODEL_NAME" default:"gemini-2.5-flash"`
	ModelAPIKey       string        `envconfig:"MODEL_API_KEY"`
	ModelTokenURL     string        `envconfig:"MODEL_TOKEN_URL"`
	ModelClientID     string        `envconfig:"MODEL_CLIENT_ID"`
	ModelClientSecret string        `envconfig:"MODEL_CLIENT_SECRET"`
	ModelRPM          int           `envconfig:"MODEL_RPM" default:"10"`
	ModelTimeout      time.Duration `envconfig:"MODEL_TIMEOUT" default:"2m"`
	PersonasFile      string        `envconfig:"PERSONAS_FILE"`

	// Request throttling and replay
	RateLimit        int           `envconfig:"RATE_LIMIT" default:"100"`
	RateWindow       time.Duration `envconfig:"RATE_WINDOW" default:"60s"`
	ResponseCacheTTL time.Duration `envconfig:"RESPONSE_CACHE_TTL" default:"5m"`

	// Dispatch pool
	DispatchWorkers     int `envconfig:"DISPATCH_WORKERS" default:"2"`
	DispatchQueue       int `envconfig:"DISPATCH_QUEUE" default:"64"`
	DispatchMaxAttempts int `envconfig:"DISPATCH_MAX_ATTEMPTS" default:"5"`

	// Briefing archive
	ArchiveBucket string `envconfig:"ARCHIVE_BUCKET"`
	ArchiveRegion string `envconfig:"ARCHIVE_REGION" default:"us-east-1"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT %d out of range", c.HTTPPort))
	}
	if c.SMTPPort < 0 || c.SMTPPort > 65535 {
		errs = append(errs, fmt.Errorf("SMTP_PORT %d out of range", c.SMTPPort))
	}
	for name, v := range map[string]int{
		"MODEL_RPM":             c.ModelRPM,
		"RATE_LIMIT":            c.RateLimit,
		"DISPATCH_WORKERS":      c.DispatchWorkers,
		"DISPATCH_QUEUE":        c.DispatchQueue,
		"DISPATCH_MAX_ATTEMPTS": c.DispatchMaxAttempts,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.RateWindow < 0 || c.ResponseCacheTTL < 0 || c.ModelTimeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported LOG_FORMAT: %s", c.LogFormat))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("unsupported LOG_LEVEL: %s", c.LogLevel)
	}
	return lvl, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// MailEnabled reports whether enough SMTP settings are present to send.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SenderEmail != ""
}

// ModelEnabled reports whether a reasoning model endpoint is configured.
func (c *Config) ModelEnabled() bool {
	return c.ModelBaseURL != ""
}
