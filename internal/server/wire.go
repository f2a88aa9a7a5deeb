package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/life-tracker/internal/auth"
	"github.com/sakif/life-tracker/internal/clock"
	"github.com/sakif/life-tracker/internal/config"
	"github.com/sakif/life-tracker/internal/delivery"
	"github.com/sakif/life-tracker/internal/operation"
	"github.com/sakif/life-tracker/internal/ratelimit"
	"github.com/sakif/life-tracker/internal/reasoning"
	"github.com/sakif/life-tracker/internal/reconcile"
	sqliteRepo "github.com/sakif/life-tracker/internal/repository/sqlite"
	"github.com/sakif/life-tracker/internal/service"
	"github.com/sakif/life-tracker/internal/snapshot"
	"github.com/sakif/life-tracker/internal/workflow"
)

// errModelNotConfigured is what every worker returns when no reasoning
// model endpoint is configured.
var errModelNotConfigured = errors.New("reasoning model is not configured (set LIFETRACKER_MODEL_BASE_URL)")

type unconfiguredModel struct{}

func (unconfiguredModel) Complete(context.Context, string, string) (string, error) {
	return "", errModelNotConfigured
}

// Components is the assembled dependency graph. Both the HTTP server and
// the send-daily command are built from it.
//
// DEPENDENCY CHAIN:
//
//	sqlite.DB → services → handlers
//	          ↘ snapshot.Builder → workflow → delivery.Pipeline → Dispatcher → Sender
type Components struct {
	Config   *config.Config
	DB       *sqliteRepo.DB
	Registry *prometheus.Registry

	Keys   *auth.KeyVerifier
	Tokens *auth.TokenService // nil when JWT_SECRET is unset

	Users         *service.UserService
	Sessions      *service.SessionService // nil when Tokens is nil
	Tasks         *service.TaskService
	Notes         *service.NoteService
	Profiles      *service.ProfileService
	Subscriptions *service.SubscriptionService
	Metrics       *service.MetricService
	Reconciler    *reconcile.Engine
	Operations    *operation.Executor

	Dispatcher *delivery.Dispatcher
	Briefer    *delivery.Briefer
	Batch      *delivery.BatchRunner
	Tracker    *delivery.Tracker

	Limiter *ratelimit.SlidingWindow
	Cache   *ratelimit.ResponseCache
}

// Wire opens the database and builds every component from cfg. The caller
// owns the result and must call Close.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg.DBPath != ":memory:" {
		// Like `mkdir -p`: create the data directory on first run.
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	c, err := wire(ctx, cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func wire(ctx context.Context, cfg *config.Config, db *sqliteRepo.DB, logger *slog.Logger) (*Components, error) {
	clk := clock.Real{}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c := &Components{Config: cfg, DB: db, Registry: reg}

	// === Credentials ===
	keys, err := auth.NewKeyVerifier(cfg.InternalAPIKey)
	if err != nil {
		return nil, err
	}
	if !keys.Enabled() {
		logger.Warn("INTERNAL_API_KEY not set: internal routes will reject every request")
	}
	c.Keys = keys

	if cfg.JWTSecret != "" {
		if c.Tokens, err = auth.NewTokenService(cfg.JWTSecret); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("JWT_SECRET not set: session tokens are disabled")
	}

	signer := delivery.NewSigner(cfg.SubscriptionSecret, cfg.APIBaseURL)
	// A typed nil would make the interface non-nil, so assign only when set.
	var verifier service.LinkVerifier
	if cfg.SubscriptionSecret != "" {
		verifier = signer
	} else {
		logger.Warn("SUBSCRIPTION_SECRET not set: emailed links are unsigned and will not verify")
	}

	// === Services ===
	c.Users = service.NewUserService(db, logger)
	if c.Tokens != nil {
		c.Sessions = service.NewSessionService(c.Users, c.Tokens, logger)
	}
	c.Tasks = service.NewTaskService(db, clk, logger)
	c.Notes = service.NewNoteService(db, clk, logger)
	c.Profiles = service.NewProfileService(db, logger)
	c.Subscriptions = service.NewSubscriptionService(db, verifier, clk, logger)
	c.Metrics = service.NewMetricService(db, db, verifier, clk, logger)
	c.Reconciler = reconcile.NewEngine(db, db, clk, logger)
	c.Operations = operation.NewExecutor(c.Tasks, c.Notes, c.Profiles, c.Reconciler, logger)

	// === Archive ===
	var archive delivery.Archive
	if cfg.ArchiveBucket != "" {
		s3a, err := delivery.NewS3Archive(ctx, cfg.ArchiveBucket, cfg.ArchiveRegion)
		if err != nil {
			return nil, fmt.Errorf("creating briefing archive: %w", err)
		}
		archive = s3a
	}

	// === Workflow ===
	personas, err := workflow.LoadPersonas(cfg.PersonasFile)
	if err != nil {
		return nil, err
	}
	var model workflow.Completer = unconfiguredModel{}
	if cfg.ModelEnabled() {
		model = reasoning.New(ctx, reasoning.Config{
			BaseURL:      cfg.ModelBaseURL,
			Model:        cfg.ModelName,
			APIKey:       cfg.ModelAPIKey,
			TokenURL:     cfg.ModelTokenURL,
			ClientID:     cfg.ModelClientID,
			ClientSecret: cfg.ModelClientSecret,
			RPM:          cfg.ModelRPM,
			Timeout:      cfg.ModelTimeout,
		}, logger)
	} else {
		logger.Warn("MODEL_BASE_URL not set: briefings will fail until a model is configured")
	}

	wfOpts := []workflow.Option{
		workflow.WithMetrics(workflow.NewMetrics(reg)),
		workflow.WithWorkerTimeout(cfg.ModelTimeout),
	}
	if archive != nil {
		wfOpts = append(wfOpts, workflow.WithCompletionHook(delivery.VerdictArchiver(archive, logger)))
	}
	analysts, judge := personas.Workers(model)
	wf, err := workflow.New(analysts, judge, logger, wfOpts...)
	if err != nil {
		return nil, fmt.Errorf("building workflow: %w", err)
	}

	// === Delivery ===
	var sender delivery.Sender = delivery.LogSender{Logger: logger}
	if cfg.MailEnabled() {
		sender = delivery.NewSMTPSender(delivery.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SenderEmail,
		})
	} else {
		logger.Warn("SMTP not configured: briefings will be logged instead of mailed")
	}

	dispatchOpts := []delivery.DispatcherOption{delivery.WithDispatchMetrics(delivery.NewDispatchMetrics(reg))}
	if archive != nil {
		dispatchOpts = append(dispatchOpts, delivery.WithArchive(archive))
	}
	c.Dispatcher = delivery.NewDispatcher(sender, delivery.DispatcherConfig{
		Workers:     cfg.DispatchWorkers,
		QueueSize:   cfg.DispatchQueue,
		MaxAttempts: cfg.DispatchMaxAttempts,
	}, logger, dispatchOpts...)

	pipeline := delivery.NewPipeline(db, delivery.NewRenderer(signer, cfg.SenderEmail), c.Dispatcher, clk, logger,
		delivery.NewPipelineMetrics(reg))
	c.Briefer = delivery.NewBriefer(snapshot.NewBuilder(db, db, db, clk), wf, pipeline)
	c.Batch = delivery.NewBatchRunner(db, c.Briefer, logger)
	c.Tracker = delivery.NewTracker(db, clk, logger)

	// === Throttling ===
	c.Limiter = ratelimit.NewSlidingWindow(cfg.RateLimit, cfg.RateWindow, clk)
	c.Cache = ratelimit.NewResponseCache(cfg.ResponseCacheTTL, 0, clk)

	return c, nil
}

// Start launches the background workers.
func (c *Components) Start() {
	c.Dispatcher.Start()
	c.Limiter.Start()
	c.Cache.Start()
}

// Stop drains the dispatch queue and stops the janitors. It does not close
// the database.
func (c *Components) Stop() {
	c.Dispatcher.Stop()
	c.Limiter.Stop()
	c.Cache.Stop()
}

// Close releases the database.
func (c *Components) Close() error {
	return c.DB.Close()
}

// RunBatch briefs every subscriber once and waits for the queued messages
// to be sent. Used by the send-daily command.
func (c *Components) RunBatch(ctx context.Context) (*delivery.Summary, error) {
	c.Dispatcher.Start()
	defer c.Dispatcher.Stop()
	return c.Batch.Run(ctx)
}
