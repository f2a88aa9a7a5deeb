// Package main is the entry point of the life tracker.
//
// The binary has three jobs, one cobra subcommand each:
//
//	server serve        run the HTTP API (default)
//	server send-daily   brief every subscriber once, for cron/schedulers
//	server migrate      apply database migrations and print the version
//
// All configuration comes from LIFETRACKER_* environment variables; see
// internal/config. main only loads config, builds a logger and hands over
// to internal/server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/life-tracker/internal/auth"
	"github.com/sakif/life-tracker/internal/config"
	sqliteRepo "github.com/sakif/life-tracker/internal/repository/sqlite"
	"github.com/sakif/life-tracker/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "server",
		Short:         "Personal life tracker with daily AI briefings",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "send-daily",
			Short: "Brief every subscriber once and wait for delivery",
			RunE:  runSendDaily,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations",
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "keygen",
			Short: "Print a random value for LIFETRACKER_INTERNAL_API_KEY",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), auth.GenerateKey())
			},
		},
	)
	return root
}

// setup loads the configuration and builds the logger. Failures are printed
// here because SilenceErrors is on.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return nil, nil, err
	}
	return cfg, newLogger(cfg), nil
}

// newLogger writes text logs for humans and JSON for log shippers.
func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.SlogLevel() // validated by config.Load
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := server.Wire(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build server", slog.String("error", err.Error()))
		return err
	}
	defer c.Close()

	// Start blocks until the context is cancelled.
	if err := server.New(c, logger).Start(ctx, cfg.Addr()); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func runSendDaily(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := server.Wire(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build components", slog.String("error", err.Error()))
		return err
	}
	defer c.Close()

	sum, err := c.RunBatch(ctx)
	if err != nil {
		logger.Error("briefing batch failed", slog.String("error", err.Error()))
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return err
		}
	}
	// sqlite.New applies pending migrations before returning.
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		logger.Error("migration failed", slog.String("error", err.Error()))
		return err
	}
	defer db.Close()

	version, dirty, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	logger.Info("database migrated",
		slog.String("path", cfg.DBPath),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}
