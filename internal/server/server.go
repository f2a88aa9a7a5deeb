// Package server sets up the HTTP server, its routes and the lifecycle of
// the background workers.
//
// This is the composition root: Wire assembles every dependency in one
// place, setupRoutes maps URLs to handlers, and Start owns graceful
// shutdown. main.go only loads config and calls in.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/life-tracker/internal/auth"
	"github.com/sakif/life-tracker/internal/handler"
	"github.com/sakif/life-tracker/internal/middleware"
)

// shutdownTimeout bounds how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// Server is the HTTP front of a Components graph.
type Server struct {
	router *chi.Mux
	c      *Components
	logger *slog.Logger
}

// New builds the router over c. The server does not own c; the caller
// closes it after Start returns.
func New(c *Components, logger *slog.Logger) *Server {
	s := &Server{router: chi.NewRouter(), c: c, logger: logger}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz, /metrics
//	/newsletter/...            signed links, open pixel, internal batch trigger
//	GET  /metrics/log_mood_via_redirect
//	/api/...                   internal key, then user identity
//
// MIDDLEWARE ORDER MATTERS. Globally: RequestID, RealIP, Recoverer, Logger.
// Under /api the user is resolved before rate limiting and response replay
// so both are keyed by the stored user.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(s.logger))

	c := s.c
	internalOnly := auth.RequireInternalKey(c.Keys)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))

	// === Emailed links and the scheduler ===
	newsletter := handler.NewNewsletterHandler(c.Subscriptions, c.Tracker, c.Batch, s.logger)
	metrics := handler.NewMetricHandler(c.Metrics, c.Config.AppURL, s.logger)

	r.Route("/newsletter", func(r chi.Router) {
		r.Post("/subscribe/{email}/{token}", newsletter.HandleSubscribe)
		r.Get("/unsubscribe/{email}/{token}", newsletter.HandleUnsubscribe)
		r.Post("/unsubscribe/{email}/{token}", newsletter.HandleUnsubscribe)
		r.Get("/track/open/{log_id}", newsletter.HandleTrackOpen)

		r.With(internalOnly).Get("/status/{email}", newsletter.HandleStatus)
		r.With(internalOnly).Post("/send-daily", newsletter.HandleSendDaily)
	})
	r.Get("/metrics/log_mood_via_redirect", metrics.HandleLogMood)

	// === API ===
	users := handler.NewUserHandler(c.Users, s.logger)
	tasks := handler.NewTaskHandler(c.Tasks, c.Reconciler, s.logger)
	notes := handler.NewNoteHandler(c.Notes, c.Reconciler, s.logger)
	profiles := handler.NewProfileHandler(c.Profiles, s.logger)
	operations := handler.NewOperationHandler(c.Operations, s.logger)
	briefing := handler.NewBriefingHandler(c.Briefer, s.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(internalOnly)

		if c.Sessions != nil {
			r.Post("/session", handler.NewSessionHandler(c.Sessions, s.logger).HandleStart)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(c.Tokens, c.Users, s.logger))
			r.Use(middleware.RateLimit(c.Limiter))
			r.Use(middleware.CacheResponses(c.Cache))

			r.Get("/me", users.HandleMe)
			r.Delete("/me/purge", users.HandlePurge)

			r.Get("/tasks", tasks.HandleList)
			r.Post("/tasks", tasks.HandleCreate)
			r.Put("/tasks", tasks.HandleReconcile)
			r.Put("/tasks/{id}", tasks.HandleUpdate)
			r.Delete("/tasks/{id}", tasks.HandleDelete)

			r.Get("/notes", notes.HandleList)
			r.Post("/notes", notes.HandleCreate)
			r.Put("/notes", notes.HandleReconcile)

			r.Get("/profile", profiles.HandleGet)
			r.Put("/profile", profiles.HandleUpdate)

			r.Get("/metrics/daily", metrics.HandleListDaily)
			r.Post("/operations", operations.HandleExecute)
			r.Post("/briefing", briefing.HandleBrief)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.c.DB.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully:
//  1. stop accepting connections and let in-flight requests finish
//  2. drain the dispatch queue so accepted briefings still go out
//  3. stop the janitors
//
// The caller closes the database afterwards.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a synchronous batch or briefing runs the model
		IdleTimeout:  60 * time.Second,
	}

	s.c.Start()
	defer s.c.Stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("database", s.c.Config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
