// Package server sets up the HTTP server, router, and routes.
//
// ROUTES:
//
//	POST /webhook/{secret} → Telegram update push (webhook mode only)
//	GET  /healthz          → record store reachability
//	GET  /metrics          → Prometheus scrape
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID → tags each request so log lines can be correlated
//  2. RealIP    → client IP from X-Forwarded-For (bots sit behind proxies)
//  3. Recoverer → a panic becomes a 500 instead of a dead process
//  4. Logger    → one structured line per request
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

	"github.com/sakif/snippetbot/internal/handler"
	"github.com/sakif/snippetbot/internal/metrics"
	"github.com/sakif/snippetbot/internal/middleware"
)

// Config holds server configuration.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

// Deps are the handlers the router mounts. Webhook is nil in polling mode.
type Deps struct {
	Health  *handler.HealthHandler
	Webhook *handler.WebhookHandler
}

// Server is the HTTP side of the bot.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(deps)
	return s
}

func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	if deps.Health != nil {
		s.router.Get("/healthz", deps.Health.HandleHealth)
	}
	s.router.Handle("/metrics", metrics.Handler())

	if deps.Webhook != nil {
		s.router.Post("/webhook/{secret}", deps.Webhook.HandleUpdate)
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully: new
// connections are refused and in-flight requests (a webhook mid-broadcast)
// get up to ShutdownTimeout to finish.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: a webhook running /broadcast can legitimately
		// take longer than any fixed bound.
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", slog.Int("port", s.config.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("http server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.logger.Info("http server stopped gracefully")
		return nil
	}
}
