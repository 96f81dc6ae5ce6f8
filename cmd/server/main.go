// Package main is the entry point for the snippet bot.
//
// main only wires things together: configuration, logger, store, gateway,
// services, dispatcher and then one of the two transports. Everything else
// lives in internal/.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/snippetbot/internal/bot"
	"github.com/sakif/snippetbot/internal/config"
	"github.com/sakif/snippetbot/internal/gateway/telegram"
	"github.com/sakif/snippetbot/internal/handler"
	"github.com/sakif/snippetbot/internal/poller"
	"github.com/sakif/snippetbot/internal/server"
	"github.com/sakif/snippetbot/internal/service"
	"github.com/sakif/snippetbot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// SIGINT (Ctrl+C) and SIGTERM (docker stop) cancel ctx; every component
	// below shuts down from it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bot stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("bot stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// === STORE ===
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// === GATEWAY ===
	tg, err := telegram.New(cfg.Token, logger)
	if err != nil {
		return err
	}
	logger.Info("authorized with telegram", slog.String("username", tg.Username()))

	// === SERVICES ===
	services := bot.Services{
		Users:    service.NewUserService(store, logger),
		Access:   service.NewAccessService(store, logger),
		Snippets: service.NewSnippetService(store, logger),
		Stats:    service.NewStatsService(store, store),
		Broadcast: service.NewBroadcastService(store, tg, service.BroadcastConfig{
			RatePerSecond: cfg.BroadcastRate,
			Concurrency:   cfg.BroadcastConcurrency,
		}, logger),
	}

	if err := services.Access.SeedAdmins(ctx, cfg.AdminIDs); err != nil {
		return err
	}

	dispatcher := bot.NewDispatcher(tg, services, bot.Options{
		LinkHost: cfg.LinkHost,
		BotName:  cfg.Username,
	}, logger)

	// === TRANSPORT ===
	deps := server.Deps{Health: handler.NewHealthHandler(store, logger)}
	srvCfg := server.Config{Port: cfg.HTTPPort, ShutdownTimeout: cfg.ShutdownTimeout}

	g, gctx := errgroup.WithContext(ctx)

	switch cfg.Mode {
	case config.ModeWebhook:
		deps.Webhook = handler.NewWebhookHandler(cfg.WebhookSecret, telegram.DecodeUpdate, dispatcher, logger)
		srv := server.New(srvCfg, deps, logger)

		g.Go(func() error { return srv.Run(gctx) })
		g.Go(func() error { return registerWebhook(gctx, tg, cfg.WebhookEndpoint(), logger) })

	case config.ModePolling:
		// getUpdates is refused while a webhook is registered.
		if err := tg.DeleteWebhook(); err != nil {
			return err
		}

		p := poller.New(tg, dispatcher, poller.Config{
			TimeoutSeconds: cfg.PollTimeout,
			Workers:        cfg.Workers,
		}, logger)
		g.Go(func() error { return p.Run(gctx) })

		if cfg.HTTPPort > 0 {
			srv := server.New(srvCfg, deps, logger)
			g.Go(func() error { return srv.Run(gctx) })
		}

	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	logger.Info("bot running", slog.String("mode", cfg.Mode), slog.String("store", cfg.StoreDriver))
	return g.Wait()
}

// registerWebhook calls setWebhook, retrying with backoff. Telegram rejects
// the call until the public URL resolves, which can lag a fresh deploy.
func registerWebhook(ctx context.Context, tg *telegram.Client, url string, logger *slog.Logger) error {
	err := retry.Do(
		func() error { return tg.SetWebhook(url) },
		retry.Context(ctx),
		retry.Attempts(6),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("setWebhook failed, retrying",
				slog.Uint64("attempt", uint64(n+1)),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("registering webhook: %w", err)
	}
	logger.Info("webhook registered")
	return nil
}
