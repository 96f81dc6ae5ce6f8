// Command botctl administers the snippet bot out of band. It talks to the
// same store as the running bot, configured by the same BOT_* environment.
//
//	botctl promote 7758708579
//	botctl demote 7758708579
//	botctl stats
//	botctl webhook delete
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/sakif/snippetbot/internal/config"
	"github.com/sakif/snippetbot/internal/gateway/telegram"
	"github.com/sakif/snippetbot/internal/repository"
	"github.com/sakif/snippetbot/internal/service"
	"github.com/sakif/snippetbot/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := newApp(logger).Run(os.Args); err != nil {
		logger.Error("botctl failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newApp(logger *slog.Logger) *cli.App {
	return &cli.App{
		Name:  "botctl",
		Usage: "administer the snippet bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file to load before reading BOT_* variables",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "promote",
				Usage:     "grant admin rights to a user",
				ArgsUsage: "<telegram-id>",
				Action:    setAdminAction(logger, true),
			},
			{
				Name:      "demote",
				Usage:     "revoke admin rights from a user",
				ArgsUsage: "<telegram-id>",
				Action:    setAdminAction(logger, false),
			},
			{
				Name:  "stats",
				Usage: "print user and snippet totals",
				Action: func(c *cli.Context) error {
					return withStore(c, func(ctx context.Context, store repository.Store) error {
						stats, err := service.NewStatsService(store, store).Stats(ctx)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "users:    %d\nsnippets: %d\n", stats.Users, stats.Snippets)
						return nil
					})
				},
			},
			{
				Name:  "webhook",
				Usage: "manage the Telegram webhook registration",
				Subcommands: []*cli.Command{
					{
						Name:  "delete",
						Usage: "remove the webhook so the bot can poll",
						Action: func(c *cli.Context) error {
							cfg, err := config.Load(c.String("env-file"))
							if err != nil {
								return err
							}
							tg, err := telegram.New(cfg.Token, logger)
							if err != nil {
								return err
							}
							if err := tg.DeleteWebhook(); err != nil {
								return err
							}
							fmt.Fprintln(c.App.Writer, "webhook deleted")
							return nil
						},
					},
				},
			},
		},
	}
}

func setAdminAction(logger *slog.Logger, admin bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		id, err := parseTelegramID(c.Args().First())
		if err != nil {
			return err
		}
		return withStore(c, func(ctx context.Context, store repository.Store) error {
			if err := service.NewAccessService(store, logger).SetAdmin(ctx, id, admin); err != nil {
				return err
			}
			verb := "promoted"
			if !admin {
				verb = "demoted"
			}
			fmt.Fprintf(c.App.Writer, "user %d %s\n", id, verb)
			return nil
		})
	}
}

// withStore loads configuration, opens the store and closes it after fn.
func withStore(c *cli.Context, fn func(ctx context.Context, store repository.Store) error) error {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return err
	}

	ctx := c.Context
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, store)
}

func parseTelegramID(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing <telegram-id>")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid telegram id %q", s)
	}
	return id, nil
}
