// Package poller runs the long-polling transport.
package poller

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/snippetbot/internal/gateway"
	"github.com/sakif/snippetbot/internal/metrics"
)

// UpdateSource streams inbound messages until stopped.
type UpdateSource interface {
	Updates(ctx context.Context, timeoutSeconds int) <-chan gateway.Message
	StopUpdates()
}

// MessageHandler processes one message. *bot.Dispatcher satisfies it.
type MessageHandler interface {
	Handle(ctx context.Context, msg gateway.Message) error
}

// Config tunes the polling loop.
type Config struct {
	TimeoutSeconds int // long-poll timeout per getUpdates call
	Workers        int // messages handled at once
}

// Poller feeds messages from an UpdateSource to a MessageHandler, each in its
// own goroutine. No ordering is kept between messages.
type Poller struct {
	source  UpdateSource
	handler MessageHandler
	config  Config
	logger  *slog.Logger
}

func New(source UpdateSource, handler MessageHandler, cfg Config, logger *slog.Logger) *Poller {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Poller{source: source, handler: handler, config: cfg, logger: logger}
}

// Run polls until ctx is cancelled or the source closes, then waits for the
// handlers already running. Handler errors are logged; they never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("polling started",
		slog.Int("timeout", p.config.TimeoutSeconds),
		slog.Int("workers", p.config.Workers),
	)

	updates := p.source.Updates(ctx, p.config.TimeoutSeconds)

	// In-flight handlers outlive ctx so a shutdown does not cut a reply in
	// half; the loop below stops taking new work instead.
	handlerCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(p.config.Workers)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case msg, ok := <-updates:
			if !ok {
				break loop
			}
			metrics.UpdatesReceived.WithLabelValues("polling").Inc()
			g.Go(func() error {
				if err := p.handler.Handle(handlerCtx, msg); err != nil {
					p.logger.Error("failed to handle message",
						slog.Int64("chatID", msg.ChatID),
						slog.String("error", err.Error()),
					)
				}
				return nil
			})
		}
	}

	p.source.StopUpdates()
	p.logger.Info("polling stopped, waiting for in-flight handlers")
	_ = g.Wait()
	p.logger.Info("polling drained")
	return nil
}
