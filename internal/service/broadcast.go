package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sakif/snippetbot/internal/gateway"
	"github.com/sakif/snippetbot/internal/metrics"
	"github.com/sakif/snippetbot/internal/repository"
)

// BroadcastConfig bounds the fan-out.
type BroadcastConfig struct {
	// RatePerSecond caps sends across all broadcasts. Zero or negative means
	// unlimited. Telegram starts refusing around 30 messages per second.
	RatePerSecond float64
	Concurrency   int
}

// BroadcastResult tallies one broadcast.
type BroadcastResult struct {
	Attempted int
	Delivered int
	Failed    int
}

// BroadcastService sends one message to every known user.
type BroadcastService struct {
	users       repository.UserRepository
	gw          gateway.Gateway
	limiter     *rate.Limiter
	concurrency int
	logger      *slog.Logger
}

func NewBroadcastService(users repository.UserRepository, gw gateway.Gateway, cfg BroadcastConfig, logger *slog.Logger) *BroadcastService {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &BroadcastService{
		users:       users,
		gw:          gw,
		limiter:     rate.NewLimiter(limit, 1),
		concurrency: concurrency,
		logger:      logger,
	}
}

// Broadcast attempts one plain-text send per user record. A failed recipient
// is logged and counted; it never stops the others. The only error returned
// is failing to list recipients.
func (s *BroadcastService) Broadcast(ctx context.Context, text string) (BroadcastResult, error) {
	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("listing broadcast recipients: %w", err)
	}

	var delivered, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := s.limiter.Wait(ctx)
			if err == nil {
				err = s.gw.SendText(ctx, id, text, gateway.FormatPlain)
			}
			if err != nil {
				failed.Add(1)
				metrics.BroadcastDeliveries.WithLabelValues("failed").Inc()
				s.logger.Warn("broadcast delivery failed",
					slog.Int64("userID", id),
					slog.String("error", err.Error()),
				)
				return nil
			}
			delivered.Add(1)
			metrics.BroadcastDeliveries.WithLabelValues("delivered").Inc()
			return nil
		})
	}
	_ = g.Wait()

	result := BroadcastResult{
		Attempted: len(ids),
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
	}
	s.logger.Info("broadcast finished",
		slog.Int("attempted", result.Attempted),
		slog.Int("delivered", result.Delivered),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
