package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sakif/snippetbot/internal/metrics"
	"github.com/sakif/snippetbot/internal/model"
	"github.com/sakif/snippetbot/internal/repository"
)

const (
	seenTTL     = 30 * time.Minute
	seenCleanup = 10 * time.Minute
)

// UserService maintains the user directory.
type UserService struct {
	repo   repository.UserRepository
	seen   *cache.Cache
	logger *slog.Logger
}

func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		seen:   cache.New(seenTTL, seenCleanup),
		logger: logger,
	}
}

// Register records telegramID on first contact and is a no-op afterwards.
// created reports whether a new record was written.
//
// Recently seen ids skip the store entirely. The cache only ever says "known";
// uniqueness itself is enforced by the store, so an evicted entry costs one
// extra no-op insert and nothing more.
func (s *UserService) Register(ctx context.Context, telegramID int64, handle string) (bool, error) {
	key := strconv.FormatInt(telegramID, 10)
	if _, found := s.seen.Get(key); found {
		return false, nil
	}

	created, err := s.repo.Register(ctx, &model.User{
		TelegramID: telegramID,
		Username:   handle,
	})
	if err != nil {
		return false, fmt.Errorf("registering user %d: %w", telegramID, err)
	}
	s.seen.SetDefault(key, struct{}{})

	if created {
		metrics.UsersRegistered.Inc()
		s.logger.Info("user registered",
			slog.Int64("userID", telegramID),
			slog.String("username", handle),
		)
	}
	return created, nil
}
