package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/sakif/snippetbot/internal/repository"
)

// AccessService decides who may run privileged commands. The user record's
// admin flag is the only source of truth, for both transports.
type AccessService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewAccessService(users repository.UserRepository, logger *slog.Logger) *AccessService {
	return &AccessService{users: users, logger: logger}
}

// IsAuthorized reports whether telegramID has admin rights. A store failure
// is returned as an error, never as "not authorized".
func (s *AccessService) IsAuthorized(ctx context.Context, telegramID int64) (bool, error) {
	ok, err := s.users.IsAdmin(ctx, telegramID)
	if err != nil {
		return false, fmt.Errorf("checking admin flag for %d: %w", telegramID, err)
	}
	return ok, nil
}

// SeedAdmins promotes every id in ids, creating user records as needed. It
// runs once at startup from BOT_ADMIN_IDS.
func (s *AccessService) SeedAdmins(ctx context.Context, ids []int64) error {
	for _, id := range lo.Uniq(ids) {
		if err := s.users.SetAdmin(ctx, id, true); err != nil {
			return fmt.Errorf("seeding admin %d: %w", id, err)
		}
		s.logger.Info("admin seeded", slog.Int64("userID", id))
	}
	return nil
}

// SetAdmin grants or revokes admin rights.
func (s *AccessService) SetAdmin(ctx context.Context, telegramID int64, admin bool) error {
	if err := s.users.SetAdmin(ctx, telegramID, admin); err != nil {
		return fmt.Errorf("setting admin flag for %d: %w", telegramID, err)
	}
	s.logger.Info("admin flag changed",
		slog.Int64("userID", telegramID),
		slog.Bool("admin", admin),
	)
	return nil
}
