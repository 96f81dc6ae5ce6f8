package service

import (
	"context"
	"fmt"

	"github.com/sakif/snippetbot/internal/repository"
)

// Stats is the aggregate shown by /stats and botctl stats.
type Stats struct {
	Users    int64
	Snippets int64
}

type StatsService struct {
	users    repository.UserRepository
	snippets repository.SnippetRepository
}

func NewStatsService(users repository.UserRepository, snippets repository.SnippetRepository) *StatsService {
	return &StatsService{users: users, snippets: snippets}
}

func (s *StatsService) Stats(ctx context.Context) (Stats, error) {
	users, err := s.users.CountUsers(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting users: %w", err)
	}
	snippets, err := s.snippets.CountSnippets(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting snippets: %w", err)
	}
	return Stats{Users: users, Snippets: snippets}, nil
}
