// Package service contains the business rules of the bot.
//
// THE LAYERS:
//
//	bot.Dispatcher (chat layer) → parses commands, formats replies
//	Service (business layer)    → validates, enforces rules, orchestrates
//	Repository (data layer)     → reads/writes the record store
//
// Services take repository interfaces, never a concrete store, so the same
// code runs against SQLite, MongoDB or an in-memory fake in tests. They know
// nothing about Telegram or HTTP: the webhook handler, the poller and the
// botctl CLI all reach the store through here.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/snippetbot/internal/apperror"
	"github.com/sakif/snippetbot/internal/metrics"
	"github.com/sakif/snippetbot/internal/model"
	"github.com/sakif/snippetbot/internal/repository"
)

// Validation limits for new snippets. The max= tags on AddCodeInput must
// carry the same numbers; TestSnippetCreate_AtLimits fails if they drift.
const (
	MaxLanguageLength    = 32
	MaxDescriptionLength = 256
	MaxContentLength     = 100000 // ~100KB of code
	MaxImageRefLength    = 512
)

// AddCodeInput is everything needed to create a snippet.
type AddCodeInput struct {
	Language    string `validate:"required,max=32"`
	Description string `validate:"required,max=256"`
	Content     string `validate:"required,max=100000"`
	Image       string `validate:"omitempty,max=512"`
	CreatedBy   string
}

// SnippetService handles creating and opening snippets.
type SnippetService struct {
	repo     repository.SnippetRepository
	validate *validator.Validate
	logger   *slog.Logger
}

func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Create validates in and stores a new snippet with a zero access count.
//
// Authorization is the caller's job: the dispatcher checks AccessService
// before it ever gets here.
func (s *SnippetService) Create(ctx context.Context, in AddCodeInput) (*model.Snippet, error) {
	in.Language = strings.TrimSpace(in.Language)
	in.Description = strings.TrimSpace(in.Description)

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	snippet := &model.Snippet{
		Language:    in.Language,
		Description: in.Description,
		Content:     in.Content,
		CreatedBy:   in.CreatedBy,
		Image:       in.Image,
	}

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("language", in.Language),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("language", snippet.Language),
		slog.String("createdBy", snippet.CreatedBy),
	)

	return snippet, nil
}

// Open resolves a deep-link payload: it bumps the access counter and returns
// the updated snippet in one store operation. Unknown or malformed ids return
// apperror.ErrNotFound and change nothing.
func (s *SnippetService) Open(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.NotFound("snippet", id)
	}

	snippet, err := s.repo.IncrementAccess(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("opening snippet %s: %w", id, err)
	}

	metrics.SnippetsOpened.Inc()
	s.logger.Debug("snippet opened",
		slog.String("id", snippet.ID),
		slog.Int64("accessCount", snippet.AccessCount),
	)
	return snippet, nil
}

// validationError turns the first validator failure into an AppError with a
// message fit for chat.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.ValidationFailed("", "invalid input")
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return apperror.ValidationFailed(field, field+" is required")
	case "max":
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	default:
		return apperror.ValidationFailed(field, field+" is invalid")
	}
}
