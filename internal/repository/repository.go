// Package repository declares the record store contracts the bot depends on.
//
// Two collections live behind these interfaces: snippet records and user records.
// Implementations live in sub-packages (sqlite, mongo) and are selected at startup
// by the storage package.
package repository

import (
	"context"

	"github.com/sakif/snippetbot/internal/model"
)

// SnippetRepository stores snippet records. There is deliberately no Update or
// Delete: snippets are append-only and only the access counter moves.
type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)

	// IncrementAccess atomically adds one to the snippet's access counter and
	// returns the updated record. Unknown or malformed ids return
	// apperror.ErrNotFound and mutate nothing.
	IncrementAccess(ctx context.Context, id string) (*model.Snippet, error)

	CountSnippets(ctx context.Context) (int64, error)
}

// UserRepository stores the user directory.
type UserRepository interface {
	// Register inserts the user if no record with the same TelegramID exists.
	// created reports whether a new record was written. The uniqueness of
	// TelegramID is enforced by the store, so concurrent first-contact
	// messages cannot produce duplicates.
	Register(ctx context.Context, user *model.User) (created bool, err error)

	GetUser(ctx context.Context, telegramID int64) (*model.User, error)

	// IsAdmin reports whether a user record exists with the privilege flag set.
	// A missing record is not an error: it simply is not an admin.
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)

	// SetAdmin sets the privilege flag, creating the record if needed.
	SetAdmin(ctx context.Context, telegramID int64, admin bool) error

	ListUserIDs(ctx context.Context) ([]int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

// Store is everything a backing database provides to the application.
type Store interface {
	SnippetRepository
	UserRepository
	Ping(ctx context.Context) error
	Close() error
}
