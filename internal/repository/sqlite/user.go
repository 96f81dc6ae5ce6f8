package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/snippetbot/internal/apperror"
	"github.com/sakif/snippetbot/internal/model"
	"github.com/sakif/snippetbot/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Register inserts the user unless a row with the same telegram_id exists.
//
// INSERT ... ON CONFLICT DO NOTHING:
// The existence check and the insert are one statement, guarded by the
// PRIMARY KEY on telegram_id. Two first-contact messages racing each other
// produce exactly one row; the loser sees RowsAffected() == 0.
func (db *DB) Register(ctx context.Context, user *model.User) (bool, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (telegram_id, username, is_admin, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(telegram_id) DO NOTHING`,
		user.TelegramID,
		user.Username,
		user.IsAdmin,
		user.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: registering user %d: %w", user.TelegramID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// GetUser retrieves a user by Telegram ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT telegram_id, username, is_admin, created_at
		 FROM users WHERE telegram_id = ?`,
		telegramID,
	).Scan(
		&u.TelegramID,
		&u.Username,
		&u.IsAdmin,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(telegramID, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", telegramID, err)
	}

	return &u, nil
}

// IsAdmin reports whether the user exists with is_admin set.
func (db *DB) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	var admin bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT is_admin FROM users WHERE telegram_id = ?`,
		telegramID,
	).Scan(&admin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: checking admin flag for %d: %w", telegramID, err)
	}
	return admin, nil
}

// SetAdmin sets the privilege flag. Unknown users are created with an empty
// handle so admins can be seeded before they ever message the bot.
func (db *DB) SetAdmin(ctx context.Context, telegramID int64, admin bool) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (telegram_id, username, is_admin, created_at)
		 VALUES (?, '', ?, ?)
		 ON CONFLICT(telegram_id) DO UPDATE SET is_admin = excluded.is_admin`,
		telegramID,
		admin,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting admin flag for %d: %w", telegramID, err)
	}
	return nil
}

// ListUserIDs returns every registered Telegram ID, oldest first.
func (db *DB) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT telegram_id FROM users ORDER BY created_at, telegram_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user ids: %w", err)
	}

	return ids, nil
}

// CountUsers returns the total number of user records.
func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}
