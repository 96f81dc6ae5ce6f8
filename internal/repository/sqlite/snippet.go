package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippetbot/internal/apperror"
	"github.com/sakif/snippetbot/internal/model"
	"github.com/sakif/snippetbot/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// If *DB stops satisfying SnippetRepository, the build fails here rather than
// at the call site in storage.Open.
var _ repository.SnippetRepository = (*DB)(nil)

const snippetColumns = `id, language, description, content, created_by, access_count, image, created_at`

// Create inserts a new snippet. The ID, CreatedAt and a zero AccessCount are
// assigned here and written back into the caller's struct.
//
// ID GENERATION WITH xid:
// xid IDs are 20 chars, URL-safe and sortable by creation time, short enough
// to travel in a t.me deep link (Telegram caps the start payload at 64 chars).
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	snippet.AccessCount = 0
	snippet.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (`+snippetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.Language,
		snippet.Description,
		snippet.Content,
		snippet.CreatedBy,
		snippet.AccessCount,
		snippet.Image,
		snippet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	return nil
}

// GetByID retrieves a single snippet by its ID without touching the counter.
// Malformed IDs are reported as not found, never as a database error.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	if !validID(id) {
		return nil, apperror.NotFound("snippet", id)
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`,
		id,
	)
	snippet, err := scanSnippet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}

	return snippet, nil
}

// IncrementAccess bumps access_count and returns the updated row in one statement.
//
// ATOMIC INCREMENT:
// UPDATE ... RETURNING does the read and the write under the same lock, so two
// people opening the same link at once both get counted, and a missing row
// affects nothing.
func (db *DB) IncrementAccess(ctx context.Context, id string) (*model.Snippet, error) {
	if !validID(id) {
		return nil, apperror.NotFound("snippet", id)
	}

	row := db.conn.QueryRowContext(ctx,
		`UPDATE snippets
		 SET access_count = access_count + 1
		 WHERE id = ?
		 RETURNING `+snippetColumns,
		id,
	)
	snippet, err := scanSnippet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: incrementing access count for %s: %w", id, err)
	}

	return snippet, nil
}

// CountSnippets returns the total number of snippet records.
func (db *DB) CountSnippets(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM snippets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting snippets: %w", err)
	}
	return n, nil
}

func scanSnippet(row *sql.Row) (*model.Snippet, error) {
	var s model.Snippet
	err := row.Scan(
		&s.ID,
		&s.Language,
		&s.Description,
		&s.Content,
		&s.CreatedBy,
		&s.AccessCount,
		&s.Image,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// validID reports whether id has the xid wire format. Anything else cannot
// exist in this store.
func validID(id string) bool {
	_, err := xid.FromString(id)
	return err == nil
}
