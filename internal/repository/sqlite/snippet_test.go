package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sakif/snippetbot/internal/apperror"
	"github.com/sakif/snippetbot/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" gives each test a fresh database that disappears on Close.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestSnippet(t *testing.T, db *DB, language, content string) *model.Snippet {
	t.Helper()
	snippet := &model.Snippet{
		Language:    language,
		Description: "test snippet",
		Content:     content,
		CreatedBy:   "tester",
	}
	if err := db.Create(context.Background(), snippet); err != nil {
		t.Fatalf("failed to create test snippet: %v", err)
	}
	return snippet
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate(t *testing.T) {
	db := newTestDB(t)

	snippet := &model.Snippet{
		Language:    "python",
		Description: "fib function",
		Content:     "def fib(n): ...",
		CreatedBy:   "alice",
		AccessCount: 42, // must be reset by Create
	}

	if err := db.Create(context.Background(), snippet); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if snippet.ID == "" {
		t.Error("Create() did not set snippet.ID")
	}
	if snippet.CreatedAt.IsZero() {
		t.Error("Create() did not set snippet.CreatedAt")
	}
	if snippet.AccessCount != 0 {
		t.Errorf("AccessCount = %d, want 0", snippet.AccessCount)
	}
}

func TestCreate_VerifyPersistence(t *testing.T) {
	db := newTestDB(t)

	original := &model.Snippet{
		Language:    "go",
		Description: "hello",
		Content:     "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}",
		CreatedBy:   "bob",
		Image:       "AgACAgIAAxkBAAIB",
	}
	if err := db.Create(context.Background(), original); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	found, err := db.GetByID(context.Background(), original.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if found.Language != original.Language {
		t.Errorf("Language = %q, want %q", found.Language, original.Language)
	}
	if found.Content != original.Content {
		t.Errorf("Content = %q, want %q", found.Content, original.Content)
	}
	if found.CreatedBy != "bob" {
		t.Errorf("CreatedBy = %q, want %q", found.CreatedBy, "bob")
	}
	if found.Image != original.Image {
		t.Errorf("Image = %q, want %q", found.Image, original.Image)
	}
}

// =========================================================================
// GET BY ID TESTS
// =========================================================================

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	// well-formed xid that was never inserted
	_, err := db.GetByID(context.Background(), "cv37rs3pp9olc6atsptg")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetByID_MalformedID(t *testing.T) {
	db := newTestDB(t)

	for _, id := range []string{"", "nonexistent-id", "'; DROP TABLE snippets; --", "64f1c2e8a7b9d0e1f2a3b4c5"} {
		_, err := db.GetByID(context.Background(), id)
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("GetByID(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

// =========================================================================
// INCREMENT ACCESS TESTS
// =========================================================================

func TestIncrementAccess(t *testing.T) {
	db := newTestDB(t)
	created := createTestSnippet(t, db, "python", "print('hi')")

	updated, err := db.IncrementAccess(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("IncrementAccess() error = %v", err)
	}
	if updated.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", updated.AccessCount)
	}
	if updated.Content != "print('hi')" {
		t.Errorf("Content = %q, want %q", updated.Content, "print('hi')")
	}

	updated, err = db.IncrementAccess(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("IncrementAccess() second call error = %v", err)
	}
	if updated.AccessCount != 2 {
		t.Errorf("AccessCount = %d, want 2", updated.AccessCount)
	}
}

func TestIncrementAccess_NotFoundMutatesNothing(t *testing.T) {
	db := newTestDB(t)
	existing := createTestSnippet(t, db, "python", "x = 1")

	for _, id := range []string{"cv37rs3pp9olc6atsptg", "garbage"} {
		_, err := db.IncrementAccess(context.Background(), id)
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("IncrementAccess(%q) error = %v, want ErrNotFound", id, err)
		}
	}

	found, err := db.GetByID(context.Background(), existing.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.AccessCount != 0 {
		t.Errorf("AccessCount = %d, want 0", found.AccessCount)
	}
}

func TestIncrementAccess_Concurrent(t *testing.T) {
	db := newTestDB(t)
	created := createTestSnippet(t, db, "python", "x = 1")

	const openers = 20
	var wg sync.WaitGroup
	for i := 0; i < openers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.IncrementAccess(context.Background(), created.ID); err != nil {
				t.Errorf("IncrementAccess() error = %v", err)
			}
		}()
	}
	wg.Wait()

	found, err := db.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.AccessCount != openers {
		t.Errorf("AccessCount = %d, want %d", found.AccessCount, openers)
	}
}

// =========================================================================
// COUNT TESTS
// =========================================================================

func TestCountSnippets(t *testing.T) {
	db := newTestDB(t)

	n, err := db.CountSnippets(context.Background())
	if err != nil {
		t.Fatalf("CountSnippets() error = %v", err)
	}
	if n != 0 {
		t.Errorf("CountSnippets() = %d, want 0", n)
	}

	createTestSnippet(t, db, "go", "a")
	createTestSnippet(t, db, "go", "b")
	createTestSnippet(t, db, "rust", "c")

	n, err = db.CountSnippets(context.Background())
	if err != nil {
		t.Fatalf("CountSnippets() error = %v", err)
	}
	if n != 3 {
		t.Errorf("CountSnippets() = %d, want 3", n)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
