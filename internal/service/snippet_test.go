package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/snippetbot/internal/apperror"
)

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestSnippetCreate_Success(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := NewSnippetService(repo, testLogger())

	snippet, err := svc.Create(context.Background(), AddCodeInput{
		Language:    "python",
		Description: "  fib function  ",
		Content:     "def fib(n): ...",
		CreatedBy:   "alice",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if snippet.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if snippet.Description != "fib function" {
		t.Errorf("Description = %q, want trimmed %q", snippet.Description, "fib function")
	}
	if snippet.AccessCount != 0 {
		t.Errorf("AccessCount = %d, want 0", snippet.AccessCount)
	}
	if snippet.CreatedBy != "alice" {
		t.Errorf("CreatedBy = %q, want %q", snippet.CreatedBy, "alice")
	}
}

func TestSnippetCreate_Validation(t *testing.T) {
	tests := []struct {
		name      string
		input     AddCodeInput
		wantField string
	}{
		{
			name:      "missing language",
			input:     AddCodeInput{Description: "d", Content: "x"},
			wantField: "language",
		},
		{
			name:      "blank description",
			input:     AddCodeInput{Language: "go", Description: "   ", Content: "x"},
			wantField: "description",
		},
		{
			name:      "empty content",
			input:     AddCodeInput{Language: "go", Description: "d"},
			wantField: "content",
		},
		{
			name:      "language too long",
			input:     AddCodeInput{Language: strings.Repeat("a", MaxLanguageLength+1), Description: "d", Content: "x"},
			wantField: "language",
		},
		{
			name:      "content too long",
			input:     AddCodeInput{Language: "go", Description: "d", Content: strings.Repeat("x", MaxContentLength+1)},
			wantField: "content",
		},
		{
			name:      "image ref too long",
			input:     AddCodeInput{Language: "go", Description: "d", Content: "x", Image: strings.Repeat("i", MaxImageRefLength+1)},
			wantField: "image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeSnippetRepo()
			svc := NewSnippetService(repo, testLogger())

			_, err := svc.Create(context.Background(), tt.input)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Create() error = %v, want ErrValidation", err)
			}

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("error is not an *AppError: %v", err)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
			if len(repo.snippets) != 0 {
				t.Errorf("repo has %d snippets after a validation failure, want 0", len(repo.snippets))
			}
		})
	}
}

func TestSnippetCreate_AtLimits(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := NewSnippetService(repo, testLogger())

	_, err := svc.Create(context.Background(), AddCodeInput{
		Language:    strings.Repeat("a", MaxLanguageLength),
		Description: strings.Repeat("d", MaxDescriptionLength),
		Content:     strings.Repeat("x", MaxContentLength),
		Image:       strings.Repeat("i", MaxImageRefLength),
	})
	if err != nil {
		t.Fatalf("Create() at the exact limits error = %v", err)
	}

	_, err = svc.Create(context.Background(), AddCodeInput{
		Language:    "go",
		Description: strings.Repeat("d", MaxDescriptionLength+1),
		Content:     "x",
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Create() one past MaxDescriptionLength error = %v, want ErrValidation", err)
	}
}

func TestSnippetCreate_RepoError(t *testing.T) {
	repo := newFakeSnippetRepo()
	repo.failWith = errStoreDown
	svc := NewSnippetService(repo, testLogger())

	_, err := svc.Create(context.Background(), AddCodeInput{Language: "go", Description: "d", Content: "x"})
	if !errors.Is(err, errStoreDown) {
		t.Errorf("Create() error = %v, want wrapped errStoreDown", err)
	}
}

// =========================================================================
// OPEN TESTS
// =========================================================================

func TestSnippetOpen_IncrementsCounter(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := NewSnippetService(repo, testLogger())

	created, err := svc.Create(context.Background(), AddCodeInput{Language: "go", Description: "d", Content: "x"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		opened, err := svc.Open(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if opened.AccessCount != want {
			t.Errorf("AccessCount = %d, want %d", opened.AccessCount, want)
		}
	}
}

func TestSnippetOpen_NotFound(t *testing.T) {
	svc := NewSnippetService(newFakeSnippetRepo(), testLogger())

	for _, id := range []string{"", "   ", "does-not-exist"} {
		_, err := svc.Open(context.Background(), id)
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("Open(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestSnippetOpen_StoreError(t *testing.T) {
	repo := newFakeSnippetRepo()
	repo.failWith = errStoreDown
	svc := NewSnippetService(repo, testLogger())

	_, err := svc.Open(context.Background(), "fake-1")
	if !errors.Is(err, errStoreDown) {
		t.Errorf("Open() error = %v, want wrapped errStoreDown", err)
	}
	if errors.Is(err, apperror.ErrNotFound) {
		t.Error("a store failure must not look like not-found")
	}
}
