package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sakif/snippetbot/internal/apperror"
	"github.com/sakif/snippetbot/internal/gateway"
	"github.com/sakif/snippetbot/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================
//
// Hand-written in-memory implementations of the repository and gateway
// interfaces. Each can be told to fail so error paths are reachable.

var errStoreDown = errors.New("store unavailable")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSnippetRepo struct {
	mu       sync.Mutex
	snippets map[string]*model.Snippet
	nextID   int
	failWith error
}

func newFakeSnippetRepo() *fakeSnippetRepo {
	return &fakeSnippetRepo{snippets: make(map[string]*model.Snippet)}
}

func (f *fakeSnippetRepo) Create(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.nextID++
	s.ID = fmt.Sprintf("fake-%d", f.nextID)
	s.AccessCount = 0
	stored := *s
	f.snippets[s.ID] = &stored
	return nil
}

func (f *fakeSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	out := *s
	return &out, nil
}

func (f *fakeSnippetRepo) IncrementAccess(_ context.Context, id string) (*model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	s, ok := f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	s.AccessCount++
	out := *s
	return &out, nil
}

func (f *fakeSnippetRepo) CountSnippets(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	return int64(len(f.snippets)), nil
}

type fakeUserRepo struct {
	mu            sync.Mutex
	users         map[int64]*model.User
	order         []int64
	registerCalls int
	failWith      error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User)}
}

func (f *fakeUserRepo) Register(_ context.Context, u *model.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.failWith != nil {
		return false, f.failWith
	}
	if _, ok := f.users[u.TelegramID]; ok {
		return false, nil
	}
	stored := *u
	f.users[u.TelegramID] = &stored
	f.order = append(f.order, u.TelegramID)
	return true, nil
}

func (f *fakeUserRepo) GetUser(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", fmt.Sprint(id))
	}
	out := *u
	return &out, nil
}

func (f *fakeUserRepo) IsAdmin(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return false, f.failWith
	}
	u, ok := f.users[id]
	return ok && u.IsAdmin, nil
}

func (f *fakeUserRepo) SetAdmin(_ context.Context, id int64, admin bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		u = &model.User{TelegramID: id}
		f.users[id] = u
		f.order = append(f.order, id)
	}
	u.IsAdmin = admin
	return nil
}

func (f *fakeUserRepo) ListUserIDs(context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return append([]int64(nil), f.order...), nil
}

func (f *fakeUserRepo) CountUsers(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	return int64(len(f.users)), nil
}

type sentText struct {
	chatID int64
	text   string
	format gateway.Format
}

type fakeGateway struct {
	mu     sync.Mutex
	texts  []sentText
	failTo map[int64]bool
}

func (g *fakeGateway) SendText(_ context.Context, chatID int64, text string, format gateway.Format) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failTo[chatID] {
		return fmt.Errorf("chat %d: bot was blocked by the user", chatID)
	}
	g.texts = append(g.texts, sentText{chatID: chatID, text: text, format: format})
	return nil
}

func (g *fakeGateway) SendPhoto(context.Context, int64, string) error { return nil }

func (g *fakeGateway) Username() string { return "snip_bot" }

func newUser(id int64) *model.User {
	return &model.User{TelegramID: id}
}
