package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/snippetbot/internal/model"
)

func TestIsAuthorized(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAccessService(repo, testLogger())
	ctx := context.Background()

	if ok, err := svc.IsAuthorized(ctx, 1); err != nil || ok {
		t.Errorf("IsAuthorized(unknown) = %v, %v; want false, nil", ok, err)
	}

	if _, err := repo.Register(ctx, &model.User{TelegramID: 2}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if ok, err := svc.IsAuthorized(ctx, 2); err != nil || ok {
		t.Errorf("IsAuthorized(regular) = %v, %v; want false, nil", ok, err)
	}

	if err := svc.SetAdmin(ctx, 2, true); err != nil {
		t.Fatalf("SetAdmin() error = %v", err)
	}
	if ok, err := svc.IsAuthorized(ctx, 2); err != nil || !ok {
		t.Errorf("IsAuthorized(admin) = %v, %v; want true, nil", ok, err)
	}
}

func TestIsAuthorized_StoreError(t *testing.T) {
	repo := newFakeUserRepo()
	repo.failWith = errStoreDown
	svc := NewAccessService(repo, testLogger())

	ok, err := svc.IsAuthorized(context.Background(), 1)
	if !errors.Is(err, errStoreDown) {
		t.Errorf("IsAuthorized() error = %v, want errStoreDown", err)
	}
	if ok {
		t.Error("IsAuthorized() = true on store failure")
	}
}

func TestSeedAdmins(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAccessService(repo, testLogger())
	ctx := context.Background()

	if err := svc.SeedAdmins(ctx, []int64{7758708579, 2009509228, 7758708579}); err != nil {
		t.Fatalf("SeedAdmins() error = %v", err)
	}

	if n, _ := repo.CountUsers(ctx); n != 2 {
		t.Errorf("CountUsers() = %d, want 2 (duplicates collapsed)", n)
	}
	for _, id := range []int64{7758708579, 2009509228} {
		if ok, _ := svc.IsAuthorized(ctx, id); !ok {
			t.Errorf("seeded id %d is not authorized", id)
		}
	}
}
