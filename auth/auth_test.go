package auth

import (
	"path/filepath"
	"testing"

	"liveroom/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewService(s)
}

func TestCreateAndResolveUser(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.CreateUser("alice", 1000)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if token == "" {
		t.Fatal("CreateUser returned empty token")
	}

	// Resolve twice so the second lookup goes through the cache.
	for i := 0; i < 2; i++ {
		user, err := svc.GetUserByToken(token)
		if err != nil {
			t.Fatalf("GetUserByToken #%d: %v", i+1, err)
		}
		if user.Name != "alice" || user.LeaderCardID != 1000 {
			t.Errorf("lookup #%d: unexpected user %+v", i+1, user)
		}
	}

	if _, err := svc.GetUserByToken("unknown"); err != ErrInvalidToken {
		t.Errorf("unknown token: got %v, want ErrInvalidToken", err)
	}
	if _, err := svc.GetUserByToken(""); err != ErrInvalidToken {
		t.Errorf("empty token: got %v, want ErrInvalidToken", err)
	}
}

func TestCreateUserSanitizesName(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.CreateUser("  <b>alice</b>  ", 1)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	user, err := svc.GetUserByToken(token)
	if err != nil {
		t.Fatalf("GetUserByToken: %v", err)
	}
	if user.Name != "alice" {
		t.Errorf("name not sanitized: %q", user.Name)
	}

	// A name that is nothing but markup sanitizes to empty and is invalid.
	if _, err := svc.CreateUser("<script>x()</script>", 1); err != ErrInvalidName {
		t.Errorf("markup-only name: got %v, want ErrInvalidName", err)
	}
}

func TestUpdateUser(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.CreateUser("alice", 1000)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := svc.UpdateUser(token, "alicia", 7); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	user, err := svc.GetUserByToken(token)
	if err != nil {
		t.Fatalf("GetUserByToken: %v", err)
	}
	if user.Name != "alicia" || user.LeaderCardID != 7 {
		t.Errorf("update not applied: %+v", user)
	}

	// Unknown tokens surface as an error instead of silently no-opping.
	if err := svc.UpdateUser("unknown", "bob", 1); err != ErrInvalidToken {
		t.Errorf("unknown token: got %v, want ErrInvalidToken", err)
	}
}
