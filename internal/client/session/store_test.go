package session

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hitoshi/accountd/internal/client/api"
)

func TestFileStore_LoadMissingReturnsNil(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	user, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}

func TestFileStore_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileStore(path)

	teamID := 2
	want := &api.User{UserID: 5, Email: "alice@example.com", Username: "alice", TeamID: &teamID}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("permissions = %o, want 600", perm)
		}
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.Email != want.Email || got.UserID != want.UserID {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}
	if got.TeamID == nil || *got.TeamID != 2 {
		t.Errorf("teamId = %v, want 2", got.TeamID)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("session file should be removed, stat err = %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear should succeed: %v", err)
	}
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	if err := s.Save(&api.User{Email: "old@example.com"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(&api.User{Email: "new@example.com"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Email != "new@example.com" {
		t.Errorf("email = %q, want new@example.com", got.Email)
	}

	entries, _ := os.ReadDir(filepath.Dir(s.Path()))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileStore(path).Load(); err == nil {
		t.Fatal("expected a parse error")
	}
}
