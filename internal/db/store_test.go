package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, KeyTasks); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := s.Put(ctx, KeyTasks, []byte(`[{"id":"t1"}]`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(ctx, KeyTasks)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `[{"id":"t1"}]` {
		t.Errorf("unexpected value %s", got)
	}

	if err := s.Put(ctx, KeyTasks, []byte(`[]`)); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, _ = s.Get(ctx, KeyTasks)
	if string(got) != `[]` {
		t.Errorf("expected overwritten value, got %s", got)
	}

	if err := s.Put(ctx, KeySession, []byte(`{"id":"u1"}`)); err != nil {
		t.Fatalf("Put session failed: %v", err)
	}
	if err := s.Delete(ctx, KeySession); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, KeySession); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, KeySession); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}

	if got, _ := s.Get(ctx, KeyTasks); string(got) != `[]` {
		t.Errorf("unrelated key changed: %s", got)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	value := []byte("abc")
	_ = s.Put(ctx, KeyChat, value)
	value[0] = 'x'

	got, _ := s.Get(ctx, KeyChat)
	if string(got) != "abc" {
		t.Errorf("store must not alias caller buffers, got %s", got)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	exerciseStore(t, s)

	if _, err := os.Stat(filepath.Join(dir, KeyTasks+".json")); err != nil {
		t.Errorf("expected one file per key: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temporary files left behind: %v", matches)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "workos.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)

	if _, err := s.UpdatedAt(context.Background(), KeyTasks); err != nil {
		t.Errorf("UpdatedAt failed: %v", err)
	}
	if _, err := s.UpdatedAt(context.Background(), KeyUsers); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workos.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := s.Put(ctx, KeyMeetings, []byte(`[1]`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	s.Close()

	// Migrations must be idempotent across restarts.
	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, KeyMeetings)
	if err != nil || string(got) != `[1]` {
		t.Errorf("expected persisted value, got %s (%v)", got, err)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)

	if !mr.Exists("workos:" + KeyTasks) {
		t.Error("expected prefixed key in redis")
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("WORKOS_TEST_POSTGRES_URL"))
	if dsn == "" {
		t.Skip("WORKOS_TEST_POSTGRES_URL is not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}
	defer s.Close()
	for _, key := range Keys() {
		_ = s.Delete(ctx, key)
	}

	exerciseStore(t, s)
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "etcd", ""); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), DriverMemory, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	exerciseStore(t, s)
}
