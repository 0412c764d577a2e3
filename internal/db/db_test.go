package db

import (
	"io"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrationsCreateSessionsTable(t *testing.T) {
	t.Parallel()

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("iofs.New() error = %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })

	first, err := src.First()
	if err != nil {
		t.Fatalf("First() error = %v", err)
	}
	if first != 1 {
		t.Fatalf("first version = %d, want 1", first)
	}

	up, _, err := src.ReadUp(first)
	if err != nil {
		t.Fatalf("ReadUp() error = %v", err)
	}
	defer up.Close()
	body, err := io.ReadAll(up)
	if err != nil {
		t.Fatalf("read up migration: %v", err)
	}
	for _, want := range []string{"CREATE TABLE IF NOT EXISTS sessions", "token TEXT PRIMARY KEY", "data BYTEA", "expiry TIMESTAMPTZ"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("up migration missing %q", want)
		}
	}

	down, _, err := src.ReadDown(first)
	if err != nil {
		t.Fatalf("ReadDown() error = %v", err)
	}
	_ = down.Close()
}

func TestMigrateRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	if err := Migrate("not-a-database-url", nil); err == nil {
		t.Fatal("expected error for invalid database url")
	}
}
