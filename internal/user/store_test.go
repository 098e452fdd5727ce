package user

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/RamfiAogusto/competitor-tracker/pkg/storage"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(storage.Config{Driver: storage.SQLite, DSN: path})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../pkg/storage/schema.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if err := db.Migrate(context.Background(), string(schema)); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCreateUser_NormalizesEmailCase(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)

	id, err := store.CreateUser(context.Background(), "  Person@Example.com ", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	found, err := store.GetUserByEmail(context.Background(), "person@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if found == nil || found.ID != id {
		t.Fatalf("expected normalized lookup to find the created user")
	}
}

func TestGetUserByEmail_ReturnsNilWhenMissing(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)

	found, err := store.GetUserByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if found != nil {
		t.Fatal("expected nil for a missing user")
	}
}

func TestGetUserByID_RoundTrips(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)

	id, err := store.CreateUser(context.Background(), "id-roundtrip@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	found, err := store.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if found == nil || found.Email != "id-roundtrip@example.com" {
		t.Fatalf("unexpected user: %+v", found)
	}
}
