package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/alexbotov/smashrelay/internal/database"
	"github.com/alexbotov/smashrelay/internal/domain"
)

// setupPostgresStore connects to RELAY_TEST_DB_DSN and skips when it is unset
func setupPostgresStore(t *testing.T) (*PostgresStore, *database.DB) {
	t.Helper()

	dsn := os.Getenv("RELAY_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("RELAY_TEST_DB_DSN not set")
	}

	ctx := context.Background()
	db, err := database.New("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	if err := db.CleanData(ctx); err != nil {
		t.Fatalf("Failed to clean data: %v", err)
	}
	t.Cleanup(func() {
		db.CleanData(context.Background())
		db.Close()
	})

	return NewPostgresStore(db.DB), db
}

func TestPostgresStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s, _ := setupPostgresStore(t)
		if _, err := s.EnsureExists(context.Background()); err != nil {
			t.Fatalf("EnsureExists failed: %v", err)
		}
		return s
	})
}

func TestPostgresStoreMissingRow(t *testing.T) {
	s, _ := setupPostgresStore(t)
	ctx := context.Background()

	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Update(ctx, func(*domain.LocalScore) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from Update, got %v", err)
	}

	created, err := s.EnsureExists(ctx)
	if err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}
	if !created {
		t.Error("Expected row to be created")
	}
}
