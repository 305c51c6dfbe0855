package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alexbotov/smashrelay/internal/domain"
)

// setupFileStore creates a store in a fresh temp dir, optionally seeded with content
func setupFileStore(t *testing.T, content string) *FileStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "score.json")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to seed score file: %v", err)
		}
	}
	return NewFileStore(path)
}

func TestFileStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s := setupFileStore(t, "")
		if _, err := s.EnsureExists(context.Background()); err != nil {
			t.Fatalf("EnsureExists failed: %v", err)
		}
		return s
	})
}

func TestFileStoreFormat(t *testing.T) {
	s := setupFileStore(t, "")
	if err := s.Save(context.Background(), domain.LocalScore{Wins: 5, Losses: 2}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("Failed to read score file: %v", err)
	}

	expected := "{\n    \"wins\": 5,\n    \"losses\": 2\n}"
	if string(data) != expected {
		t.Errorf("Unexpected file contents:\n%s\nwant:\n%s", data, expected)
	}

	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("Expected mode 0644, got %v", info.Mode().Perm())
	}
}

func TestFileStoreReadsIndentedFile(t *testing.T) {
	s := setupFileStore(t, "{\n    \"wins\": 12,\n    \"losses\": 8\n}")

	score, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if score.Wins != 12 || score.Losses != 8 {
		t.Errorf("Expected 12-8, got %+v", score)
	}
}

func TestFileStoreMissing(t *testing.T) {
	ctx := context.Background()
	s := setupFileStore(t, "")

	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Update(ctx, func(*domain.LocalScore) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from Update, got %v", err)
	}

	// Save works without an existing file
	if err := s.Save(ctx, domain.ZeroScore()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := s.Load(ctx); err != nil {
		t.Errorf("Expected file after Save, got %v", err)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
	}{
		{"NotJSON", "wins=1"},
		{"MissingLosses", `{"wins": 1}`},
		{"Fractional", `{"wins": 1.5, "losses": 0}`},
		{"WrongType", `{"wins": "1", "losses": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupFileStore(t, tt.content)
			if _, err := s.Load(ctx); !errors.Is(err, ErrCorrupt) {
				t.Errorf("Expected ErrCorrupt, got %v", err)
			}
		})
	}

	t.Run("SaveRepairs", func(t *testing.T) {
		s := setupFileStore(t, "garbage")
		if err := s.Save(ctx, domain.ZeroScore()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if _, err := s.Load(ctx); err != nil {
			t.Errorf("Expected repaired file, got %v", err)
		}
	})
}

func TestFileStoreEnsureExists(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesMissing", func(t *testing.T) {
		s := setupFileStore(t, "")
		created, err := s.EnsureExists(ctx)
		if err != nil {
			t.Fatalf("EnsureExists failed: %v", err)
		}
		if !created {
			t.Error("Expected file to be created")
		}
		score, err := s.Load(ctx)
		if err != nil || score != domain.ZeroScore() {
			t.Errorf("Expected zero score, got %+v %v", score, err)
		}
	})

	t.Run("LeavesCorruptFile", func(t *testing.T) {
		s := setupFileStore(t, "garbage")
		created, err := s.EnsureExists(ctx)
		if err != nil {
			t.Fatalf("EnsureExists failed: %v", err)
		}
		if created {
			t.Error("Expected corrupt file to be left alone")
		}
		data, _ := os.ReadFile(s.Path())
		if string(data) != "garbage" {
			t.Errorf("Expected file untouched, got %s", data)
		}
	})
}

func TestFileStoreSharedFile(t *testing.T) {
	// Two stores on the same path stand in for two relay processes
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "score.json")
	a := NewFileStore(path)
	b := NewFileStore(path)
	if _, err := a.EnsureExists(ctx); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	const perStore = 25
	var wg sync.WaitGroup
	for _, s := range []*FileStore{a, b} {
		for i := 0; i < perStore; i++ {
			wg.Add(1)
			go func(s *FileStore) {
				defer wg.Done()
				_, _, err := s.Update(ctx, func(score *domain.LocalScore) error {
					score.Wins++
					return nil
				})
				if err != nil {
					t.Errorf("Update failed: %v", err)
				}
			}(s)
		}
	}
	wg.Wait()

	score, err := a.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if score.Wins != 2*perStore {
		t.Errorf("Expected %d wins, got %d", 2*perStore, score.Wins)
	}
}

func TestFileStoreCancelledContext(t *testing.T) {
	s := setupFileStore(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
