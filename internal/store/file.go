package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alexbotov/smashrelay/internal/domain"
	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// FileStore keeps the score in a pretty-printed JSON file.
//
// Every operation takes an in-process mutex and an advisory lock on
// "<path>.lock", so concurrent increments from this process or another
// relay sharing the file never lose updates. Writes replace the file
// atomically via rename.
type FileStore struct {
	path string

	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStore creates a store backed by the file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the score file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the score file
func (s *FileStore) Load(ctx context.Context) (domain.LocalScore, error) {
	unlock, err := s.acquire(ctx, false)
	if err != nil {
		return domain.LocalScore{}, err
	}
	defer unlock()

	return s.read()
}

// Save overwrites the score file
func (s *FileStore) Save(ctx context.Context, score domain.LocalScore) error {
	unlock, err := s.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	return s.write(score)
}

// Update performs a locked read-modify-write
func (s *FileStore) Update(ctx context.Context, fn UpdateFunc) (domain.LocalScore, domain.LocalScore, error) {
	unlock, err := s.acquire(ctx, true)
	if err != nil {
		return domain.LocalScore{}, domain.LocalScore{}, err
	}
	defer unlock()

	before, err := s.read()
	if err != nil {
		return domain.LocalScore{}, domain.LocalScore{}, err
	}

	after := before
	if err := fn(&after); err != nil {
		return before, before, err
	}

	if err := s.write(after); err != nil {
		return before, before, err
	}
	return before, after, nil
}

// EnsureExists creates a zero score file when none is present.
// An existing file is left untouched, even if it is corrupt.
func (s *FileStore) EnsureExists(ctx context.Context) (bool, error) {
	unlock, err := s.acquire(ctx, true)
	if err != nil {
		return false, err
	}
	defer unlock()

	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat score file: %w", err)
	}

	if err := s.write(domain.ZeroScore()); err != nil {
		return false, err
	}
	return true, nil
}

// acquire takes the process mutex and the file lock
func (s *FileStore) acquire(ctx context.Context, exclusive bool) (func(), error) {
	s.mu.Lock()

	var locked bool
	var err error
	if exclusive {
		locked, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil || !locked {
		s.mu.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("failed to lock score file: %w", err)
	}

	return func() {
		s.lock.Unlock()
		s.mu.Unlock()
	}, nil
}

// fileScore mirrors LocalScore with required fields
type fileScore struct {
	Wins   *int64 `json:"wins"`
	Losses *int64 `json:"losses"`
}

func (s *FileStore) read() (domain.LocalScore, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.LocalScore{}, ErrNotFound
		}
		return domain.LocalScore{}, fmt.Errorf("failed to read score file: %w", err)
	}

	var raw fileScore
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.LocalScore{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if raw.Wins == nil || raw.Losses == nil {
		return domain.LocalScore{}, fmt.Errorf("%w: wins and losses are required", ErrCorrupt)
	}

	return domain.LocalScore{Wins: *raw.Wins, Losses: *raw.Losses}, nil
}

func (s *FileStore) write(score domain.LocalScore) error {
	data, err := Encode(score)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp score file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write score file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync score file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close score file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod score file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace score file: %w", err)
	}
	return nil
}

// Encode renders a score the way it is stored on disk: two keys, 4-space indent
func Encode(score domain.LocalScore) ([]byte, error) {
	data, err := json.MarshalIndent(score, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode score: %w", err)
	}
	return data, nil
}
