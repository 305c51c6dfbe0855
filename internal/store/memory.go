package store

import (
	"context"
	"sync"

	"github.com/alexbotov/smashrelay/internal/domain"
)

// MemoryStore keeps the score in memory. Used by tests.
type MemoryStore struct {
	mu    sync.Mutex
	score *domain.LocalScore
}

// NewMemoryStore creates a store holding a zero score
func NewMemoryStore() *MemoryStore {
	zero := domain.ZeroScore()
	return &MemoryStore{score: &zero}
}

// Delete removes the record, as if the score file had been deleted
func (m *MemoryStore) Delete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.score = nil
}

func (m *MemoryStore) Load(ctx context.Context) (domain.LocalScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.score == nil {
		return domain.LocalScore{}, ErrNotFound
	}
	return *m.score, nil
}

func (m *MemoryStore) Save(ctx context.Context, score domain.LocalScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.score = &score
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, fn UpdateFunc) (domain.LocalScore, domain.LocalScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.score == nil {
		return domain.LocalScore{}, domain.LocalScore{}, ErrNotFound
	}

	before := *m.score
	after := before
	if err := fn(&after); err != nil {
		return before, before, err
	}
	m.score = &after
	return before, after, nil
}

func (m *MemoryStore) EnsureExists(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.score != nil {
		return false, nil
	}
	zero := domain.ZeroScore()
	m.score = &zero
	return true, nil
}
