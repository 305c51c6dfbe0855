// Package score implements the local win/loss operations
package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/alexbotov/smashrelay/internal/audit"
	"github.com/alexbotov/smashrelay/internal/domain"
	"github.com/alexbotov/smashrelay/internal/store"
)

// DefaultIncrement is used when no amount is given
const DefaultIncrement int64 = 1

var ErrInvalidIncrement = errors.New("increment must be an integer")

// Listener receives the score after every change. Listeners run while
// changes are held off and must not call back into the Service.
type Listener func(domain.LocalScore)

// Service provides the local score operations
type Service struct {
	store  store.Store
	audit  *audit.Service
	logger *slog.Logger

	// changeMu orders each change with its notification
	changeMu sync.Mutex

	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// New creates a new score service
func New(st store.Store, auditSvc *audit.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		audit:     auditSvc,
		logger:    logger.With("component", "score"),
		listeners: make(map[int]Listener),
	}
}

// ParseIncrement parses an increment_by value; empty means DefaultIncrement.
// Negative and very large values are accepted as-is.
func ParseIncrement(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultIncrement, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIncrement, raw)
	}
	return n, nil
}

// Get returns the current score
func (s *Service) Get(ctx context.Context) (domain.LocalScore, error) {
	return s.store.Load(ctx)
}

// WithCurrent reads the score and passes it to fn with no change in between.
// Listeners see only changes made after fn returns.
func (s *Service) WithCurrent(ctx context.Context, fn func(domain.LocalScore, error)) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	fn(s.store.Load(ctx))
}

// IncrementWins adds amount to wins
func (s *Service) IncrementWins(ctx context.Context, amount int64, opts ...audit.EventOption) (domain.LocalScore, error) {
	return s.increment(ctx, domain.FieldWins, amount, opts...)
}

// IncrementLosses adds amount to losses
func (s *Service) IncrementLosses(ctx context.Context, amount int64, opts ...audit.EventOption) (domain.LocalScore, error) {
	return s.increment(ctx, domain.FieldLosses, amount, opts...)
}

func (s *Service) increment(ctx context.Context, field domain.ScoreField, amount int64, opts ...audit.EventOption) (domain.LocalScore, error) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	before, after, err := s.store.Update(ctx, func(score *domain.LocalScore) error {
		*score = score.Add(field, amount)
		return nil
	})
	if err != nil {
		return domain.LocalScore{}, fmt.Errorf("failed to increment %s: %w", field, err)
	}

	opts = append([]audit.EventOption{audit.WithChange(field, amount)}, opts...)
	s.record(ctx, domain.EventScoreIncremented, domain.SeverityInfo,
		fmt.Sprintf("%s incremented by %d to %d", field, amount, after.Get(field)), before, after, opts...)
	s.publish(after)

	return after, nil
}

// Reset overwrites the score with zeros. It succeeds even when the stored
// record is missing or unreadable.
func (s *Service) Reset(ctx context.Context, opts ...audit.EventOption) (domain.LocalScore, error) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	before, err := s.store.Load(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrCorrupt) {
		s.logger.WarnContext(ctx, "could not read score before reset", "error", err)
	}

	after := domain.ZeroScore()
	if err := s.store.Save(ctx, after); err != nil {
		return domain.LocalScore{}, fmt.Errorf("failed to reset score: %w", err)
	}

	s.record(ctx, domain.EventScoreReset, domain.SeverityWarning, "score reset", before, after, opts...)
	s.publish(after)

	return after, nil
}

// EnsureInitialized creates a zero record if none exists
func (s *Service) EnsureInitialized(ctx context.Context) error {
	created, err := s.store.EnsureExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize score: %w", err)
	}
	if created {
		s.logger.InfoContext(ctx, "created empty score record")
	}
	return nil
}

// Subscribe registers a listener and returns a function that removes it
func (s *Service) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Service) publish(score domain.LocalScore) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.listeners {
		l(score)
	}
}

// record writes the audit event; failures are logged and otherwise ignored
func (s *Service) record(ctx context.Context, eventType string, severity domain.EventSeverity, description string, before, after domain.LocalScore, opts ...audit.EventOption) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, eventType, severity, description, before, after, opts...); err != nil {
		s.logger.ErrorContext(ctx, "failed to record score event", "type", eventType, "error", err)
	}
}
