// Package control provides the operator switch that freezes the local score.
//
// While the score is locked every increment and reset is refused, so a
// stray hotkey on the stream deck cannot change the overlay mid-set.
// Reads and the upstream relay are never affected.
package control

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexbotov/smashrelay/internal/audit"
	"github.com/alexbotov/smashrelay/internal/domain"
)

const lockStateKey = "score_lock"

var ErrScoreLocked = errors.New("score is locked")

// Service holds the lock state. With a database the state survives restarts.
type Service struct {
	db     *sql.DB
	audit  *audit.Service
	logger *slog.Logger

	mu     sync.RWMutex
	status domain.LockStatus
}

// New creates a new control service. db and auditSvc may be nil.
func New(db *sql.DB, auditSvc *audit.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		audit:  auditSvc,
		logger: logger.With("component", "control"),
	}
}

// Lock refuses score changes until Unlock is called
func (s *Service) Lock(ctx context.Context, reason string, opts ...audit.EventOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	next := domain.LockStatus{Locked: true, LockedAt: &now, Reason: reason}
	if err := s.persist(ctx, next, now); err != nil {
		return err
	}
	s.status = next

	desc := "score locked"
	if reason != "" {
		desc = fmt.Sprintf("score locked: %s", reason)
	}
	s.record(ctx, domain.EventScoreLocked, domain.SeverityWarning, desc, reason, opts...)
	return nil
}

// Unlock allows score changes again
func (s *Service) Unlock(ctx context.Context, opts ...audit.EventOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := domain.LockStatus{}
	if err := s.persist(ctx, next, time.Now().UTC()); err != nil {
		return err
	}
	s.status = next

	s.record(ctx, domain.EventScoreUnlocked, domain.SeverityInfo, "score unlocked", "", opts...)
	return nil
}

// IsLocked reports whether score changes are refused
func (s *Service) IsLocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Locked
}

// Status returns the current lock state
func (s *Service) Status() domain.LockStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// CheckWritable returns ErrScoreLocked while the score is locked
func (s *Service) CheckWritable() error {
	if s.IsLocked() {
		return ErrScoreLocked
	}
	return nil
}

// LoadState restores the persisted lock on startup
func (s *Service) LoadState(ctx context.Context) error {
	if s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM relay_state WHERE key = $1`, lockStateKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load lock state: %w", err)
	}

	var status domain.LockStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return fmt.Errorf("failed to decode lock state: %w", err)
	}
	s.status = status
	if status.Locked {
		s.logger.WarnContext(ctx, "score is locked", "reason", status.Reason)
	}
	return nil
}

func (s *Service) persist(ctx context.Context, status domain.LockStatus, now time.Time) error {
	if s.db == nil {
		return nil
	}

	value, err := json.Marshal(status)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relay_state (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3
	`, lockStateKey, string(value), now)
	if err != nil {
		return fmt.Errorf("failed to persist lock state: %w", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, eventType string, severity domain.EventSeverity, description, reason string, opts ...audit.EventOption) {
	if s.audit == nil {
		return
	}

	opts = append([]audit.EventOption{
		audit.WithComponent("control"),
		audit.WithData(map[string]string{"reason": reason}),
	}, opts...)

	event := &domain.AuditEvent{
		Type:        eventType,
		Severity:    severity,
		Description: description,
	}
	for _, opt := range opts {
		opt(event)
	}
	if err := s.audit.LogEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record lock event", "type", eventType, "error", err)
	}
}
