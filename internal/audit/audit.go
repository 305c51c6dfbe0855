// Package audit records every change made to the local score.
//
// Events always go to the structured log. When a database is configured
// they are also stored in score_events; otherwise the most recent events
// are kept in memory so they can still be listed.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexbotov/smashrelay/internal/domain"
	"github.com/google/uuid"
)

// recentCapacity bounds the in-memory history
const recentCapacity = 100

// Service provides audit logging functionality
type Service struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	recent []*domain.AuditEvent
}

// New creates a new audit service. db may be nil.
func New(db *sql.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		logger: logger.With("component", "audit"),
	}
}

// LogEvent records a score event
func (s *Service) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Component == "" {
		event.Component = "relay"
	}

	s.logger.LogAttrs(ctx, severityLevel(event.Severity), event.Description,
		slog.String("event_id", event.ID),
		slog.String("type", event.Type),
		slog.String("field", string(event.Field)),
		slog.Int64("amount", event.Amount),
		slog.Int64("wins", event.After.Wins),
		slog.Int64("losses", event.After.Losses),
		slog.String("request_id", event.RequestID),
	)

	if s.db == nil {
		s.remember(event)
		return nil
	}

	var data interface{}
	if len(event.Data) > 0 {
		data = string(event.Data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO score_events (id, type, severity, timestamp, field, amount,
			wins_before, losses_before, wins_after, losses_after,
			description, data, ip_address, request_id, component)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, event.ID, event.Type, event.Severity, event.Timestamp, string(event.Field), event.Amount,
		event.Before.Wins, event.Before.Losses, event.After.Wins, event.After.Losses,
		event.Description, data, event.IPAddress, event.RequestID, event.Component)
	if err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}
	return nil
}

// Log is a convenience method for logging score changes
func (s *Service) Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, before, after domain.LocalScore, opts ...EventOption) error {
	event := &domain.AuditEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Severity:    severity,
		Timestamp:   time.Now().UTC(),
		Before:      before,
		After:       after,
		Description: description,
		Component:   "relay",
	}

	for _, opt := range opts {
		opt(event)
	}

	return s.LogEvent(ctx, event)
}

// EventOption is a functional option for configuring audit events
type EventOption func(*domain.AuditEvent)

// WithChange sets the field and amount of an increment
func WithChange(field domain.ScoreField, amount int64) EventOption {
	return func(e *domain.AuditEvent) {
		e.Field = field
		e.Amount = amount
	}
}

// WithIP sets the client IP address for the event
func WithIP(ip string) EventOption {
	return func(e *domain.AuditEvent) {
		e.IPAddress = ip
	}
}

// WithRequestID links the event to the request that caused it
func WithRequestID(id string) EventOption {
	return func(e *domain.AuditEvent) {
		e.RequestID = id
	}
}

// WithComponent overrides the component that raised the event
func WithComponent(component string) EventOption {
	return func(e *domain.AuditEvent) {
		e.Component = component
	}
}

// WithData attaches arbitrary JSON data
func WithData(data interface{}) EventOption {
	return func(e *domain.AuditEvent) {
		if raw, err := json.Marshal(data); err == nil {
			e.Data = raw
		}
	}
}

// EventFilter defines criteria for filtering audit events
type EventFilter struct {
	Type  string
	Field domain.ScoreField
	From  time.Time
	To    time.Time
	Limit int
}

// GetEvents retrieves events, newest first
func (s *Service) GetEvents(ctx context.Context, filter *EventFilter) ([]*domain.AuditEvent, error) {
	if filter == nil {
		filter = &EventFilter{}
	}
	limit := filter.Limit
	if limit <= 0 || limit > recentCapacity {
		limit = recentCapacity
	}

	if s.db == nil {
		return s.recentEvents(filter, limit), nil
	}

	query := `SELECT id, type, severity, timestamp, COALESCE(field, ''), amount,
			wins_before, losses_before, wins_after, losses_after,
			description, COALESCE(data::text, ''), COALESCE(ip_address, ''), COALESCE(request_id, ''), component
		FROM score_events WHERE 1=1`
	args := []interface{}{}
	paramIdx := 1

	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", paramIdx)
		args = append(args, filter.Type)
		paramIdx++
	}
	if filter.Field != "" {
		query += fmt.Sprintf(" AND field = $%d", paramIdx)
		args = append(args, string(filter.Field))
		paramIdx++
	}
	if !filter.From.IsZero() {
		query += fmt.Sprintf(" AND timestamp >= $%d", paramIdx)
		args = append(args, filter.From)
		paramIdx++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(" AND timestamp <= $%d", paramIdx)
		args = append(args, filter.To)
		paramIdx++
	}

	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", paramIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		var field, data string

		err := rows.Scan(&event.ID, &event.Type, &event.Severity, &event.Timestamp, &field, &event.Amount,
			&event.Before.Wins, &event.Before.Losses, &event.After.Wins, &event.After.Losses,
			&event.Description, &data, &event.IPAddress, &event.RequestID, &event.Component)
		if err != nil {
			return nil, err
		}

		event.Field = domain.ScoreField(field)
		if data != "" {
			event.Data = json.RawMessage(data)
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}

func (s *Service) remember(event *domain.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, event)
	if len(s.recent) > recentCapacity {
		s.recent = s.recent[len(s.recent)-recentCapacity:]
	}
}

func (s *Service) recentEvents(filter *EventFilter, limit int) []*domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := []*domain.AuditEvent{}
	for i := len(s.recent) - 1; i >= 0 && len(events) < limit; i-- {
		e := s.recent[i]
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.Field != "" && e.Field != filter.Field {
			continue
		}
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Timestamp.After(filter.To) {
			continue
		}
		events = append(events, e)
	}
	return events
}

func severityLevel(severity domain.EventSeverity) slog.Level {
	switch severity {
	case domain.SeverityWarning:
		return slog.LevelWarn
	case domain.SeverityError, domain.SeverityCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
