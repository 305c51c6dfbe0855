// Package domain contains core domain models for the relay
//
// Two kinds of data pass through the relay:
//   - LocalScore: the locally persisted win/loss counters shown on the overlay
//   - Upstream player data: opaque JSON from smashpros.gg, never modelled here
package domain

import (
	"encoding/json"
	"time"
)

// LocalScore is the local win/loss record.
// It is persisted as exactly these two fields.
type LocalScore struct {
	Wins   int64 `json:"wins"`
	Losses int64 `json:"losses"`
}

// ZeroScore returns the record written by a reset
func ZeroScore() LocalScore {
	return LocalScore{}
}

// ScoreField identifies one of the two counters
type ScoreField string

const (
	FieldWins   ScoreField = "wins"
	FieldLosses ScoreField = "losses"
)

// Valid reports whether f names a counter
func (f ScoreField) Valid() bool {
	return f == FieldWins || f == FieldLosses
}

// Add returns a copy of s with amount added to field.
// Overflow wraps; negative amounts are allowed.
func (s LocalScore) Add(field ScoreField, amount int64) LocalScore {
	switch field {
	case FieldWins:
		s.Wins += amount
	case FieldLosses:
		s.Losses += amount
	}
	return s
}

// Get returns the value of field
func (s LocalScore) Get(field ScoreField) int64 {
	if field == FieldLosses {
		return s.Losses
	}
	return s.Wins
}

// EventSeverity represents audit event severity
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// Score event types
const (
	EventScoreIncremented = "score_incremented"
	EventScoreReset       = "score_reset"
	EventScoreLocked      = "score_locked"
	EventScoreUnlocked    = "score_unlocked"
)

// LockStatus reports whether score changes are currently refused
type LockStatus struct {
	Locked   bool       `json:"locked"`
	LockedAt *time.Time `json:"locked_at,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// AuditEvent records one change to the local score
type AuditEvent struct {
	ID          string          `json:"id" db:"id"`
	Type        string          `json:"type" db:"type"`
	Severity    EventSeverity   `json:"severity" db:"severity"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
	Field       ScoreField      `json:"field,omitempty" db:"field"`
	Amount      int64           `json:"amount" db:"amount"`
	Before      LocalScore      `json:"before" db:"-"`
	After       LocalScore      `json:"after" db:"-"`
	Description string          `json:"description" db:"description"`
	Data        json.RawMessage `json:"data,omitempty" db:"data"`
	IPAddress   string          `json:"ip_address" db:"ip_address"`
	RequestID   string          `json:"request_id,omitempty" db:"request_id"`
	Component   string          `json:"component" db:"component"`
}
