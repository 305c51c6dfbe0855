// Package store persists the LocalScore record
package store

import (
	"context"
	"errors"

	"github.com/alexbotov/smashrelay/internal/domain"
)

var (
	ErrNotFound = errors.New("score record not found")
	ErrCorrupt  = errors.New("score record is corrupt")
)

// UpdateFunc mutates the score in place during a read-modify-write
type UpdateFunc func(score *domain.LocalScore) error

// Store is the read/write contract for the local score record.
// Update must hold an exclusive lock for the whole read-modify-write.
type Store interface {
	Load(ctx context.Context) (domain.LocalScore, error)
	Save(ctx context.Context, score domain.LocalScore) error
	Update(ctx context.Context, fn UpdateFunc) (before, after domain.LocalScore, err error)
	// EnsureExists writes a zero record if none exists yet
	EnsureExists(ctx context.Context) (created bool, err error)
}
