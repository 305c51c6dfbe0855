package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/smashrelay/internal/domain"
)

// PostgresStore keeps the score in the single-row local_scores table
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store on a migrated database
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context) (domain.LocalScore, error) {
	var score domain.LocalScore
	err := s.db.QueryRowContext(ctx,
		"SELECT wins, losses FROM local_scores WHERE id = 1",
	).Scan(&score.Wins, &score.Losses)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LocalScore{}, ErrNotFound
		}
		return domain.LocalScore{}, fmt.Errorf("failed to load score: %w", err)
	}
	return score, nil
}

func (s *PostgresStore) Save(ctx context.Context, score domain.LocalScore) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_scores (id, wins, losses, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET wins = $1, losses = $2, updated_at = $3
	`, score.Wins, score.Losses, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save score: %w", err)
	}
	return nil
}

// Update locks the row for the duration of the transaction
func (s *PostgresStore) Update(ctx context.Context, fn UpdateFunc) (domain.LocalScore, domain.LocalScore, error) {
	var before domain.LocalScore

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return before, before, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		"SELECT wins, losses FROM local_scores WHERE id = 1 FOR UPDATE",
	).Scan(&before.Wins, &before.Losses)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return before, before, ErrNotFound
		}
		return before, before, fmt.Errorf("failed to load score: %w", err)
	}

	after := before
	if err := fn(&after); err != nil {
		return before, before, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE local_scores SET wins = $1, losses = $2, updated_at = $3 WHERE id = 1",
		after.Wins, after.Losses, time.Now().UTC())
	if err != nil {
		return before, before, fmt.Errorf("failed to update score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return before, before, err
	}
	return before, after, nil
}

func (s *PostgresStore) EnsureExists(ctx context.Context) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO local_scores (id, wins, losses, updated_at)
		VALUES (1, 0, 0, $1)
		ON CONFLICT (id) DO NOTHING
	`, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to initialize score: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
