// Package database provides database access for the relay
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates all required tables
func (db *DB) Migrate(ctx context.Context) error {
	schema := `
	-- Local win/loss record, a single row
	CREATE TABLE IF NOT EXISTS local_scores (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		wins BIGINT NOT NULL DEFAULT 0,
		losses BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	);

	-- Score change audit trail
	CREATE TABLE IF NOT EXISTS score_events (
		id UUID PRIMARY KEY,
		type VARCHAR(100) NOT NULL,
		severity VARCHAR(20) NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		field VARCHAR(20),
		amount BIGINT NOT NULL DEFAULT 0,
		wins_before BIGINT NOT NULL,
		losses_before BIGINT NOT NULL,
		wins_after BIGINT NOT NULL,
		losses_after BIGINT NOT NULL,
		description TEXT NOT NULL,
		data JSONB,
		ip_address VARCHAR(45),
		request_id VARCHAR(64),
		component VARCHAR(100) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_score_events_timestamp ON score_events(timestamp);

	-- Operator switches such as the score lock
	CREATE TABLE IF NOT EXISTS relay_state (
		key VARCHAR(100) PRIMARY KEY,
		value JSONB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CleanData truncates all tables without dropping them (for testing)
func (db *DB) CleanData(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `TRUNCATE TABLE score_events, local_scores, relay_state;`)
	return err
}
