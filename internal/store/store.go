// File: internal/store/store.go
// Description: Optional PostgreSQL run-history persistence. The exporter
// works fine without a database; when one is configured, every run is
// recorded with its outcome, failed stage and artifact path.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBPool abstracts the pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Run is one recorded export attempt.
type Run struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Succeeded    bool
	ArtifactPath string
	FailedStage  string
}

// Store persists run history.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

const createRunsTable = `
CREATE TABLE IF NOT EXISTS export_runs (
    id BIGSERIAL PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    succeeded BOOLEAN NOT NULL,
    artifact_path TEXT NOT NULL DEFAULT '',
    failed_stage TEXT NOT NULL DEFAULT ''
);`

const insertRun = `
INSERT INTO export_runs (started_at, finished_at, succeeded, artifact_path, failed_stage)
VALUES ($1, $2, $3, $4, $5);`

// New verifies the connection and ensures the schema exists.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createRunsTable); err != nil {
		return nil, fmt.Errorf("failed to ensure run history schema: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// Connect opens a pool from a connection URL and builds a Store on it.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// RecordRun inserts one run. Timestamps are normalized to UTC before
// insertion.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	_, err := s.pool.Exec(ctx, insertRun,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Succeeded, run.ArtifactPath, run.FailedStage)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	s.log.Debug("Run recorded",
		zap.Bool("succeeded", run.Succeeded),
		zap.String("failed_stage", run.FailedStage))
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
