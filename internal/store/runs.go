package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// ErrRunNotFound is returned when an app has no recorded runs
var ErrRunNotFound = errors.New("compile run not found")

const schemaDDL = `
	CREATE TABLE IF NOT EXISTS schema_compile_runs (
		run_id                    UUID PRIMARY KEY,
		app_id                    TEXT        NOT NULL,
		source                    TEXT        NOT NULL,
		status                    TEXT        NOT NULL,
		achievement_count         INTEGER     NOT NULL DEFAULT 0,
		stat_count                INTEGER     NOT NULL DEFAULT 0,
		copy_default_unlocked_img BOOLEAN     NOT NULL DEFAULT FALSE,
		copy_default_locked_img   BOOLEAN     NOT NULL DEFAULT FALSE,
		premature_terminations    INTEGER     NOT NULL DEFAULT 0,
		error_message             TEXT        NOT NULL DEFAULT '',
		duration_ms               BIGINT      NOT NULL DEFAULT 0,
		compiled_at               TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_schema_compile_runs_app
		ON schema_compile_runs (app_id, compiled_at DESC);
`

// RunStore logs compile attempts to the schema_compile_runs table
type RunStore struct {
	db *sql.DB
}

// Open connects to Postgres and configures the connection pool
func Open(ctx context.Context, dsn string) (*RunStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &RunStore{db: db}, nil
}

// NewRunStore wraps an existing connection pool
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// EnsureSchema creates the runs table if it is missing
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("creating schema_compile_runs: %w", err)
	}
	return nil
}

// Name identifies the sink
func (s *RunStore) Name() string {
	return "run_log"
}

// HandleRun records every run, failed ones included
func (s *RunStore) HandleRun(ctx context.Context, run models.CompileRun, _ *models.CompiledSchema) error {
	return s.RecordRun(ctx, run)
}

// RecordRun inserts one compile run
func (s *RunStore) RecordRun(ctx context.Context, run models.CompileRun) error {
	runID, err := uuid.Parse(run.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.RunID, err)
	}

	query := `
		INSERT INTO schema_compile_runs (
			run_id, app_id, source, status, achievement_count, stat_count,
			copy_default_unlocked_img, copy_default_locked_img,
			premature_terminations, error_message, duration_ms, compiled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.db.ExecContext(ctx, query,
		runID,
		run.AppID,
		run.Source,
		string(run.Status),
		run.AchievementCount,
		run.StatCount,
		run.CopyDefaultUnlockedImg,
		run.CopyDefaultLockedImg,
		run.PrematureTerminations,
		run.ErrorMessage,
		run.DurationMs,
		run.CompiledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// LatestRun returns the most recent run for an app
func (s *RunStore) LatestRun(ctx context.Context, appID string) (*models.CompileRun, error) {
	query := `
		SELECT run_id, app_id, source, status, achievement_count, stat_count,
		       copy_default_unlocked_img, copy_default_locked_img,
		       premature_terminations, error_message, duration_ms, compiled_at
		FROM schema_compile_runs
		WHERE app_id = $1
		ORDER BY compiled_at DESC
		LIMIT 1
	`

	var run models.CompileRun
	var status string
	err := s.db.QueryRowContext(ctx, query, appID).Scan(
		&run.RunID,
		&run.AppID,
		&run.Source,
		&status,
		&run.AchievementCount,
		&run.StatCount,
		&run.CopyDefaultUnlockedImg,
		&run.CopyDefaultLockedImg,
		&run.PrematureTerminations,
		&run.ErrorMessage,
		&run.DurationMs,
		&run.CompiledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	run.Status = models.RunStatus(status)
	return &run, nil
}

// Ping checks the database connection
func (s *RunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *RunStore) Close() error {
	return s.db.Close()
}
