// Package runlog persists simulation run summaries to SQLite so past
// runs can be compared after the fact. Items themselves are never
// persisted — only the per-run outcome counts.
package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/conduit/internal/sim"
)

//go:embed schema.sql
var schemaSQL string

// Store is a handle to the run log database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the run log at the given path.
//
// The database is configured with WAL mode for concurrent reads, a busy
// timeout for lock contention, and a single-writer connection pool
// (SQLite allows one writer at a time). Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to run log: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one run report. The report's RunID is the primary key,
// so recording the same run twice fails.
func (s *Store) Record(ctx context.Context, r *sim.Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, name, started_at, duration_ms,
			producers, consumers, items_per_producer, capacity,
			produced, consumed, end_of_stream, mismatches
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.Name,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.Duration.Milliseconds(),
		r.Producers,
		r.Consumers,
		r.ItemsPerProducer,
		r.Capacity,
		r.Produced,
		r.Consumed,
		r.EndOfStream,
		r.Mismatches,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.RunID, err)
	}
	return nil
}

// RunSummary is one row of the run log.
type RunSummary struct {
	RunID            string    `json:"run_id"`
	Name             string    `json:"name"`
	StartedAt        time.Time `json:"started_at"`
	DurationMS       int64     `json:"duration_ms"`
	Producers        int       `json:"producers"`
	Consumers        int       `json:"consumers"`
	ItemsPerProducer int       `json:"items_per_producer"`
	Capacity         int       `json:"capacity"`
	Produced         uint64    `json:"produced"`
	Consumed         uint64    `json:"consumed"`
	EndOfStream      uint64    `json:"end_of_stream"`
	Mismatches       uint64    `json:"mismatches"`
}

// List returns the most recent runs, newest first. A limit < 1 returns
// everything.
func (s *Store) List(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT id, name, started_at, duration_ms,
		       producers, consumers, items_per_producer, capacity,
		       produced, consumed, end_of_stream, mismatches
		FROM runs
		ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			run       RunSummary
			startedAt string
		)
		if err := rows.Scan(
			&run.RunID, &run.Name, &startedAt, &run.DurationMS,
			&run.Producers, &run.Consumers, &run.ItemsPerProducer, &run.Capacity,
			&run.Produced, &run.Consumed, &run.EndOfStream, &run.Mismatches,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at for run %s: %w", run.RunID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
