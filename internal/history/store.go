// Package history persists check runs to a local SQLite database so markers
// can review what was checked, when, and with what outcome.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Outcome values recorded for a check run.
const (
	OutcomePass    = "pass"    // no fatal entries, no warnings
	OutcomeWarning = "warning" // warnings but no fatal entries
	OutcomeFatal   = "fatal"   // at least one fatal entry
)

// Run is a single recorded submission check.
type Run struct {
	ID         int64
	Assignment string
	Submission string
	Outcome    string
	FatalCount int
	WarnCount  int
	InfoCount  int
	Report     string
	CreatedAt  time.Time
}

// Store manages the SQLite database of check runs.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if necessary) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout must come first so later statements wait on locks
	// instead of failing when another invocation holds the file.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry executes a SQL statement with backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay << uint(attempt))
	}
	return lastErr
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a check run and returns its ID.
func (s *Store) RecordRun(ctx context.Context, run Run) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO check_runs
			(assignment, submission, outcome, fatal_count, warning_count, info_count, report)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Assignment, run.Submission, run.Outcome,
		run.FatalCount, run.WarnCount, run.InfoCount, run.Report)
	if err != nil {
		return 0, fmt.Errorf("record check run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record check run: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first. An empty assignment
// lists runs across all assignments. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, assignment string, limit int) ([]Run, error) {
	query := `
		SELECT id, assignment, submission, outcome,
		       fatal_count, warning_count, info_count, report, created_at
		FROM check_runs`
	var args []any
	if assignment != "" {
		query += " WHERE assignment = ?"
		args = append(args, assignment)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list check runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Assignment, &run.Submission, &run.Outcome,
			&run.FatalCount, &run.WarnCount, &run.InfoCount, &run.Report, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, assignment, submission, outcome,
		       fatal_count, warning_count, info_count, report, created_at
		FROM check_runs WHERE id = ?`, id).
		Scan(&run.ID, &run.Assignment, &run.Submission, &run.Outcome,
			&run.FatalCount, &run.WarnCount, &run.InfoCount, &run.Report, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no check run with id %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get check run: %w", err)
	}
	return &run, nil
}

// Clear deletes every recorded run, returning how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM check_runs")
	if err != nil {
		return 0, fmt.Errorf("clear check runs: %w", err)
	}
	cleared, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear check runs: %w", err)
	}
	return cleared, nil
}

// Prune keeps only the most recent keepRuns runs per assignment.
// keepRuns <= 0 prunes nothing.
func (s *Store) Prune(ctx context.Context, keepRuns int) (int64, error) {
	if keepRuns <= 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM check_runs
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id,
				       ROW_NUMBER() OVER (
				           PARTITION BY assignment
				           ORDER BY created_at DESC, id DESC
				       ) AS rank
				FROM check_runs
			) WHERE rank <= ?
		)`, keepRuns)
	if err != nil {
		return 0, fmt.Errorf("prune check runs: %w", err)
	}
	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune check runs: %w", err)
	}
	return pruned, nil
}
