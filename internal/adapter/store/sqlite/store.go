// Package sqlite persists review run history so repeated runs on the same
// pull request can be inspected and compared after the fact.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jackalby/pr-review-bot/internal/domain"
	"github.com/jackalby/pr-review-bot/internal/usecase/review"
)

// Store records finished runs and their comments in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database in tests.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	-- One row per review run
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		repository TEXT NOT NULL,
		pr_number INTEGER NOT NULL,
		head_sha TEXT NOT NULL,
		prompt_version TEXT NOT NULL,
		status TEXT NOT NULL,
		total_chunks INTEGER NOT NULL,
		failed_chunks INTEGER NOT NULL,
		failed_batches INTEGER NOT NULL,
		comments_posted INTEGER NOT NULL
	);

	-- Comments delivered by a run
	CREATE TABLE IF NOT EXISTS run_comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		chunk_id TEXT NOT NULL,
		file TEXT NOT NULL,
		line INTEGER NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_repo_pr ON runs(repository, pr_number);
	CREATE INDEX IF NOT EXISTS idx_run_comments_run ON run_comments(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// SaveRun writes a run and its comments in one transaction.
func (s *Store) SaveRun(ctx context.Context, run review.RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, timestamp, repository, pr_number, head_sha, prompt_version,
			status, total_chunks, failed_chunks, failed_batches, comments_posted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Timestamp.Unix(), run.Repository, run.PRNumber, run.HeadSHA,
		run.PromptVersion, run.Status.String(), run.TotalChunks, run.FailedChunks,
		run.FailedBatches, run.Posted,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, c := range run.Comments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_comments (run_id, chunk_id, file, line, severity, message)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.RunID, c.ChunkID, c.File, c.Line, c.Severity.String(), c.Message,
		)
		if err != nil {
			return fmt.Errorf("failed to insert comment: %w", err)
		}
	}

	return tx.Commit()
}

// RunsForPR returns the stored runs for one pull request, newest first.
func (s *Store) RunsForPR(ctx context.Context, repository string, prNumber int) ([]review.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, timestamp, repository, pr_number, head_sha, prompt_version,
			status, total_chunks, failed_chunks, failed_batches, comments_posted
		FROM runs
		WHERE repository = ? AND pr_number = ?
		ORDER BY timestamp DESC`,
		repository, prNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []review.RunRecord
	for rows.Next() {
		var (
			run    review.RunRecord
			ts     int64
			status string
		)
		if err := rows.Scan(&run.RunID, &ts, &run.Repository, &run.PRNumber, &run.HeadSHA,
			&run.PromptVersion, &status, &run.TotalChunks, &run.FailedChunks,
			&run.FailedBatches, &run.Posted); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Timestamp = time.Unix(ts, 0)
		run.Status = parseStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func parseStatus(s string) domain.RunStatus {
	switch s {
	case domain.RunSucceeded.String():
		return domain.RunSucceeded
	case domain.RunDegraded.String():
		return domain.RunDegraded
	default:
		return domain.RunFailed
	}
}
