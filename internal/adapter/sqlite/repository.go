package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/grabber/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    url        TEXT NOT NULL,
    folder     TEXT NOT NULL,
    status     TEXT NOT NULL DEFAULT 'pending',
    attempts   INTEGER NOT NULL DEFAULT 0,
    saved      INTEGER NOT NULL DEFAULT 0,
    total      INTEGER NOT NULL DEFAULT 0,
    error      TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

const jobColumns = `id, url, folder, status, attempts, saved, total, COALESCE(error, ''), created_at, updated_at`

// Repository implements domain.JobRepository using SQLite.
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository, initializing the schema if needed.
func New(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer keeps claims serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new pending job.
func (r *Repository) Create(ctx context.Context, url, folder string) (*domain.Job, error) {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (url, folder, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		url, folder, domain.StatusPending, now, now,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &domain.Job{
		ID:        id,
		URL:       url,
		Folder:    folder,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get retrieves a job by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id,
	)
	return scanJob(row)
}

// FindPending returns pending jobs up to limit, oldest first.
func (r *Repository) FindPending(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		domain.StatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Claim atomically claims a pending job for processing.
func (r *Repository) Claim(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusProcessing, time.Now().UTC(), id, domain.StatusPending,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// Complete marks a job as completed and stores its image counts.
func (r *Repository) Complete(ctx context.Context, id int64, out domain.Outcome) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, saved = ?, total = ?, error = NULL, updated_at = ? WHERE id = ?`,
		domain.StatusCompleted, out.Saved, out.Total, time.Now().UTC(), id,
	)
	return err
}

// Fail marks a job as permanently failed.
func (r *Repository) Fail(ctx context.Context, id int64, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		domain.StatusFailed, reason, time.Now().UTC(), id,
	)
	return err
}

// Retry marks a job for retry (back to pending with error info).
func (r *Repository) Retry(ctx context.Context, id int64, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		domain.StatusPending, reason, time.Now().UTC(), id,
	)
	return err
}

// RecoverStale resets all processing jobs back to pending (for crash recovery).
func (r *Repository) RecoverStale(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = 'recovered after crash', updated_at = ?
		 WHERE status = ?`,
		domain.StatusPending, time.Now().UTC(), domain.StatusProcessing,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var job domain.Job
	var status string
	err := row.Scan(&job.ID, &job.URL, &job.Folder, &status, &job.Attempts, &job.Saved, &job.Total,
		&job.Error, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}
