// Package duckdb persists job records and report references.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/skaldhq/skald/internal/core/domain"
	"github.com/skaldhq/skald/internal/core/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id           VARCHAR PRIMARY KEY,
	user_id      VARCHAR NOT NULL,
	youtube_url  VARCHAR NOT NULL,
	status       VARCHAR NOT NULL,
	result_key   VARCHAR,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS reports (
	job_id     VARCHAR NOT NULL,
	user_id    VARCHAR NOT NULL,
	s3_key     VARCHAR NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

type JobStore struct {
	db *sql.DB
}

var _ ports.JobStore = (*JobStore)(nil)

func NewJobStore(path string) (*JobStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &JobStore{db: db}, nil
}

func (s *JobStore) Close() error {
	return s.db.Close()
}

func (s *JobStore) CreateJob(ctx context.Context, job domain.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, user_id, youtube_url, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(job.ID), job.UserID, job.YoutubeURL, string(job.Status), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id domain.JobID) (domain.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, youtube_url, status, result_key, created_at, updated_at, completed_at
		 FROM jobs WHERE id = ?`,
		string(id))

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *JobStore) ListJobs(ctx context.Context, userID string) ([]domain.Job, error) {
	query := `SELECT id, user_id, youtube_url, status, result_key, created_at, updated_at, completed_at
		 FROM jobs ORDER BY created_at DESC`
	args := []any{}
	if userID != "" {
		query = `SELECT id, user_id, youtube_url, status, result_key, created_at, updated_at, completed_at
		 FROM jobs WHERE user_id = ? ORDER BY created_at DESC`
		args = append(args, userID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *JobStore) UpdateStatus(ctx context.Context, id domain.JobID, status domain.JobStatus, resultKey string) error {
	var key sql.NullString
	if resultKey != "" {
		key = sql.NullString{String: resultKey, Valid: true}
	}
	now := time.Now().UTC()
	var completedAt sql.NullTime
	if status.Terminal() {
		completedAt = sql.NullTime{Time: now, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, result_key = COALESCE(?, result_key), updated_at = ?,
		 completed_at = COALESCE(?, completed_at) WHERE id = ?`,
		string(status), key, now, completedAt, string(id))
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

func (s *JobStore) CreateReport(ctx context.Context, id domain.JobID, userID, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (job_id, user_id, s3_key, created_at) VALUES (?, ?, ?, ?)`,
		string(id), userID, key, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var (
		job         domain.Job
		id          string
		status      string
		resultKey   sql.NullString
		completedAt sql.NullTime
	)
	if err := row.Scan(&id, &job.UserID, &job.YoutubeURL, &status, &resultKey, &job.CreatedAt, &job.UpdatedAt, &completedAt); err != nil {
		return domain.Job{}, err
	}
	job.ID = domain.JobID(id)
	job.Status = domain.JobStatus(status)
	if resultKey.Valid {
		job.ResultKey = &resultKey.String
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}
