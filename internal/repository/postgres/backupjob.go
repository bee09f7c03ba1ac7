package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/EndeeLabs/endee-web-ui/internal/repository"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// BackupJobRepo implements repository.BackupJobRepository
type BackupJobRepo struct {
	db *DB
}

// NewBackupJobRepo creates a new backup job repository
func NewBackupJobRepo(db *DB) *BackupJobRepo {
	return &BackupJobRepo{db: db}
}

const jobColumns = `id, index_id, backup_name, status, error_message, started_at, completed_at`

// CreateJob creates a new backup job
func (r *BackupJobRepo) CreateJob(ctx context.Context, job *vectorstore.BackupJob) error {
	query := `
		INSERT INTO backup_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		job.ID, job.IndexID, job.BackupName, string(job.Status), job.Error,
		job.StartedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create backup job: %w", err)
	}
	return nil
}

// GetJob retrieves a backup job by ID
func (r *BackupJobRepo) GetJob(ctx context.Context, id string) (*vectorstore.BackupJob, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM backup_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get backup job: %w", err)
	}
	return job, nil
}

// ListJobs retrieves every backup job, newest first
func (r *BackupJobRepo) ListJobs(ctx context.Context) ([]vectorstore.BackupJob, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+jobColumns+` FROM backup_jobs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup jobs: %w", err)
	}
	defer rows.Close()

	var jobs []vectorstore.BackupJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backup job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list backup jobs: %w", err)
	}
	return jobs, nil
}

// UpdateJob updates the status of a backup job
func (r *BackupJobRepo) UpdateJob(ctx context.Context, job *vectorstore.BackupJob) error {
	query := `
		UPDATE backup_jobs
		SET status = $2, error_message = $3, completed_at = $4
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query, job.ID, string(job.Status), job.Error, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update backup job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("backup job %s: %w", job.ID, repository.ErrNotFound)
	}
	return nil
}

func scanJob(row pgx.Row) (*vectorstore.BackupJob, error) {
	var job vectorstore.BackupJob
	var status string
	if err := row.Scan(&job.ID, &job.IndexID, &job.BackupName, &status, &job.Error,
		&job.StartedAt, &job.CompletedAt); err != nil {
		return nil, err
	}
	job.Status = vectorstore.JobStatus(status)
	return &job, nil
}

var _ repository.BackupJobRepository = (*BackupJobRepo)(nil)
