// Package sqlite implements the console repositories on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/EndeeLabs/endee-web-ui/internal/repository"
	"github.com/EndeeLabs/endee-web-ui/internal/repository/migrations"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "data/endee-console.db"

// Store implements repository.Store using SQLite
type Store struct {
	db *sql.DB
}

// Open creates the data directory if needed, opens the database and applies migrations.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultPath
	}

	dir := filepath.Dir(dsn)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	data, err := migrations.SQLite.ReadFile("sqlite/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.Exec(string(data)); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Preferences

func (s *Store) GetPreference(ctx context.Context, scope, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE scope = ? AND key = ?`, scope, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query preference: %w", err)
	}
	return value, nil
}

func (s *Store) SetPreference(ctx context.Context, scope, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope, key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

func (s *Store) DeletePreference(ctx context.Context, scope, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE scope = ? AND key = ?`, scope, key); err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	return nil
}

func (s *Store) DeleteScope(ctx context.Context, scope string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}

// Backup jobs

const jobColumns = `id, index_id, backup_name, status, error_message, started_at, completed_at`

func (s *Store) CreateJob(ctx context.Context, job *vectorstore.BackupJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO backup_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.IndexID, job.BackupName, string(job.Status), job.Error,
		job.StartedAt.UnixMilli(), toMillis(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert backup job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*vectorstore.BackupJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM backup_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query backup job: %w", err)
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]vectorstore.BackupJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM backup_jobs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query backup jobs: %w", err)
	}
	defer rows.Close()

	var jobs []vectorstore.BackupJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *Store) UpdateJob(ctx context.Context, job *vectorstore.BackupJob) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE backup_jobs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		string(job.Status), job.Error, toMillis(job.CompletedAt), job.ID,
	)
	if err != nil {
		return fmt.Errorf("update backup job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update backup job: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("backup job %s: %w", job.ID, repository.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*vectorstore.BackupJob, error) {
	var (
		job       vectorstore.BackupJob
		status    string
		started   int64
		completed sql.NullInt64
	)
	if err := row.Scan(&job.ID, &job.IndexID, &job.BackupName, &status, &job.Error, &started, &completed); err != nil {
		return nil, err
	}
	job.Status = vectorstore.JobStatus(status)
	job.StartedAt = time.UnixMilli(started).UTC()
	if completed.Valid {
		t := time.UnixMilli(completed.Int64).UTC()
		job.CompletedAt = &t
	}
	return &job, nil
}

func toMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

var _ repository.Store = (*Store)(nil)
