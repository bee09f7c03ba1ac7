// Package repository defines data access interfaces for console preferences
// and locally tracked backup jobs.
package repository

import (
	"context"
	"time"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// ErrNotFound is returned when a requested entity does not exist. It is the
// vectorstore sentinel so backends consulting a repository can report misses
// without importing this package.
var ErrNotFound = vectorstore.ErrNotFound

// Preference is a persisted key-value setting, scoped to a session or the CLI profile
type Preference struct {
	Scope     string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// PreferenceRepository defines operations for preference persistence
type PreferenceRepository interface {
	GetPreference(ctx context.Context, scope, key string) (string, error)
	SetPreference(ctx context.Context, scope, key, value string) error
	DeletePreference(ctx context.Context, scope, key string) error
	// DeleteScope removes every preference of a scope
	DeleteScope(ctx context.Context, scope string) error
}

// BackupJobRepository defines operations for backup jobs of backends that do
// not track jobs themselves
type BackupJobRepository interface {
	CreateJob(ctx context.Context, job *vectorstore.BackupJob) error
	GetJob(ctx context.Context, id string) (*vectorstore.BackupJob, error)
	// ListJobs returns jobs newest first
	ListJobs(ctx context.Context) ([]vectorstore.BackupJob, error)
	UpdateJob(ctx context.Context, job *vectorstore.BackupJob) error
}

// Store bundles every repository behind one connection
type Store interface {
	PreferenceRepository
	BackupJobRepository
	Close() error
}
