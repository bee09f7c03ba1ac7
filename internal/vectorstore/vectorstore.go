// Package vectorstore defines the vector database contract the console drives,
// along with the domain types shared by every backend implementation.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnauthorized is returned when the backend rejects the caller's token
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when an index, vector or backup does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnsupported is returned when a backend cannot perform an operation
	ErrUnsupported = errors.New("operation not supported by backend")
)

// SpaceType is the distance metric of an index
type SpaceType string

const (
	SpaceCosine SpaceType = "cosine"
	SpaceL2     SpaceType = "l2"
	SpaceIP     SpaceType = "ip"
)

// Precision is the storage precision of index vectors
type Precision string

const (
	PrecisionBinary  Precision = "binary"
	PrecisionInt8D   Precision = "int8d"
	PrecisionInt16D  Precision = "int16d"
	PrecisionFloat16 Precision = "float16"
	PrecisionFloat32 Precision = "float32"
)

// Default HNSW parameters used when the advanced section of the create form is hidden
const (
	DefaultM              = 16
	DefaultEfConstruction = 128
)

// IndexInfo describes an existing index
type IndexInfo struct {
	Name            string    `json:"name"`
	Dimension       int       `json:"dimension"`
	SparseDimension int       `json:"sparse_dimension"`
	SpaceType       SpaceType `json:"space_type"`
	Precision       Precision `json:"precision"`
	M               int       `json:"m"`
	EfConstruction  int       `json:"ef_construction"`
	CreatedAt       time.Time `json:"created_at,omitzero"`
	ElementCount    int64     `json:"element_count"`
}

// Hybrid reports whether the index accepts sparse vectors alongside dense ones
func (i IndexInfo) Hybrid() bool {
	return i.SparseDimension > 0
}

// IndexSpec is the validated payload for creating an index
type IndexSpec struct {
	Name            string
	Dimension       int
	SparseDimension int
	SpaceType       SpaceType
	Precision       Precision
	M               int
	EfConstruction  int
}

// SparseVector represents a sparse vector with indices and values
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Vector is a record stored in an index
type Vector struct {
	ID     string         `json:"id"`
	Dense  []float32      `json:"vector,omitempty"`
	Sparse *SparseVector  `json:"sparse,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
	Filter map[string]any `json:"filter,omitempty"`
	Norm   float32        `json:"norm,omitempty"`
}

// Query holds the parameters of a similarity search
type Query struct {
	Vector         []float32
	Sparse         *SparseVector
	TopK           int
	Ef             int // zero means backend default
	Filter         json.RawMessage
	IncludeVectors bool
}

// SearchResult represents a single hit from a similarity search
type SearchResult struct {
	ID         string         `json:"id"`
	Similarity float32        `json:"similarity"`
	Distance   float32        `json:"distance"`
	Meta       map[string]any `json:"meta,omitempty"`
	Filter     map[string]any `json:"filter,omitempty"`
	Vector     []float32      `json:"vector,omitempty"`
}

// JobStatus is the lifecycle state of a backup job
type JobStatus string

const (
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// BackupJob tracks the asynchronous creation of a backup
type BackupJob struct {
	ID          string     `json:"job_id"`
	IndexID     string     `json:"index_id"`
	BackupName  string     `json:"backup_name"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// InProgress reports whether the job is still running
func (j BackupJob) InProgress() bool {
	return j.Status == JobInProgress
}

// IndexStore covers index and vector operations
type IndexStore interface {
	// Health checks backend liveness
	Health(ctx context.Context) error

	ListIndexes(ctx context.Context) ([]IndexInfo, error)
	GetIndex(ctx context.Context, name string) (*IndexInfo, error)
	CreateIndex(ctx context.Context, spec IndexSpec) error
	DeleteIndex(ctx context.Context, name string) error

	// Upsert inserts or replaces the whole batch in a single request
	Upsert(ctx context.Context, index string, vectors []Vector) error
	GetVector(ctx context.Context, index, id string) (*Vector, error)
	DeleteVector(ctx context.Context, index, id string) error

	// DeleteWithFilter removes every vector matching filter and returns the deleted count
	DeleteWithFilter(ctx context.Context, index string, filter json.RawMessage) (int, error)

	Query(ctx context.Context, index string, q Query) ([]SearchResult, error)
}

// BackupStore covers backup management
type BackupStore interface {
	// CreateBackup queues a backup of index and returns the job tracking it
	CreateBackup(ctx context.Context, index, name string) (*BackupJob, error)
	ListBackups(ctx context.Context) ([]string, error)
	ListBackupJobs(ctx context.Context) ([]BackupJob, error)
	RestoreBackup(ctx context.Context, name, targetIndex string) error
	DeleteBackup(ctx context.Context, name string) error
	DownloadBackup(ctx context.Context, name string) (io.ReadCloser, error)
	UploadBackup(ctx context.Context, filename string, archive io.Reader) error
}

// Backend is a complete vector database the console can drive
type Backend interface {
	IndexStore
	BackupStore
	Close() error
}

// Factory builds a backend bound to an auth token. The console rebuilds its
// backend through the factory whenever the token changes.
type Factory func(token string) (Backend, error)
