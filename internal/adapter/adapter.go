// Package adapter wraps a vector database backend behind a uniform result
// envelope so callers never handle backend-specific failure signaling.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// Result is the envelope every adapter operation returns.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`

	// Kind classifies a failed backend call.
	Kind ErrorKind `json:"-"`
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Success: true, Data: v}
}

// Fail wraps a failure message.
func Fail[T any](msg string) Result[T] {
	return Result[T]{Error: msg}
}

// Unauthorized reports whether the call failed on an authorization check.
func (r Result[T]) Unauthorized() bool {
	return r.Kind == KindUnauthorized
}

// Unwrap returns the data and, on failure, an error carrying the message.
func (r Result[T]) Unwrap() (T, error) {
	if !r.Success {
		return r.Data, errors.New(r.Error)
	}
	return r.Data, nil
}

// Deleted is returned by delete-by-filter.
type Deleted struct {
	Count int `json:"deleted_count"`
}

// Empty is the payload of operations that return nothing.
type Empty struct{}

// Adapter drives a backend and normalizes its responses.
type Adapter struct {
	backend        vectorstore.Backend
	onUnauthorized func()
	logger         *slog.Logger
}

// Option is a functional option for configuring Adapter.
type Option func(*Adapter)

// WithUnauthorizedHandler registers fn to run whenever a call fails with an
// authorization failure. The session uses it to clear the stored token.
func WithUnauthorizedHandler(fn func()) Option {
	return func(a *Adapter) {
		a.onUnauthorized = fn
	}
}

// WithLogger sets the logger used to record failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates an adapter over backend.
func New(backend vectorstore.Backend, opts ...Option) *Adapter {
	a := &Adapter{backend: backend}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Backend returns the wrapped backend.
func (a *Adapter) Backend() vectorstore.Backend {
	return a.backend
}

// call runs fn once; failures are classified and surfaced without retry.
func call[T any](ctx context.Context, a *Adapter, op string, fn func(context.Context) (T, error)) Result[T] {
	v, err := fn(ctx)
	if err != nil {
		kind := a.handleError(op, err)
		return Result[T]{Error: Message(err), Kind: kind}
	}
	return Ok(v)
}

func (a *Adapter) handleError(op string, err error) ErrorKind {
	kind := Classify(err)
	a.logger.Warn("backend call failed", "op", op, "kind", kind.String(), "error", err)

	if kind == KindUnauthorized && a.onUnauthorized != nil {
		a.onUnauthorized()
	}
	return kind
}

// Health checks backend liveness.
func (a *Adapter) Health(ctx context.Context) Result[Empty] {
	return call(ctx, a, "health", func(ctx context.Context) (Empty, error) {
		return Empty{}, a.backend.Health(ctx)
	})
}

// ListIndexes enumerates indexes.
func (a *Adapter) ListIndexes(ctx context.Context) Result[[]vectorstore.IndexInfo] {
	return call(ctx, a, "list_indexes", a.backend.ListIndexes)
}

// GetIndex fetches index metadata.
func (a *Adapter) GetIndex(ctx context.Context, name string) Result[*vectorstore.IndexInfo] {
	return call(ctx, a, "get_index", func(ctx context.Context) (*vectorstore.IndexInfo, error) {
		return a.backend.GetIndex(ctx, name)
	})
}

// CreateIndex creates an index.
func (a *Adapter) CreateIndex(ctx context.Context, spec vectorstore.IndexSpec) Result[Empty] {
	return call(ctx, a, "create_index", func(ctx context.Context) (Empty, error) {
		return Empty{}, a.backend.CreateIndex(ctx, spec)
	})
}

// DeleteIndex deletes an index.
func (a *Adapter) DeleteIndex(ctx context.Context, name string) Result[Empty] {
	return call(ctx, a, "delete_index", func(ctx context.Context) (Empty, error) {
		return Empty{}, a.backend.DeleteIndex(ctx, name)
	})
}

// InsertVectors upserts a validated batch in one call.
func (a *Adapter) InsertVectors(ctx context.Context, index string, vectors []vectorstore.Vector) Result[Empty] {
	return call(ctx, a, "insert_vectors", func(ctx context.Context) (Empty, error) {
		return Empty{}, a.backend.Upsert(ctx, index, vectors)
	})
}

// GetVector fetches a single vector.
func (a *Adapter) GetVector(ctx context.Context, index, id string) Result[*vectorstore.Vector] {
	return call(ctx, a, "get_vector", func(ctx context.Context) (*vectorstore.Vector, error) {
		return a.backend.GetVector(ctx, index, id)
	})
}

// DeleteVector deletes a single vector.
func (a *Adapter) DeleteVector(ctx context.Context, index, id string) Result[Empty] {
	return call(ctx, a, "delete_vector", func(ctx context.Context) (Empty, error) {
		return Empty{}, a.backend.DeleteVector(ctx, index, id)
	})
}

// DeleteVectorsByFilter bulk-deletes matching vectors.
func (a *Adapter) DeleteVectorsByFilter(ctx context.Context, index string, filter json.RawMessage) Result[Deleted] {
	return call(ctx, a, "delete_by_filter", func(ctx context.Context) (Deleted, error) {
		n, err := a.backend.DeleteWithFilter(ctx, index, filter)
		return Deleted{Count: n}, err
	})
}

// Search runs a similarity search.
func (a *Adapter) Search(ctx context.Context, index string, q vectorstore.Query) Result[[]vectorstore.SearchResult] {
	return call(ctx, a, "search", func(ctx context.Context) ([]vectorstore.SearchResult, error) {
		return a.backend.Query(ctx, index, q)
	})
}

// CreateBackup queues a backup job.
func (a *Adapter) CreateBackup(ctx context.Context, index, name string) Result[*vectorstore.BackupJob] {
	return call(ctx, a, "create_backup", func(ctx context.Context) (*vectorstore.BackupJob, error) {
		return a.backend.CreateBackup(ctx, index, name)
	})
}

// ListBackups lists backup names.
func (a *Adapter) ListBackups(ctx context.Context) Result[[]string] {
	return call(ctx, a, "list_backups", a.backend.ListBackups)
}

// ListBackupJobs lists backup jobs.
func (a *Adapter) ListBackupJobs(ctx context.Context) Result[[]vectorstore.BackupJob] {
	return call(ctx, a, "list_backup_jobs", a.backend.ListBackupJobs)
}

// RestoreBackup restores a backup into a new index.
func (a *Adapter) RestoreBackup(ctx context.Context, name, target string) Result[Empty] {
	return call(ctx, a, "restore_backup", func(ctx context.Context) (Empty, error) {
		return Empty{}, a.backend.RestoreBackup(ctx, name, target)
	})
}

// DeleteBackup deletes a backup.
func (a *Adapter) DeleteBackup(ctx context.Context, name string) Result[Empty] {
	return call(ctx, a, "delete_backup", func(ctx context.Context) (Empty, error) {
		return Empty{}, a.backend.DeleteBackup(ctx, name)
	})
}

// UploadBackup uploads an archive.
func (a *Adapter) UploadBackup(ctx context.Context, filename string, archive io.Reader) Result[Empty] {
	return call(ctx, a, "upload_backup", func(ctx context.Context) (Empty, error) {
		return Empty{}, a.backend.UploadBackup(ctx, filename, archive)
	})
}

// DownloadBackup opens an archive stream. On success the caller owns the reader.
func (a *Adapter) DownloadBackup(ctx context.Context, name string) Result[io.ReadCloser] {
	return call(ctx, a, "download_backup", func(ctx context.Context) (io.ReadCloser, error) {
		return a.backend.DownloadBackup(ctx, name)
	})
}

// downloadURLer is implemented by backends reachable directly from a browser.
type downloadURLer interface {
	DownloadURL(name string) string
}

// DownloadURL returns the backend's own download URL carrying the token.
func (a *Adapter) DownloadURL(name string) Result[string] {
	d, ok := a.backend.(downloadURLer)
	if !ok {
		return Fail[string](Message(vectorstore.ErrUnsupported))
	}
	return Ok(d.DownloadURL(name))
}

// Close releases the backend.
func (a *Adapter) Close() error {
	return a.backend.Close()
}

// containsFold is a case-insensitive substring match.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
