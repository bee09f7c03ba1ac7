// Package fake provides an in-memory vectorstore.Backend that records every
// call, for tests that must assert which requests were (not) issued.
package fake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// Backend is a recording in-memory backend.
type Backend struct {
	mu sync.Mutex

	calls map[string]int

	Indexes  map[string]vectorstore.IndexInfo
	Vectors  map[string]map[string]vectorstore.Vector
	Results  []vectorstore.SearchResult
	Backups  []string
	Jobs     []vectorstore.BackupJob
	Archives map[string][]byte

	// DeletedByFilter is returned from DeleteWithFilter.
	DeletedByFilter int

	// Err fails every call; Errs fails a single operation by name.
	Err  error
	Errs map[string]error

	LastQuery   *vectorstore.Query
	LastUpsert  []vectorstore.Vector
	LastFilter  json.RawMessage
	LastRestore [2]string
	Closed      bool
}

// New creates an empty fake backend.
func New() *Backend {
	return &Backend{
		calls:    make(map[string]int),
		Indexes:  make(map[string]vectorstore.IndexInfo),
		Vectors:  make(map[string]map[string]vectorstore.Vector),
		Archives: make(map[string][]byte),
		Errs:     make(map[string]error),
	}
}

// Factory returns a factory handing out b regardless of token, recording each token.
func (b *Backend) Factory(tokens *[]string) vectorstore.Factory {
	return func(token string) (vectorstore.Backend, error) {
		if tokens != nil {
			*tokens = append(*tokens, token)
		}
		return b, nil
	}
}

// Calls returns how many times op was invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

// SetJobs replaces the job list.
func (b *Backend) SetJobs(jobs ...vectorstore.BackupJob) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Jobs = jobs
}

// record counts the call and returns the configured error; callers hold b.mu.
func (b *Backend) record(op string) error {
	b.calls[op]++
	if err, ok := b.Errs[op]; ok && err != nil {
		return err
	}
	return b.Err
}

func (b *Backend) Health(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record("Health")
}

func (b *Backend) ListIndexes(ctx context.Context) ([]vectorstore.IndexInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ListIndexes"); err != nil {
		return nil, err
	}
	out := make([]vectorstore.IndexInfo, 0, len(b.Indexes))
	for _, idx := range b.Indexes {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *Backend) GetIndex(ctx context.Context, name string) (*vectorstore.IndexInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("GetIndex"); err != nil {
		return nil, err
	}
	idx, ok := b.Indexes[name]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", name, vectorstore.ErrNotFound)
	}
	return &idx, nil
}

func (b *Backend) CreateIndex(ctx context.Context, spec vectorstore.IndexSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("CreateIndex"); err != nil {
		return err
	}
	b.Indexes[spec.Name] = vectorstore.IndexInfo{
		Name:            spec.Name,
		Dimension:       spec.Dimension,
		SparseDimension: spec.SparseDimension,
		SpaceType:       spec.SpaceType,
		Precision:       spec.Precision,
		M:               spec.M,
		EfConstruction:  spec.EfConstruction,
		CreatedAt:       time.Now(),
	}
	return nil
}

func (b *Backend) DeleteIndex(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("DeleteIndex"); err != nil {
		return err
	}
	delete(b.Indexes, name)
	delete(b.Vectors, name)
	return nil
}

func (b *Backend) Upsert(ctx context.Context, index string, vectors []vectorstore.Vector) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("Upsert"); err != nil {
		return err
	}
	b.LastUpsert = vectors
	if b.Vectors[index] == nil {
		b.Vectors[index] = make(map[string]vectorstore.Vector)
	}
	for _, v := range vectors {
		b.Vectors[index][v.ID] = v
	}
	return nil
}

func (b *Backend) GetVector(ctx context.Context, index, id string) (*vectorstore.Vector, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("GetVector"); err != nil {
		return nil, err
	}
	v, ok := b.Vectors[index][id]
	if !ok {
		return nil, fmt.Errorf("vector %s: %w", id, vectorstore.ErrNotFound)
	}
	return &v, nil
}

func (b *Backend) DeleteVector(ctx context.Context, index, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("DeleteVector"); err != nil {
		return err
	}
	delete(b.Vectors[index], id)
	return nil
}

func (b *Backend) DeleteWithFilter(ctx context.Context, index string, filter json.RawMessage) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("DeleteWithFilter"); err != nil {
		return 0, err
	}
	b.LastFilter = filter
	return b.DeletedByFilter, nil
}

func (b *Backend) Query(ctx context.Context, index string, q vectorstore.Query) ([]vectorstore.SearchResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("Query"); err != nil {
		return nil, err
	}
	b.LastQuery = &q
	return b.Results, nil
}

func (b *Backend) CreateBackup(ctx context.Context, index, name string) (*vectorstore.BackupJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("CreateBackup"); err != nil {
		return nil, err
	}
	job := vectorstore.BackupJob{
		ID:         fmt.Sprintf("job-%d", len(b.Jobs)+1),
		IndexID:    index,
		BackupName: name,
		Status:     vectorstore.JobInProgress,
		StartedAt:  time.Now(),
	}
	b.Jobs = append(b.Jobs, job)
	return &job, nil
}

func (b *Backend) ListBackups(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ListBackups"); err != nil {
		return nil, err
	}
	return append([]string(nil), b.Backups...), nil
}

func (b *Backend) ListBackupJobs(ctx context.Context) ([]vectorstore.BackupJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ListBackupJobs"); err != nil {
		return nil, err
	}
	return append([]vectorstore.BackupJob(nil), b.Jobs...), nil
}

func (b *Backend) RestoreBackup(ctx context.Context, name, targetIndex string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("RestoreBackup"); err != nil {
		return err
	}
	b.LastRestore = [2]string{name, targetIndex}
	return nil
}

func (b *Backend) DeleteBackup(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("DeleteBackup"); err != nil {
		return err
	}
	kept := b.Backups[:0]
	for _, n := range b.Backups {
		if n != name {
			kept = append(kept, n)
		}
	}
	b.Backups = kept
	return nil
}

func (b *Backend) DownloadBackup(ctx context.Context, name string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("DownloadBackup"); err != nil {
		return nil, err
	}
	data, ok := b.Archives[name]
	if !ok {
		return nil, fmt.Errorf("backup %s: %w", name, vectorstore.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Backend) UploadBackup(ctx context.Context, filename string, archive io.Reader) error {
	data, err := io.ReadAll(archive)

	b.mu.Lock()
	defer b.mu.Unlock()
	if recErr := b.record("UploadBackup"); recErr != nil {
		return recErr
	}
	if err != nil {
		return err
	}
	b.Archives[filename] = data
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return nil
}

var _ vectorstore.Backend = (*Backend)(nil)
