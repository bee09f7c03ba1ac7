// Package memory provides an in-process repository.Store that forgets
// everything on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/EndeeLabs/endee-web-ui/internal/repository"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

type prefKey struct {
	scope, key string
}

// Store keeps preferences and jobs in maps.
type Store struct {
	mu    sync.RWMutex
	prefs map[prefKey]string
	jobs  map[string]vectorstore.BackupJob
}

// New creates an empty store.
func New() *Store {
	return &Store{
		prefs: make(map[prefKey]string),
		jobs:  make(map[string]vectorstore.BackupJob),
	}
}

func (s *Store) GetPreference(ctx context.Context, scope, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.prefs[prefKey{scope, key}]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (s *Store) SetPreference(ctx context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[prefKey{scope, key}] = value
	return nil
}

func (s *Store) DeletePreference(ctx context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prefs, prefKey{scope, key})
	return nil
}

func (s *Store) DeleteScope(ctx context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.prefs {
		if k.scope == scope {
			delete(s.prefs, k)
		}
	}
	return nil
}

func (s *Store) CreateJob(ctx context.Context, job *vectorstore.BackupJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("backup job %s already exists", job.ID)
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*vectorstore.BackupJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]vectorstore.BackupJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]vectorstore.BackupJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.After(jobs[j].StartedAt) })
	return jobs, nil
}

func (s *Store) UpdateJob(ctx context.Context, job *vectorstore.BackupJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[job.ID]
	if !ok {
		return fmt.Errorf("backup job %s: %w", job.ID, repository.ErrNotFound)
	}
	existing.Status = job.Status
	existing.Error = job.Error
	existing.CompletedAt = job.CompletedAt
	s.jobs[job.ID] = existing
	return nil
}

func (s *Store) Close() error { return nil }

var _ repository.Store = (*Store)(nil)
