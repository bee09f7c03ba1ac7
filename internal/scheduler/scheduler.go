// Package scheduler creates backups of configured indexes on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// NameLayout is the timestamp suffix of scheduled backup names.
const NameLayout = "20060102-150405"

const runTimeout = 2 * time.Minute

// BackupCreator queues backups.
type BackupCreator interface {
	CreateBackup(ctx context.Context, index, name string) (*vectorstore.BackupJob, error)
}

// ParseSchedule accepts a standard 5-field expression, a descriptor such as
// "@daily", or a 6-field expression with seconds.
func ParseSchedule(expr string) (cron.Schedule, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, errors.New("empty cron expression")
	}
	if s, err := cron.ParseStandard(expr); err == nil {
		return s, nil
	}
	s, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return s, nil
}

// BackupName names a scheduled backup of index taken at t.
func BackupName(index string, t time.Time) string {
	return index + "-" + t.UTC().Format(NameLayout)
}

// Scheduler runs scheduled backups.
type Scheduler struct {
	cron    *cron.Cron
	backend BackupCreator
	indexes []string
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entryID cron.EntryID
	lastRun time.Time
}

// New creates a scheduler for indexes. Nothing runs until Start.
func New(backend BackupCreator, indexes []string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(),
		backend: backend,
		indexes: indexes,
		logger:  logger,
		now:     time.Now,
	}
}

// Start schedules backups on expr and starts the cron loop.
func (s *Scheduler) Start(expr string) error {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		s.RunOnce(ctx)
	}))
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("backup scheduler started", "schedule", expr, "indexes", s.indexes)
	return nil
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context, expr string) error {
	if err := s.Start(expr); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop stops the cron loop and waits for a running backup round.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("backup scheduler stopped")
}

// Next returns the next scheduled run, zero before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// LastRun returns when the last round started.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// RunOnce queues one backup per index. A failing index does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) []vectorstore.BackupJob {
	now := s.now()
	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()

	jobs := make([]vectorstore.BackupJob, 0, len(s.indexes))
	for _, index := range s.indexes {
		name := BackupName(index, now)
		job, err := s.backend.CreateBackup(ctx, index, name)
		if err != nil {
			s.logger.Error("scheduled backup failed", "index", index, "backup", name, "error", err)
			continue
		}
		s.logger.Info("scheduled backup queued", "index", index, "backup", name, "job_id", job.ID)
		jobs = append(jobs, *job)
	}
	return jobs
}
