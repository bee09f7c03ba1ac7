package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// Timer is a pending refresh that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

// StdAfterFunc schedules with time.AfterFunc.
func StdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// JobPoller backs the jobs view. It keeps exactly one refresh scheduled while
// any known job is in progress and none otherwise.
type JobPoller struct {
	src       AdapterSource
	interval  time.Duration
	afterFunc AfterFunc
	logger    *slog.Logger

	state concern[[]vectorstore.BackupJob]

	mu      sync.Mutex
	last    []vectorstore.BackupJob
	timer   Timer
	closed  bool
	nextSub int
	subs    map[int]chan []vectorstore.BackupJob
}

// NewJobPoller creates an idle poller.
func NewJobPoller(src AdapterSource, interval time.Duration, afterFunc AfterFunc, logger *slog.Logger) *JobPoller {
	if afterFunc == nil {
		afterFunc = StdAfterFunc
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobPoller{
		src:       src,
		interval:  interval,
		afterFunc: afterFunc,
		logger:    logger,
		subs:      make(map[int]chan []vectorstore.BackupJob),
	}
}

// Refresh fetches the job list and reschedules polling from it. A failed
// fetch keeps the previous schedule decision, except that an authorization
// failure stops polling until a later refresh succeeds.
func (p *JobPoller) Refresh(ctx context.Context) Status[[]vectorstore.BackupJob] {
	if !p.state.get().IsSuccess() {
		p.state.set(Loading[[]vectorstore.BackupJob]())
	}

	res := p.src.Adapter().ListBackupJobs(ctx)
	if !res.Success {
		p.logger.Debug("backup job refresh failed", "error", res.Error)
		p.mu.Lock()
		if res.Unauthorized() {
			p.stopLocked()
		} else {
			p.rescheduleLocked()
		}
		p.mu.Unlock()
		return p.state.set(Failed[[]vectorstore.BackupJob](res.Error))
	}

	jobs := res.Data
	if jobs == nil {
		jobs = []vectorstore.BackupJob{}
	}
	status := p.state.set(Succeeded(jobs))

	p.mu.Lock()
	p.last = jobs
	p.rescheduleLocked()
	p.publishLocked(jobs)
	p.mu.Unlock()

	return status
}

// Track records a job the console just queued so polling starts without
// waiting for the next list.
func (p *JobPoller) Track(job vectorstore.BackupJob) {
	p.mu.Lock()
	defer p.mu.Unlock()

	jobs := make([]vectorstore.BackupJob, 0, len(p.last)+1)
	for _, j := range p.last {
		if j.ID != job.ID || job.ID == "" {
			jobs = append(jobs, j)
		}
	}
	jobs = append(jobs, job)
	p.last = jobs

	p.state.set(Succeeded(jobs))
	p.rescheduleLocked()
	p.publishLocked(jobs)
}

// Status returns the jobs view status.
func (p *JobPoller) Status() Status[[]vectorstore.BackupJob] {
	return p.state.get()
}

// Polling reports whether a refresh is scheduled.
func (p *JobPoller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

// Subscribe streams every successful job snapshot until cancel is called.
// Slow subscribers only see the latest snapshot.
func (p *JobPoller) Subscribe() (<-chan []vectorstore.BackupJob, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan []vectorstore.BackupJob, 1)
	if p.closed {
		close(ch)
		return ch, func() {}
	}

	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if _, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(ch)
			}
		})
	}
}

// Close stops polling and ends every subscription.
func (p *JobPoller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.stopLocked()
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
}

func (p *JobPoller) tick() {
	p.mu.Lock()
	p.timer = nil
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.interval*2)
	defer cancel()
	p.Refresh(ctx)
}

// rescheduleLocked keeps one refresh pending while a known job is in progress.
func (p *JobPoller) rescheduleLocked() {
	if p.closed {
		return
	}

	active := false
	for _, j := range p.last {
		if j.InProgress() {
			active = true
			break
		}
	}

	switch {
	case active && p.timer == nil:
		p.timer = p.afterFunc(p.interval, p.tick)
	case !active:
		p.stopLocked()
	}
}

func (p *JobPoller) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *JobPoller) publishLocked(jobs []vectorstore.BackupJob) {
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- jobs:
		default:
		}
	}
}
