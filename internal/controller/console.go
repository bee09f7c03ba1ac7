package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/EndeeLabs/endee-web-ui/internal/adapter"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// DefaultPollInterval is how often the jobs view refreshes while a job runs.
const DefaultPollInterval = 5 * time.Second

// AdapterSource hands out the adapter bound to the current auth token. It is
// consulted on every call because the adapter is rebuilt when the token changes.
type AdapterSource interface {
	Adapter() *adapter.Adapter
}

// Notifier posts dismissible banners.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// TicketIssuer signs short-lived download keys for a backup.
type TicketIssuer interface {
	Issue(backup string) (key string, expiresIn time.Duration, err error)
}

// Config configures a Console.
type Config struct {
	PollInterval time.Duration
	// AfterFunc schedules job refreshes; defaults to time.AfterFunc.
	AfterFunc AfterFunc
	// Tickets enables key-variant download links. Without it links carry the token.
	Tickets TicketIssuer
	Logger  *slog.Logger
}

// Console aggregates the controllers of one browser session.
type Console struct {
	Indexes *IndexController
	Search  *SearchController
	Vectors *VectorController
	Backups *BackupController
	Jobs    *JobPoller

	meta *IndexMeta
}

// New wires the controllers of a session.
func New(src AdapterSource, notify Notifier, cfg Config) *Console {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = StdAfterFunc
	}

	meta := &IndexMeta{src: src}
	jobs := NewJobPoller(src, cfg.PollInterval, cfg.AfterFunc, cfg.Logger)

	return &Console{
		Indexes: &IndexController{src: src, notify: notify},
		Search:  &SearchController{src: src, notify: notify, meta: meta},
		Vectors: &VectorController{src: src, notify: notify, meta: meta},
		Backups: &BackupController{src: src, notify: notify, jobs: jobs, tickets: cfg.Tickets},
		Jobs:    jobs,
		meta:    meta,
	}
}

// IndexMeta returns the shared index metadata concern.
func (c *Console) IndexMeta() *IndexMeta {
	return c.meta
}

// Close stops background polling.
func (c *Console) Close() {
	c.Jobs.Close()
}

// concern guards a Status with a mutex and enforces the submit-in-flight guard.
type concern[T any] struct {
	mu     sync.Mutex
	status Status[T]
}

func (c *concern[T]) get() Status[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *concern[T]) set(s Status[T]) Status[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
	return s
}

// begin moves the concern to loading unless it already is.
func (c *concern[T]) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.IsLoading() {
		return false
	}
	c.status = Loading[T]()
	return true
}

// run executes fn with the concern loading and settles it with the result.
// Backend failures also post an error banner; success posts msg when set.
func run[T any](ctx context.Context, c *concern[T], notify Notifier, successMsg func(T) string, fn func(context.Context) adapter.Result[T]) Status[T] {
	if !c.begin() {
		return Failed[T](ErrInFlight.Error())
	}

	res := fn(ctx)
	if !res.Success {
		if notify != nil {
			notify.Error(res.Error)
		}
		return c.set(Failed[T](res.Error))
	}
	if notify != nil && successMsg != nil {
		if msg := successMsg(res.Data); msg != "" {
			notify.Success(msg)
		}
	}
	return c.set(Succeeded(res.Data))
}

// reject records a validation failure inline; nothing is sent.
func reject[T any](c *concern[T], err error) Status[T] {
	return c.set(Failed[T](err.Error()))
}

// IndexMeta loads and caches the descriptor of the index a page is showing.
// Parsers use it for dimension and sparse-range checks.
type IndexMeta struct {
	src   AdapterSource
	state concern[*vectorstore.IndexInfo]
}

// Load fetches the descriptor of name.
func (m *IndexMeta) Load(ctx context.Context, name string) Status[*vectorstore.IndexInfo] {
	return run(ctx, &m.state, nil, nil, func(ctx context.Context) adapter.Result[*vectorstore.IndexInfo] {
		return m.src.Adapter().GetIndex(ctx, name)
	})
}

// Status returns the current load status.
func (m *IndexMeta) Status() Status[*vectorstore.IndexInfo] {
	return m.state.get()
}

// Current returns the loaded descriptor when it belongs to name.
func (m *IndexMeta) Current(name string) *vectorstore.IndexInfo {
	info, ok := m.state.get().Data()
	if !ok || info == nil || info.Name != name {
		return nil
	}
	return info
}
