package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL expires sessions after an hour of inactivity.
const DefaultTTL = time.Hour

// Registry provides in-memory session storage with idle expiry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
	ttl      time.Duration
	logger   *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry and starts its cleanup loop.
func NewRegistry(cfg Config, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		ttl:      ttl,
		logger:   logger,
		stop:     make(chan struct{}),
	}

	go r.cleanupLoop(cleanupInterval(ttl))

	return r
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if interval := ttl / 2; interval < 5*time.Minute {
		return max(interval, time.Second)
	}
	return 5 * time.Minute
}

// Get returns a live session and marks it active.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.Touch()
	}
	return s, ok
}

// Open returns the session for id, creating it when unknown. A well-formed
// id from an earlier process is reused so its persisted preferences carry
// over; anything else gets a fresh id.
func (r *Registry) Open(ctx context.Context, id string, seed Seed) (*Session, error) {
	if s, ok := r.Get(id); ok {
		return s, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	s, err := New(ctx, id, r.cfg, seed)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		s.Close()
		existing.Touch()
		return existing, nil
	}
	r.sessions[id] = s
	r.mu.Unlock()

	r.logger.Debug("session opened", "session", shortID(id))
	return s, nil
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Each calls fn for every live session.
func (r *Registry) Each(fn func(*Session)) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		fn(s)
	}
}

// Close stops the cleanup loop and closes every session.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// cleanupLoop periodically removes expired sessions.
func (r *Registry) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup(time.Now())
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) cleanup(now time.Time) int {
	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if now.Sub(s.LastSeen()) > r.ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		r.logger.Debug("expired idle sessions", "count", len(expired))
	}
	return len(expired)
}
