package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// BackendService is the gRPC health service name mirroring the vector database.
const BackendService = "endee.console.Backend"

// HealthStatus is the outcome of the last backend probe.
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
}

// HealthWatcher probes the backend periodically and mirrors the result into
// the gRPC health server and /readyz.
type HealthWatcher struct {
	check    func(ctx context.Context) error
	interval time.Duration
	health   *health.Server
	logger   *slog.Logger

	mu     sync.RWMutex
	status HealthStatus
}

// NewHealthWatcher creates a watcher. hs may be nil when gRPC is not served.
func NewHealthWatcher(check func(ctx context.Context) error, interval time.Duration, hs *health.Server, logger *slog.Logger) *HealthWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthWatcher{
		check:    check,
		interval: interval,
		health:   hs,
		logger:   logger,
	}
}

// Run probes immediately, then every interval until ctx is done.
func (w *HealthWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.Probe(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Probe runs one health check and records it.
func (w *HealthWatcher) Probe(ctx context.Context) HealthStatus {
	timeout := w.interval
	if timeout <= 0 || timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := w.check(ctx)
	st := HealthStatus{Healthy: err == nil, CheckedAt: time.Now().UTC()}
	if err != nil {
		st.Error = err.Error()
	}

	w.mu.Lock()
	changed := w.status.Healthy != st.Healthy || w.status.CheckedAt.IsZero()
	w.status = st
	w.mu.Unlock()

	if changed {
		if st.Healthy {
			w.logger.Info("backend reachable")
		} else {
			w.logger.Warn("backend unreachable", "error", st.Error)
		}
	}

	if w.health != nil {
		serving := healthpb.HealthCheckResponse_SERVING
		if !st.Healthy {
			serving = healthpb.HealthCheckResponse_NOT_SERVING
		}
		w.health.SetServingStatus(BackendService, serving)
	}
	return st
}

// Status returns the last recorded probe.
func (w *HealthWatcher) Status() HealthStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}
