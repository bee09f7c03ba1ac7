package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/EndeeLabs/endee-web-ui/internal/adapter"
	"github.com/EndeeLabs/endee-web-ui/internal/repository"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// Auth owns the token of one session and the backend built from it. Every
// token change rebuilds the backend; an authorization failure observed on
// the current backend clears the token and opens the auth prompt.
type Auth struct {
	factory vectorstore.Factory
	prefs   Preferences
	logger  *slog.Logger

	mu      sync.RWMutex
	token   string
	gen     uint64
	adapter *adapter.Adapter
	prompt  bool
}

// NewAuth builds an unauthenticated Auth. prefs may be nil.
func NewAuth(factory vectorstore.Factory, prefs Preferences, logger *slog.Logger) (*Auth, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Auth{factory: factory, prefs: prefs, logger: logger}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.rebuildLocked(""); err != nil {
		return nil, err
	}
	return a, nil
}

// Restore loads a persisted token, if any.
func (a *Auth) Restore(ctx context.Context) error {
	if a.prefs == nil {
		return nil
	}
	token, err := a.prefs.Get(ctx, KeyAuthToken)
	if errors.Is(err, repository.ErrNotFound) || token == "" {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load auth token: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rebuildLocked(token)
}

// Adapter returns the adapter bound to the current token.
func (a *Auth) Adapter() *adapter.Adapter {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.adapter
}

// Token returns the current token.
func (a *Auth) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Authenticated reports whether a token is held.
func (a *Auth) Authenticated() bool {
	return a.Token() != ""
}

// PromptOpen reports whether the authentication prompt should be shown.
func (a *Auth) PromptOpen() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.prompt
}

// OpenPrompt shows the authentication prompt.
func (a *Auth) OpenPrompt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompt = true
}

// DismissPrompt hides the authentication prompt.
func (a *Auth) DismissPrompt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompt = false
}

// SetToken stores token, rebuilds the backend and persists the token.
func (a *Auth) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return a.Clear(ctx)
	}

	a.mu.Lock()
	if err := a.rebuildLocked(token); err != nil {
		a.mu.Unlock()
		return err
	}
	a.prompt = false
	a.mu.Unlock()

	if a.prefs != nil {
		if err := a.prefs.Set(ctx, KeyAuthToken, token); err != nil {
			return fmt.Errorf("failed to persist auth token: %w", err)
		}
	}
	return nil
}

// Clear drops the token, as on logout.
func (a *Auth) Clear(ctx context.Context) error {
	a.mu.Lock()
	err := a.rebuildLocked("")
	a.mu.Unlock()
	if err != nil {
		return err
	}

	if a.prefs != nil {
		if err := a.prefs.Delete(ctx, KeyAuthToken); err != nil {
			return fmt.Errorf("failed to forget auth token: %w", err)
		}
	}
	return nil
}

// Close releases the current backend.
func (a *Auth) Close() error {
	a.mu.RLock()
	current := a.adapter
	a.mu.RUnlock()
	return current.Close()
}

// invalidate runs when a backend built for generation gen reports an
// authorization failure. Failures from an older backend are ignored.
func (a *Auth) invalidate(gen uint64) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	hadToken := a.token != ""
	if err := a.rebuildLocked(""); err != nil {
		a.logger.Error("failed to reset backend after unauthorized response", "error", err)
	}
	a.prompt = true
	a.mu.Unlock()

	if hadToken {
		a.logger.Info("auth token rejected by backend, cleared")
	}
	if a.prefs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.prefs.Delete(ctx, KeyAuthToken); err != nil {
			a.logger.Warn("failed to forget rejected auth token", "error", err)
		}
	}
}

// rebuildLocked swaps in a backend for token. Callers hold a.mu.
func (a *Auth) rebuildLocked(token string) error {
	backend, err := a.factory(token)
	if err != nil {
		return fmt.Errorf("failed to build backend: %w", err)
	}

	a.gen++
	gen := a.gen
	next := adapter.New(backend,
		adapter.WithLogger(a.logger),
		adapter.WithUnauthorizedHandler(func() { a.invalidate(gen) }),
	)

	prev := a.adapter
	a.adapter = next
	a.token = token
	if prev != nil && prev.Backend() != backend {
		go a.retire(prev)
	}
	return nil
}

// retire closes a replaced backend. It runs without a.mu held since closing
// may wait for in-flight work such as snapshot uploads.
func (a *Auth) retire(prev *adapter.Adapter) {
	if err := prev.Close(); err != nil {
		a.logger.Warn("failed to close previous backend", "error", err)
	}
}
