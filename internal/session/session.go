// Package session holds the application-scoped state of each console user:
// the auth token with the backend built from it, pending banners, the theme,
// and the page controllers. A Registry owns sessions and expires idle ones.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/EndeeLabs/endee-web-ui/internal/controller"
	"github.com/EndeeLabs/endee-web-ui/internal/repository"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// Theme is the persisted color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ErrInvalidTheme is returned for themes other than light and dark.
var ErrInvalidTheme = errors.New("theme must be light or dark")

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark:
		return t, nil
	default:
		return "", ErrInvalidTheme
	}
}

// Config configures sessions.
type Config struct {
	Factory vectorstore.Factory
	// Preferences persists token and theme per session; nil keeps them in memory.
	Preferences  repository.PreferenceRepository
	DismissAfter time.Duration
	Console      controller.Config
	// Tickets, when set, gives each session its own download key issuer.
	Tickets func(sessionID string) controller.TicketIssuer
	Logger  *slog.Logger
}

// Seed carries state the client already holds for a session it reopens.
type Seed struct {
	Token string
	Theme string
}

// Session is the state of one console user.
type Session struct {
	ID      string
	Auth    *Auth
	Notices *Notifier
	Console *controller.Console

	prefs Preferences

	mu       sync.Mutex
	theme    Theme
	lastSeen time.Time
}

// New builds a session, restoring persisted preferences and falling back to seed.
func New(ctx context.Context, id string, cfg Config, seed Seed) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", shortID(id))

	var prefs Preferences
	if cfg.Preferences != nil {
		prefs = Scoped(cfg.Preferences, id)
	}

	auth, err := NewAuth(cfg.Factory, prefs, logger)
	if err != nil {
		return nil, err
	}
	if err := auth.Restore(ctx); err != nil {
		logger.Warn("failed to restore auth token", "error", err)
	}
	if !auth.Authenticated() && seed.Token != "" {
		if err := auth.SetToken(ctx, seed.Token); err != nil {
			auth.Close()
			return nil, err
		}
	}

	notices := NewNotifier(cfg.DismissAfter)
	consoleCfg := cfg.Console
	consoleCfg.Logger = logger
	if cfg.Tickets != nil {
		consoleCfg.Tickets = cfg.Tickets(id)
	}

	s := &Session{
		ID:       id,
		Auth:     auth,
		Notices:  notices,
		Console:  controller.New(auth, notices, consoleCfg),
		prefs:    prefs,
		theme:    ThemeLight,
		lastSeen: time.Now(),
	}
	s.restoreTheme(ctx, seed.Theme, logger)
	return s, nil
}

func (s *Session) restoreTheme(ctx context.Context, seeded string, logger *slog.Logger) {
	if s.prefs != nil {
		v, err := s.prefs.Get(ctx, KeyTheme)
		switch {
		case err == nil:
			if t, err := ParseTheme(v); err == nil {
				s.theme = t
				return
			}
		case !errors.Is(err, repository.ErrNotFound):
			logger.Warn("failed to restore theme", "error", err)
		}
	}
	if t, err := ParseTheme(seeded); err == nil {
		s.theme = t
	}
}

// Theme returns the current theme.
func (s *Session) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetTheme validates and persists the theme.
func (s *Session) SetTheme(ctx context.Context, theme string) (Theme, error) {
	t, err := ParseTheme(theme)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.theme = t
	s.mu.Unlock()

	if s.prefs != nil {
		if err := s.prefs.Set(ctx, KeyTheme, string(t)); err != nil {
			return t, fmt.Errorf("failed to persist theme: %w", err)
		}
	}
	return t, nil
}

// Touch marks the session as active.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

// LastSeen returns when the session was last active.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close stops polling and releases the backend.
func (s *Session) Close() error {
	s.Console.Close()
	return s.Auth.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
