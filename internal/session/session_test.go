package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EndeeLabs/endee-web-ui/internal/endee"
	"github.com/EndeeLabs/endee-web-ui/internal/repository"
	"github.com/EndeeLabs/endee-web-ui/internal/repository/memory"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore/fake"
)

func newTestConfig(backend *fake.Backend, tokens *[]string, prefs repository.PreferenceRepository) Config {
	return Config{Factory: backend.Factory(tokens), Preferences: prefs}
}

func TestAuth_TokenChangeRebuildsBackend(t *testing.T) {
	backend := fake.New()
	var tokens []string
	auth, err := NewAuth(backend.Factory(&tokens), nil, nil)
	require.NoError(t, err)

	assert.False(t, auth.Authenticated())
	first := auth.Adapter()

	require.NoError(t, auth.SetToken(t.Context(), "  secret  "))
	assert.Equal(t, "secret", auth.Token())
	assert.NotSame(t, first, auth.Adapter())

	require.NoError(t, auth.Clear(t.Context()))
	assert.False(t, auth.Authenticated())
	assert.Equal(t, []string{"", "secret", ""}, tokens)
}

func TestAuth_FactoryError(t *testing.T) {
	_, err := NewAuth(func(string) (vectorstore.Backend, error) { return nil, errors.New("bad url") }, nil, nil)
	assert.ErrorContains(t, err, "bad url")
}

func TestAuth_PersistsToken(t *testing.T) {
	store := memory.New()
	prefs := Scoped(store, "cli")
	backend := fake.New()

	auth, err := NewAuth(backend.Factory(nil), prefs, nil)
	require.NoError(t, err)
	require.NoError(t, auth.SetToken(t.Context(), "tok"))

	v, err := store.GetPreference(t.Context(), "cli", KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	restored, err := NewAuth(backend.Factory(nil), prefs, nil)
	require.NoError(t, err)
	require.NoError(t, restored.Restore(t.Context()))
	assert.Equal(t, "tok", restored.Token())
}

func TestAuth_UnauthorizedClearsTokenAndOpensPrompt(t *testing.T) {
	store := memory.New()
	backend := fake.New()
	s, err := New(t.Context(), "s1", newTestConfig(backend, nil, store), Seed{Token: "expired"})
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Auth.Authenticated())
	backend.Errs["DeleteBackup"] = &endee.APIError{StatusCode: 401, Message: "Unauthorized"}

	backups := s.Console.Backups
	backups.ConfirmDelete(t.Context(), "nightly")
	assert.Zero(t, backend.Calls("DeleteBackup"), "unconfirmed delete sends nothing")

	backups.RequestDelete("nightly")
	status := backups.ConfirmDelete(t.Context(), "nightly")
	assert.True(t, status.IsError())
	assert.Equal(t, 1, backend.Calls("DeleteBackup"))

	assert.False(t, s.Auth.Authenticated())
	assert.True(t, s.Auth.PromptOpen())
	_, err = store.GetPreference(t.Context(), "s1", KeyAuthToken)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.Auth.SetToken(t.Context(), "fresh"))
	assert.False(t, s.Auth.PromptOpen())
}

func TestAuth_StaleUnauthorizedIgnored(t *testing.T) {
	backend := fake.New()
	auth, err := NewAuth(backend.Factory(nil), nil, nil)
	require.NoError(t, err)

	require.NoError(t, auth.SetToken(t.Context(), "old"))
	stale := auth.Adapter()
	require.NoError(t, auth.SetToken(t.Context(), "new"))

	backend.Err = errors.New("invalid token")
	res := stale.ListIndexes(t.Context())
	assert.False(t, res.Success)

	assert.Equal(t, "new", auth.Token())
	assert.False(t, auth.PromptOpen())
}

// slowCloseBackend holds Close open until release is closed, like a Qdrant
// backend waiting on a snapshot upload.
type slowCloseBackend struct {
	*fake.Backend
	closing chan<- struct{}
	release <-chan struct{}
}

func (b *slowCloseBackend) Close() error {
	b.closing <- struct{}{}
	<-b.release
	return b.Backend.Close()
}

func TestAuth_TokenChangeDoesNotWaitForOldBackendClose(t *testing.T) {
	closing := make(chan struct{}, 4)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	factory := func(string) (vectorstore.Backend, error) {
		return &slowCloseBackend{Backend: fake.New(), closing: closing, release: release}, nil
	}
	auth, err := NewAuth(factory, nil, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- auth.SetToken(t.Context(), "first") }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SetToken blocked on closing the previous backend")
	}

	select {
	case <-closing:
	case <-time.After(2 * time.Second):
		t.Fatal("previous backend was never closed")
	}

	// readers stay unblocked while the old backend is still closing
	read := make(chan string, 1)
	go func() {
		_ = auth.Adapter()
		read <- auth.Token()
	}()
	select {
	case tok := <-read:
		assert.Equal(t, "first", tok)
	case <-time.After(2 * time.Second):
		t.Fatal("Adapter blocked while the previous backend was closing")
	}

	require.NoError(t, auth.Clear(t.Context()))
	assert.False(t, auth.Authenticated())
}

func TestNotifier_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := NewNotifier(3 * time.Second)
	n.now = func() time.Time { return now }

	n.Success("saved")
	n.Error("failed")
	require.Len(t, n.Pending(), 2)

	now = now.Add(3 * time.Second)
	pending := n.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, LevelError, pending[0].Level)
	assert.Nil(t, pending[0].ExpiresAt)

	assert.True(t, n.Dismiss(pending[0].ID))
	assert.False(t, n.Dismiss(pending[0].ID))
	assert.Empty(t, n.Pending())
}

func TestNotifier_Bounded(t *testing.T) {
	n := NewNotifier(0)
	for range maxNotices + 5 {
		n.Error("x")
	}
	assert.Len(t, n.Pending(), maxNotices)
}

func TestSession_Theme(t *testing.T) {
	store := memory.New()
	cfg := newTestConfig(fake.New(), nil, store)

	s, err := New(t.Context(), "s1", cfg, Seed{Theme: "dark"})
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, s.Theme())

	_, err = s.SetTheme(t.Context(), "sepia")
	assert.ErrorIs(t, err, ErrInvalidTheme)

	theme, err := s.SetTheme(t.Context(), "Light")
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)
	s.Close()

	// persisted value wins over the seed
	s, err = New(t.Context(), "s1", cfg, Seed{Theme: "dark"})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, ThemeLight, s.Theme())
}

func TestRegistry_OpenReusesSession(t *testing.T) {
	backend := fake.New()
	r := NewRegistry(newTestConfig(backend, nil, memory.New()), time.Hour)
	defer r.Close()

	s, err := r.Open(t.Context(), "not-a-uuid", Seed{Token: "tok"})
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", s.ID)
	assert.Equal(t, "tok", s.Auth.Token())

	again, err := r.Open(t.Context(), s.ID, Seed{})
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, 1, r.Len())

	r.Remove(s.ID)
	assert.Zero(t, r.Len())
}

func TestRegistry_ReopenRestoresPreferences(t *testing.T) {
	store := memory.New()
	cfg := newTestConfig(fake.New(), nil, store)

	r := NewRegistry(cfg, time.Hour)
	s, err := r.Open(t.Context(), "", Seed{})
	require.NoError(t, err)
	require.NoError(t, s.Auth.SetToken(t.Context(), "tok"))
	id := s.ID
	r.Close()

	r = NewRegistry(cfg, time.Hour)
	defer r.Close()
	s, err = r.Open(t.Context(), id, Seed{})
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, "tok", s.Auth.Token())
}

func TestRegistry_CleanupExpiresIdle(t *testing.T) {
	r := NewRegistry(newTestConfig(fake.New(), nil, nil), time.Minute)
	defer r.Close()

	idle, err := r.Open(t.Context(), "", Seed{})
	require.NoError(t, err)
	active, err := r.Open(t.Context(), "", Seed{})
	require.NoError(t, err)

	idle.mu.Lock()
	idle.lastSeen = time.Now().Add(-2 * time.Minute)
	idle.mu.Unlock()

	assert.Equal(t, 1, r.cleanup(time.Now()))
	_, ok := r.Get(idle.ID)
	assert.False(t, ok)
	_, ok = r.Get(active.ID)
	assert.True(t, ok)
}
