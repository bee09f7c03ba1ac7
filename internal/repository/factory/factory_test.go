package factory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EndeeLabs/endee-web-ui/internal/repository"
	"github.com/EndeeLabs/endee-web-ui/internal/repository/memory"
	"github.com/EndeeLabs/endee-web-ui/internal/repository/sqlite"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

func openStores(t *testing.T) map[string]repository.Store {
	t.Helper()

	mem, err := Open(t.Context(), MemoryDSN)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, mem)

	lite, err := Open(t.Context(), filepath.Join(t.TempDir(), "nested", "console.db"))
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, lite)

	t.Cleanup(func() {
		mem.Close()
		lite.Close()
	})
	return map[string]repository.Store{"memory": mem, "sqlite": lite}
}

func TestStore_Preferences(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			_, err := store.GetPreference(ctx, "s1", "endee_theme")
			assert.ErrorIs(t, err, repository.ErrNotFound)

			require.NoError(t, store.SetPreference(ctx, "s1", "endee_theme", "light"))
			require.NoError(t, store.SetPreference(ctx, "s1", "endee_theme", "dark"))
			require.NoError(t, store.SetPreference(ctx, "s1", "endee_auth_token", "tok"))
			require.NoError(t, store.SetPreference(ctx, "s2", "endee_theme", "light"))

			v, err := store.GetPreference(ctx, "s1", "endee_theme")
			require.NoError(t, err)
			assert.Equal(t, "dark", v)

			require.NoError(t, store.DeletePreference(ctx, "s1", "endee_auth_token"))
			require.NoError(t, store.DeletePreference(ctx, "s1", "endee_auth_token"))
			_, err = store.GetPreference(ctx, "s1", "endee_auth_token")
			assert.ErrorIs(t, err, repository.ErrNotFound)

			require.NoError(t, store.DeleteScope(ctx, "s1"))
			_, err = store.GetPreference(ctx, "s1", "endee_theme")
			assert.ErrorIs(t, err, repository.ErrNotFound)

			v, err = store.GetPreference(ctx, "s2", "endee_theme")
			require.NoError(t, err)
			assert.Equal(t, "light", v)
		})
	}
}

func TestStore_BackupJobs(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

			older := &vectorstore.BackupJob{ID: "a", IndexID: "docs", BackupName: "docs-1", Status: vectorstore.JobInProgress, StartedAt: start}
			newer := &vectorstore.BackupJob{ID: "b", IndexID: "docs", BackupName: "docs-2", Status: vectorstore.JobInProgress, StartedAt: start.Add(time.Minute)}
			require.NoError(t, store.CreateJob(ctx, older))
			require.NoError(t, store.CreateJob(ctx, newer))

			done := start.Add(30 * time.Second)
			older.Status = vectorstore.JobFailed
			older.Error = "snapshot failed"
			older.CompletedAt = &done
			require.NoError(t, store.UpdateJob(ctx, older))

			got, err := store.GetJob(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, vectorstore.JobFailed, got.Status)
			assert.Equal(t, "snapshot failed", got.Error)
			require.NotNil(t, got.CompletedAt)
			assert.True(t, done.Equal(*got.CompletedAt))
			assert.True(t, start.Equal(got.StartedAt))

			jobs, err := store.ListJobs(ctx)
			require.NoError(t, err)
			require.Len(t, jobs, 2)
			assert.Equal(t, "b", jobs[0].ID)
			assert.Nil(t, jobs[0].CompletedAt)

			_, err = store.GetJob(ctx, "missing")
			assert.ErrorIs(t, err, repository.ErrNotFound)
			err = store.UpdateJob(ctx, &vectorstore.BackupJob{ID: "missing"})
			assert.ErrorIs(t, err, repository.ErrNotFound)
		})
	}
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.db")

	s, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetPreference(t.Context(), "cli", "endee_auth_token", "persisted"))
	require.NoError(t, s.Close())

	s, err = sqlite.Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.GetPreference(t.Context(), "cli", "endee_auth_token")
	require.NoError(t, err)
	assert.Equal(t, "persisted", v)
}
