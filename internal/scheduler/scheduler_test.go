package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore/fake"
)

func TestParseSchedule(t *testing.T) {
	for _, expr := range []string{"0 3 * * *", "@daily", "@every 1h", "*/30 * * * * *"} {
		_, err := ParseSchedule(expr)
		assert.NoError(t, err, expr)
	}
	for _, expr := range []string{"", "  ", "not a schedule", "61 * * * *"} {
		_, err := ParseSchedule(expr)
		assert.Error(t, err, expr)
	}
}

func TestBackupName(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "docs-20260304-050607", BackupName("docs", at))
}

func TestRunOnce_QueuesEveryIndex(t *testing.T) {
	backend := fake.New()

	s := New(backend, []string{"docs", "images"}, nil)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	jobs := s.RunOnce(context.Background())
	require.Len(t, jobs, 2)
	assert.Equal(t, "docs-20260102-030405", jobs[0].BackupName)
	assert.Equal(t, "images", jobs[1].IndexID)
	assert.Equal(t, 2, backend.Calls("CreateBackup"))
	assert.Equal(t, s.now(), s.LastRun())
}

func TestRunOnce_ContinuesAfterFailure(t *testing.T) {
	backend := fake.New()
	backend.Err = errors.New("backend down")

	s := New(backend, []string{"a", "b"}, nil)
	jobs := s.RunOnce(context.Background())

	assert.Empty(t, jobs)
	assert.Equal(t, 2, backend.Calls("CreateBackup"))
}

func TestStartStop(t *testing.T) {
	s := New(fake.New(), []string{"a"}, nil)
	assert.True(t, s.Next().IsZero())

	require.Error(t, s.Start("bogus"))
	require.NoError(t, s.Start("@hourly"))
	assert.True(t, s.Next().After(time.Now()))
	s.Stop()
}
