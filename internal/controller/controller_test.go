package controller

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EndeeLabs/endee-web-ui/internal/adapter"
	"github.com/EndeeLabs/endee-web-ui/internal/endee"
	"github.com/EndeeLabs/endee-web-ui/internal/forms"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore/fake"
)

type staticSource struct {
	a *adapter.Adapter
}

func (s staticSource) Adapter() *adapter.Adapter { return s.a }

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

type fakeClock struct {
	mu        sync.Mutex
	pending   []*fakeTimer
	scheduled int
	lastDelay time.Duration
}

type fakeTimer struct {
	clock   *fakeClock
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, f: f}
	c.pending = append(c.pending, t)
	c.scheduled++
	c.lastDelay = d
	return t
}

// fire runs every live pending timer.
func (c *fakeClock) fire() int {
	c.mu.Lock()
	due := c.pending
	c.pending = nil
	c.mu.Unlock()

	n := 0
	for _, t := range due {
		c.mu.Lock()
		stopped := t.stopped
		t.stopped = true
		c.mu.Unlock()
		if !stopped {
			t.f()
			n++
		}
	}
	return n
}

func (c *fakeClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}

type harness struct {
	backend *fake.Backend
	notify  *recordingNotifier
	clock   *fakeClock
	console *Console
	unauth  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: fake.New(),
		notify:  &recordingNotifier{},
		clock:   &fakeClock{},
	}
	a := adapter.New(h.backend, adapter.WithUnauthorizedHandler(func() { h.unauth++ }))
	h.console = New(staticSource{a}, h.notify, Config{AfterFunc: h.clock.AfterFunc})
	t.Cleanup(h.console.Close)
	return h
}

func TestStatus_Union(t *testing.T) {
	s := Idle[int]()
	assert.Equal(t, PhaseIdle, s.Phase())
	_, ok := s.Data()
	assert.False(t, ok)

	s = Failed[int]("boom")
	assert.True(t, s.IsError())
	assert.Equal(t, "boom", s.Err())
	_, ok = s.Data()
	assert.False(t, ok)

	s = Succeeded(42)
	v, ok := s.Data()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Empty(t, s.Err())

	var zero Status[int]
	assert.Equal(t, PhaseIdle, zero.Phase())
}

func TestStatus_JSON(t *testing.T) {
	out, err := json.Marshal(Succeeded([]string{"a"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"success","data":["a"]}`, string(out))

	out, err = json.Marshal(Failed[[]string]("nope"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"error","error":"nope"}`, string(out))

	out, err = json.Marshal(Loading[int]())
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"loading"}`, string(out))
}

func TestConfirmation(t *testing.T) {
	var c Confirmation[string]

	_, err := c.Confirm("a")
	assert.ErrorIs(t, err, ErrNotRequested)

	c.Request("a", "payload")
	target, open := c.Pending()
	assert.True(t, open)
	assert.Equal(t, "a", target)

	_, err = c.Confirm("b")
	assert.ErrorIs(t, err, ErrNotRequested)

	p, err := c.Confirm("a")
	require.NoError(t, err)
	assert.Equal(t, "payload", p)

	_, err = c.Confirm("a")
	assert.ErrorIs(t, err, ErrNotRequested, "confirmation is single use")

	c.Request("a", "x")
	c.Cancel()
	_, open = c.Pending()
	assert.False(t, open)
}

func TestIndexes_ListAndDetail(t *testing.T) {
	h := newHarness(t)
	h.backend.Indexes["docs"] = vectorstore.IndexInfo{Name: "docs", Dimension: 4, SpaceType: vectorstore.SpaceL2}
	h.backend.Indexes["hyb"] = vectorstore.IndexInfo{Name: "hyb", Dimension: 4, SparseDimension: 100, SpaceType: "manhattan"}

	list := h.console.Indexes.List(t.Context())
	views, ok := list.Data()
	require.True(t, ok)
	require.Len(t, views, 2)
	assert.Equal(t, "Euclidean", views[0].SpaceTypeLabel)
	assert.False(t, views[0].Hybrid)
	assert.Equal(t, "Unknown", views[1].SpaceTypeLabel)
	assert.True(t, views[1].Hybrid)

	detail := h.console.Indexes.Detail(t.Context(), "missing")
	assert.True(t, detail.IsError())
	assert.Len(t, h.notify.errors, 1)
}

func TestIndexes_CreateNavigatesToList(t *testing.T) {
	h := newHarness(t)

	status := h.console.Indexes.Create(t.Context(), forms.CreateIndexForm{
		Name: "docs", Dimension: "768", SpaceType: "cosine", Precision: "float16",
	})
	nav, ok := status.Data()
	require.True(t, ok, status.Err())
	assert.Equal(t, IndexListPath, nav.Redirect)
	assert.Equal(t, 768, h.backend.Indexes["docs"].Dimension)
	assert.Len(t, h.notify.successes, 1)
}

func TestIndexes_CreateValidationIssuesNoCall(t *testing.T) {
	h := newHarness(t)

	status := h.console.Indexes.Create(t.Context(), forms.CreateIndexForm{Name: "hyb", Dimension: "768", Hybrid: true})
	assert.Equal(t, forms.MsgSparseDimInvalid, status.Err())

	status = h.console.Indexes.Create(t.Context(), forms.CreateIndexForm{Name: "adv", Dimension: "8", ShowAdvanced: true, M: "3", EfConstruction: "128"})
	assert.Contains(t, status.Err(), "between 4 and 64")

	assert.Zero(t, h.backend.TotalCalls())
	assert.Empty(t, h.notify.errors, "validation failures render inline")
}

func TestIndexes_DeleteRequiresConfirm(t *testing.T) {
	h := newHarness(t)
	h.backend.Indexes["docs"] = vectorstore.IndexInfo{Name: "docs"}
	h.console.Indexes.List(t.Context())

	status := h.console.Indexes.ConfirmDelete(t.Context(), "docs")
	assert.True(t, status.IsError())
	assert.Zero(t, h.backend.Calls("DeleteIndex"))

	h.console.Indexes.RequestDelete("docs")
	h.console.Indexes.CancelDelete()
	h.console.Indexes.ConfirmDelete(t.Context(), "docs")
	assert.Zero(t, h.backend.Calls("DeleteIndex"))

	h.console.Indexes.RequestDelete("docs")
	status = h.console.Indexes.ConfirmDelete(t.Context(), "docs")
	require.True(t, status.IsSuccess(), status.Err())
	assert.Equal(t, 1, h.backend.Calls("DeleteIndex"))

	views, _ := h.console.Indexes.State().List.Data()
	assert.Empty(t, views)
}

func TestSearch_InvalidKIssuesNoCall(t *testing.T) {
	h := newHarness(t)

	for _, k := range []string{"0", "-1", "abc", ""} {
		status := h.console.Search.Submit(t.Context(), "docs", forms.SearchForm{Vector: "1,2", K: k})
		assert.Equal(t, forms.MsgKInvalid, status.Err(), k)
	}
	assert.Zero(t, h.backend.Calls("Query"))

	for _, k := range []string{"1", "5", "100"} {
		status := h.console.Search.Submit(t.Context(), "docs", forms.SearchForm{Vector: "1,2", K: k})
		assert.True(t, status.IsSuccess(), k)
	}
	assert.Equal(t, 3, h.backend.Calls("Query"))
	assert.Equal(t, 100, h.backend.LastQuery.TopK)
}

func TestSearch_ResultsReplaced(t *testing.T) {
	h := newHarness(t)
	h.backend.Results = []vectorstore.SearchResult{{ID: "a"}, {ID: "b"}}

	h.console.Search.Submit(t.Context(), "docs", forms.SearchForm{Vector: "1", K: "2"})
	h.backend.Results = []vectorstore.SearchResult{{ID: "c"}}
	status := h.console.Search.Submit(t.Context(), "docs", forms.SearchForm{Vector: "1", K: "2"})

	results, ok := status.Data()
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].ID)
}

func TestSearch_UsesLoadedIndexMeta(t *testing.T) {
	h := newHarness(t)
	h.backend.Indexes["docs"] = vectorstore.IndexInfo{Name: "docs", Dimension: 3}

	h.console.IndexMeta().Load(t.Context(), "docs")
	status := h.console.Search.Submit(t.Context(), "docs", forms.SearchForm{Vector: "1,2", K: "1"})
	assert.Contains(t, status.Err(), "expected 3, got 2")
	assert.Zero(t, h.backend.Calls("Query"))

	// metadata for another index is not applied
	status = h.console.Search.Submit(t.Context(), "other", forms.SearchForm{Vector: "1,2", K: "1"})
	assert.True(t, status.IsSuccess())
}

func TestVectors_InsertSingleBatch(t *testing.T) {
	h := newHarness(t)

	status := h.console.Vectors.Insert(t.Context(), "docs", forms.InsertForm{Rows: []forms.VectorRow{
		{ID: "a", Vector: "1,2"},
		{},
		{ID: "b", Vector: "3,4", Meta: `{"k":"v"}`},
	}})
	inserted, ok := status.Data()
	require.True(t, ok, status.Err())
	assert.Equal(t, 2, inserted.Count)
	assert.Equal(t, 1, h.backend.Calls("Upsert"))
	assert.Len(t, h.backend.LastUpsert, 2)
}

func TestVectors_InsertAbortsWholeBatch(t *testing.T) {
	h := newHarness(t)

	status := h.console.Vectors.Insert(t.Context(), "docs", forms.InsertForm{Rows: []forms.VectorRow{
		{ID: "a", Vector: "1,2"},
		{ID: "b", Vector: "3,4", Filter: "{bad"},
	}})
	assert.Equal(t, "Vector 2: Invalid filter JSON", status.Err())
	assert.Zero(t, h.backend.TotalCalls())
}

func TestVectors_GetAndDelete(t *testing.T) {
	h := newHarness(t)
	h.backend.Vectors["docs"] = map[string]vectorstore.Vector{"a": {ID: "a", Dense: []float32{1}}}

	got := h.console.Vectors.Get(t.Context(), "docs", "a")
	v, ok := got.Data()
	require.True(t, ok)
	assert.Equal(t, "a", v.ID)

	assert.True(t, h.console.Vectors.Delete(t.Context(), "docs", "a").IsSuccess())
	assert.Equal(t, 1, h.backend.Calls("DeleteVector"))

	assert.Equal(t, forms.MsgVectorIDRequired, h.console.Vectors.Get(t.Context(), "docs", " ").Err())
}

func TestVectors_DeleteByFilterConfirmed(t *testing.T) {
	h := newHarness(t)
	h.backend.DeletedByFilter = 7

	status := h.console.Vectors.ConfirmDeleteByFilter(t.Context(), "docs")
	assert.True(t, status.IsError())

	status = h.console.Vectors.RequestDeleteByFilter("docs", "")
	assert.Equal(t, forms.MsgFilterRequired, status.Err())

	h.console.Vectors.RequestDeleteByFilter("docs", `[{"tag":{"$eq":"old"}}]`)
	assert.Zero(t, h.backend.Calls("DeleteWithFilter"))

	status = h.console.Vectors.ConfirmDeleteByFilter(t.Context(), "docs")
	deleted, ok := status.Data()
	require.True(t, ok)
	assert.Equal(t, 7, deleted.Count)
	assert.JSONEq(t, `[{"tag":{"$eq":"old"}}]`, string(h.backend.LastFilter))
	assert.Equal(t, []string{"Deleted 7 vector(s)"}, h.notify.successes)
}

func TestBackups_DeleteRequiresConfirm(t *testing.T) {
	h := newHarness(t)
	h.backend.Backups = []string{"nightly"}

	status := h.console.Backups.ConfirmDelete(t.Context(), "nightly")
	assert.True(t, status.IsError())
	assert.Zero(t, h.backend.Calls("DeleteBackup"))

	h.console.Backups.RequestDelete("nightly")
	status = h.console.Backups.ConfirmDelete(t.Context(), "nightly")
	assert.True(t, status.IsSuccess())
	assert.Equal(t, 1, h.backend.Calls("DeleteBackup"))
}

func TestBackups_UnauthorizedDeleteTriggersCallback(t *testing.T) {
	h := newHarness(t)
	h.backend.Errs["DeleteBackup"] = &endee.APIError{StatusCode: 401, Message: "Invalid token"}

	h.console.Backups.RequestDelete("nightly")
	status := h.console.Backups.ConfirmDelete(t.Context(), "nightly")
	assert.Equal(t, "Invalid token", status.Err())
	assert.Equal(t, 1, h.backend.Calls("DeleteBackup"))
	assert.Equal(t, 1, h.unauth)
	assert.Equal(t, []string{"Invalid token"}, h.notify.errors)
}

func TestBackups_RestoreUsesRequestedTarget(t *testing.T) {
	h := newHarness(t)

	status := h.console.Backups.RequestRestore("nightly", " ")
	assert.Equal(t, forms.MsgTargetIndexRequired, status.Err())

	h.console.Backups.RequestRestore("nightly", "docs-restored")
	status = h.console.Backups.ConfirmRestore(t.Context(), "nightly")
	require.True(t, status.IsSuccess())
	assert.Equal(t, [2]string{"nightly", "docs-restored"}, h.backend.LastRestore)
}

func TestBackups_UploadValidatesExtensionFirst(t *testing.T) {
	h := newHarness(t)

	status := h.console.Backups.Upload(t.Context(), "backup.zip", strings.NewReader("data"))
	assert.Equal(t, forms.MsgUploadExtension, status.Err())
	assert.Zero(t, h.backend.Calls("UploadBackup"))

	status = h.console.Backups.Upload(t.Context(), "backup.tar.gz", strings.NewReader("data"))
	assert.True(t, status.IsSuccess())
	assert.Equal(t, 1, h.backend.Calls("UploadBackup"))
	assert.Equal(t, []byte("data"), h.backend.Archives["backup.tar.gz"])
}

type stubTickets struct{}

func (stubTickets) Issue(backup string) (string, time.Duration, error) {
	return "k-" + backup, DownloadLinkTTL, nil
}

func TestBackups_DownloadLink(t *testing.T) {
	h := newHarness(t)

	_, err := h.console.Backups.DownloadLink("nightly")
	assert.Error(t, err, "fake backend has no direct download url")

	h.console.Backups.tickets = stubTickets{}
	link, err := h.console.Backups.DownloadLink("night ly")
	require.NoError(t, err)
	assert.Equal(t, "/console/backups/night%20ly/download?key=k-night+ly", link.URL)
	assert.Equal(t, 60, link.ExpiresIn)
}

func TestJobs_PollsOnlyWhileInProgress(t *testing.T) {
	h := newHarness(t)
	jobs := h.console.Jobs
	h.backend.SetJobs(vectorstore.BackupJob{ID: "1", Status: vectorstore.JobInProgress})

	jobs.Refresh(t.Context())
	assert.True(t, jobs.Polling())
	assert.Equal(t, 1, h.clock.live())
	assert.Equal(t, DefaultPollInterval, h.clock.lastDelay)

	// a manual refresh while polling does not stack timers
	jobs.Refresh(t.Context())
	assert.Equal(t, 1, h.clock.live())

	assert.Equal(t, 1, h.clock.fire())
	assert.Equal(t, 3, h.backend.Calls("ListBackupJobs"))
	assert.True(t, jobs.Polling(), "job still running")

	h.backend.SetJobs(vectorstore.BackupJob{ID: "1", Status: vectorstore.JobCompleted})
	assert.Equal(t, 1, h.clock.fire())
	assert.False(t, jobs.Polling())
	assert.Zero(t, h.clock.live())
	assert.Zero(t, h.clock.fire(), "no refresh after the last job finished")
	assert.Equal(t, 4, h.backend.Calls("ListBackupJobs"))
}

func TestJobs_IdleWithoutActiveJobs(t *testing.T) {
	h := newHarness(t)
	h.backend.SetJobs(vectorstore.BackupJob{ID: "1", Status: vectorstore.JobFailed, Error: "disk full"})

	status := h.console.Jobs.Refresh(t.Context())
	require.True(t, status.IsSuccess())
	assert.False(t, h.console.Jobs.Polling())
	assert.Zero(t, h.clock.scheduled)
}

func TestJobs_CreateBackupStartsPolling(t *testing.T) {
	h := newHarness(t)

	status := h.console.Backups.Create(t.Context(), "docs", "nightly")
	job, ok := status.Data()
	require.True(t, ok)
	assert.Equal(t, vectorstore.JobInProgress, job.Status)
	assert.True(t, h.console.Jobs.Polling())
	assert.Zero(t, h.backend.Calls("ListBackupJobs"))

	assert.Equal(t, forms.MsgBackupNameRequired, h.console.Backups.Create(t.Context(), "docs", "").Err())
}

func TestJobs_Subscribe(t *testing.T) {
	h := newHarness(t)
	ch, cancel := h.console.Jobs.Subscribe()
	defer cancel()

	h.backend.SetJobs(vectorstore.BackupJob{ID: "1", Status: vectorstore.JobCompleted})
	h.console.Jobs.Refresh(t.Context())

	select {
	case snapshot := <-ch:
		require.Len(t, snapshot, 1)
		assert.Equal(t, "1", snapshot[0].ID)
	default:
		t.Fatal("expected a snapshot")
	}

	h.console.Close()
	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, cancel)
}

func TestJobs_CloseStopsPolling(t *testing.T) {
	h := newHarness(t)
	h.backend.SetJobs(vectorstore.BackupJob{ID: "1", Status: vectorstore.JobInProgress})
	h.console.Jobs.Refresh(t.Context())
	require.True(t, h.console.Jobs.Polling())

	h.console.Close()
	assert.False(t, h.console.Jobs.Polling())
	assert.Zero(t, h.clock.live())
}

func TestJobs_UnauthorizedRefreshStopsPolling(t *testing.T) {
	h := newHarness(t)
	jobs := h.console.Jobs
	h.backend.SetJobs(vectorstore.BackupJob{ID: "1", Status: vectorstore.JobInProgress})
	jobs.Refresh(t.Context())
	require.True(t, jobs.Polling())

	h.backend.Errs["ListBackupJobs"] = &endee.APIError{StatusCode: 401, Message: "token expired"}
	assert.Equal(t, 1, h.clock.fire())
	assert.Equal(t, 1, h.unauth)
	assert.False(t, jobs.Polling(), "no polling against a rejected token")
	assert.Zero(t, h.clock.live())
	assert.Zero(t, h.clock.fire())
	assert.Equal(t, 2, h.backend.Calls("ListBackupJobs"))

	// a refresh after logging back in resumes polling for the tracked job
	delete(h.backend.Errs, "ListBackupJobs")
	jobs.Refresh(t.Context())
	assert.True(t, jobs.Polling())
}

func TestJobs_TransientFailureKeepsPolling(t *testing.T) {
	h := newHarness(t)
	jobs := h.console.Jobs
	h.backend.SetJobs(vectorstore.BackupJob{ID: "1", Status: vectorstore.JobInProgress})
	jobs.Refresh(t.Context())

	h.backend.Errs["ListBackupJobs"] = &endee.APIError{StatusCode: 503, Message: "busy"}
	assert.Equal(t, 1, h.clock.fire())
	assert.True(t, jobs.Polling())
	assert.Equal(t, 1, h.clock.live())
	assert.Zero(t, h.unauth)
}
