package endee

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithToken("secret"))
}

func TestClient_SendsAuthorizationHeader(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.Health(t.Context()))
	assert.Equal(t, "secret", got)
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		assert.False(t, present)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL + "/"))
	_, err := c.ListIndexes(t.Context())
	require.NoError(t, err)
}

func TestClient_UnauthorizedMapsToSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid token"}`))
	})

	_, err := c.ListIndexes(t.Context())
	require.Error(t, err)
	assert.True(t, errors.Is(err, vectorstore.ErrUnauthorized))

	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid token", apiErr.Message)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"error string", `{"error":"index exists"}`, "index exists"},
		{"nested error", `{"error":{"message":"bad dim"}}`, "bad dim"},
		{"message field", `{"message":"nope"}`, "nope"},
		{"plain text", `Index not found`, "Index not found"},
		{"json string", `"quoted"`, "quoted"},
		{"empty", ``, ""},
		{"unrelated json", `{"status":"x"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractMessage([]byte(tt.body)))
		})
	}
}

func TestClient_ErrorFallsBackToStatusText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.DeleteIndex(t.Context(), "docs")
	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestClient_ListIndexes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/index/list", r.URL.Path)
		w.Write([]byte(`{"indexes":[
			{"name":"docs","dimension":768,"sparse_dim":0,"space_type":"cosine","precision":"float16","M":16,"ef_con":128,"created_at":1700000000,"total_elements":42},
			{"name":"hybrid","dim":384,"sparse_dim":30000,"space_type":"ip","precision":"int8d"}
		]}`))
	})

	indexes, err := c.ListIndexes(t.Context())
	require.NoError(t, err)
	require.Len(t, indexes, 2)

	assert.Equal(t, "docs", indexes[0].Name)
	assert.Equal(t, 768, indexes[0].Dimension)
	assert.Equal(t, int64(42), indexes[0].ElementCount)
	assert.Equal(t, int64(1700000000), indexes[0].CreatedAt.Unix())
	assert.False(t, indexes[0].Hybrid())

	assert.Equal(t, 384, indexes[1].Dimension)
	assert.True(t, indexes[1].Hybrid())
	assert.Equal(t, vectorstore.PrecisionInt8D, indexes[1].Precision)
}

func TestClient_CreateIndexBody(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/index/create", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	})

	err := c.CreateIndex(t.Context(), vectorstore.IndexSpec{
		Name:           "docs",
		Dimension:      768,
		SpaceType:      vectorstore.SpaceCosine,
		Precision:      vectorstore.PrecisionFloat16,
		M:              16,
		EfConstruction: 128,
	})
	require.NoError(t, err)

	assert.Equal(t, "docs", body["index_name"])
	assert.Equal(t, float64(768), body["dim"])
	assert.Equal(t, "cosine", body["space_type"])
	assert.Equal(t, "float16", body["precision"])
	assert.Equal(t, float64(16), body["M"])
	assert.Equal(t, float64(128), body["ef_con"])
	_, hasSparse := body["sparse_dim"]
	assert.False(t, hasSparse)
}

func TestClient_QueryDecodesBareArray(t *testing.T) {
	var req searchRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Write([]byte(`[{"id":"a","similarity":0.9,"distance":0.1,"meta":{"title":"x"}}]`))
	})

	results, err := c.Query(t.Context(), "docs", vectorstore.Query{
		Vector: []float32{1, 2},
		TopK:   5,
		Ef:     64,
		Filter: json.RawMessage(`[{"tag":{"$eq":"a"}}]`),
		Sparse: &vectorstore.SparseVector{Indices: []uint32{3}, Values: []float32{0.5}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 0.9, results[0].Similarity, 1e-6)
	assert.Equal(t, "x", results[0].Meta["title"])

	assert.Equal(t, 5, req.K)
	assert.Equal(t, 64, req.Ef)
	assert.JSONEq(t, `[{"tag":{"$eq":"a"}}]`, string(req.Filter))
	assert.Equal(t, []uint32{3}, req.SparseIndices)
}

func TestClient_DeleteWithFilterCount(t *testing.T) {
	tests := []struct {
		body string
		want int
	}{
		{`{"deleted":7}`, 7},
		{`{"deleted_count":3}`, 3},
		{`12`, 12},
		{`{}`, 0},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/api/v1/index/docs/vectors/delete", r.URL.Path)
			w.Write([]byte(tt.body))
		})
		n, err := c.DeleteWithFilter(t.Context(), "docs", json.RawMessage(`{"a":{"$eq":1}}`))
		require.NoError(t, err)
		assert.Equal(t, tt.want, n, tt.body)
	}
}

func TestClient_CreateBackupFillsDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/index/docs/backup", r.URL.Path)
		w.Write([]byte(`{"job_id":"j1"}`))
	})

	job, err := c.CreateBackup(t.Context(), "docs", "nightly")
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, "docs", job.IndexID)
	assert.Equal(t, "nightly", job.BackupName)
	assert.True(t, job.InProgress())
	assert.False(t, job.StartedAt.IsZero())
}

func TestClient_ListBackupsAcceptsShapes(t *testing.T) {
	for _, body := range []string{
		`["a","b"]`,
		`{"backups":["a","b"]}`,
		`{"backups":[{"name":"a"},{"name":"b"}]}`,
	} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		names, err := c.ListBackups(t.Context())
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, names, body)
	}
}

func TestClient_ListBackupJobs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jobs":[
			{"job_id":"1","index_id":"docs","backup_name":"b1","status":"completed","started_at":"2024-01-01T00:00:00Z","completed_at":"2024-01-01T00:01:00Z"},
			{"job_id":"2","index_id":"docs","backup_name":"b2","status":"in_progress","started_at":1704067200}
		]}`))
	})

	jobs, err := c.ListBackupJobs(t.Context())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.NotNil(t, jobs[0].CompletedAt)
	assert.Nil(t, jobs[1].CompletedAt)
	assert.True(t, jobs[1].InProgress())
	assert.True(t, jobs[0].StartedAt.Equal(jobs[1].StartedAt))
}

func TestClient_DownloadURL(t *testing.T) {
	c := NewClient(WithBaseURL("http://db:8080"), WithToken("a b"))
	assert.Equal(t, "http://db:8080/api/v1/backups/my%20backup/download?token=a+b", c.DownloadURL("my backup"))

	anon := NewClient(WithBaseURL("http://db:8080"))
	assert.Equal(t, "http://db:8080/api/v1/backups/x/download", anon.DownloadURL("x"))
}

func TestClient_UploadBackup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/backups/upload", r.URL.Path)
		file, header, err := r.FormFile(UploadField)
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "backup.tar.gz", header.Filename)
		assert.Equal(t, "archive-bytes", string(data))
		w.WriteHeader(http.StatusOK)
	})

	err := c.UploadBackup(t.Context(), "backup.tar.gz", strings.NewReader("archive-bytes"))
	require.NoError(t, err)
}

func TestClient_DownloadBackupStreams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		w.Write([]byte("tarball"))
	})

	rc, err := c.DownloadBackup(t.Context(), "b1")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "tarball", string(data))
}
