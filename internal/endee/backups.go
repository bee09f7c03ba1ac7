package endee

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// UploadField is the multipart field carrying an uploaded archive.
const UploadField = "backup"

type wireJob struct {
	JobID       string   `json:"job_id"`
	ID          string   `json:"id"`
	IndexID     string   `json:"index_id"`
	BackupName  string   `json:"backup_name"`
	Status      string   `json:"status"`
	Error       string   `json:"error"`
	StartedAt   flexTime `json:"started_at"`
	CompletedAt flexTime `json:"completed_at"`
}

func (w wireJob) toJob() vectorstore.BackupJob {
	job := vectorstore.BackupJob{
		ID:         w.JobID,
		IndexID:    w.IndexID,
		BackupName: w.BackupName,
		Status:     vectorstore.JobStatus(w.Status),
		Error:      w.Error,
		StartedAt:  w.StartedAt.Time,
	}
	if job.ID == "" {
		job.ID = w.ID
	}
	if !w.CompletedAt.IsZero() {
		completed := w.CompletedAt.Time
		job.CompletedAt = &completed
	}
	return job
}

// CreateBackup queues a backup job via POST /api/v1/index/:name/backup.
func (c *Client) CreateBackup(ctx context.Context, index, name string) (*vectorstore.BackupJob, error) {
	var wire wireJob
	req := map[string]string{"name": name}
	if err := c.doJSON(ctx, http.MethodPost, "/index/"+escape(index)+"/backup", req, &wire); err != nil {
		return nil, fmt.Errorf("failed to create backup %s: %w", name, err)
	}

	job := wire.toJob()
	if job.IndexID == "" {
		job.IndexID = index
	}
	if job.BackupName == "" {
		job.BackupName = name
	}
	if job.Status == "" {
		job.Status = vectorstore.JobInProgress
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}
	return &job, nil
}

// ListBackups returns backup names via GET /api/v1/backups.
func (c *Client) ListBackups(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/backups", nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var entries []json.RawMessage
	if err := decodeList(raw, "backups", &entries); err != nil {
		return nil, fmt.Errorf("failed to decode backup list: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		var name string
		if err := json.Unmarshal(entry, &name); err == nil {
			names = append(names, name)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(entry, &obj); err == nil && obj.Name != "" {
			names = append(names, obj.Name)
		}
	}
	return names, nil
}

// ListBackupJobs returns backup jobs with their status via GET /api/v1/backups/jobs.
func (c *Client) ListBackupJobs(ctx context.Context) ([]vectorstore.BackupJob, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/backups/jobs", nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to list backup jobs: %w", err)
	}

	var wire []wireJob
	if err := decodeList(raw, "jobs", &wire); err != nil {
		return nil, fmt.Errorf("failed to decode backup jobs: %w", err)
	}

	jobs := make([]vectorstore.BackupJob, len(wire))
	for i, w := range wire {
		jobs[i] = w.toJob()
	}
	return jobs, nil
}

// RestoreBackup restores a backup into a new index.
func (c *Client) RestoreBackup(ctx context.Context, name, targetIndex string) error {
	req := map[string]string{"target_index_name": targetIndex}
	if err := c.doJSON(ctx, http.MethodPost, "/backups/"+escape(name)+"/restore", req, nil); err != nil {
		return fmt.Errorf("failed to restore backup %s: %w", name, err)
	}
	return nil
}

// DeleteBackup deletes a backup.
func (c *Client) DeleteBackup(ctx context.Context, name string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/backups/"+escape(name), nil, nil); err != nil {
		return fmt.Errorf("failed to delete backup %s: %w", name, err)
	}
	return nil
}

// DownloadURL builds the archive URL carrying the token as a query parameter,
// for callers that hand the download to a browser.
func (c *Client) DownloadURL(name string) string {
	u := c.endpoint("/backups/" + escape(name) + "/download")
	if c.token == "" {
		return u
	}
	return u + "?" + url.Values{"token": {c.token}}.Encode()
}

// DownloadBackup streams a backup archive. The caller must close the reader.
func (c *Client) DownloadBackup(ctx context.Context, name string) (io.ReadCloser, error) {
	path := "/backups/" + escape(name) + "/download"
	if c.token != "" {
		path += "?" + url.Values{"token": {c.token}}.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	// Archives can be large; the shared client timeout would cut the stream
	streaming := *c.httpClient
	streaming.Timeout = 0

	resp, err := streaming.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download backup %s: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("failed to download backup %s: %w", name, readAPIError(resp))
	}
	return resp.Body, nil
}

// UploadBackup uploads an archive via multipart POST /api/v1/backups/upload.
func (c *Client) UploadBackup(ctx context.Context, filename string, archive io.Reader) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile(UploadField, filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, archive); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/backups/upload", pr)
	if err != nil {
		pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	streaming := *c.httpClient
	streaming.Timeout = 0

	resp, err := streaming.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload backup %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to upload backup %s: %w", filename, readAPIError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Ensure Client implements vectorstore.Backend
var _ vectorstore.Backend = (*Client)(nil)
