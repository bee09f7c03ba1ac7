package controller

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/EndeeLabs/endee-web-ui/internal/adapter"
	"github.com/EndeeLabs/endee-web-ui/internal/forms"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// DownloadLinkTTL is how long a download link, and the hidden frame using it, lives.
const DownloadLinkTTL = 60 * time.Second

// DownloadLink is a same-origin URL the browser navigates a hidden frame to.
type DownloadLink struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// DownloadPath is the console route serving a ticket-checked archive.
func DownloadPath(name, key string) string {
	return "/console/backups/" + url.PathEscape(name) + "/download?key=" + url.QueryEscape(key)
}

// BackupController drives the backups page.
type BackupController struct {
	src     AdapterSource
	notify  Notifier
	jobs    *JobPoller
	tickets TicketIssuer

	list     concern[[]string]
	create   concern[*vectorstore.BackupJob]
	restore  concern[adapter.Empty]
	deletion concern[adapter.Empty]
	upload   concern[adapter.Empty]

	restoreConfirm Confirmation[string]
	deleteConfirm  Confirmation[struct{}]
}

// List loads backup names.
func (c *BackupController) List(ctx context.Context) Status[[]string] {
	return run(ctx, &c.list, c.notify, nil, func(ctx context.Context) adapter.Result[[]string] {
		res := c.src.Adapter().ListBackups(ctx)
		if res.Success && res.Data == nil {
			res.Data = []string{}
		}
		return res
	})
}

// Create queues a backup of index and returns at once with the job. The
// jobs view takes over tracking it.
func (c *BackupController) Create(ctx context.Context, index, nameText string) Status[*vectorstore.BackupJob] {
	name, err := forms.ParseBackupName(nameText)
	if err != nil {
		return reject(&c.create, err)
	}

	success := func(*vectorstore.BackupJob) string { return fmt.Sprintf("Backup %q queued", name) }
	status := run(ctx, &c.create, c.notify, success, func(ctx context.Context) adapter.Result[*vectorstore.BackupJob] {
		return c.src.Adapter().CreateBackup(ctx, index, name)
	})
	if job, ok := status.Data(); ok && job != nil {
		c.jobs.Track(*job)
	}
	return status
}

// RequestRestore validates the target index and opens the restore confirmation.
func (c *BackupController) RequestRestore(name, targetText string) Status[adapter.Empty] {
	target, err := forms.ParseRestoreTarget(targetText)
	if err != nil {
		return reject(&c.restore, err)
	}
	c.restoreConfirm.Request(name, target)
	return c.restore.set(Idle[adapter.Empty]())
}

// CancelRestore closes the restore confirmation.
func (c *BackupController) CancelRestore() {
	c.restoreConfirm.Cancel()
}

// ConfirmRestore restores name into the target chosen at request time.
func (c *BackupController) ConfirmRestore(ctx context.Context, name string) Status[adapter.Empty] {
	target, err := c.restoreConfirm.Confirm(name)
	if err != nil {
		return reject(&c.restore, err)
	}
	success := func(adapter.Empty) string { return fmt.Sprintf("Backup %q restored to %q", name, target) }
	return run(ctx, &c.restore, c.notify, success, func(ctx context.Context) adapter.Result[adapter.Empty] {
		return c.src.Adapter().RestoreBackup(ctx, name, target)
	})
}

// RequestDelete opens the delete confirmation for name.
func (c *BackupController) RequestDelete(name string) {
	c.deleteConfirm.Request(name, struct{}{})
}

// CancelDelete closes the delete confirmation.
func (c *BackupController) CancelDelete() {
	c.deleteConfirm.Cancel()
}

// ConfirmDelete issues the DELETE for name, only if it was requested first.
func (c *BackupController) ConfirmDelete(ctx context.Context, name string) Status[adapter.Empty] {
	if _, err := c.deleteConfirm.Confirm(name); err != nil {
		return reject(&c.deletion, err)
	}
	success := func(adapter.Empty) string { return fmt.Sprintf("Backup %q deleted", name) }
	status := run(ctx, &c.deletion, c.notify, success, func(ctx context.Context) adapter.Result[adapter.Empty] {
		return c.src.Adapter().DeleteBackup(ctx, name)
	})
	if status.IsSuccess() {
		c.dropFromList(name)
	}
	return status
}

// Upload checks the file name before streaming the archive to the backend.
func (c *BackupController) Upload(ctx context.Context, filename string, archive io.Reader) Status[adapter.Empty] {
	if err := forms.ValidateUploadName(filename); err != nil {
		return reject(&c.upload, err)
	}
	success := func(adapter.Empty) string { return fmt.Sprintf("Backup %q uploaded", filename) }
	return run(ctx, &c.upload, c.notify, success, func(ctx context.Context) adapter.Result[adapter.Empty] {
		return c.src.Adapter().UploadBackup(ctx, filename, archive)
	})
}

// DownloadLink builds the URL for downloading name. With a ticket issuer the
// URL is same-origin and carries a signed key; otherwise it is the backend's
// own URL carrying the token.
func (c *BackupController) DownloadLink(name string) (DownloadLink, error) {
	if c.tickets == nil {
		res := c.src.Adapter().DownloadURL(name)
		if !res.Success {
			return DownloadLink{}, fmt.Errorf("failed to build download url: %s", res.Error)
		}
		return DownloadLink{URL: res.Data, ExpiresIn: int(DownloadLinkTTL.Seconds())}, nil
	}

	key, ttl, err := c.tickets.Issue(name)
	if err != nil {
		return DownloadLink{}, fmt.Errorf("failed to issue download key: %w", err)
	}
	return DownloadLink{URL: DownloadPath(name, key), ExpiresIn: int(ttl.Seconds())}, nil
}

// Download opens the archive stream. The caller closes it.
func (c *BackupController) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	res := c.src.Adapter().DownloadBackup(ctx, name)
	if !res.Success {
		return nil, fmt.Errorf("failed to download backup: %s", res.Error)
	}
	return res.Data, nil
}

func (c *BackupController) dropFromList(name string) {
	c.list.mu.Lock()
	defer c.list.mu.Unlock()

	names, ok := c.list.status.Data()
	if !ok {
		return
	}
	kept := make([]string, 0, len(names))
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	c.list.status = Succeeded(kept)
}

// BackupsState is the serializable state of the backups page.
type BackupsState struct {
	List           Status[[]string]                `json:"list"`
	Create         Status[*vectorstore.BackupJob]  `json:"create"`
	Restore        Status[adapter.Empty]           `json:"restore"`
	Delete         Status[adapter.Empty]           `json:"delete"`
	Upload         Status[adapter.Empty]           `json:"upload"`
	Jobs           Status[[]vectorstore.BackupJob] `json:"jobs"`
	Polling        bool                            `json:"polling"`
	RestoreConfirm *Confirmation[string]           `json:"restore_confirm"`
	DeleteConfirm  *Confirmation[struct{}]         `json:"delete_confirm"`
}

// State snapshots every concern, including the jobs view.
func (c *BackupController) State() BackupsState {
	return BackupsState{
		List:           c.list.get(),
		Create:         c.create.get(),
		Restore:        c.restore.get(),
		Delete:         c.deletion.get(),
		Upload:         c.upload.get(),
		Jobs:           c.jobs.Status(),
		Polling:        c.jobs.Polling(),
		RestoreConfirm: &c.restoreConfirm,
		DeleteConfirm:  &c.deleteConfirm,
	}
}
