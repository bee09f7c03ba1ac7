package controller

import (
	"context"
	"fmt"

	"github.com/EndeeLabs/endee-web-ui/internal/adapter"
	"github.com/EndeeLabs/endee-web-ui/internal/forms"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// IndexListPath is where the console navigates after creating or deleting an index.
const IndexListPath = "/indexes"

// IndexView is an index descriptor with its display fields.
type IndexView struct {
	vectorstore.IndexInfo
	SpaceTypeLabel string `json:"space_type_label"`
	Hybrid         bool   `json:"hybrid"`
}

func newIndexView(info vectorstore.IndexInfo) IndexView {
	return IndexView{
		IndexInfo:      info,
		SpaceTypeLabel: adapter.SpaceTypeLabel(info.SpaceType),
		Hybrid:         info.Hybrid(),
	}
}

// Navigation tells the client where to go once an action completes.
type Navigation struct {
	Redirect string `json:"redirect,omitempty"`
}

// IndexController drives the index list, detail and create pages.
type IndexController struct {
	src    AdapterSource
	notify Notifier

	list     concern[[]IndexView]
	detail   concern[*IndexView]
	create   concern[Navigation]
	deletion concern[Navigation]

	confirm Confirmation[struct{}]
}

// List loads the index list.
func (c *IndexController) List(ctx context.Context) Status[[]IndexView] {
	return run(ctx, &c.list, c.notify, nil, func(ctx context.Context) adapter.Result[[]IndexView] {
		res := c.src.Adapter().ListIndexes(ctx)
		if !res.Success {
			return adapter.Fail[[]IndexView](res.Error)
		}
		views := make([]IndexView, len(res.Data))
		for i, info := range res.Data {
			views[i] = newIndexView(info)
		}
		return adapter.Ok(views)
	})
}

// Detail loads a single index.
func (c *IndexController) Detail(ctx context.Context, name string) Status[*IndexView] {
	return run(ctx, &c.detail, c.notify, nil, func(ctx context.Context) adapter.Result[*IndexView] {
		res := c.src.Adapter().GetIndex(ctx, name)
		if !res.Success {
			return adapter.Fail[*IndexView](res.Error)
		}
		info := vectorstore.IndexInfo{Name: name}
		if res.Data != nil {
			info = *res.Data
		}
		view := newIndexView(info)
		return adapter.Ok(&view)
	})
}

// Create validates the form and creates the index. Success navigates to the list.
func (c *IndexController) Create(ctx context.Context, form forms.CreateIndexForm) Status[Navigation] {
	spec, err := form.Parse()
	if err != nil {
		return reject(&c.create, err)
	}

	success := func(Navigation) string { return fmt.Sprintf("Index %q created", spec.Name) }
	return run(ctx, &c.create, c.notify, success, func(ctx context.Context) adapter.Result[Navigation] {
		res := c.src.Adapter().CreateIndex(ctx, spec)
		if !res.Success {
			return adapter.Fail[Navigation](res.Error)
		}
		return adapter.Ok(Navigation{Redirect: IndexListPath})
	})
}

// RequestDelete opens the delete confirmation for name.
func (c *IndexController) RequestDelete(name string) {
	c.confirm.Request(name, struct{}{})
}

// CancelDelete closes the delete confirmation.
func (c *IndexController) CancelDelete() {
	c.confirm.Cancel()
}

// ConfirmDelete deletes name if its deletion was requested.
func (c *IndexController) ConfirmDelete(ctx context.Context, name string) Status[Navigation] {
	if _, err := c.confirm.Confirm(name); err != nil {
		return reject(&c.deletion, err)
	}

	success := func(Navigation) string { return fmt.Sprintf("Index %q deleted", name) }
	return run(ctx, &c.deletion, c.notify, success, func(ctx context.Context) adapter.Result[Navigation] {
		res := c.src.Adapter().DeleteIndex(ctx, name)
		if !res.Success {
			return adapter.Fail[Navigation](res.Error)
		}
		c.dropFromList(name)
		return adapter.Ok(Navigation{Redirect: IndexListPath})
	})
}

func (c *IndexController) dropFromList(name string) {
	c.list.mu.Lock()
	defer c.list.mu.Unlock()

	views, ok := c.list.status.Data()
	if !ok {
		return
	}
	kept := make([]IndexView, 0, len(views))
	for _, v := range views {
		if v.Name != name {
			kept = append(kept, v)
		}
	}
	c.list.status = Succeeded(kept)
}

// IndexesState is the serializable state of the index pages.
type IndexesState struct {
	List          Status[[]IndexView]     `json:"list"`
	Detail        Status[*IndexView]      `json:"detail"`
	Create        Status[Navigation]      `json:"create"`
	Delete        Status[Navigation]      `json:"delete"`
	DeleteConfirm *Confirmation[struct{}] `json:"delete_confirm"`
}

// State snapshots every concern.
func (c *IndexController) State() IndexesState {
	return IndexesState{
		List:          c.list.get(),
		Detail:        c.detail.get(),
		Create:        c.create.get(),
		Delete:        c.deletion.get(),
		DeleteConfirm: &c.confirm,
	}
}
