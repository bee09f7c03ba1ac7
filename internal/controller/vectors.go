package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/EndeeLabs/endee-web-ui/internal/adapter"
	"github.com/EndeeLabs/endee-web-ui/internal/forms"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// Inserted reports the size of an accepted batch.
type Inserted struct {
	Count int `json:"count"`
}

// VectorController drives vector insert, lookup and deletion.
type VectorController struct {
	src    AdapterSource
	notify Notifier
	meta   *IndexMeta

	insert         concern[Inserted]
	get            concern[*vectorstore.Vector]
	deleteOne      concern[adapter.Empty]
	deleteByFilter concern[adapter.Deleted]

	filterConfirm Confirmation[json.RawMessage]
}

// Insert validates the whole batch, then sends it in a single request.
func (c *VectorController) Insert(ctx context.Context, index string, form forms.InsertForm) Status[Inserted] {
	vectors, err := form.Parse(c.meta.Current(index))
	if err != nil {
		return reject(&c.insert, err)
	}

	success := func(r Inserted) string { return fmt.Sprintf("Inserted %d vector(s)", r.Count) }
	return run(ctx, &c.insert, c.notify, success, func(ctx context.Context) adapter.Result[Inserted] {
		res := c.src.Adapter().InsertVectors(ctx, index, vectors)
		if !res.Success {
			return adapter.Fail[Inserted](res.Error)
		}
		return adapter.Ok(Inserted{Count: len(vectors)})
	})
}

// Get fetches one vector by id.
func (c *VectorController) Get(ctx context.Context, index, id string) Status[*vectorstore.Vector] {
	id, err := forms.ParseVectorID(id)
	if err != nil {
		return reject(&c.get, err)
	}
	return run(ctx, &c.get, c.notify, nil, func(ctx context.Context) adapter.Result[*vectorstore.Vector] {
		return c.src.Adapter().GetVector(ctx, index, id)
	})
}

// Delete removes one vector by id.
func (c *VectorController) Delete(ctx context.Context, index, id string) Status[adapter.Empty] {
	id, err := forms.ParseVectorID(id)
	if err != nil {
		return reject(&c.deleteOne, err)
	}
	success := func(adapter.Empty) string { return fmt.Sprintf("Vector %q deleted", id) }
	return run(ctx, &c.deleteOne, c.notify, success, func(ctx context.Context) adapter.Result[adapter.Empty] {
		return c.src.Adapter().DeleteVector(ctx, index, id)
	})
}

// RequestDeleteByFilter validates the filter and opens the confirmation.
func (c *VectorController) RequestDeleteByFilter(index, filterText string) Status[adapter.Deleted] {
	filter, err := forms.ParseRequiredFilter(filterText)
	if err != nil {
		return reject(&c.deleteByFilter, err)
	}
	c.filterConfirm.Request(index, filter)
	return c.deleteByFilter.set(Idle[adapter.Deleted]())
}

// CancelDeleteByFilter closes the confirmation.
func (c *VectorController) CancelDeleteByFilter() {
	c.filterConfirm.Cancel()
}

// ConfirmDeleteByFilter runs the bulk delete requested for index and reports
// how many vectors the backend removed.
func (c *VectorController) ConfirmDeleteByFilter(ctx context.Context, index string) Status[adapter.Deleted] {
	filter, err := c.filterConfirm.Confirm(index)
	if err != nil {
		return reject(&c.deleteByFilter, err)
	}
	success := func(d adapter.Deleted) string { return fmt.Sprintf("Deleted %d vector(s)", d.Count) }
	return run(ctx, &c.deleteByFilter, c.notify, success, func(ctx context.Context) adapter.Result[adapter.Deleted] {
		return c.src.Adapter().DeleteVectorsByFilter(ctx, index, filter)
	})
}

// VectorsState is the serializable state of the vector pages.
type VectorsState struct {
	Index          Status[*vectorstore.IndexInfo] `json:"index"`
	Insert         Status[Inserted]               `json:"insert"`
	Get            Status[*vectorstore.Vector]    `json:"get"`
	Delete         Status[adapter.Empty]          `json:"delete"`
	DeleteByFilter Status[adapter.Deleted]        `json:"delete_by_filter"`
	FilterConfirm  *Confirmation[json.RawMessage] `json:"filter_confirm"`
}

// State snapshots every concern.
func (c *VectorController) State() VectorsState {
	return VectorsState{
		Index:          c.meta.Status(),
		Insert:         c.insert.get(),
		Get:            c.get.get(),
		Delete:         c.deleteOne.get(),
		DeleteByFilter: c.deleteByFilter.get(),
		FilterConfirm:  &c.filterConfirm,
	}
}
