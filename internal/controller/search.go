package controller

import (
	"context"

	"github.com/EndeeLabs/endee-web-ui/internal/adapter"
	"github.com/EndeeLabs/endee-web-ui/internal/forms"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// SearchController drives the search page. Index metadata loading and search
// submission are separate concerns.
type SearchController struct {
	src    AdapterSource
	notify Notifier
	meta   *IndexMeta

	results concern[[]vectorstore.SearchResult]
}

// Submit parses the form and fires the search once. Each success replaces the
// previous results.
func (c *SearchController) Submit(ctx context.Context, index string, form forms.SearchForm) Status[[]vectorstore.SearchResult] {
	q, err := form.Parse(c.meta.Current(index))
	if err != nil {
		return reject(&c.results, err)
	}

	return run(ctx, &c.results, c.notify, nil, func(ctx context.Context) adapter.Result[[]vectorstore.SearchResult] {
		res := c.src.Adapter().Search(ctx, index, q)
		if res.Success && res.Data == nil {
			res.Data = []vectorstore.SearchResult{}
		}
		return res
	})
}

// Results returns the current search status.
func (c *SearchController) Results() Status[[]vectorstore.SearchResult] {
	return c.results.get()
}

// Reset returns the search to idle.
func (c *SearchController) Reset() {
	c.results.set(Idle[[]vectorstore.SearchResult]())
}

// SearchState is the serializable state of the search page.
type SearchState struct {
	Index   Status[*vectorstore.IndexInfo]     `json:"index"`
	Results Status[[]vectorstore.SearchResult] `json:"results"`
}

// State snapshots both concerns.
func (c *SearchController) State() SearchState {
	return SearchState{Index: c.meta.Status(), Results: c.results.get()}
}
