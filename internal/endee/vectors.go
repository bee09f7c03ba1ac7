package endee

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// wireVector is a vector record as the server encodes it.
type wireVector struct {
	ID            string         `json:"id"`
	Vector        []float32      `json:"vector,omitempty"`
	SparseIndices []uint32       `json:"sparse_indices,omitempty"`
	SparseValues  []float32      `json:"sparse_values,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	Filter        map[string]any `json:"filter,omitempty"`
	Norm          float32        `json:"norm,omitempty"`
}

func toWireVector(v vectorstore.Vector) wireVector {
	w := wireVector{
		ID:     v.ID,
		Vector: v.Dense,
		Meta:   v.Meta,
		Filter: v.Filter,
	}
	if v.Sparse != nil {
		w.SparseIndices = v.Sparse.Indices
		w.SparseValues = v.Sparse.Values
	}
	return w
}

func (w wireVector) toVector() vectorstore.Vector {
	v := vectorstore.Vector{
		ID:     w.ID,
		Dense:  w.Vector,
		Meta:   w.Meta,
		Filter: w.Filter,
		Norm:   w.Norm,
	}
	if len(w.SparseIndices) > 0 {
		v.Sparse = &vectorstore.SparseVector{Indices: w.SparseIndices, Values: w.SparseValues}
	}
	return v
}

type searchRequest struct {
	Vector         []float32       `json:"vector"`
	K              int             `json:"k"`
	Ef             int             `json:"ef,omitempty"`
	Filter         json.RawMessage `json:"filter,omitempty"`
	IncludeVectors bool            `json:"include_vectors"`
	SparseIndices  []uint32        `json:"sparse_indices,omitempty"`
	SparseValues   []float32       `json:"sparse_values,omitempty"`
}

type wireResult struct {
	ID         string         `json:"id"`
	Similarity float32        `json:"similarity"`
	Distance   float32        `json:"distance"`
	Meta       map[string]any `json:"meta,omitempty"`
	Filter     map[string]any `json:"filter,omitempty"`
	Vector     []float32      `json:"vector,omitempty"`
}

// Upsert inserts or replaces vectors in a single request.
func (c *Client) Upsert(ctx context.Context, index string, vectors []vectorstore.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	batch := make([]wireVector, len(vectors))
	for i, v := range vectors {
		batch[i] = toWireVector(v)
	}

	if err := c.doJSON(ctx, http.MethodPost, "/index/"+escape(index)+"/vector/insert", batch, nil); err != nil {
		return fmt.Errorf("failed to upsert %d vectors into %s: %w", len(vectors), index, err)
	}
	return nil
}

// GetVector fetches a single vector by id.
func (c *Client) GetVector(ctx context.Context, index, id string) (*vectorstore.Vector, error) {
	var wire wireVector
	req := map[string]string{"id": id}
	if err := c.doJSON(ctx, http.MethodPost, "/index/"+escape(index)+"/vector/get", req, &wire); err != nil {
		return nil, fmt.Errorf("failed to get vector %s: %w", id, err)
	}
	if wire.ID == "" {
		wire.ID = id
	}
	v := wire.toVector()
	return &v, nil
}

// DeleteVector deletes a single vector by id.
func (c *Client) DeleteVector(ctx context.Context, index, id string) error {
	path := "/index/" + escape(index) + "/vector/" + escape(id) + "/delete"
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete vector %s: %w", id, err)
	}
	return nil
}

// DeleteWithFilter deletes every vector matching filter and returns how many were removed.
func (c *Client) DeleteWithFilter(ctx context.Context, index string, filter json.RawMessage) (int, error) {
	var raw json.RawMessage
	req := map[string]json.RawMessage{"filter": filter}
	if err := c.doJSON(ctx, http.MethodDelete, "/index/"+escape(index)+"/vectors/delete", req, &raw); err != nil {
		return 0, fmt.Errorf("failed to delete vectors by filter: %w", err)
	}
	return decodeDeletedCount(raw), nil
}

// decodeDeletedCount accepts a bare number or an object carrying the count.
func decodeDeletedCount(raw json.RawMessage) int {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return 0
	}
	for _, key := range []string{"deleted", "deleted_count", "count"} {
		if v, ok := body[key]; ok {
			if err := json.Unmarshal(v, &n); err == nil {
				return n
			}
		}
	}
	return 0
}

// Query runs a similarity search.
func (c *Client) Query(ctx context.Context, index string, q vectorstore.Query) ([]vectorstore.SearchResult, error) {
	req := searchRequest{
		Vector:         q.Vector,
		K:              q.TopK,
		Ef:             q.Ef,
		Filter:         q.Filter,
		IncludeVectors: q.IncludeVectors,
	}
	if q.Sparse != nil {
		req.SparseIndices = q.Sparse.Indices
		req.SparseValues = q.Sparse.Values
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/index/"+escape(index)+"/search", req, &raw); err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", index, err)
	}

	var wire []wireResult
	if err := decodeList(raw, "results", &wire); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	results := make([]vectorstore.SearchResult, len(wire))
	for i, w := range wire {
		results[i] = vectorstore.SearchResult(w)
	}
	return results, nil
}
