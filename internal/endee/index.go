package endee

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// wireIndex is the index descriptor as the server encodes it.
type wireIndex struct {
	Name          string   `json:"name"`
	Dimension     int      `json:"dimension"`
	Dim           int      `json:"dim"`
	SparseDim     int      `json:"sparse_dim"`
	SpaceType     string   `json:"space_type"`
	Precision     string   `json:"precision"`
	M             int      `json:"M"`
	EfCon         int      `json:"ef_con"`
	CreatedAt     flexTime `json:"created_at"`
	TotalElements int64    `json:"total_elements"`
}

func (w wireIndex) toInfo() vectorstore.IndexInfo {
	dim := w.Dimension
	if dim == 0 {
		dim = w.Dim
	}
	return vectorstore.IndexInfo{
		Name:            w.Name,
		Dimension:       dim,
		SparseDimension: w.SparseDim,
		SpaceType:       vectorstore.SpaceType(w.SpaceType),
		Precision:       vectorstore.Precision(w.Precision),
		M:               w.M,
		EfConstruction:  w.EfCon,
		CreatedAt:       w.CreatedAt.Time,
		ElementCount:    w.TotalElements,
	}
}

type createIndexRequest struct {
	IndexName string `json:"index_name"`
	Dim       int    `json:"dim"`
	SpaceType string `json:"space_type"`
	Precision string `json:"precision"`
	M         int    `json:"M"`
	EfCon     int    `json:"ef_con"`
	SparseDim int    `json:"sparse_dim,omitempty"`
}

// ListIndexes enumerates indexes via GET /api/v1/index/list.
func (c *Client) ListIndexes(ctx context.Context) ([]vectorstore.IndexInfo, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/index/list", nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}

	var wire []wireIndex
	if err := decodeList(raw, "indexes", &wire); err != nil {
		return nil, fmt.Errorf("failed to decode index list: %w", err)
	}

	indexes := make([]vectorstore.IndexInfo, 0, len(wire))
	for _, w := range wire {
		indexes = append(indexes, w.toInfo())
	}
	return indexes, nil
}

// GetIndex fetches index metadata.
func (c *Client) GetIndex(ctx context.Context, name string) (*vectorstore.IndexInfo, error) {
	var wire wireIndex
	if err := c.doJSON(ctx, http.MethodGet, "/index/"+escape(name)+"/info", nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to get index %s: %w", name, err)
	}
	if wire.Name == "" {
		wire.Name = name
	}
	info := wire.toInfo()
	return &info, nil
}

// CreateIndex creates an index with the given parameters.
func (c *Client) CreateIndex(ctx context.Context, spec vectorstore.IndexSpec) error {
	req := createIndexRequest{
		IndexName: spec.Name,
		Dim:       spec.Dimension,
		SpaceType: string(spec.SpaceType),
		Precision: string(spec.Precision),
		M:         spec.M,
		EfCon:     spec.EfConstruction,
		SparseDim: spec.SparseDimension,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/index/create", req, nil); err != nil {
		return fmt.Errorf("failed to create index %s: %w", spec.Name, err)
	}
	return nil
}

// DeleteIndex deletes an index and all of its vectors.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/index/"+escape(name)+"/delete", nil, nil); err != nil {
		return fmt.Errorf("failed to delete index %s: %w", name, err)
	}
	return nil
}
