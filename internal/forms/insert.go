package forms

import (
	"fmt"
	"strings"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// VectorRow is one row of the batch insert form.
type VectorRow struct {
	ID            string `json:"id"`
	Vector        string `json:"vector"`
	SparseIndices string `json:"sparse_indices"`
	SparseValues  string `json:"sparse_values"`
	Meta          string `json:"meta"`
	Filter        string `json:"filter"`
}

func (r VectorRow) placeholder() bool {
	return strings.TrimSpace(r.ID) == "" && strings.TrimSpace(r.Vector) == ""
}

// InsertForm is the raw batch insert form.
type InsertForm struct {
	Rows []VectorRow `json:"vectors"`
}

// Parse validates the whole batch before anything is sent. Rows with both an
// empty id and an empty vector are skipped; any other failure aborts the batch
// and names the 1-based row.
func (f InsertForm) Parse(index *vectorstore.IndexInfo) ([]vectorstore.Vector, error) {
	vectors := make([]vectorstore.Vector, 0, len(f.Rows))

	for i, row := range f.Rows {
		if row.placeholder() {
			continue
		}
		v, err := row.parse(index)
		if err != nil {
			return nil, invalid(fmt.Sprintf("Vector %d: %s", i+1, err.Error()))
		}
		vectors = append(vectors, v)
	}

	if len(vectors) == 0 {
		return nil, invalid(MsgAtLeastOneVector)
	}
	return vectors, nil
}

func (r VectorRow) parse(index *vectorstore.IndexInfo) (vectorstore.Vector, error) {
	v := vectorstore.Vector{ID: strings.TrimSpace(r.ID)}
	if v.ID == "" {
		return v, invalid(MsgVectorIDRequired)
	}

	dense, err := ParseDenseVector(r.Vector)
	if err != nil {
		return v, err
	}
	if index != nil && index.Dimension > 0 && len(dense) != index.Dimension {
		return v, invalid(fmt.Sprintf("expected %d dimensions, got %d", index.Dimension, len(dense)))
	}
	v.Dense = dense

	if index == nil || index.Hybrid() {
		sparse, err := ParseSparseVector(r.SparseIndices, r.SparseValues)
		if err != nil {
			return v, err
		}
		if sparse != nil && index != nil {
			if err := checkSparseRange(sparse, index.SparseDimension); err != nil {
				return v, err
			}
		}
		v.Sparse = sparse
	}

	meta, ok := parseObject(r.Meta)
	if !ok {
		return v, invalid("Invalid metadata JSON")
	}
	v.Meta = meta

	filter, ok := parseObject(r.Filter)
	if !ok {
		return v, invalid("Invalid filter JSON")
	}
	v.Filter = filter

	return v, nil
}
