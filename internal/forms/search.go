package forms

import (
	"fmt"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// SearchForm is the raw search form.
type SearchForm struct {
	Vector         string `json:"vector"`
	SparseIndices  string `json:"sparse_indices"`
	SparseValues   string `json:"sparse_values"`
	K              string `json:"k"`
	Ef             string `json:"ef"`
	Filter         string `json:"filter"`
	IncludeVectors bool   `json:"include_vectors"`
}

// Parse runs every search parser in order and stops at the first failure.
// index may be nil when the descriptor has not loaded; dimension and sparse
// checks then rely on the backend.
func (f SearchForm) Parse(index *vectorstore.IndexInfo) (vectorstore.Query, error) {
	var q vectorstore.Query

	dense, err := ParseDenseVector(f.Vector)
	if err != nil {
		return q, err
	}
	if index != nil && index.Dimension > 0 && len(dense) != index.Dimension {
		return q, invalid(fmt.Sprintf("Vector dimension mismatch: expected %d, got %d", index.Dimension, len(dense)))
	}
	q.Vector = dense

	if index == nil || index.Hybrid() {
		sparse, err := ParseSparseVector(f.SparseIndices, f.SparseValues)
		if err != nil {
			return q, err
		}
		if sparse != nil && index != nil {
			if err := checkSparseRange(sparse, index.SparseDimension); err != nil {
				return q, err
			}
		}
		q.Sparse = sparse
	}

	k, err := ParseK(f.K)
	if err != nil {
		return q, err
	}
	q.TopK = k

	if ef, ok := ParseEf(f.Ef); ok {
		q.Ef = ef
	}

	filter, err := ParseFilter(f.Filter)
	if err != nil {
		return q, err
	}
	q.Filter = filter
	q.IncludeVectors = f.IncludeVectors

	return q, nil
}

func checkSparseRange(sv *vectorstore.SparseVector, sparseDim int) error {
	for _, idx := range sv.Indices {
		if int64(idx) >= int64(sparseDim) {
			return invalid(fmt.Sprintf("Sparse index %d is out of range [0, %d)", idx, sparseDim))
		}
	}
	return nil
}
