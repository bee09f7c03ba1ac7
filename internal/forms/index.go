package forms

import (
	"strings"

	"github.com/EndeeLabs/endee-web-ui/internal/adapter"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// HNSW parameter bounds enforced by the create form.
const (
	MinM              = 4
	MaxM              = 64
	MinEfConstruction = 64
	MaxEfConstruction = 512
)

// CreateIndexForm is the raw create-index form.
type CreateIndexForm struct {
	Name            string `json:"name"`
	Dimension       string `json:"dimension"`
	SpaceType       string `json:"space_type"`
	Precision       string `json:"precision"`
	Hybrid          bool   `json:"hybrid"`
	SparseDimension string `json:"sparse_dimension"`
	ShowAdvanced    bool   `json:"show_advanced"`
	M               string `json:"m"`
	EfConstruction  string `json:"ef_construction"`
}

var spaceTypeAliases = map[string]vectorstore.SpaceType{
	"":              vectorstore.SpaceCosine,
	"cosine":        vectorstore.SpaceCosine,
	"l2":            vectorstore.SpaceL2,
	"euclidean":     vectorstore.SpaceL2,
	"ip":            vectorstore.SpaceIP,
	"inner-product": vectorstore.SpaceIP,
	"inner_product": vectorstore.SpaceIP,
}

// ParseSpaceType accepts backend codes and their UI spellings.
func ParseSpaceType(text string) (vectorstore.SpaceType, error) {
	st, ok := spaceTypeAliases[strings.ToLower(strings.TrimSpace(text))]
	if !ok {
		return "", invalid(MsgSpaceTypeInvalid)
	}
	return st, nil
}

// Parse validates the form. Out-of-range HNSW parameters are rejected, never clamped.
func (f CreateIndexForm) Parse() (vectorstore.IndexSpec, error) {
	spec := vectorstore.IndexSpec{
		Name:           strings.TrimSpace(f.Name),
		M:              vectorstore.DefaultM,
		EfConstruction: vectorstore.DefaultEfConstruction,
	}
	if spec.Name == "" {
		return spec, invalid(MsgIndexNameRequired)
	}

	dim, ok := parsePositiveInt(f.Dimension)
	if !ok {
		return spec, invalid(MsgDimensionInvalid)
	}
	spec.Dimension = dim

	if f.Hybrid {
		sparseDim, ok := parsePositiveInt(f.SparseDimension)
		if !ok {
			return spec, invalid(MsgSparseDimInvalid)
		}
		spec.SparseDimension = sparseDim
	}

	if f.ShowAdvanced {
		m, ok := parseIntInRange(f.M, MinM, MaxM)
		if !ok {
			return spec, invalid(MsgMRange)
		}
		efc, ok := parseIntInRange(f.EfConstruction, MinEfConstruction, MaxEfConstruction)
		if !ok {
			return spec, invalid(MsgEfConstructionRange)
		}
		spec.M = m
		spec.EfConstruction = efc
	}

	st, err := ParseSpaceType(f.SpaceType)
	if err != nil {
		return spec, err
	}
	spec.SpaceType = st
	spec.Precision = adapter.MapPrecision(f.Precision)

	return spec, nil
}

func parseIntInRange(text string, lo, hi int) (int, bool) {
	n, ok := parseInt(text)
	if !ok || n < lo || n > hi {
		return 0, false
	}
	return n, true
}
