// Package forms converts raw console form input into validated request payloads.
// Every parser is pure: it returns a payload or a *ValidationError, and nothing
// here touches the network.
package forms

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// Validation messages shown verbatim to the user.
const (
	MsgVectorInvalid        = "Vector must be a non-empty array of numbers"
	MsgSparseTogether       = "Both sparse indices and sparse values must be provided together"
	MsgSparseLength         = "Sparse indices and values must have the same length"
	MsgSparseIndexInvalid   = "Sparse indices must be non-negative integers"
	MsgKInvalid             = "k must be a positive integer"
	MsgFilterInvalid        = "Filter must be valid JSON"
	MsgAtLeastOneVector     = "At least one valid vector is required"
	MsgIndexNameRequired    = "Index name is required"
	MsgDimensionInvalid     = "Dimension must be a positive number"
	MsgSparseDimInvalid     = "Sparse dimension must be a positive number for hybrid indexes"
	MsgMRange               = "M must be between 4 and 64"
	MsgEfConstructionRange  = "ef_construction must be between 64 and 512"
	MsgSpaceTypeInvalid     = "Space type must be one of cosine, l2 or ip"
	MsgBackupNameRequired   = "Backup name is required"
	MsgTargetIndexRequired  = "Target index name is required"
	MsgUploadExtension      = "Backup file must be a .tar.gz archive"
	MsgUploadFileRequired   = "Select a backup file to upload"
	MsgVectorIDRequired     = "Vector ID is required"
	MsgFilterRequired       = "Filter is required"
)

// ValidationError is a client-side validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// parseNumberList wraps comma-separated text in brackets and decodes it as a JSON array.
func parseNumberList(text string) ([]float64, bool) {
	var nums []float64
	if err := json.Unmarshal([]byte("["+text+"]"), &nums); err != nil {
		return nil, false
	}
	if len(nums) == 0 {
		return nil, false
	}
	return nums, true
}

// ParseDenseVector parses "0.1, 0.2, 0.3" into a dense vector.
func ParseDenseVector(text string) ([]float32, error) {
	nums, ok := parseNumberList(text)
	if !ok {
		return nil, invalid(MsgVectorInvalid)
	}
	out := make([]float32, len(nums))
	for i, n := range nums {
		f, ok := toFloat32(n)
		if !ok {
			return nil, invalid(MsgVectorInvalid)
		}
		out[i] = f
	}
	return out, nil
}

// toFloat32 narrows n, rejecting values outside the float32 range.
func toFloat32(n float64) (float32, bool) {
	f := float32(n)
	if math.IsInf(float64(f), 0) {
		return 0, false
	}
	return f, true
}

// ParseSparseVector parses sparse indices and values supplied as separate
// comma-separated fields. Both blank yields nil with no error.
func ParseSparseVector(indicesText, valuesText string) (*vectorstore.SparseVector, error) {
	hasIndices := strings.TrimSpace(indicesText) != ""
	hasValues := strings.TrimSpace(valuesText) != ""

	switch {
	case !hasIndices && !hasValues:
		return nil, nil
	case hasIndices != hasValues:
		return nil, invalid(MsgSparseTogether)
	}

	rawIndices, ok := parseNumberList(indicesText)
	if !ok {
		return nil, invalid(MsgVectorInvalid)
	}
	values, ok := parseNumberList(valuesText)
	if !ok {
		return nil, invalid(MsgVectorInvalid)
	}
	if len(rawIndices) != len(values) {
		return nil, invalid(MsgSparseLength)
	}

	sv := &vectorstore.SparseVector{
		Indices: make([]uint32, len(rawIndices)),
		Values:  make([]float32, len(values)),
	}
	for i, idx := range rawIndices {
		if idx < 0 || idx != math.Trunc(idx) || idx > math.MaxUint32 {
			return nil, invalid(MsgSparseIndexInvalid)
		}
		sv.Indices[i] = uint32(idx)
		v, ok := toFloat32(values[i])
		if !ok {
			return nil, invalid(MsgVectorInvalid)
		}
		sv.Values[i] = v
	}
	return sv, nil
}

// ParseK parses the result count; it must be a strictly positive integer.
func ParseK(text string) (int, error) {
	k, ok := parsePositiveInt(text)
	if !ok {
		return 0, invalid(MsgKInvalid)
	}
	return k, nil
}

// ParseEf parses the optional search depth. Blank, non-numeric and
// non-positive values are dropped rather than rejected.
func ParseEf(text string) (int, bool) {
	return parsePositiveInt(text)
}

// ParseFilter validates an optional JSON filter and passes it through untouched.
func ParseFilter(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if !json.Valid([]byte(text)) {
		return nil, invalid(MsgFilterInvalid)
	}
	return json.RawMessage(text), nil
}

// parseObject parses optional free-text JSON into a key-value mapping.
func parseObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, true
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func parseInt(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false
	}
	return n, true
}

// parsePositiveInt parses a strictly positive integer.
func parsePositiveInt(text string) (int, bool) {
	n, ok := parseInt(text)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}
