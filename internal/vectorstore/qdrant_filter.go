package vectorstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/qdrant/go-client/qdrant"
)

// TranslateFilter converts a console filter into a Qdrant filter on the
// point's filter payload. The filter is either an object of field conditions
// or an array of such objects, all of which must hold:
//
//	{"category": {"$eq": "news"}, "year": {"$range": [2020, 2024]}}
//	[{"tag": {"$in": ["a", "b"]}}, {"draft": false}]
//
// A bare value is shorthand for $eq. Blank input yields a nil filter.
func TranslateFilter(raw json.RawMessage) (*qdrant.Filter, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	var clauses []map[string]any
	switch d := doc.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		clauses = append(clauses, d)
	case []any:
		for i, item := range d {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid filter: element %d is not an object", i)
			}
			clauses = append(clauses, m)
		}
	default:
		return nil, fmt.Errorf("invalid filter: expected an object or an array")
	}

	var must []*qdrant.Condition
	for _, clause := range clauses {
		fields := make([]string, 0, len(clause))
		for field := range clause {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			conds, err := fieldConditions(payloadFilter+"."+field, clause[field])
			if err != nil {
				return nil, fmt.Errorf("invalid filter on %q: %w", field, err)
			}
			must = append(must, conds...)
		}
	}
	if len(must) == 0 {
		return nil, nil
	}
	return &qdrant.Filter{Must: must}, nil
}

func fieldConditions(key string, spec any) ([]*qdrant.Condition, error) {
	ops, ok := spec.(map[string]any)
	if !ok {
		c, err := eqCondition(key, spec)
		if err != nil {
			return nil, err
		}
		return []*qdrant.Condition{c}, nil
	}

	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)

	conds := make([]*qdrant.Condition, 0, len(ops))
	for _, op := range names {
		var (
			c   *qdrant.Condition
			err error
		)
		switch op {
		case "$eq":
			c, err = eqCondition(key, ops[op])
		case "$in":
			c, err = inCondition(key, ops[op])
		case "$range":
			c, err = rangeCondition(key, ops[op])
		default:
			err = fmt.Errorf("unsupported operator %s", op)
		}
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func eqCondition(key string, v any) (*qdrant.Condition, error) {
	switch val := v.(type) {
	case string:
		return qdrant.NewMatchKeyword(key, val), nil
	case bool:
		return qdrant.NewMatchBool(key, val), nil
	case json.Number:
		if i, ok := integer(val); ok {
			return qdrant.NewMatchInt(key, i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, err
		}
		return qdrant.NewRange(key, &qdrant.Range{Gte: &f, Lte: &f}), nil
	}
	return nil, fmt.Errorf("$eq needs a string, number or boolean")
}

func inCondition(key string, v any) (*qdrant.Condition, error) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("$in needs a non-empty array")
	}

	switch items[0].(type) {
	case string:
		keywords := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("$in values must share one type")
			}
			keywords[i] = s
		}
		return qdrant.NewMatchKeywords(key, keywords...), nil
	case json.Number:
		ints := make([]int64, len(items))
		for i, item := range items {
			n, ok := item.(json.Number)
			if !ok {
				return nil, fmt.Errorf("$in values must share one type")
			}
			if ints[i], ok = integer(n); !ok {
				return nil, fmt.Errorf("$in numbers must be integers")
			}
		}
		return qdrant.NewMatchInts(key, ints...), nil
	}
	return nil, fmt.Errorf("$in needs strings or integers")
}

// rangeCondition takes [min, max], both bounds inclusive.
func rangeCondition(key string, v any) (*qdrant.Condition, error) {
	bounds, ok := v.([]any)
	if !ok || len(bounds) != 2 {
		return nil, fmt.Errorf("$range needs [min, max]")
	}
	lo, err := number(bounds[0])
	if err != nil {
		return nil, err
	}
	hi, err := number(bounds[1])
	if err != nil {
		return nil, err
	}
	if lo > hi {
		return nil, fmt.Errorf("$range min %v exceeds max %v", lo, hi)
	}
	return qdrant.NewRange(key, &qdrant.Range{Gte: &lo, Lte: &hi}), nil
}

func number(v any) (float64, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("$range bounds must be numbers")
	}
	return n.Float64()
}

func integer(n json.Number) (int64, bool) {
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
