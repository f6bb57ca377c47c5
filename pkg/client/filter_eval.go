package client

import (
	"strings"

	"github.com/benchvault/benchvault/internal/models"
)

// matchesFilter interprets a filter tree over a decoded JSON document.
// The filesystem backend has no query engine, so the same tree the server
// pushes into Mongo is evaluated here in memory. A nil filter matches.
func matchesFilter(doc map[string]any, f *models.Filter) bool {
	if f == nil {
		return true
	}
	switch f.Type {
	case models.FilterAND:
		for i := range f.Filters {
			if !matchesFilter(doc, &f.Filters[i]) {
				return false
			}
		}
		return true
	case models.FilterOR:
		for i := range f.Filters {
			if matchesFilter(doc, &f.Filters[i]) {
				return true
			}
		}
		return false
	case models.FilterEQ:
		value, ok := lookupPath(doc, f.Key)
		return ok && equal(value, f.Value)
	case models.FilterNE:
		value, ok := lookupPath(doc, f.Key)
		return !ok || !equal(value, f.Value)
	case models.FilterGEQ, models.FilterLEQ, models.FilterGT, models.FilterLT:
		value, ok := lookupPath(doc, f.Key)
		if !ok {
			return false
		}
		cmp, ok := compare(value, f.Value)
		if !ok {
			return false
		}
		switch f.Type {
		case models.FilterGEQ:
			return cmp >= 0
		case models.FilterLEQ:
			return cmp <= 0
		case models.FilterGT:
			return cmp > 0
		default:
			return cmp < 0
		}
	case models.FilterIN:
		value, ok := lookupPath(doc, f.Key)
		if !ok {
			return false
		}
		list, ok := f.Value.([]any)
		if !ok {
			return false
		}
		for _, candidate := range list {
			if equal(value, candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// lookupPath descends a dotted key path through nested objects.
func lookupPath(doc map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = doc
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// equal compares two JSON scalars, with numeric coercion so 1 == 1.0.
func equal(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}

// compare orders two values: numbers numerically, strings
// lexicographically. Mixed or unordered types report no ordering.
func compare(a, b any) (int, bool) {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}
