package models

import (
	"encoding/json"
	"fmt"
)

// FilterType discriminates the nodes of a filter tree.
type FilterType string

const (
	FilterEQ  FilterType = "EQ"
	FilterGEQ FilterType = "GEQ"
	FilterLEQ FilterType = "LEQ"
	FilterGT  FilterType = "GT"
	FilterLT  FilterType = "LT"
	FilterNE  FilterType = "NE"
	FilterIN  FilterType = "IN"
	FilterAND FilterType = "AND"
	FilterOR  FilterType = "OR"
)

// Filter is one node of a query tree. Leaves compare a dotted document
// path against a JSON scalar (or a scalar list for IN); AND/OR branches
// combine sub-filters. A nil filter matches everything.
//
// Wire form:
//
//	{"type": "EQ", "key": "metadata.name", "value": "cartpole"}
//	{"type": "AND", "filters": [ ... ]}
type Filter struct {
	Type    FilterType `json:"type"`
	Key     string     `json:"key,omitempty"`
	Value   any        `json:"value,omitempty"`
	Filters []Filter   `json:"filters,omitempty"`
}

// EQ matches documents whose value at key equals value.
func EQ(key string, value any) Filter {
	return Filter{Type: FilterEQ, Key: key, Value: value}
}

// GEQ matches documents whose value at key is >= value.
func GEQ(key string, value any) Filter {
	return Filter{Type: FilterGEQ, Key: key, Value: value}
}

// LEQ matches documents whose value at key is <= value.
func LEQ(key string, value any) Filter {
	return Filter{Type: FilterLEQ, Key: key, Value: value}
}

// GT matches documents whose value at key is > value.
func GT(key string, value any) Filter {
	return Filter{Type: FilterGT, Key: key, Value: value}
}

// LT matches documents whose value at key is < value.
func LT(key string, value any) Filter {
	return Filter{Type: FilterLT, Key: key, Value: value}
}

// NE matches documents whose value at key differs from value.
func NE(key string, value any) Filter {
	return Filter{Type: FilterNE, Key: key, Value: value}
}

// IN matches documents whose value at key is one of values.
func IN(key string, values []any) Filter {
	return Filter{Type: FilterIN, Key: key, Value: values}
}

// AND matches documents satisfying every sub-filter.
func AND(filters ...Filter) Filter {
	return Filter{Type: FilterAND, Filters: filters}
}

// OR matches documents satisfying at least one sub-filter.
func OR(filters ...Filter) Filter {
	return Filter{Type: FilterOR, Filters: filters}
}

// Validate checks the node shape: leaves need a key, branches need
// sub-filters, and the type must be one of the closed set.
func (f *Filter) Validate() error {
	switch f.Type {
	case FilterAND, FilterOR:
		if len(f.Filters) == 0 {
			return fmt.Errorf("%s filter requires at least one sub-filter", f.Type)
		}
		for i := range f.Filters {
			if err := f.Filters[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	case FilterEQ, FilterGEQ, FilterLEQ, FilterGT, FilterLT, FilterNE, FilterIN:
		if f.Key == "" {
			return fmt.Errorf("%s filter requires a key", f.Type)
		}
		return nil
	case "":
		return fmt.Errorf("filter type missing")
	default:
		return fmt.Errorf("unknown filter type %q", f.Type)
	}
}

// ParseFilter decodes an optional filter body. Empty input, JSON null and
// the empty object all mean "no filter".
func ParseFilter(data []byte) (*Filter, error) {
	trimmed := string(data)
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return nil, nil
	}
	var f Filter
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
