package collection

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/go-cmp/cmp"
)

// Record is a mapping from field name to value. Every stored record carries
// a string "id" field.
type Record map[string]any

// ID returns the record's id, or "" when it has none.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// hasID reports whether the record carries a usable id. Absent, nil and ""
// all count as missing.
func (r Record) hasID() bool {
	switch v := r["id"].(type) {
	case nil:
		return false
	case string:
		return v != ""
	default:
		return true
	}
}

// Filter is one equality constraint on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Eq is shorthand for building a Filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Text is a filter value taken verbatim from a textual source such as a URL
// query string. It matches a stored value whose textual form it spells: a
// string equal to it, a number it parses to, true/false, null, or a JSON
// object or array it decodes to. A string id "42" therefore matches Text("42")
// without the caller having to guess the stored type.
type Text string

func (t Text) matches(v any) bool {
	s := string(t)
	switch v := v.(type) {
	case string:
		return v == s
	case nil:
		return s == "null"
	case bool:
		return s == strconv.FormatBool(v)
	case float64:
		f, err := strconv.ParseFloat(s, 64)
		return err == nil && f == v
	default:
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return false
		}
		return cmp.Equal(v, decoded)
	}
}

// PatchResult is returned by Update: the patch that was applied and the
// number of records it was applied to.
type PatchResult struct {
	Data  Record
	Count int
}

// normalize round-trips v through JSON so that values compare the same way
// whether they came from the caller or from storage (int vs float64, typed
// maps vs map[string]any).
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeRecord(r Record) (Record, error) {
	if r == nil {
		return Record{}, nil
	}
	v, err := normalize(map[string]any(r))
	if err != nil {
		return nil, fmt.Errorf("record is not serializable: %w", err)
	}
	m, _ := v.(map[string]any)
	return Record(m), nil
}

func normalizeFilters(filters []Filter) ([]Filter, error) {
	out := make([]Filter, len(filters))
	for i, f := range filters {
		if t, ok := f.Value.(Text); ok {
			out[i] = Filter{Field: f.Field, Value: t}
			continue
		}
		v, err := normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter on %q is not serializable: %w", f.Field, err)
		}
		out[i] = Filter{Field: f.Field, Value: v}
	}
	return out, nil
}

// copyRecord returns a deep copy of a normalized record.
func copyRecord(r Record) Record {
	c, _ := normalizeRecord(r)
	return c
}

// matches reports whether r satisfies every filter. A field absent from r
// never matches, not even a nil filter value.
func matches(r Record, filters []Filter) bool {
	for _, f := range filters {
		v, ok := r[f.Field]
		if !ok {
			return false
		}
		if t, isText := f.Value.(Text); isText {
			if !t.matches(v) {
				return false
			}
			continue
		}
		if !cmp.Equal(v, f.Value) {
			return false
		}
	}
	return true
}

// merge shallow-merges patch over base into a new record.
func merge(base, patch Record) Record {
	out := make(Record, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
