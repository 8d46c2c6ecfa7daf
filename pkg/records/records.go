// Package records defines the row representation shared by every stage of the
// migration pipeline. A Record is a schemaless field map so that readers,
// transforms, and writers can pass rows around without per-table struct types.
package records

import "fmt"

// Record is one row keyed by column name. Values hold whatever the driver
// scanned (string, int64, float64, bool, time.Time, []byte, nil).
type Record map[string]any

// Clone returns a shallow copy of r. Transforms that add or remove fields
// must clone first so the source row stays untouched.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether the field exists, even when its value is nil.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// String returns the field as a string. Missing, nil, or non-string values
// return ("", false).
func (r Record) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns the field as a bool. Integer 0/1 values (common for legacy
// boolean columns) are accepted as well.
func (r Record) Bool(field string) (bool, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case int64:
		return t != 0, true
	case int:
		return t != 0, true
	}
	return false, false
}

// Float returns the field as a float64, widening the integer types the SQL
// drivers commonly produce.
func (r Record) Float(field string) (float64, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}

// Values projects the record onto the given column order, returning a
// positional slice suitable for a driver insert. Missing fields become nil.
func (r Record) Values(columns []string) []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = r[c]
	}
	return out
}

// Key formats the value of the named field for error reporting. Missing
// fields format as "<none>" so ledger entries stay greppable.
func (r Record) Key(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return "<none>"
	}
	return fmt.Sprint(v)
}
