// Package transform implements the per-table transform dispatch for the
// migration engine.
//
// A transform is a pure function mapping one source-schema row to one
// target-schema row. Tables are bound to transforms through a registry keyed
// by table identifier; tables with no registered entry fall through to the
// identity transform. Registration happens once at startup, so adding a new
// table's transform is a one-line change at the wiring site rather than a
// conditional scattered across the engine.
package transform

import (
	"fmt"

	"migrator/pkg/records"
)

// Func is a pure row transform. It must not mutate its input, must not touch
// any store, and may only read parameters captured at registry-build time
// (e.g. a fixed "now" timestamp). A returned error is row-scoped: the engine
// logs the row to the ledger and continues.
type Func func(records.Record) (records.Record, error)

// Error is a row-scoped transform failure carrying the offending field.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("transform: field %q: %s", e.Field, e.Reason)
}

// Errorf builds an Error for the given field.
func Errorf(field, format string, a ...any) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, a...)}
}

// Registry maps table identifiers to transforms. The zero value is not
// usable; construct with NewRegistry.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register binds a transform to a table, replacing any previous binding.
// A nil fn removes the binding.
func (r *Registry) Register(table string, fn Func) {
	if fn == nil {
		delete(r.funcs, table)
		return
	}
	r.funcs[table] = fn
}

// Lookup returns the transform bound to the table, or the plain identity
// transform when none is registered.
func (r *Registry) Lookup(table string) Func {
	if fn, ok := r.funcs[table]; ok {
		return fn
	}
	return Identity(nil)
}

// Registered reports whether the table has an explicit binding.
func (r *Registry) Registered(table string) bool {
	_, ok := r.funcs[table]
	return ok
}

// Identity returns the field-for-field copy transform. Columns present in
// scales (target column -> decimal scale) are quantized to fixed point so the
// floating-point source representation lands exactly on the target scale; all
// other fields pass through untouched, excess and missing fields included.
//
// The result is idempotent: a value already on the declared scale quantizes
// to itself, so replaying an already-transformed row is a no-op.
func Identity(scales map[string]int) Func {
	return func(r records.Record) (records.Record, error) {
		if len(scales) == 0 {
			return r, nil
		}
		out := r
		cloned := false
		for field, scale := range scales {
			v, ok := r.Float(field)
			if !ok {
				continue
			}
			q := Quantize(v, scale)
			if q == v {
				continue
			}
			if !cloned {
				out = r.Clone()
				cloned = true
			}
			out[field] = q
		}
		return out, nil
	}
}
