package records

import (
	"reflect"
	"testing"
)

func TestClone(t *testing.T) {
	t.Parallel()

	r := Record{"id": 1, "name": "a"}
	c := r.Clone()
	c["name"] = "b"
	c["extra"] = true

	if r["name"] != "a" || r.Has("extra") {
		t.Errorf("clone mutated the original: %v", r)
	}
}

func TestAccessors(t *testing.T) {
	t.Parallel()

	r := Record{
		"s":       "hello",
		"b":       true,
		"b_int":   int64(1),
		"b_zero":  0,
		"f":       1.5,
		"f32":     float32(2.5),
		"i":       int64(7),
		"nil_val": nil,
	}

	if s, ok := r.String("s"); !ok || s != "hello" {
		t.Errorf("String(s) = %q, %t", s, ok)
	}
	if _, ok := r.String("b"); ok {
		t.Error("String on non-string must report false")
	}
	if _, ok := r.String("nil_val"); ok {
		t.Error("String on nil must report false")
	}
	if _, ok := r.String("missing"); ok {
		t.Error("String on missing must report false")
	}

	if v, ok := r.Bool("b"); !ok || !v {
		t.Errorf("Bool(b) = %t, %t", v, ok)
	}
	if v, ok := r.Bool("b_int"); !ok || !v {
		t.Errorf("Bool(b_int) = %t, %t, want legacy int64 1 as true", v, ok)
	}
	if v, ok := r.Bool("b_zero"); !ok || v {
		t.Errorf("Bool(b_zero) = %t, %t, want int 0 as false", v, ok)
	}
	if _, ok := r.Bool("s"); ok {
		t.Error("Bool on string must report false")
	}

	if v, ok := r.Float("f"); !ok || v != 1.5 {
		t.Errorf("Float(f) = %v, %t", v, ok)
	}
	if v, ok := r.Float("f32"); !ok || v != 2.5 {
		t.Errorf("Float(f32) = %v, %t", v, ok)
	}
	if v, ok := r.Float("i"); !ok || v != 7 {
		t.Errorf("Float(i) = %v, %t, want widened int64", v, ok)
	}
	if _, ok := r.Float("s"); ok {
		t.Error("Float on string must report false")
	}
}

func TestValues(t *testing.T) {
	t.Parallel()

	r := Record{"id": 1, "email": "a@example.com"}
	got := r.Values([]string{"id", "missing", "email"})
	want := []any{1, nil, "a@example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Values = %v, want %v", got, want)
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	r := Record{"id": int64(42), "nil_id": nil}
	if got := r.Key("id"); got != "42" {
		t.Errorf("Key(id) = %q", got)
	}
	if got := r.Key("nil_id"); got != "<none>" {
		t.Errorf("Key(nil_id) = %q", got)
	}
	if got := r.Key("missing"); got != "<none>" {
		t.Errorf("Key(missing) = %q", got)
	}
}
