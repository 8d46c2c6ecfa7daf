package transform

import (
	"context"
	"strconv"
	"testing"

	"migrator/pkg/records"
)

func TestApplyBatch_PreservesOrder(t *testing.T) {
	t.Parallel()

	batch := make([]records.Record, 100)
	for i := range batch {
		batch[i] = records.Record{"id": i}
	}
	fn := func(r records.Record) (records.Record, error) {
		out := r.Clone()
		out["tag"] = strconv.Itoa(r["id"].(int))
		return out, nil
	}

	out, failures, err := ApplyBatch(context.Background(), fn, batch, 8)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("failures = %d, want 0", len(failures))
	}
	if len(out) != len(batch) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(batch))
	}
	for i, r := range out {
		if r["id"] != i {
			t.Fatalf("out[%d] has id %v, order not preserved", i, r["id"])
		}
	}
}

func TestApplyBatch_RowFailuresDoNotAbort(t *testing.T) {
	t.Parallel()

	batch := []records.Record{
		{"id": 0},
		{"id": 1}, // fails
		{"id": 2},
		{"id": 3}, // fails
		{"id": 4},
	}
	fn := func(r records.Record) (records.Record, error) {
		if r["id"].(int)%2 == 1 {
			return nil, Errorf("id", "odd row %d", r["id"])
		}
		return r, nil
	}

	out, failures, err := ApplyBatch(context.Background(), fn, batch, 2)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	for i, want := range []int{0, 2, 4} {
		if out[i]["id"] != want {
			t.Errorf("out[%d] = %v, want id %d", i, out[i], want)
		}
	}
	if len(failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(failures))
	}
	// Failures are sorted by batch index and retain the source row.
	if failures[0].Index != 1 || failures[1].Index != 3 {
		t.Errorf("failure indexes = %d, %d, want 1, 3", failures[0].Index, failures[1].Index)
	}
	if failures[0].Row["id"] != 1 {
		t.Errorf("failure row = %v, want source row 1", failures[0].Row)
	}
	var te *Error
	if !asTransformError(failures[0].Err, &te) || te.Field != "id" {
		t.Errorf("failure err = %v, want *Error on field id", failures[0].Err)
	}
}

func TestApplyBatch_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := []records.Record{{"id": 1}}
	_, _, err := ApplyBatch(ctx, Identity(nil), batch, 1)
	if err == nil {
		t.Fatal("ApplyBatch on canceled context returned nil error")
	}
}

func TestApplyBatch_EmptyBatch(t *testing.T) {
	t.Parallel()

	out, failures, err := ApplyBatch(context.Background(), Identity(nil), nil, 4)
	if err != nil || out != nil || failures != nil {
		t.Fatalf("empty batch = (%v, %v, %v), want all nil", out, failures, err)
	}
}

func asTransformError(err error, target **Error) bool {
	te, ok := err.(*Error)
	if ok {
		*target = te
	}
	return ok
}

func BenchmarkApplyBatch(b *testing.B) {
	batch := make([]records.Record, 1000)
	for i := range batch {
		batch[i] = records.Record{"id": i, "amount": float64(i) + 0.123456789}
	}
	fn := Identity(map[string]int{"amount": 8})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := ApplyBatch(context.Background(), fn, batch, 8); err != nil {
			b.Fatal(err)
		}
	}
}
