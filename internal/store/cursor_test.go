package store

import (
	"context"
	"errors"
	"testing"

	"migrator/pkg/records"
)

// scriptedStore serves ReadBatch from an in-memory, key-ordered table and
// fails every other method loudly; the cursor only reads.
type scriptedStore struct {
	rows    []records.Record
	readErr error
	queries []ReadQuery
}

func (s *scriptedStore) ReadBatch(ctx context.Context, q ReadQuery) ([]records.Record, error) {
	s.queries = append(s.queries, q)
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []records.Record
	for _, r := range s.rows {
		if q.AfterKey != nil && r[q.Key].(int) <= q.AfterKey.(int) {
			continue
		}
		out = append(out, r)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *scriptedStore) Count(ctx context.Context, table string) (int64, error) {
	return int64(len(s.rows)), nil
}
func (s *scriptedStore) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (BatchResult, error) {
	return BatchResult{}, errors.New("not a writer")
}
func (s *scriptedStore) Sum(ctx context.Context, table, column string) (float64, error) {
	return 0, errors.New("unused")
}
func (s *scriptedStore) DuplicateCount(ctx context.Context, table, column string) (int64, error) {
	return 0, errors.New("unused")
}
func (s *scriptedStore) OrphanCount(ctx context.Context, table, column, refTable, refColumn string) (int64, error) {
	return 0, errors.New("unused")
}
func (s *scriptedStore) Close() {}

func rowsWithIDs(n int) []records.Record {
	out := make([]records.Record, n)
	for i := range out {
		out[i] = records.Record{"id": i + 1}
	}
	return out
}

func testQuery(limit int) ReadQuery {
	return ReadQuery{
		Table:   "users",
		Columns: []ColumnMap{{Source: "id", Target: "id"}},
		Key:     "id",
		Limit:   limit,
	}
}

func TestCursor_PagesThroughTable(t *testing.T) {
	t.Parallel()

	src := &scriptedStore{rows: rowsWithIDs(25)}
	c, err := NewCursor(src, testQuery(10))
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}

	var seen []int
	for {
		batch, err := c.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if batch == nil {
			break
		}
		for _, r := range batch {
			seen = append(seen, r["id"].(int))
		}
	}

	if len(seen) != 25 {
		t.Fatalf("saw %d rows, want 25", len(seen))
	}
	for i, id := range seen {
		if id != i+1 {
			t.Fatalf("row %d has id %d, scan not ordered", i, id)
		}
	}
	// 25 rows at limit 10: three pages, the last one short, no extra query.
	if len(src.queries) != 3 {
		t.Errorf("queries = %d, want 3", len(src.queries))
	}
	if src.queries[1].AfterKey != 10 || src.queries[2].AfterKey != 20 {
		t.Errorf("cursor bounds = %v, %v", src.queries[1].AfterKey, src.queries[2].AfterKey)
	}
}

func TestCursor_ExactMultipleIssuesEmptyFinalRead(t *testing.T) {
	t.Parallel()

	src := &scriptedStore{rows: rowsWithIDs(20)}
	c, err := NewCursor(src, testQuery(10))
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for {
		batch, err := c.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if batch == nil {
			break
		}
		n += len(batch)
	}
	if n != 20 {
		t.Fatalf("rows = %d, want 20", n)
	}
	// Full final page cannot prove exhaustion; one extra empty read expected.
	if len(src.queries) != 3 {
		t.Errorf("queries = %d, want 3", len(src.queries))
	}
}

func TestCursor_EmptyTable(t *testing.T) {
	t.Parallel()

	c, err := NewCursor(&scriptedStore{}, testQuery(10))
	if err != nil {
		t.Fatal(err)
	}
	batch, err := c.Next(context.Background())
	if err != nil || batch != nil {
		t.Fatalf("Next on empty table = (%v, %v)", batch, err)
	}
	// Exhausted cursors stay exhausted.
	batch, err = c.Next(context.Background())
	if err != nil || batch != nil {
		t.Fatalf("Next after exhaustion = (%v, %v)", batch, err)
	}
}

func TestCursor_ReadErrorDoesNotAdvance(t *testing.T) {
	t.Parallel()

	src := &scriptedStore{rows: rowsWithIDs(5), readErr: errors.New("connection reset")}
	c, err := NewCursor(src, testQuery(2))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Next(context.Background()); err == nil {
		t.Fatal("want read error")
	}

	// Clearing the fault must replay the same page.
	src.readErr = nil
	batch, err := c.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || batch[0]["id"] != 1 {
		t.Fatalf("retried page = %v, want rows 1..2", batch)
	}
}

func TestNewCursor_Validation(t *testing.T) {
	t.Parallel()

	src := &scriptedStore{}
	cases := []struct {
		name string
		q    ReadQuery
	}{
		{"zero limit", ReadQuery{Columns: []ColumnMap{{Source: "id", Target: "id"}}, Key: "id"}},
		{"missing key", ReadQuery{Columns: []ColumnMap{{Source: "id", Target: "id"}}, Limit: 10}},
		{"key outside projection", ReadQuery{Columns: []ColumnMap{{Source: "a", Target: "a"}}, Key: "id", Limit: 10}},
	}
	for _, tc := range cases {
		if _, err := NewCursor(src, tc.q); err == nil {
			t.Errorf("%s: want error", tc.name)
		}
	}
}
