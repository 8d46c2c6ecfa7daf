// Cursor: the batch reader over a single table.
//
// Pagination is keyset-based over the table's stable ordering column, so a
// page re-read after a retry returns exactly the same rows; no OFFSET, no
// dependence on the store's scan order.

package store

import (
	"context"
	"fmt"

	"migrator/pkg/records"
)

// Cursor produces a lazy, finite sequence of row batches from one source
// table. It is not safe for concurrent use; the engine reads sequentially.
type Cursor struct {
	store Store
	query ReadQuery
	done  bool
}

// NewCursor builds a cursor for the given scan. Limit must be positive.
func NewCursor(s Store, q ReadQuery) (*Cursor, error) {
	if q.Limit <= 0 {
		return nil, fmt.Errorf("cursor: limit must be > 0")
	}
	if q.Key == "" {
		return nil, fmt.Errorf("cursor: ordering key is required")
	}
	found := false
	for _, c := range q.Columns {
		if c.Target == q.Key {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("cursor: ordering key %q is not in the projection", q.Key)
	}
	return &Cursor{store: s, query: q}, nil
}

// Next returns the next batch, or (nil, nil) when the table is exhausted.
// The cursor only advances past a batch once it has been returned, so a
// failed read can simply be retried.
func (c *Cursor) Next(ctx context.Context) ([]records.Record, error) {
	if c.done {
		return nil, nil
	}
	batch, err := c.store.ReadBatch(ctx, c.query)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		c.done = true
		return nil, nil
	}
	if len(batch) < c.query.Limit {
		c.done = true
	}
	last := batch[len(batch)-1]
	key, ok := last[c.query.Key]
	if !ok || key == nil {
		return nil, fmt.Errorf("cursor: table %s: ordering key %q missing from row", c.query.Table, c.query.Key)
	}
	c.query.AfterKey = key
	return batch, nil
}
