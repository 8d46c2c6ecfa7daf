// Bounded worker pool for the transform stage.
//
// Transforms are pure per-row functions with no shared mutable state, so the
// engine may fan a batch out across workers without changing semantics. Order
// is preserved by writing results into the output slice by index; the writer
// downstream relies on batch order matching read order.

package transform

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"migrator/pkg/records"
)

// RowError pairs a row-scoped transform failure with the row's position in
// the batch and the untouched source row, so the ledger can retain the
// payload for reprocessing.
type RowError struct {
	Index int
	Row   records.Record
	Err   error
}

// maxDefaultWorkers caps the worker default; transforms are cheap enough
// that more goroutines mostly buy scheduler churn.
const maxDefaultWorkers = 8

// DefaultWorkers returns the pool size used when the config leaves it unset.
func DefaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n > maxDefaultWorkers {
		n = maxDefaultWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ApplyBatch runs fn over every row of the batch on at most workers
// goroutines. It returns the transformed rows in input order, with failed
// rows removed, plus one RowError per failure. Only context cancellation is
// returned as an error; row failures never abort the batch.
func ApplyBatch(ctx context.Context, fn Func, batch []records.Record, workers int) ([]records.Record, []RowError, error) {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if len(batch) == 0 {
		return nil, nil, ctx.Err()
	}

	out := make([]records.Record, len(batch))

	var mu sync.Mutex
	var failures []RowError

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, row := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := fn(row)
			if err != nil {
				mu.Lock()
				failures = append(failures, RowError{Index: i, Row: row, Err: err})
				mu.Unlock()
				return nil
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(failures, func(a, b int) bool { return failures[a].Index < failures[b].Index })

	// Compact: drop the slots of failed rows, keep order.
	kept := out[:0]
	for _, r := range out {
		if r != nil {
			kept = append(kept, r)
		}
	}
	return kept, failures, nil
}
