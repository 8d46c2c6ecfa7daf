// Batch writer with bounded retry.
//
// Connection-level failures are transient by definition, so the writer
// retries the whole batch with exponential backoff; keyset pagination and
// savepoint isolation make the retry safe because nothing from the failed
// attempt committed. Conflict-level failures never reach this layer as batch
// errors: the stores isolate them per row inside the transaction.

package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"migrator/internal/store"
)

// baseBackoff is the first retry delay; each further attempt doubles it.
const baseBackoff = 250 * time.Millisecond

// writeBatch inserts one transformed batch, retrying connection failures up
// to the configured attempt budget. A nil error means the batch committed
// (possibly with row-level failures listed in the result). A non-nil error
// means nothing committed and the table should be marked failed.
func (e *Engine) writeBatch(ctx context.Context, table string, columns []string, rows [][]any) (store.BatchResult, error) {
	attempts := e.cfg.Runtime.EffectiveMaxWriteAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := e.target.InsertBatch(ctx, table, columns, rows)
		if err == nil {
			return res, nil
		}
		if !store.IsConnection(err) {
			return store.BatchResult{}, fmt.Errorf("insert batch into %s: %w", table, err)
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := baseBackoff << (attempt - 1)
		log.Printf("engine: table=%s write attempt=%d/%d failed, retrying in %s: %v",
			table, attempt, attempts, delay, err)
		select {
		case <-ctx.Done():
			return store.BatchResult{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return store.BatchResult{}, fmt.Errorf("insert batch into %s: %d attempts exhausted: %w", table, attempts, lastErr)
}
