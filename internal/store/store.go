// Package store contains store-agnostic contracts and utilities for the
// migration engine.
//
// A Store is one relational database reachable over a connection string. The
// engine holds exactly two: the legacy source (accessed read-only) and the
// target (the only mutated resource, and only through InsertBatch). Concrete
// backends live in subpackages and register themselves with the factory at
// init time, so callers remain backend-agnostic and never import a driver
// directly.
package store

import (
	"context"
	"time"

	"migrator/pkg/records"
)

// Config holds the parameters for opening a store.
type Config struct {
	// Driver selects the registered backend ("postgres", "mysql",
	// "sqlserver", "sqlite").
	Driver string

	// DSN is the driver-native connection string.
	DSN string

	// Timeout caps every single statement issued through the store. The
	// engine's retry policy, not the driver, decides what happens after.
	Timeout time.Duration
}

// ColumnMap maps one source column to its target name. Readers project and
// rename in the query so the transform only ever sees declared fields.
type ColumnMap struct {
	Source string
	Target string
}

// ReadQuery describes one page of a deterministic table scan.
type ReadQuery struct {
	// Table is the source table identifier.
	Table string

	// Columns is the projection; the resulting records are keyed by Target
	// names.
	Columns []ColumnMap

	// Key is the Target name of the stable ordering column (primary key).
	// It must appear in Columns.
	Key string

	// AfterKey is the exclusive lower bound for the ordering column; nil
	// starts from the beginning. Re-issuing the same query yields the same
	// rows, which is what makes batches restartable.
	AfterKey any

	// Limit is the page size.
	Limit int
}

// SourceKey returns the source-side name of the ordering column.
func (q ReadQuery) SourceKey() string {
	for _, c := range q.Columns {
		if c.Target == q.Key {
			return c.Source
		}
	}
	return q.Key
}

// RowFailure reports one row rejected inside an otherwise-committed batch.
type RowFailure struct {
	// Index is the row's position in the batch passed to InsertBatch.
	Index int
	// Err is the classified driver error (a *Error with KindConflict).
	Err error
}

// BatchResult is the outcome of one InsertBatch call.
type BatchResult struct {
	Inserted int64
	Failed   []RowFailure
}

// Store is the contract every backend implements.
//
// InsertBatch must attempt all rows inside a single transaction and isolate
// row-level failures (constraint violations, type coercion) via savepoints:
// rejected rows are reported in BatchResult.Failed while the rest of the
// batch still commits. A non-nil error means the whole batch failed and
// nothing committed; the engine retries those with backoff.
type Store interface {
	// Count returns the table's row count.
	Count(ctx context.Context, table string) (int64, error)

	// ReadBatch returns the next page of the scan described by q, keyed by
	// target column names. A short or empty result means the scan is done.
	ReadBatch(ctx context.Context, q ReadQuery) ([]records.Record, error)

	// InsertBatch writes one transformed batch; see the interface comment.
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (BatchResult, error)

	// Sum returns COALESCE(SUM(column), 0) as a float for parity checks.
	Sum(ctx context.Context, table, column string) (float64, error)

	// DuplicateCount returns how many non-null values of column appear more
	// than once.
	DuplicateCount(ctx context.Context, table, column string) (int64, error)

	// OrphanCount returns how many non-null values of column have no
	// matching refColumn row in refTable.
	OrphanCount(ctx context.Context, table, column, refTable, refColumn string) (int64, error)

	// Close releases the underlying pool/handle.
	Close()
}
