// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the migration engine.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data.
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - It mirrors the store abstraction pattern used elsewhere in the project,
//     allowing the rest of the codebase to depend only on this interface
//     while concrete metric systems stay isolated in subpackages.
//
// The primary use case is instrumentation of the engine stages (read,
// transform, write, verify) without coupling the core logic to a specific
// metrics system.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g.
	// Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStage measures latency + success/failure of one engine stage for one
// table (read, transform, write, verify).
func RecordStage(table, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"table":  table,
		"stage":  stage,
		"status": status,
	}
	backend.IncCounter("migrator_stage_total", 1, lbls)
	backend.ObserveHistogram("migrator_stage_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given table and kind.
//
// Typical kinds mirror the report fields:
//   - "read"
//   - "migrated"
//   - "transform_failed"
//   - "write_conflict"
func RecordRows(table, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("migrator_rows_total", float64(delta), Labels{
		"table": table,
		"kind":  kind,
	})
}

// RecordBatches increments the committed-batch counter for a table.
func RecordBatches(table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("migrator_batches_total", float64(delta), Labels{
		"table": table,
	})
}
