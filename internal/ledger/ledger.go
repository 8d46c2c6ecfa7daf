// Package ledger accumulates the row-level and table-level failures of a
// migration run.
//
// The ledger is append-only for the run's lifetime and is never silently
// discarded: every entry the engine records surfaces in the final report's
// errors list. Raw source payloads are retained verbatim (as JSON) so a later
// reprocessing pass can replay exactly the rows that failed, and each payload
// carries an xxh3 fingerprint as a stable dedupe key for that tooling.
package ledger

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zeebo/xxh3"

	"migrator/pkg/records"
)

// Kind classifies a failure for reporting. The values are part of the report
// contract.
type Kind string

const (
	// KindTransform marks a row that failed its transform.
	KindTransform Kind = "transform"
	// KindWriteConflict marks a row rejected by a target constraint.
	KindWriteConflict Kind = "write_conflict"
	// KindConnection marks a table-level failure after the retry budget for a
	// batch was exhausted.
	KindConnection Kind = "connection"
	// KindThreshold marks a table aborted by the failure-rate threshold.
	KindThreshold Kind = "failure_threshold"
)

// FailedRecord is one ledger entry. Row-level entries carry the source key
// and payload; table-level entries carry only the table and message.
type FailedRecord struct {
	Table       string `json:"table"`
	Key         string `json:"key,omitempty"`
	Kind        Kind   `json:"kind"`
	Message     string `json:"message"`
	Payload     string `json:"payload,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Ledger is safe for concurrent appends from the transform workers.
type Ledger struct {
	mu      sync.Mutex
	entries []FailedRecord
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// RecordRow appends a row-level failure, retaining the source payload.
func (l *Ledger) RecordRow(table string, keyColumn string, row records.Record, kind Kind, err error) {
	entry := FailedRecord{
		Table:   table,
		Key:     row.Key(keyColumn),
		Kind:    kind,
		Message: err.Error(),
	}
	if payload, merr := json.Marshal(row); merr == nil {
		entry.Payload = string(payload)
		entry.Fingerprint = fmt.Sprintf("%016x", xxh3.Hash(payload))
	}
	l.append(entry)
}

// RecordTable appends a table-level failure (retry budget exhausted,
// threshold exceeded).
func (l *Ledger) RecordTable(table string, kind Kind, err error) {
	l.append(FailedRecord{Table: table, Kind: kind, Message: err.Error()})
}

func (l *Ledger) append(e FailedRecord) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Entries returns a copy of everything recorded so far, in append order.
func (l *Ledger) Entries() []FailedRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]FailedRecord, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded failures.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// CountRows returns the number of row-level failures for a table. Table-level
// entries are excluded so stats keep the migrated+failed==source invariant.
func (l *Ledger) CountRows(table string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Table == table && (e.Kind == KindTransform || e.Kind == KindWriteConflict) {
			n++
		}
	}
	return n
}
