// Package report owns the migration run's lifecycle and the structured
// report artifact consumed by downstream tooling.
//
// A Run moves through a small state machine:
//
//	created → running → {completed, partial, failed, aborted}
//
// All four outcomes are terminal. The engine is the only writer; once a run
// reaches a terminal state it is immutable and any further transition is a
// programming error surfaced loudly rather than absorbed.
package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the run-level (and report-level) status.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// severity orders terminal statuses; the most severe wins when deriving the
// overall outcome. aborted > failed > partial > completed.
var severity = map[Status]int{
	StatusCompleted: 0,
	StatusPartial:   1,
	StatusFailed:    2,
	StatusAborted:   3,
}

// TableStatus is the per-table outcome.
type TableStatus string

const (
	TableCompleted TableStatus = "completed"
	TablePartial   TableStatus = "partial"
	TableFailed    TableStatus = "failed"
	TableSkipped   TableStatus = "skipped"
)

// TableStat accumulates one table's counters. Invariant for processed
// tables: MigratedCount + FailedCount == SourceCount; skipped tables only
// carry SourceCount.
type TableStat struct {
	Name          string
	SourceCount   int64
	MigratedCount int64
	FailedCount   int64
	Status        TableStatus
}

// Check is one verification result. Expected and Observed hold whatever the
// check compares (counts, sums); they marshal as-is into the report.
type Check struct {
	Name     string `json:"name"`
	Scope    string `json:"scope"` // "table" or "global"
	Table    string `json:"table,omitempty"`
	Passed   bool   `json:"passed"`
	Expected any    `json:"expected"`
	Observed any    `json:"observed"`
}

// Run is one migration invocation. Created once per process, mutated only by
// the owning engine, immutable after reaching a terminal status.
type Run struct {
	ID          string
	Status      Status
	StartedAt   time.Time
	CompletedAt time.Time
	Tables      []TableStat
	Checks      []Check
}

// NewRun returns a run in the created state with a fresh identifier.
func NewRun() *Run {
	return &Run{ID: uuid.NewString(), Status: StatusCreated}
}

// Start moves created → running once the dependency resolver has succeeded.
func (r *Run) Start() error {
	if r.Status != StatusCreated {
		return fmt.Errorf("run %s: cannot start from %q", r.ID, r.Status)
	}
	r.Status = StatusRunning
	r.StartedAt = time.Now().UTC()
	return nil
}

// AddTable appends a table's final counters.
func (r *Run) AddTable(s TableStat) error {
	if r.Status.Terminal() {
		return fmt.Errorf("run %s: immutable in terminal state %q", r.ID, r.Status)
	}
	r.Tables = append(r.Tables, s)
	return nil
}

// AddChecks appends verification results.
func (r *Run) AddChecks(checks []Check) error {
	if r.Status.Terminal() {
		return fmt.Errorf("run %s: immutable in terminal state %q", r.ID, r.Status)
	}
	r.Checks = append(r.Checks, checks...)
	return nil
}

// Finish moves the run into a terminal status. A run that never started
// (fatal config error) may go created → aborted directly; otherwise only
// running → terminal is legal.
func (r *Run) Finish(s Status) error {
	if !s.Terminal() {
		return fmt.Errorf("run %s: %q is not a terminal status", r.ID, s)
	}
	switch {
	case r.Status == StatusRunning:
	case r.Status == StatusCreated && s == StatusAborted:
	default:
		return fmt.Errorf("run %s: cannot finish from %q to %q", r.ID, r.Status, s)
	}
	r.Status = s
	r.CompletedAt = time.Now().UTC()
	return nil
}

// DeriveStatus computes the terminal outcome from per-table results and
// checks, most severe wins. aborted is decided by the caller (config error
// or cancellation), the rest follows the table stats:
//
//	failed:    some table exhausted its retry budget or tripped the
//	           failure-rate threshold
//	partial:   row-level failures or failed checks, but every table ran
//	completed: everything matched and every check passed
func DeriveStatus(tables []TableStat, checks []Check) Status {
	out := StatusCompleted
	bump := func(s Status) {
		if severity[s] > severity[out] {
			out = s
		}
	}
	for _, t := range tables {
		switch t.Status {
		case TableFailed:
			bump(StatusFailed)
		case TablePartial:
			bump(StatusPartial)
		}
	}
	for _, c := range checks {
		if !c.Passed {
			bump(StatusPartial)
		}
	}
	return out
}
