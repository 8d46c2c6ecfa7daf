// The report artifact. Field names and nesting are a compatibility contract
// for downstream tooling and must not change.

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"migrator/internal/ledger"
)

// Report is the externally consumed migration report: the terminal run plus
// the flattened failure ledger.
type Report struct {
	Status      Status                 `json:"status"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
	Tables      map[string]TableEntry  `json:"tables"`
	Checks      []Check                `json:"checks"`
	Errors      []ledger.FailedRecord  `json:"errors"`
}

// TableEntry is one table's counters in the report.
type TableEntry struct {
	SourceCount   int64       `json:"source_count"`
	MigratedCount int64       `json:"migrated_count"`
	FailedCount   int64       `json:"failed_count"`
	Status        TableStatus `json:"status"`
}

// Build assembles the report from a terminal run and the ledger contents.
// Checks and Errors are always arrays in the JSON, never null.
func Build(run *Run, errs []ledger.FailedRecord) *Report {
	rep := &Report{
		Status:      run.Status,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Tables:      make(map[string]TableEntry, len(run.Tables)),
		Checks:      run.Checks,
		Errors:      errs,
	}
	for _, t := range run.Tables {
		rep.Tables[t.Name] = TableEntry{
			SourceCount:   t.SourceCount,
			MigratedCount: t.MigratedCount,
			FailedCount:   t.FailedCount,
			Status:        t.Status,
		}
	}
	if rep.Checks == nil {
		rep.Checks = []Check{}
	}
	if rep.Errors == nil {
		rep.Errors = []ledger.FailedRecord{}
	}
	return rep
}

// ExitCode maps the report status onto the documented process exit codes:
// 0 completed, 1 partial, 2 failed or aborted.
func (r *Report) ExitCode() int {
	switch r.Status {
	case StatusCompleted:
		return 0
	case StatusPartial:
		return 1
	default:
		return 2
	}
}

// WriteJSON writes the indented report artifact to w.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteFile writes the report artifact to path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	if err := r.WriteJSON(f); err != nil {
		return err
	}
	return f.Close()
}
