// Package verify runs the post-migration integrity checks.
//
// Checks compare source and target state after all tables (or the selected
// subset) have been processed. A failing check never undoes committed
// writes; it is reported and folded into the run's outcome. Four check
// families exist, mirroring what operators audit by hand after a copy:
// row-count parity, aggregate-sum parity, natural-key uniqueness, and
// referential integrity.
package verify

import (
	"context"
	"fmt"
	"log"
	"math"

	"migrator/internal/config"
	"migrator/internal/report"
	"migrator/internal/store"
	"migrator/internal/transform"
)

// Verifier reads both stores. It never writes.
type Verifier struct {
	Source store.Store
	Target store.Store
}

// TableOutcome tells the verifier what the engine already knows about a
// processed table, so count parity can account for failed rows.
type TableOutcome struct {
	SourceCount int64
	FailedCount int64
}

// Run executes every configured check for the given tables, in table order.
// Store errors fail the affected check (observed value "error: ...") rather
// than aborting verification; the remaining checks still run.
func (v *Verifier) Run(ctx context.Context, tables []config.Table, outcomes map[string]TableOutcome) []report.Check {
	var checks []report.Check
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return checks
		}
		checks = append(checks, v.countParity(ctx, t, outcomes[t.Name]))
		for _, col := range t.Checks.Sum {
			checks = append(checks, v.sumParity(ctx, t, col))
		}
		for _, col := range t.Checks.Unique {
			checks = append(checks, v.uniqueness(ctx, t, col))
		}
		for _, fk := range t.Checks.ForeignKeys {
			checks = append(checks, v.referential(ctx, t, fk))
		}
	}
	for _, c := range checks {
		if !c.Passed {
			log.Printf("verify: FAILED check=%s table=%s expected=%v observed=%v", c.Name, c.Table, c.Expected, c.Observed)
		}
	}
	return checks
}

// countParity checks that the target holds exactly the rows that migrated:
// source count minus the rows the ledger accounts for.
func (v *Verifier) countParity(ctx context.Context, t config.Table, out TableOutcome) report.Check {
	c := report.Check{
		Name:     "row_count",
		Scope:    "table",
		Table:    t.Name,
		Expected: out.SourceCount - out.FailedCount,
	}
	n, err := v.Target.Count(ctx, t.Name)
	if err != nil {
		return failed(c, err)
	}
	c.Observed = n
	c.Passed = n == out.SourceCount-out.FailedCount
	return c
}

// sumParity checks SUM(column) across both stores within the fixed-point
// epsilon for the column's declared scale. Columns without a declared scale
// compare exactly.
func (v *Verifier) sumParity(ctx context.Context, t config.Table, column string) report.Check {
	c := report.Check{
		Name:  fmt.Sprintf("sum(%s)", column),
		Scope: "table",
		Table: t.Name,
	}
	srcSum, err := v.Source.Sum(ctx, t.Name, sourceColumn(t, column))
	if err != nil {
		return failed(c, err)
	}
	dstSum, err := v.Target.Sum(ctx, t.Name, column)
	if err != nil {
		c.Expected = srcSum
		return failed(c, err)
	}
	eps := 0.0
	if scale := t.ScaleFor(column); scale > 0 {
		eps = transform.Epsilon(scale)
	}
	c.Expected = srcSum
	c.Observed = dstSum
	c.Passed = math.Abs(srcSum-dstSum) <= eps
	return c
}

// uniqueness checks that a designated natural-key column has no duplicates
// in the target.
func (v *Verifier) uniqueness(ctx context.Context, t config.Table, column string) report.Check {
	c := report.Check{
		Name:     fmt.Sprintf("unique(%s)", column),
		Scope:    "table",
		Table:    t.Name,
		Expected: int64(0),
	}
	n, err := v.Target.DuplicateCount(ctx, t.Name, column)
	if err != nil {
		return failed(c, err)
	}
	c.Observed = n
	c.Passed = n == 0
	return c
}

// referential checks that every non-null foreign-key value resolves in the
// referenced target table.
func (v *Verifier) referential(ctx context.Context, t config.Table, fk config.ForeignKey) report.Check {
	c := report.Check{
		Name:     fmt.Sprintf("fk(%s.%s->%s.%s)", t.Name, fk.Column, fk.References, fk.RefColumnName()),
		Scope:    "table",
		Table:    t.Name,
		Expected: int64(0),
	}
	n, err := v.Target.OrphanCount(ctx, t.Name, fk.Column, fk.References, fk.RefColumnName())
	if err != nil {
		return failed(c, err)
	}
	c.Observed = n
	c.Passed = n == 0
	return c
}

// sourceColumn maps a target column back to its legacy name for source-side
// queries.
func sourceColumn(t config.Table, target string) string {
	for _, col := range t.Columns {
		if col.Name == target {
			return col.SourceName()
		}
	}
	return target
}

// failed marks a check as not passed because the check itself errored.
func failed(c report.Check, err error) report.Check {
	c.Passed = false
	c.Observed = fmt.Sprintf("error: %v", err)
	return c
}
