// Package engine orchestrates a migration run: dependency-ordered table
// traversal, batched read/transform/write, failure accounting, and the
// verification pass.
//
// The engine owns the run lifecycle. It is the only component that writes to
// the target store, the only writer of the run's state machine, and the only
// producer of ledger entries. Everything underneath it (stores, transforms,
// checks) is side-effect free from the engine's point of view except
// InsertBatch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"migrator/internal/config"
	"migrator/internal/ledger"
	"migrator/internal/metrics"
	"migrator/internal/plan"
	"migrator/internal/report"
	"migrator/internal/store"
	"migrator/internal/transform"
	"migrator/internal/verify"
)

// Options are per-run switches, typically wired from CLI flags.
type Options struct {
	// DryRun reads and transforms but never calls InsertBatch. Verification
	// is skipped too, since nothing was written, and the report keeps
	// migrated_count at zero; the would-migrate count is only logged.
	DryRun bool

	// SkipVerify skips the post-migration checks.
	SkipVerify bool

	// Tables restricts the run to a subset of the migration set. Dependencies
	// inside the subset are still ordered; dependencies outside it are assumed
	// already satisfied.
	Tables []string

	// OnTableStart and OnBatch report progress. Both may be nil.
	OnTableStart func(table string, total int64)
	OnBatch      func(table string, rows int)
}

// Engine runs one migration set against a source and a target store.
type Engine struct {
	cfg      *config.Config
	source   store.Store
	target   store.Store
	registry *transform.Registry
	ledger   *ledger.Ledger
	opts     Options
}

// New wires an engine. The registry must already be populated with the
// per-table transforms.
func New(cfg *config.Config, source, target store.Store, reg *transform.Registry, led *ledger.Ledger, opts Options) *Engine {
	return &Engine{
		cfg:      cfg,
		source:   source,
		target:   target,
		registry: reg,
		ledger:   led,
		opts:     opts,
	}
}

// Run executes the migration set and always returns a report, even on abort.
// The returned error is non-nil only for run-level failures (unresolvable
// plan, cancellation); row- and table-level failures are folded into the
// report instead.
func (e *Engine) Run(ctx context.Context) (*report.Report, error) {
	run := report.NewRun()

	order, err := plan.Resolve(e.cfg.Tables, e.opts.Tables)
	if err != nil {
		// Nothing has touched the target yet.
		_ = run.Finish(report.StatusAborted)
		return report.Build(run, e.ledger.Entries()), fmt.Errorf("resolve plan: %w", err)
	}
	if err := run.Start(); err != nil {
		return nil, err
	}
	log.Printf("engine: run=%s tables=%d order=%v dry_run=%t", run.ID, len(order), order, e.opts.DryRun)

	aborted := false
	for _, name := range order {
		if ctx.Err() != nil {
			aborted = true
			break
		}
		t, ok := e.cfg.TableByName(name)
		if !ok {
			// Resolve only returns declared tables; this is a programming error.
			return nil, fmt.Errorf("engine: plan yielded undeclared table %q", name)
		}
		stat, err := e.migrateTable(ctx, t)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				aborted = true
				break
			}
			return nil, err
		}
		if err := run.AddTable(stat); err != nil {
			return nil, err
		}
		log.Printf("engine: table=%s status=%s source=%d migrated=%d failed=%d",
			stat.Name, stat.Status, stat.SourceCount, stat.MigratedCount, stat.FailedCount)
	}

	if !aborted && len(e.opts.Tables) > 0 {
		processed := make(map[string]bool, len(order))
		for _, name := range order {
			processed[name] = true
		}
		for _, t := range e.cfg.Tables {
			if processed[t.Name] {
				continue
			}
			stat := report.TableStat{Name: t.Name, Status: report.TableSkipped}
			if n, err := e.source.Count(ctx, t.Name); err == nil {
				stat.SourceCount = n
			} else {
				log.Printf("engine: table=%s skipped, source count unavailable: %v", t.Name, err)
			}
			if err := run.AddTable(stat); err != nil {
				return nil, err
			}
		}
	}

	if !aborted && !e.opts.SkipVerify && !e.opts.DryRun {
		v := &verify.Verifier{Source: e.source, Target: e.target}
		outcomes := make(map[string]verify.TableOutcome, len(run.Tables))
		tables := make([]config.Table, 0, len(run.Tables))
		for _, stat := range run.Tables {
			if stat.Status == report.TableFailed || stat.Status == report.TableSkipped {
				// A failed table's counts are not trustworthy and a skipped
				// table was never written; checks would only restate that.
				continue
			}
			t, _ := e.cfg.TableByName(stat.Name)
			tables = append(tables, t)
			outcomes[stat.Name] = verify.TableOutcome{
				SourceCount: stat.SourceCount,
				FailedCount: stat.FailedCount,
			}
		}
		started := time.Now()
		checks := v.Run(ctx, tables, outcomes)
		metrics.RecordStage("all", "verify", ctx.Err(), time.Since(started))
		if ctx.Err() != nil {
			aborted = true
		}
		if err := run.AddChecks(checks); err != nil {
			return nil, err
		}
	}

	status := report.DeriveStatus(run.Tables, run.Checks)
	if aborted {
		status = report.StatusAborted
	}
	if err := run.Finish(status); err != nil {
		return nil, err
	}
	log.Printf("engine: run=%s finished status=%s errors=%d", run.ID, status, e.ledger.Len())

	rep := report.Build(run, e.ledger.Entries())
	if aborted {
		return rep, fmt.Errorf("run aborted: %w", ctx.Err())
	}
	return rep, nil
}

// migrateTable moves one table batch by batch. Row failures are ledgered and
// skipped; connection failures past the retry budget or a tripped
// failure-rate threshold fail the table but not the run. Only context
// cancellation is returned as an error.
func (e *Engine) migrateTable(ctx context.Context, t config.Table) (report.TableStat, error) {
	stat := report.TableStat{Name: t.Name, Status: report.TableCompleted}

	total, err := e.source.Count(ctx, t.Name)
	if err != nil {
		if ctx.Err() != nil {
			return stat, ctx.Err()
		}
		e.ledger.RecordTable(t.Name, ledger.KindConnection, fmt.Errorf("count source rows: %w", err))
		stat.Status = report.TableFailed
		return stat, nil
	}
	stat.SourceCount = total
	if e.opts.OnTableStart != nil {
		e.opts.OnTableStart(t.Name, total)
	}

	columns := make([]store.ColumnMap, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = store.ColumnMap{Source: c.SourceName(), Target: c.Name}
	}
	cursor, err := store.NewCursor(e.source, store.ReadQuery{
		Table:   t.Name,
		Columns: columns,
		Key:     t.Key,
		Limit:   e.cfg.Runtime.EffectiveBatchSize(),
	})
	if err != nil {
		return stat, err
	}

	fn := e.registry.Lookup(t.Name)
	targetColumns := t.TargetColumns()
	threshold := e.cfg.Runtime.EffectiveFailureThreshold()
	workers := e.cfg.Runtime.TransformWorkers
	var wouldMigrate int64

	for {
		if err := ctx.Err(); err != nil {
			return stat, err
		}

		readStart := time.Now()
		batch, err := cursor.Next(ctx)
		metrics.RecordStage(t.Name, "read", err, time.Since(readStart))
		if err != nil {
			if ctx.Err() != nil {
				return stat, ctx.Err()
			}
			e.ledger.RecordTable(t.Name, ledger.KindConnection, fmt.Errorf("read batch: %w", err))
			stat.Status = report.TableFailed
			return stat, nil
		}
		if len(batch) == 0 {
			break
		}
		metrics.RecordRows(t.Name, "read", int64(len(batch)))

		transformStart := time.Now()
		transformed, rowErrs, err := transform.ApplyBatch(ctx, fn, batch, workers)
		metrics.RecordStage(t.Name, "transform", err, time.Since(transformStart))
		if err != nil {
			return stat, err
		}
		for _, re := range rowErrs {
			e.ledger.RecordRow(t.Name, t.Key, re.Row, ledger.KindTransform, re.Err)
		}
		metrics.RecordRows(t.Name, "transform_failed", int64(len(rowErrs)))

		if e.opts.DryRun {
			// No writes attempted, so nothing migrated; keep the would-be
			// count out of the report.
			wouldMigrate += int64(len(transformed))
		} else if len(transformed) > 0 {
			rows := make([][]any, len(transformed))
			for i, rec := range transformed {
				rows[i] = rec.Values(targetColumns)
			}
			writeStart := time.Now()
			res, err := e.writeBatch(ctx, t.Name, targetColumns, rows)
			metrics.RecordStage(t.Name, "write", err, time.Since(writeStart))
			if err != nil {
				if ctx.Err() != nil {
					return stat, ctx.Err()
				}
				e.ledger.RecordTable(t.Name, ledger.KindConnection, err)
				stat.FailedCount = int64(e.ledger.CountRows(t.Name))
				stat.Status = report.TableFailed
				return stat, nil
			}
			for _, f := range res.Failed {
				e.ledger.RecordRow(t.Name, t.Key, transformed[f.Index], ledger.KindWriteConflict, f.Err)
			}
			metrics.RecordRows(t.Name, "write_conflict", int64(len(res.Failed)))
			metrics.RecordRows(t.Name, "migrated", res.Inserted)
			metrics.RecordBatches(t.Name, 1)
			stat.MigratedCount += res.Inserted
			if elapsed := time.Since(writeStart); elapsed > 0 {
				log.Printf("engine: table=%s batch=%d conflicts=%d rows_per_sec=%.0f",
					t.Name, res.Inserted, len(res.Failed), float64(res.Inserted)/elapsed.Seconds())
			}
		}

		if e.opts.OnBatch != nil {
			e.opts.OnBatch(t.Name, len(batch))
		}

		stat.FailedCount = int64(e.ledger.CountRows(t.Name))
		if total > 0 && float64(stat.FailedCount)/float64(total) > threshold {
			e.ledger.RecordTable(t.Name, ledger.KindThreshold,
				fmt.Errorf("failure rate %.2f exceeds threshold %.2f (%d of %d rows)",
					float64(stat.FailedCount)/float64(total), threshold, stat.FailedCount, total))
			stat.Status = report.TableFailed
			return stat, nil
		}
	}

	stat.FailedCount = int64(e.ledger.CountRows(t.Name))
	if stat.FailedCount > 0 {
		stat.Status = report.TablePartial
	}
	if e.opts.DryRun {
		log.Printf("engine: table=%s dry_run=true would_migrate=%d", t.Name, wouldMigrate)
	}
	return stat, nil
}
