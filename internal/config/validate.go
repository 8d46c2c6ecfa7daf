// Package config provides configuration models and helpers for migration sets.
//
// This file adds a lightweight linter/validator for Config values. It performs
// static checks over a decoded migration set and returns a list of issues
// (errors and warnings) that callers can surface in the CLI or tests. Cycle
// detection is deliberately left to the dependency resolver, which owns that
// contract; the linter only checks what can be seen one declaration at a time.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users
	// but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "tables[2].checks.sum[0]").
// Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static validation of a migration set.
//
// It does not mutate the config. Callers decide whether warnings are fatal.
// knownTransforms lists the transform names registered with the engine; pass
// nil to skip that check (e.g. when linting a file standalone).
func Validate(c *Config, knownTransforms []string) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.SourceDB) == "" {
		issues = append(issues, Issue{SeverityError, "source_db", "source connection string must not be empty"})
	}
	if strings.TrimSpace(c.TargetDB) == "" {
		issues = append(issues, Issue{SeverityError, "target_db", "target connection string must not be empty"})
	}
	if len(c.Tables) == 0 {
		issues = append(issues, Issue{SeverityError, "tables", "at least one table is required"})
	}

	issues = append(issues, validateRuntime(c.Runtime)...)

	transforms := map[string]struct{}{}
	for _, name := range knownTransforms {
		transforms[name] = struct{}{}
	}

	names := map[string]int{}
	for i, t := range c.Tables {
		path := fmt.Sprintf("tables[%d]", i)

		if strings.TrimSpace(t.Name) == "" {
			issues = append(issues, Issue{SeverityError, path + ".name", "table name must not be empty"})
			continue
		}
		if prev, dup := names[t.Name]; dup {
			issues = append(issues, Issue{SeverityError, path + ".name",
				fmt.Sprintf("table %q already declared at tables[%d]", t.Name, prev)})
		}
		names[t.Name] = i

		if strings.TrimSpace(t.Key) == "" {
			issues = append(issues, Issue{SeverityError, path + ".key",
				"ordering key is required for deterministic pagination"})
		}
		if len(t.Columns) == 0 {
			issues = append(issues, Issue{SeverityError, path + ".columns", "at least one column is required"})
		}

		if t.Transform != "" && knownTransforms != nil {
			if _, ok := transforms[t.Transform]; !ok {
				issues = append(issues, Issue{SeverityError, path + ".transform",
					fmt.Sprintf("unknown transform %q", t.Transform)})
			}
		}

		issues = append(issues, validateColumns(path, t)...)
	}

	// Cross-table references need the full name set, so a second pass.
	for i, t := range c.Tables {
		path := fmt.Sprintf("tables[%d]", i)
		for j, dep := range t.DependsOn {
			if _, ok := names[dep]; !ok {
				issues = append(issues, Issue{SeverityError,
					fmt.Sprintf("%s.depends_on[%d]", path, j),
					fmt.Sprintf("dependency %q is not a declared table", dep)})
			}
			if dep == t.Name {
				issues = append(issues, Issue{SeverityError,
					fmt.Sprintf("%s.depends_on[%d]", path, j),
					"table cannot depend on itself"})
			}
		}
		for j, fk := range t.Checks.ForeignKeys {
			if _, ok := names[fk.References]; !ok {
				issues = append(issues, Issue{SeverityError,
					fmt.Sprintf("%s.checks.foreign_keys[%d].references", path, j),
					fmt.Sprintf("referenced table %q is not part of the migration set", fk.References)})
			}
		}
	}

	return issues
}

// validateColumns checks the projection and the check columns against it.
func validateColumns(path string, t Table) []Issue {
	var issues []Issue

	cols := map[string]int{}
	for j, c := range t.Columns {
		cpath := fmt.Sprintf("%s.columns[%d]", path, j)
		if strings.TrimSpace(c.Name) == "" {
			issues = append(issues, Issue{SeverityError, cpath + ".name", "column name must not be empty"})
			continue
		}
		if prev, dup := cols[c.Name]; dup {
			issues = append(issues, Issue{SeverityError, cpath + ".name",
				fmt.Sprintf("column %q already declared at columns[%d]", c.Name, prev)})
		}
		cols[c.Name] = j
		if c.Scale < 0 {
			issues = append(issues, Issue{SeverityError, cpath + ".scale", "scale must not be negative"})
		}
	}

	has := func(name string) bool { _, ok := cols[name]; return ok }

	if t.Key != "" && !has(t.Key) && len(t.Columns) > 0 {
		issues = append(issues, Issue{SeverityError, path + ".key",
			fmt.Sprintf("ordering key %q is not in the column projection", t.Key)})
	}
	for j, col := range t.Checks.Sum {
		if !has(col) {
			issues = append(issues, Issue{SeverityError,
				fmt.Sprintf("%s.checks.sum[%d]", path, j),
				fmt.Sprintf("sum column %q is not in the column projection", col)})
		} else if t.ScaleFor(col) == 0 {
			issues = append(issues, Issue{SeverityWarning,
				fmt.Sprintf("%s.checks.sum[%d]", path, j),
				fmt.Sprintf("sum column %q has no declared scale; parity uses exact comparison", col)})
		}
	}
	for j, col := range t.Checks.Unique {
		if !has(col) {
			issues = append(issues, Issue{SeverityError,
				fmt.Sprintf("%s.checks.unique[%d]", path, j),
				fmt.Sprintf("unique column %q is not in the column projection", col)})
		}
	}
	for j, fk := range t.Checks.ForeignKeys {
		if !has(fk.Column) {
			issues = append(issues, Issue{SeverityError,
				fmt.Sprintf("%s.checks.foreign_keys[%d].column", path, j),
				fmt.Sprintf("foreign key column %q is not in the column projection", fk.Column)})
		}
	}

	return issues
}

// validateRuntime validates the runtime block.
func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.BatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.batch_size", "batch size must not be negative"})
	}
	if r.TransformWorkers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.transform_workers", "transform workers must not be negative"})
	}
	if r.MaxWriteAttempts < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.max_write_attempts", "max write attempts must not be negative"})
	}
	if r.FailureThreshold < 0 || r.FailureThreshold > 1 {
		issues = append(issues, Issue{SeverityError, "runtime.failure_threshold", "failure threshold must be within [0, 1]"})
	}
	if r.BatchSize > 0 && r.BatchSize < 10 {
		issues = append(issues, Issue{SeverityWarning, "runtime.batch_size",
			"very small batch sizes increase transaction overhead considerably"})
	}
	return issues
}
