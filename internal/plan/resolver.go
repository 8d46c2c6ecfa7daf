// Package plan computes the table migration order from the declared
// dependency edges of a migration set.
//
// Later tables may carry foreign keys into earlier tables, so a table must
// never be copied before every table it depends on has fully committed. The
// resolver produces a total order satisfying that constraint, or fails fast
// before any store is touched.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"migrator/internal/config"
)

// Sentinel errors for the two fatal graph defects. Both abort the run before
// any write happens; match with errors.Is.
var (
	ErrCycle             = errors.New("dependency cycle")
	ErrUnknownDependency = errors.New("unknown dependency")
)

// Resolve returns the migration order for the given tables.
//
// subset optionally restricts the run to the named tables; dependencies
// outside the subset are treated as already satisfied (the operator asserts
// they were migrated in an earlier run). A nil or empty subset includes every
// table.
//
// The order is deterministic: ties among tables whose dependencies are all
// satisfied break by ascending declaration order, so the same config always
// yields the same run.
func Resolve(tables []config.Table, subset []string) ([]string, error) {
	include := map[string]bool{}
	if len(subset) == 0 {
		for _, t := range tables {
			include[t.Name] = true
		}
	} else {
		declared := map[string]bool{}
		for _, t := range tables {
			declared[t.Name] = true
		}
		for _, name := range subset {
			if !declared[name] {
				return nil, fmt.Errorf("table subset: %w: %q is not a declared table", ErrUnknownDependency, name)
			}
			include[name] = true
		}
	}

	// In-degree per included table, counting only edges inside the subset.
	indegree := map[string]int{}
	dependents := map[string][]string{}
	for _, t := range tables {
		if !include[t.Name] {
			continue
		}
		indegree[t.Name] = 0
		for _, dep := range t.DependsOn {
			if dep == t.Name {
				return nil, fmt.Errorf("table %q: %w: depends on itself", t.Name, ErrCycle)
			}
			if !declaredIn(tables, dep) {
				return nil, fmt.Errorf("table %q: %w: %q", t.Name, ErrUnknownDependency, dep)
			}
			if !include[dep] {
				continue // outside the subset: treated as already satisfied
			}
			indegree[t.Name]++
			dependents[dep] = append(dependents[dep], t.Name)
		}
	}

	// Kahn's algorithm. Each round scans the declaration order for the first
	// table with no remaining dependencies, which gives the tie-break for free.
	order := make([]string, 0, len(indegree))
	done := map[string]bool{}
	for len(order) < len(indegree) {
		picked := ""
		for _, t := range tables {
			if include[t.Name] && !done[t.Name] && indegree[t.Name] == 0 {
				picked = t.Name
				break
			}
		}
		if picked == "" {
			return nil, fmt.Errorf("%w among tables: %s", ErrCycle, strings.Join(remaining(tables, include, done), ", "))
		}
		done[picked] = true
		order = append(order, picked)
		for _, next := range dependents[picked] {
			indegree[next]--
		}
	}
	return order, nil
}

func declaredIn(tables []config.Table, name string) bool {
	for _, t := range tables {
		if t.Name == name {
			return true
		}
	}
	return false
}

// remaining lists unordered tables in declaration order for the cycle error.
func remaining(tables []config.Table, include map[string]bool, done map[string]bool) []string {
	var out []string
	for _, t := range tables {
		if include[t.Name] && !done[t.Name] {
			out = append(out, t.Name)
		}
	}
	return out
}
