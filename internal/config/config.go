// Package config defines the canonical, YAML-serializable migration-set model
// for the migrator application. A migration set declares which tables move
// from the legacy store to the target store, the dependency edges between
// them, the named transform applied per table, and the verification checks
// that run after the copy.
//
// Design goals:
//
//  1. Stability: changes to this package should be additive and backwards-
//     compatible whenever possible; downstream tooling reads these files.
//  2. Clarity: field names in Go mirror the YAML structure used in migration
//     set files under configs/*.yaml.
//  3. Everything static: the engine never discovers tables or dependencies at
//     runtime; this file is the whole contract.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level migration set decoded from a YAML file.
type Config struct {
	// SourceDB and TargetDB are connection strings. The scheme (or an explicit
	// driver prefix such as "mysql://", "sqlserver://", "sqlite:") selects the
	// store backend. Flags and environment variables may override both.
	SourceDB string `yaml:"source_db"`
	TargetDB string `yaml:"target_db"`

	// Runtime controls batching, concurrency, and retry behavior.
	Runtime Runtime `yaml:"runtime"`

	// Tables lists every table in the migration set. Declaration order is
	// meaningful: it breaks ties when the dependency resolver orders tables.
	Tables []Table `yaml:"tables"`
}

// Runtime holds the knobs that shape a run but not its meaning.
type Runtime struct {
	// BatchSize is the number of rows read, transformed, and committed per
	// transaction. Zero means the default of 1000.
	BatchSize int `yaml:"batch_size"`

	// TransformWorkers bounds the transform worker pool. Zero means one
	// worker per CPU, capped at 8.
	TransformWorkers int `yaml:"transform_workers"`

	// MaxWriteAttempts bounds retries of a batch after a connection-level
	// failure. Zero means the default of 4.
	MaxWriteAttempts int `yaml:"max_write_attempts"`

	// FailureThreshold is the fraction of failed rows (failed / source count)
	// above which a table is marked failed and its remaining batches are
	// skipped. Zero means the default of 0.5.
	FailureThreshold float64 `yaml:"failure_threshold"`

	// StatementTimeout caps every store call. Zero means 30s.
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// Defaults applied by the accessors below. Exposed for the CLI usage text.
const (
	DefaultBatchSize        = 1000
	DefaultMaxWriteAttempts = 4
	DefaultFailureThreshold = 0.5
	DefaultStatementTimeout = 30 * time.Second
)

// EffectiveBatchSize returns BatchSize or the documented default.
func (r Runtime) EffectiveBatchSize() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return DefaultBatchSize
}

// EffectiveMaxWriteAttempts returns MaxWriteAttempts or the documented default.
func (r Runtime) EffectiveMaxWriteAttempts() int {
	if r.MaxWriteAttempts > 0 {
		return r.MaxWriteAttempts
	}
	return DefaultMaxWriteAttempts
}

// EffectiveFailureThreshold returns FailureThreshold or the documented default.
func (r Runtime) EffectiveFailureThreshold() float64 {
	if r.FailureThreshold > 0 {
		return r.FailureThreshold
	}
	return DefaultFailureThreshold
}

// EffectiveStatementTimeout returns StatementTimeout or the documented default.
func (r Runtime) EffectiveStatementTimeout() time.Duration {
	if r.StatementTimeout > 0 {
		return r.StatementTimeout
	}
	return DefaultStatementTimeout
}

// Table declares one table of the migration set.
type Table struct {
	// Name is the table identifier, identical on both stores.
	Name string `yaml:"name"`

	// Key is the stable ordering column (primary key) used for deterministic
	// keyset pagination and for identifying failed rows in the ledger.
	Key string `yaml:"key"`

	// DependsOn lists tables whose rows must be fully committed before this
	// table starts (foreign-key targets). The graph must be acyclic.
	DependsOn []string `yaml:"depends_on"`

	// Transform names the registered transform for this table. Empty selects
	// the identity transform.
	Transform string `yaml:"transform"`

	// Columns is the projection the transform sees and the writer inserts.
	// Source columns outside this list are never read.
	Columns []Column `yaml:"columns"`

	// Checks configures the post-migration verification for this table.
	Checks Checks `yaml:"checks"`
}

// Column maps one source column to one target column.
type Column struct {
	// Name is the target column name.
	Name string `yaml:"name"`

	// Source is the legacy column name when it differs from Name. Empty means
	// the names match.
	Source string `yaml:"source"`

	// Scale marks a fixed-point decimal column and gives its decimal scale
	// (2 for currency amounts, 8 for fine-grained amounts). Zero means the
	// column is not decimal-shaped and passes through untouched.
	Scale int `yaml:"scale"`
}

// SourceName returns the legacy column name for this column.
func (c Column) SourceName() string {
	if c.Source != "" {
		return c.Source
	}
	return c.Name
}

// Checks configures per-table verification.
type Checks struct {
	// Sum lists target columns whose SUM must match the source within the
	// fixed-point epsilon derived from the column's declared scale.
	Sum []string `yaml:"sum"`

	// Unique lists target columns that must carry no duplicate values.
	Unique []string `yaml:"unique"`

	// ForeignKeys lists columns whose non-null values must resolve in the
	// referenced target table.
	ForeignKeys []ForeignKey `yaml:"foreign_keys"`
}

// ForeignKey declares one referential-integrity check.
type ForeignKey struct {
	// Column is the foreign-key-shaped column on this table.
	Column string `yaml:"column"`

	// References is the target table the column points at.
	References string `yaml:"references"`

	// RefColumn is the referenced column. Empty means "id".
	RefColumn string `yaml:"ref_column"`
}

// RefColumnName returns RefColumn or the "id" default.
func (f ForeignKey) RefColumnName() string {
	if f.RefColumn != "" {
		return f.RefColumn
	}
	return "id"
}

// TargetColumns returns the ordered target column names of the projection.
func (t Table) TargetColumns() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// SourceColumns returns the ordered legacy column names of the projection.
func (t Table) SourceColumns() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.SourceName()
	}
	return out
}

// Scales returns target column name -> decimal scale for every column with a
// declared scale. Identity transforms use this to quantize without drifting.
func (t Table) Scales() map[string]int {
	var out map[string]int
	for _, c := range t.Columns {
		if c.Scale > 0 {
			if out == nil {
				out = make(map[string]int)
			}
			out[c.Name] = c.Scale
		}
	}
	return out
}

// ScaleFor returns the declared scale of a target column, or 0.
func (t Table) ScaleFor(column string) int {
	for _, c := range t.Columns {
		if c.Name == column {
			return c.Scale
		}
	}
	return 0
}

// TableByName finds a table declaration by identifier.
func (c *Config) TableByName(name string) (Table, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Load reads and decodes a migration set file. Decoding is strict: unknown
// keys are an error so typos surface before a run, not during one.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, nil
}
