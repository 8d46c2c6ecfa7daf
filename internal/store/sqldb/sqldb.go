// Package sqldb implements the store contract on top of database/sql for
// every backend without a native Go protocol library worth special-casing
// (MySQL, SQL Server, SQLite). Backends supply a Dialect (identifier
// quoting, placeholder style, savepoint syntax, and error classification)
// and share the rest: keyset pagination, savepoint-isolated batch inserts,
// and the verification queries.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"migrator/internal/store"
	"migrator/pkg/records"
)

// Dialect abstracts the SQL surface that differs between engines.
type Dialect interface {
	// Name is the backend name as registered with the store factory.
	Name() string

	// Quote quotes a single identifier segment.
	Quote(ident string) string

	// Placeholder returns the parameter marker for 1-based position i.
	Placeholder(i int) string

	// Paginate returns the two halves of the dialect's row-limit syntax: a
	// SELECT modifier ("TOP n " on SQL Server) and a trailing clause
	// (" LIMIT n" elsewhere). Exactly one of the two is non-empty.
	Paginate(n int) (selectModifier, trailer string)

	// Savepoint, RollbackTo, and Release return the statements managing a
	// named savepoint. Release may return "" for engines without one.
	Savepoint(name string) string
	RollbackTo(name string) string
	Release(name string) string

	// RowScoped reports whether a driver error is attributable to the single
	// row being inserted (constraint violation, bad coercion) rather than
	// the connection or transaction.
	RowScoped(err error) bool
}

// Repository implements store.Store generically over a Dialect.
type Repository struct {
	db      *sql.DB
	d       Dialect
	timeout time.Duration
}

// New wraps an open database handle. The caller keeps ownership of db; Close
// releases it.
func New(db *sql.DB, d Dialect, timeout time.Duration) *Repository {
	return &Repository{db: db, d: d, timeout: timeout}
}

// Open opens a database/sql handle for the dialect and pings it so bad DSNs
// fail fast, before any table work starts.
func Open(ctx context.Context, driverName, dsn string, d Dialect, timeout time.Duration) (*Repository, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.Name(), err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.Name(), err)
	}
	return New(db, d, timeout), nil
}

// DB exposes the underlying handle for schema setup in tests and tooling.
func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) stmtCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// quoteFQN quotes a possibly schema-qualified name segment by segment.
func (r *Repository) quoteFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = r.d.Quote(p)
	}
	return strings.Join(parts, ".")
}

// classify wraps a driver error with its store kind.
func (r *Repository) classify(err error) error {
	if r.d.RowScoped(err) {
		return store.Conflict(err)
	}
	return store.Connection(err)
}

// Count implements store.Store.
func (r *Repository) Count(ctx context.Context, table string) (int64, error) {
	ctx, cancel := r.stmtCtx(ctx)
	defer cancel()

	var n int64
	q := "SELECT COUNT(*) FROM " + r.quoteFQN(table)
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, r.classify(fmt.Errorf("%s: count %s: %w", r.d.Name(), table, err))
	}
	return n, nil
}

// ReadBatch implements store.Store using keyset pagination.
func (r *Repository) ReadBatch(ctx context.Context, q store.ReadQuery) ([]records.Record, error) {
	ctx, cancel := r.stmtCtx(ctx)
	defer cancel()

	sel := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		sel[i] = r.d.Quote(c.Source) + " AS " + r.d.Quote(c.Target)
	}
	srcKey := r.d.Quote(q.SourceKey())
	modifier, trailer := r.d.Paginate(q.Limit)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s%s FROM %s", modifier, strings.Join(sel, ", "), r.quoteFQN(q.Table))
	args := []any{}
	if q.AfterKey != nil {
		fmt.Fprintf(&sb, " WHERE %s > %s", srcKey, r.d.Placeholder(1))
		args = append(args, q.AfterKey)
	}
	fmt.Fprintf(&sb, " ORDER BY %s ASC%s", srcKey, trailer)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, r.classify(fmt.Errorf("%s: read %s: %w", r.d.Name(), q.Table, err))
	}
	defer rows.Close()

	var out []records.Record
	vals := make([]any, len(q.Columns))
	ptrs := make([]any, len(q.Columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, r.classify(fmt.Errorf("%s: read %s: %w", r.d.Name(), q.Table, err))
		}
		rec := make(records.Record, len(q.Columns))
		for i, c := range q.Columns {
			rec[c.Target] = normalizeValue(vals[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.classify(fmt.Errorf("%s: read %s: %w", r.d.Name(), q.Table, err))
	}
	return out, nil
}

// normalizeValue converts driver-specific scan results into the value
// vocabulary the transforms expect. []byte becomes string; everything else
// passes through.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// bindValue is the write-side mirror of normalizeValue: it converts values
// database/sql cannot bind directly. Structured values (maps, slices other
// than []byte) are stored as their JSON encoding.
func bindValue(v any) (any, error) {
	switch v.(type) {
	case nil, []byte:
		return v, nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode value: %w", err)
		}
		return string(b), nil
	}
	return v, nil
}

// rowScoped extends the dialect's classification with client-side argument
// conversion failures, which are a property of the row's values rather than
// of the connection.
func (r *Repository) rowScoped(err error) bool {
	if r.d.RowScoped(err) {
		return true
	}
	return strings.Contains(err.Error(), "converting argument")
}

// InsertBatch implements store.Store: one transaction per batch, one
// savepoint per row. Conflicting rows are rolled back to their savepoint and
// reported; the rest of the batch commits.
func (r *Repository) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (store.BatchResult, error) {
	var res store.BatchResult
	if len(rows) == 0 {
		return res, nil
	}

	ctx, cancel := r.stmtCtx(ctx)
	defer cancel()

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = r.d.Quote(c)
		placeholders[i] = r.d.Placeholder(i + 1)
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		r.quoteFQN(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, store.Connection(fmt.Errorf("%s: begin: %w", r.d.Name(), err))
	}
	defer tx.Rollback() // no-op after commit

	const sp = "sp_row"
	for i, row := range rows {
		args := make([]any, len(row))
		var bindErr error
		for j, v := range row {
			if args[j], bindErr = bindValue(v); bindErr != nil {
				break
			}
		}
		if bindErr != nil {
			res.Failed = append(res.Failed, store.RowFailure{Index: i, Err: store.Conflict(bindErr)})
			continue
		}
		if _, err := tx.ExecContext(ctx, r.d.Savepoint(sp)); err != nil {
			return store.BatchResult{}, store.Connection(fmt.Errorf("%s: savepoint: %w", r.d.Name(), err))
		}
		if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
			if r.rowScoped(err) {
				if _, rbErr := tx.ExecContext(ctx, r.d.RollbackTo(sp)); rbErr != nil {
					return store.BatchResult{}, store.Connection(fmt.Errorf("%s: rollback to savepoint: %w", r.d.Name(), rbErr))
				}
				res.Failed = append(res.Failed, store.RowFailure{Index: i, Err: store.Conflict(err)})
				continue
			}
			return store.BatchResult{}, store.Connection(fmt.Errorf("%s: insert %s: %w", r.d.Name(), table, err))
		}
		if rel := r.d.Release(sp); rel != "" {
			if _, err := tx.ExecContext(ctx, rel); err != nil {
				return store.BatchResult{}, store.Connection(fmt.Errorf("%s: release savepoint: %w", r.d.Name(), err))
			}
		}
		res.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return store.BatchResult{}, store.Connection(fmt.Errorf("%s: commit %s: %w", r.d.Name(), table, err))
	}
	return res, nil
}

// Sum implements store.Store.
func (r *Repository) Sum(ctx context.Context, table, column string) (float64, error) {
	ctx, cancel := r.stmtCtx(ctx)
	defer cancel()

	var sum sql.NullFloat64
	q := fmt.Sprintf("SELECT SUM(%s) FROM %s", r.d.Quote(column), r.quoteFQN(table))
	if err := r.db.QueryRowContext(ctx, q).Scan(&sum); err != nil {
		return 0, r.classify(fmt.Errorf("%s: sum %s.%s: %w", r.d.Name(), table, column, err))
	}
	return sum.Float64, nil
}

// DuplicateCount implements store.Store.
func (r *Repository) DuplicateCount(ctx context.Context, table, column string) (int64, error) {
	ctx, cancel := r.stmtCtx(ctx)
	defer cancel()

	var n int64
	col := r.d.Quote(column)
	q := fmt.Sprintf("SELECT COUNT(%s) - COUNT(DISTINCT %s) FROM %s", col, col, r.quoteFQN(table))
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, r.classify(fmt.Errorf("%s: duplicates %s.%s: %w", r.d.Name(), table, column, err))
	}
	return n, nil
}

// OrphanCount implements store.Store.
func (r *Repository) OrphanCount(ctx context.Context, table, column, refTable, refColumn string) (int64, error) {
	ctx, cancel := r.stmtCtx(ctx)
	defer cancel()

	var n int64
	q := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s t LEFT JOIN %s r ON t.%s = r.%s WHERE t.%s IS NOT NULL AND r.%s IS NULL",
		r.quoteFQN(table), r.quoteFQN(refTable),
		r.d.Quote(column), r.d.Quote(refColumn),
		r.d.Quote(column), r.d.Quote(refColumn),
	)
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, r.classify(fmt.Errorf("%s: orphans %s.%s: %w", r.d.Name(), table, column, err))
	}
	return n, nil
}

// Close implements store.Store.
func (r *Repository) Close() {
	_ = r.db.Close()
}
