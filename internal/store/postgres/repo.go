// Package postgres implements the Postgres store backend using pgx v5.
//
// Batch inserts run inside one transaction with a savepoint per row (pgx
// nested transactions), so a constraint violation rolls back only the
// offending row while the rest of the batch commits. Driver errors are
// classified by SQLSTATE: class 23 (integrity) and 22 (data exception) are
// row-scoped conflicts, everything else is connection-class and lands in the
// engine's bounded-retry path.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"migrator/internal/store"
	"migrator/pkg/records"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN     string
	Timeout time.Duration // per-statement cap; zero disables
}

// Repository is a Postgres-backed store.Store.
type Repository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository constructs a Repository and returns a close function for
// cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool, timeout: cfg.Timeout}, closeFn, nil
}

// stmtCtx applies the per-statement timeout when configured.
func (r *Repository) stmtCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Count implements store.Store.
func (r *Repository) Count(ctx context.Context, table string) (int64, error) {
	ctx, cancel := r.stmtCtx(ctx)
	defer cancel()

	var n int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgFQN(table)).Scan(&n)
	if err != nil {
		return 0, classify(fmt.Errorf("count %s: %w", table, err))
	}
	return n, nil
}

// ReadBatch implements store.Store using keyset pagination.
func (r *Repository) ReadBatch(ctx context.Context, q store.ReadQuery) ([]records.Record, error) {
	ctx, cancel := r.stmtCtx(ctx)
	defer cancel()

	sel := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		sel[i] = pgIdent(c.Source) + " AS " + pgIdent(c.Target)
	}
	srcKey := pgIdent(q.SourceKey())

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(sel, ", "), pgFQN(q.Table))
	args := []any{}
	if q.AfterKey != nil {
		sb.WriteString(" WHERE " + srcKey + " > $1")
		args = append(args, q.AfterKey)
	}
	fmt.Fprintf(&sb, " ORDER BY %s ASC LIMIT %d", srcKey, q.Limit)

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, classify(fmt.Errorf("read %s: %w", q.Table, err))
	}
	defer rows.Close()

	var out []records.Record
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, classify(fmt.Errorf("read %s: %w", q.Table, err))
		}
		rec := make(records.Record, len(q.Columns))
		for i, c := range q.Columns {
			rec[c.Target] = vals[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("read %s: %w", q.Table, err))
	}
	return out, nil
}

// InsertBatch implements store.Store. See the package comment for the
// savepoint contract.
func (r *Repository) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (store.BatchResult, error) {
	var res store.BatchResult
	if len(rows) == 0 {
		return res, nil
	}

	ctx, cancel := r.stmtCtx(ctx)
	defer cancel()

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		pgFQN(table),
		strings.Join(mapIdent(columns), ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, store.Connection(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback(ctx) // no-op after commit

	for i, row := range rows {
		// Nested Begin issues a SAVEPOINT under pgx.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return store.BatchResult{}, store.Connection(fmt.Errorf("savepoint: %w", err))
		}
		if _, err := sp.Exec(ctx, insertSQL, row...); err != nil {
			if rowScoped(err) {
				_ = sp.Rollback(ctx)
				res.Failed = append(res.Failed, store.RowFailure{Index: i, Err: store.Conflict(err)})
				continue
			}
			return store.BatchResult{}, store.Connection(fmt.Errorf("insert %s: %w", table, err))
		}
		if err := sp.Commit(ctx); err != nil {
			return store.BatchResult{}, store.Connection(fmt.Errorf("release savepoint: %w", err))
		}
		res.Inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return store.BatchResult{}, store.Connection(fmt.Errorf("commit %s: %w", table, err))
	}
	return res, nil
}

// Sum implements store.Store.
func (r *Repository) Sum(ctx context.Context, table, column string) (float64, error) {
	ctx, cancel := r.stmtCtx(ctx)
	defer cancel()

	var sum float64
	q := fmt.Sprintf("SELECT COALESCE(SUM(%s), 0)::float8 FROM %s", pgIdent(column), pgFQN(table))
	if err := r.pool.QueryRow(ctx, q).Scan(&sum); err != nil {
		return 0, classify(fmt.Errorf("sum %s.%s: %w", table, column, err))
	}
	return sum, nil
}

// DuplicateCount implements store.Store. Zero means the column is unique
// among non-null values.
func (r *Repository) DuplicateCount(ctx context.Context, table, column string) (int64, error) {
	ctx, cancel := r.stmtCtx(ctx)
	defer cancel()

	var n int64
	q := fmt.Sprintf("SELECT COUNT(%s) - COUNT(DISTINCT %s) FROM %s",
		pgIdent(column), pgIdent(column), pgFQN(table))
	if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, classify(fmt.Errorf("duplicates %s.%s: %w", table, column, err))
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
		pgFQN(table), pgFQN(refTable),
		pgIdent(column), pgIdent(refColumn),
		pgIdent(column), pgIdent(refColumn),
	)
	if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, classify(fmt.Errorf("orphans %s.%s: %w", table, column, err))
	}
	return n, nil
}

// rowScoped reports whether err can be attributed to the single row being
// inserted: SQLSTATE class 23 (integrity constraint violation) or 22 (data
// exception, e.g. value out of range, bad coercion).
func rowScoped(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	code := pgErr.SQLState()
	return strings.HasPrefix(code, "23") || strings.HasPrefix(code, "22")
}

// classify wraps err with its store kind for the engine's recovery policy.
func classify(err error) error {
	if rowScoped(err) {
		return store.Conflict(err)
	}
	return store.Connection(err)
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.users" to
// "public"."users". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
