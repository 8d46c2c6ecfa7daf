// Package sqlite wires the SQLite backend into the store factory through the
// shared database/sql core. Besides serving as a lightweight target, it is
// the store the integration tests run against, since it needs no server.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sqlite3 "modernc.org/sqlite"

	"migrator/internal/store"
	"migrator/internal/store/sqldb"
)

func init() {
	store.Register("sqlite", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return sqldb.Open(ctx, "sqlite", cfg.DSN, dialect{}, cfg.Timeout)
	})
}

type dialect struct{}

func (dialect) Name() string { return "sqlite" }

func (dialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (dialect) Placeholder(int) string { return "?" }

func (dialect) Paginate(n int) (string, string) {
	return "", fmt.Sprintf(" LIMIT %d", n)
}

func (dialect) Savepoint(name string) string  { return "SAVEPOINT " + name }
func (dialect) RollbackTo(name string) string { return "ROLLBACK TO SAVEPOINT " + name }
func (dialect) Release(name string) string    { return "RELEASE SAVEPOINT " + name }

// SQLite primary result codes attributable to a single row.
const (
	codeConstraint = 19 // SQLITE_CONSTRAINT (unique, FK, check, not null)
	codeMismatch   = 20 // SQLITE_MISMATCH (type coercion)
)

func (dialect) RowScoped(err error) bool {
	var sqErr *sqlite3.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	switch sqErr.Code() & 0xff {
	case codeConstraint, codeMismatch:
		return true
	}
	return false
}
