// Package mssql wires the SQL Server backend into the store factory through
// the shared database/sql core.
package mssql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"

	"migrator/internal/store"
	"migrator/internal/store/sqldb"
)

func init() {
	store.Register("sqlserver", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return sqldb.Open(ctx, "sqlserver", cfg.DSN, dialect{}, cfg.Timeout)
	})
}

type dialect struct{}

func (dialect) Name() string { return "sqlserver" }

func (dialect) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (dialect) Placeholder(i int) string { return fmt.Sprintf("@p%d", i) }

// SQL Server caps result sets with TOP, not LIMIT.
func (dialect) Paginate(n int) (string, string) {
	return fmt.Sprintf("TOP %d ", n), ""
}

func (dialect) Savepoint(name string) string  { return "SAVE TRANSACTION " + name }
func (dialect) RollbackTo(name string) string { return "ROLLBACK TRANSACTION " + name }

// SQL Server has no RELEASE; savepoints vanish on commit.
func (dialect) Release(string) string { return "" }

// Row-scoped SQL Server error numbers.
var rowScopedNumbers = map[int32]bool{
	245:  true, // conversion failed
	515:  true, // cannot insert NULL
	547:  true, // constraint violation (FK/check)
	2601: true, // duplicate key in unique index
	2627: true, // unique constraint violation
	2628: true, // string or binary data truncated
	8152: true, // string or binary data truncated (legacy)
}

func (dialect) RowScoped(err error) bool {
	var sqlErr mssqldb.Error
	return errors.As(err, &sqlErr) && rowScopedNumbers[sqlErr.Number]
}
