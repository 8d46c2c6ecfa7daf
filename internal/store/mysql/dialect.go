// Package mysql wires the MySQL backend into the store factory through the
// shared database/sql core.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"migrator/internal/store"
	"migrator/internal/store/sqldb"
)

func init() {
	store.Register("mysql", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return sqldb.Open(ctx, "mysql", cfg.DSN, dialect{}, cfg.Timeout)
	})
}

type dialect struct{}

func (dialect) Name() string { return "mysql" }

func (dialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (dialect) Placeholder(int) string { return "?" }

func (dialect) Paginate(n int) (string, string) {
	return "", fmt.Sprintf(" LIMIT %d", n)
}

func (dialect) Savepoint(name string) string  { return "SAVEPOINT " + name }
func (dialect) RollbackTo(name string) string { return "ROLLBACK TO SAVEPOINT " + name }
func (dialect) Release(name string) string    { return "RELEASE SAVEPOINT " + name }

// Row-scoped MySQL error numbers: the ones a single bad row can produce.
// Deadlocks (1213) and lock waits (1205) are deliberately absent; those are
// retryable and belong to the connection class.
var rowScopedNumbers = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1264: true, // out of range value
	1366: true, // incorrect value for column
	1406: true, // data too long
	1452: true, // foreign key constraint fails
}

func (dialect) RowScoped(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && rowScopedNumbers[myErr.Number]
}
