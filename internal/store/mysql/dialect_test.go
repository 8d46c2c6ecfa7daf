package mysql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestDialect_SQLSurface(t *testing.T) {
	t.Parallel()

	d := dialect{}
	if got := d.Quote("users"); got != "`users`" {
		t.Errorf("Quote = %s", got)
	}
	if got := d.Quote("we`ird"); got != "`we``ird`" {
		t.Errorf("Quote escaping = %s", got)
	}
	if got := d.Placeholder(3); got != "?" {
		t.Errorf("Placeholder = %s", got)
	}
	mod, trail := d.Paginate(100)
	if mod != "" || trail != " LIMIT 100" {
		t.Errorf("Paginate = (%q, %q)", mod, trail)
	}
	if d.Savepoint("sp") != "SAVEPOINT sp" ||
		d.RollbackTo("sp") != "ROLLBACK TO SAVEPOINT sp" ||
		d.Release("sp") != "RELEASE SAVEPOINT sp" {
		t.Error("savepoint statements wrong")
	}
}

func TestDialect_RowScoped(t *testing.T) {
	t.Parallel()

	d := dialect{}

	rowScoped := []uint16{1048, 1062, 1264, 1366, 1406, 1452}
	for _, num := range rowScoped {
		err := fmt.Errorf("insert: %w", &mysql.MySQLError{Number: num, Message: "x"})
		if !d.RowScoped(err) {
			t.Errorf("error %d should be row scoped", num)
		}
	}

	// Deadlocks and lock waits take the retry path.
	for _, num := range []uint16{1205, 1213} {
		if d.RowScoped(&mysql.MySQLError{Number: num}) {
			t.Errorf("error %d must not be row scoped", num)
		}
	}

	if d.RowScoped(errors.New("driver: bad connection")) {
		t.Error("plain errors must not be row scoped")
	}
}
