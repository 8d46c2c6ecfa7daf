package mssql

import (
	"errors"
	"fmt"
	"testing"

	mssqldb "github.com/microsoft/go-mssqldb"
)

func TestDialect_SQLSurface(t *testing.T) {
	t.Parallel()

	d := dialect{}
	if got := d.Quote("users"); got != "[users]" {
		t.Errorf("Quote = %s", got)
	}
	if got := d.Quote("we]ird"); got != "[we]]ird]" {
		t.Errorf("Quote escaping = %s", got)
	}
	if got := d.Placeholder(2); got != "@p2" {
		t.Errorf("Placeholder = %s", got)
	}
	mod, trail := d.Paginate(50)
	if mod != "TOP 50 " || trail != "" {
		t.Errorf("Paginate = (%q, %q)", mod, trail)
	}
	if d.Savepoint("sp") != "SAVE TRANSACTION sp" ||
		d.RollbackTo("sp") != "ROLLBACK TRANSACTION sp" {
		t.Error("savepoint statements wrong")
	}
	if d.Release("sp") != "" {
		t.Error("SQL Server has no savepoint release")
	}
}

func TestDialect_RowScoped(t *testing.T) {
	t.Parallel()

	d := dialect{}

	for _, num := range []int32{245, 515, 547, 2601, 2627, 2628, 8152} {
		err := fmt.Errorf("insert: %w", mssqldb.Error{Number: num})
		if !d.RowScoped(err) {
			t.Errorf("error %d should be row scoped", num)
		}
	}
	// Deadlock victim takes the retry path.
	if d.RowScoped(mssqldb.Error{Number: 1205}) {
		t.Error("deadlock must not be row scoped")
	}
	if d.RowScoped(errors.New("tcp reset")) {
		t.Error("plain errors must not be row scoped")
	}
}
