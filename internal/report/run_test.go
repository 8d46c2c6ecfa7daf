package report

import (
	"testing"
)

func TestRun_Lifecycle(t *testing.T) {
	t.Parallel()

	r := NewRun()
	if r.ID == "" {
		t.Fatal("run has no id")
	}
	if r.Status != StatusCreated {
		t.Fatalf("new run status = %q", r.Status)
	}

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.Status != StatusRunning || r.StartedAt.IsZero() {
		t.Fatalf("after Start: %+v", r)
	}
	if err := r.Start(); err == nil {
		t.Fatal("second Start must fail")
	}

	if err := r.AddTable(TableStat{Name: "users", Status: TableCompleted}); err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	if err := r.AddChecks([]Check{{Name: "row_count", Passed: true}}); err != nil {
		t.Fatalf("AddChecks: %v", err)
	}

	if err := r.Finish(StatusCompleted); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !r.Status.Terminal() || r.CompletedAt.IsZero() {
		t.Fatalf("after Finish: %+v", r)
	}

	// Terminal runs are immutable.
	if err := r.AddTable(TableStat{Name: "x"}); err == nil {
		t.Error("AddTable after Finish must fail")
	}
	if err := r.AddChecks(nil); err == nil {
		t.Error("AddChecks after Finish must fail")
	}
	if err := r.Finish(StatusFailed); err == nil {
		t.Error("second Finish must fail")
	}
}

func TestRun_FinishTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		prepare func(*Run)
		to      Status
		wantErr bool
	}{
		{name: "created to aborted is allowed", prepare: func(r *Run) {}, to: StatusAborted},
		{name: "created to completed is not", prepare: func(r *Run) {}, to: StatusCompleted, wantErr: true},
		{name: "running to partial", prepare: func(r *Run) { _ = r.Start() }, to: StatusPartial},
		{name: "running to failed", prepare: func(r *Run) { _ = r.Start() }, to: StatusFailed},
		{name: "running to aborted", prepare: func(r *Run) { _ = r.Start() }, to: StatusAborted},
		{name: "finish to non-terminal", prepare: func(r *Run) { _ = r.Start() }, to: StatusRunning, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := NewRun()
			tc.prepare(r)
			err := r.Finish(tc.to)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Finish(%q) err = %v, wantErr %t", tc.to, err, tc.wantErr)
			}
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	t.Parallel()

	ok := TableStat{Status: TableCompleted}
	partial := TableStat{Status: TablePartial}
	failed := TableStat{Status: TableFailed}
	pass := Check{Passed: true}
	fail := Check{Passed: false}

	cases := []struct {
		name   string
		tables []TableStat
		checks []Check
		want   Status
	}{
		{name: "all clean", tables: []TableStat{ok, ok}, checks: []Check{pass}, want: StatusCompleted},
		{name: "no tables", want: StatusCompleted},
		{name: "row failures make partial", tables: []TableStat{ok, partial}, want: StatusPartial},
		{name: "failed check makes partial", tables: []TableStat{ok}, checks: []Check{pass, fail}, want: StatusPartial},
		{name: "failed table wins over partial", tables: []TableStat{partial, failed}, want: StatusFailed},
		{name: "failed table wins over failed check", tables: []TableStat{failed}, checks: []Check{fail}, want: StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := DeriveStatus(tc.tables, tc.checks); got != tc.want {
				t.Fatalf("DeriveStatus = %q, want %q", got, tc.want)
			}
		})
	}
}
