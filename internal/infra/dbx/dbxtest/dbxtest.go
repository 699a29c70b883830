// Package dbxtest provides an in-memory dbx.Querier for repository tests.
package dbxtest

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Call struct {
	SQL  string
	Args []any
}

// Querier replays canned rows in order and records every statement.
type Querier struct {
	Calls   []Call
	Rows    [][]any
	RowErrs []error
	Multi   [][]any
	Tags    []string
	ExecErr error
}

func (f *Querier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.Calls = append(f.Calls, Call{SQL: sql, Args: args})
	tag := "INSERT 0 1"
	if len(f.Tags) > 0 {
		tag, f.Tags = f.Tags[0], f.Tags[1:]
	}
	return pgconn.NewCommandTag(tag), f.ExecErr
}

func (f *Querier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.Calls = append(f.Calls, Call{SQL: sql, Args: args})
	return &fakeRows{rows: f.Multi, idx: -1}, nil
}

func (f *Querier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.Calls = append(f.Calls, Call{SQL: sql, Args: args})
	var (
		vals []any
		err  error
	)
	if len(f.Rows) > 0 {
		vals, f.Rows = f.Rows[0], f.Rows[1:]
	}
	if len(f.RowErrs) > 0 {
		err, f.RowErrs = f.RowErrs[0], f.RowErrs[1:]
	}
	return fakeRow{vals: vals, err: err}
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.vals, dest)
}

func assign(vals, dest []any) error {
	if len(vals) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(vals), len(dest))
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error { return assign(r.rows[r.idx], dest) }

func (r *fakeRows) Values() ([]any, error) { return r.rows[r.idx], nil }
