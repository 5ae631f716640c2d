// Package dbtest provides a scripted DBTX double for store tests.
package dbtest

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call records one statement issued against the fake.
type Call struct {
	SQL  string
	Args []any
}

type rowResult struct {
	values []any
	err    error
}

type execResult struct {
	tag pgconn.CommandTag
	err error
}

// Fake implements db.DBTX against queued results, in FIFO order per
// statement kind.
type Fake struct {
	Calls []Call

	rows     []rowResult
	rowSets  [][][]any
	rowSetEr []error
	execs    []execResult
}

// QueueRow queues one QueryRow result whose Scan fills dest values in
// column order.
func (f *Fake) QueueRow(values ...any) {
	f.rows = append(f.rows, rowResult{values: values})
}

// QueueRowErr queues a failing QueryRow result. Use pgx.ErrNoRows for
// an empty result.
func (f *Fake) QueueRowErr(err error) {
	f.rows = append(f.rows, rowResult{err: err})
}

// QueueRows queues one Query result set.
func (f *Fake) QueueRows(rows ...[]any) {
	f.rowSets = append(f.rowSets, rows)
	f.rowSetEr = append(f.rowSetEr, nil)
}

// QueueQueryErr queues a failing Query call.
func (f *Fake) QueueQueryErr(err error) {
	f.rowSets = append(f.rowSets, nil)
	f.rowSetEr = append(f.rowSetEr, err)
}

// QueueExec queues an Exec result with the given affected row count.
func (f *Fake) QueueExec(rowsAffected int64) {
	f.execs = append(f.execs, execResult{
		tag: pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", rowsAffected)),
	})
}

// QueueExecErr queues a failing Exec call.
func (f *Fake) QueueExecErr(err error) {
	f.execs = append(f.execs, execResult{err: err})
}

func (f *Fake) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.Calls = append(f.Calls, Call{SQL: sql, Args: args})
	if len(f.execs) == 0 {
		return pgconn.CommandTag{}, fmt.Errorf("dbtest: unexpected Exec: %s", sql)
	}
	res := f.execs[0]
	f.execs = f.execs[1:]
	return res.tag, res.err
}

func (f *Fake) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.Calls = append(f.Calls, Call{SQL: sql, Args: args})
	if len(f.rowSets) == 0 {
		return nil, fmt.Errorf("dbtest: unexpected Query: %s", sql)
	}
	set, err := f.rowSets[0], f.rowSetEr[0]
	f.rowSets = f.rowSets[1:]
	f.rowSetEr = f.rowSetEr[1:]
	if err != nil {
		return nil, err
	}
	return &fakeRows{sets: set}, nil
}

func (f *Fake) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.Calls = append(f.Calls, Call{SQL: sql, Args: args})
	if len(f.rows) == 0 {
		return &fakeRow{err: fmt.Errorf("dbtest: unexpected QueryRow: %s", sql)}
	}
	res := f.rows[0]
	f.rows = f.rows[1:]
	return &fakeRow{values: res.values, err: res.err}
}

type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

type fakeRows struct {
	sets [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	return r.idx < len(r.sets)
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx >= len(r.sets) {
		return pgx.ErrNoRows
	}
	values := r.sets[r.idx]
	r.idx++
	return scanInto(values, dest)
}

func scanInto(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("dbtest: %d values queued for %d scan targets", len(values), len(dest))
	}
	for i, value := range values {
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("dbtest: scan target %d is not a pointer", i)
		}
		elem := target.Elem()
		if value == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		v := reflect.ValueOf(value)
		if !v.Type().AssignableTo(elem.Type()) {
			if v.Type().ConvertibleTo(elem.Type()) {
				v = v.Convert(elem.Type())
			} else {
				return fmt.Errorf("dbtest: cannot scan %T into %s", value, elem.Type())
			}
		}
		elem.Set(v)
	}
	return nil
}
