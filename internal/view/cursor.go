package view

import (
	"database/sql"

	"github.com/tanker-db/tanker/tkerr"
)

// Cursor is the result handle spec.md §4.F step 6 describes: it wraps
// the raw rows from a compiled read and exposes the four accessor
// shapes callers use (tuples, one-row, name->value mappings, batched
// chunks), plus a columnar view for dataframe-shaped consumers. It owns
// the underlying *sql.Rows and must be closed (via All/One/Dict
// exhausting it, or an explicit Close) before the enclosing scope ends.
type Cursor struct {
	rows   *sql.Rows
	fields []string
}

func newCursor(rows *sql.Rows, fields []string) *Cursor {
	return &Cursor{rows: rows, fields: fields}
}

// Fields returns the output column names, in projection order — the
// original dotted paths or field aliases requested of the view.
func (cur *Cursor) Fields() []string { return cur.fields }

func (cur *Cursor) Close() error { return cur.rows.Close() }

func (cur *Cursor) scanOne() ([]any, error) {
	raw := make([]any, len(cur.fields))
	ptrs := make([]any, len(cur.fields))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := cur.rows.Scan(ptrs...); err != nil {
		return nil, &tkerr.DriverError{Err: err}
	}
	return raw, nil
}

// All drains the cursor into a slice of row tuples, closing it.
func (cur *Cursor) All() ([][]any, error) {
	defer cur.Close()
	var out [][]any
	for cur.rows.Next() {
		row, err := cur.scanOne()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, cur.rows.Err()
}

// One returns the first row, or nil if the result set is empty, closing
// the cursor either way.
func (cur *Cursor) One() ([]any, error) {
	defer cur.Close()
	if !cur.rows.Next() {
		return nil, cur.rows.Err()
	}
	return cur.scanOne()
}

// Dict drains the cursor into a slice of name->value mappings keyed by
// the projected field names.
func (cur *Cursor) Dict() ([]map[string]any, error) {
	rows, err := cur.All()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(cur.fields))
		for j, name := range cur.fields {
			m[name] = row[j]
		}
		out[i] = m
	}
	return out, nil
}

// Chunks drains the cursor in batches of at most n rows, calling fn for
// each batch in order; it stops early if fn returns an error. This is
// the streaming counterpart of All for result sets too large to hold
// entirely in memory.
func (cur *Cursor) Chunks(n int, fn func([][]any) error) error {
	defer cur.Close()
	batch := make([][]any, 0, n)
	for cur.rows.Next() {
		row, err := cur.scanOne()
		if err != nil {
			return err
		}
		batch = append(batch, row)
		if len(batch) == n {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := cur.rows.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// Columns is the columnar accessor spec.md §4.F step 6 calls `.df()`:
// one slice per field, in projection order. Tanker's core has no
// dataframe dependency of its own (see design note "Dataframe
// interop") — this is the shape an external collaborator package
// bridges into a real dataframe type from.
type Columns struct {
	Fields []string
	Data   [][]any // Data[i] is the column for Fields[i]
}

// Columnar drains the cursor into column-major form.
func (cur *Cursor) Columnar() (*Columns, error) {
	rows, err := cur.All()
	if err != nil {
		return nil, err
	}
	out := &Columns{Fields: cur.fields, Data: make([][]any, len(cur.fields))}
	for _, row := range rows {
		for j, v := range row {
			out.Data[j] = append(out.Data[j], v)
		}
	}
	return out, nil
}
