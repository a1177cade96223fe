// Package view implements the read and write sides of a tanker view
// (components F and G): composing a single SELECT from resolved fields,
// filters, group-by and order; and staging rows through a temp table to
// emit a single upsert keyed on the target's natural key.
//
// Grounded on original_source/tanker/view.py: ViewField/View are ported
// with the same field classification (plain column, dotted m2o path,
// expression, alias) and the same key-column derivation rules.
package view

import (
	"strings"

	"github.com/tanker-db/tanker/internal/schema"
	"github.com/tanker-db/tanker/internal/sexpr"
	"github.com/tanker-db/tanker/tkerr"
)

// FieldKind classifies a ViewField the way ViewField.ftype/ctype does in
// the original.
type FieldKind int

const (
	KindColumn FieldKind = iota
	KindPath             // dotted m2o path, e.g. "country.name"
	KindExpr             // s-expression, e.g. "(count *)"
	KindAlias             // "{name}" — a reference to another field's alias
)

// Field is one entry of a view's field list: a name (its output column),
// a raw descriptor string, and, once parsed, enough information to tell
// what kind of thing it is.
type Field struct {
	Name string
	Desc string
	Kind FieldKind

	// Column is set for KindColumn and KindPath fields: the first
	// (possibly relational) column of Desc on the view's base table.
	Column *schema.Column

	// Node is the parsed AST for KindExpr fields.
	Node sexpr.Node
}

// NewField classifies one (name, desc) pair against `table`, mirroring
// ViewField.__init__.
func NewField(name, desc string, table *schema.Table) (*Field, error) {
	f := &Field{Name: strings.TrimSpace(name), Desc: desc}

	switch {
	case strings.HasPrefix(desc, "("):
		node, err := sexpr.Parse(desc)
		if err != nil {
			return nil, err
		}
		f.Kind = KindExpr
		f.Node = node
	case strings.Contains(desc, "."):
		head, _, _ := strings.Cut(desc, ".")
		col, err := table.GetColumn(head)
		if err != nil {
			return nil, &tkerr.ResolveError{Table: table.Name, Path: desc, Cause: err.Error()}
		}
		f.Kind = KindPath
		f.Column = col
	case strings.HasPrefix(desc, "{"):
		f.Kind = KindAlias
	default:
		col, err := table.GetColumn(desc)
		if err != nil {
			return nil, &tkerr.ResolveError{Table: table.Name, Path: desc, Cause: err.Error()}
		}
		f.Kind = KindColumn
		f.Column = col
	}
	return f, nil
}

// IsWritable reports whether this field can participate in a write: it
// must resolve to a plain column or a dotted m2o path.
func (f *Field) IsWritable() bool { return f.Kind == KindColumn || f.Kind == KindPath }
