package view

import (
	"github.com/tanker-db/tanker/internal/schema"
	"github.com/tanker-db/tanker/tkerr"
)

// FieldSpec is one requested (name, descriptor) pair, in caller order —
// the Go shape of the original's ordered fields dict.
type FieldSpec struct {
	Name string
	Desc string
}

// View is a compiled field list bound to one base table: the unit both
// the read and write pipelines operate on, mirroring view.py:View.
type View struct {
	Table    *schema.Table
	Registry *schema.Registry
	Fields   []*Field

	byName map[string]*Field

	// columns holds, in first-seen order, every physical target column a
	// writable field resolves into, alongside every field contributing
	// to it (a single m2o column can be targeted by more than one dotted
	// path, e.g. "country.name" and "country.code" both via the
	// "country" column) — mirrors View.field_map.
	columns    []*schema.Column
	columnFields map[*schema.Column][]*Field

	// KeyFields holds, for each of Table.Key's natural-key columns, the
	// name of the view field that supplies it as a plain column — used
	// by write() to declare those staged columns NOT NULL.
	KeyFields []string

	// KeyCols holds the physical column(s) write()/delete() match rows
	// on: ["id"] if the view's field set covers the id column, the
	// table's natural key columns otherwise. Mirrors View.key_cols.
	KeyCols []string
}

// New builds a View over `table`; an empty `specs` falls back to the
// table's default field list (table.py:View.__init__ calling
// Table.default_fields when fields is None).
func New(reg *schema.Registry, table *schema.Table, specs []FieldSpec) (*View, error) {
	if len(specs) == 0 {
		defaults, err := table.DefaultFields(reg)
		if err != nil {
			return nil, err
		}
		specs = make([]FieldSpec, len(defaults))
		for i, d := range defaults {
			specs[i] = FieldSpec{Name: d, Desc: d}
		}
	}

	v := &View{
		Table:        table,
		Registry:     reg,
		byName:       map[string]*Field{},
		columnFields: map[*schema.Column][]*Field{},
	}
	for _, spec := range specs {
		f, err := NewField(spec.Name, spec.Desc, table)
		if err != nil {
			return nil, err
		}
		if _, dup := v.byName[f.Name]; dup {
			return nil, &tkerr.SchemaError{Table: table.Name, Message: "duplicate field name " + f.Name}
		}
		v.Fields = append(v.Fields, f)
		v.byName[f.Name] = f

		if f.Column == nil {
			continue
		}
		if existing := v.columnFields[f.Column]; len(existing) > 0 && f.Column.Kind != schema.M2O && f.Column.Kind != schema.O2M {
			return nil, &tkerr.SchemaError{Table: table.Name, Message: "column " + f.Column.Name + " is specified more than once in view"}
		}
		if len(v.columnFields[f.Column]) == 0 {
			v.columns = append(v.columns, f.Column)
		}
		v.columnFields[f.Column] = append(v.columnFields[f.Column], f)
	}

	v.KeyFields = deriveKeyFields(table, v.Fields)
	v.KeyCols = deriveKeyCols(table, v.columnFields)
	return v, nil
}

func (v *View) Field(name string) (*Field, bool) {
	f, ok := v.byName[name]
	return f, ok
}

// Columns returns every physical target column at least one writable
// field resolves into, in first-seen order.
func (v *View) Columns() []*schema.Column { return v.columns }

// FieldsFor returns the fields contributing to physical column c —
// always length 1 except for an m2o column targeted by several dotted
// paths.
func (v *View) FieldsFor(c *schema.Column) []*Field { return v.columnFields[c] }

// ValidateKey checks that this view's field set, via `covered` (the set
// of physical column names it resolves into), univocally identifies a
// row: either the id column, or every column of the table's natural
// key. Mirrors View.validate_key.
func (v *View) ValidateKey() error {
	for _, c := range v.columns {
		if c.Name == "id" {
			return nil
		}
	}
	var missing []string
	covered := map[string]bool{}
	for _, c := range v.columns {
		covered[c.Name] = true
	}
	for _, k := range v.Table.Key {
		if !covered[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &tkerr.ArgError{
			Name:    v.Table.Name,
			Message: "write/delete requires every column of the table's key (or id); missing: " + joinStrings(missing),
		}
	}
	return nil
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// deriveKeyFields finds, for every column of the table's natural key, a
// view field whose descriptor is exactly that column name — mirroring
// View.key_fields in the original. A key column supplied through an
// alias or a dotted path has no entry here; ValidateKey still accepts it.
func deriveKeyFields(t *schema.Table, fields []*Field) []string {
	var out []string
	for _, k := range t.Key {
		for _, f := range fields {
			if f.Kind == KindColumn && f.Desc == k {
				out = append(out, f.Name)
				break
			}
		}
	}
	return out
}

// deriveKeyCols mirrors View.key_cols: ["id"] when the field set covers
// the id column, the table's natural key otherwise.
func deriveKeyCols(t *schema.Table, columnFields map[*schema.Column][]*Field) []string {
	for c := range columnFields {
		if c.Name == "id" {
			return []string{"id"}
		}
	}
	return append([]string{}, t.Key...)
}
