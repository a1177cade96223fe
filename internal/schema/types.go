// Package schema implements the tanker schema registry: parsing of
// table/column/key/relation declarations and the typed lookups the rest
// of the compiler relies on (component A of the design).
//
// It is grounded on original_source/tanker/table.py: Column and Table
// keep the same invariants (implicit "id" surrogate, single natural key,
// m2o/o2m relation resolution) translated into a statically typed Go
// registry built once per process and shared read-only afterwards.
package schema

import (
	"fmt"
	"strings"
)

// ColumnKind enumerates the scalar and relational column types a table
// declaration may use. Scalars mirror the original's COLUMN_TYPE tuple;
// M2O/O2M are the two relation kinds.
type ColumnKind string

const (
	Varchar   ColumnKind = "VARCHAR"
	Integer   ColumnKind = "INTEGER"
	BigInt    ColumnKind = "BIGINT"
	Float     ColumnKind = "FLOAT"
	Bool      ColumnKind = "BOOL"
	Date      ColumnKind = "DATE"
	Timestamp ColumnKind = "TIMESTAMP"
	Bytea     ColumnKind = "BYTEA"
	JSONB     ColumnKind = "JSONB"
	M2O       ColumnKind = "M2O"
	O2M       ColumnKind = "O2M"
)

func (k ColumnKind) IsRelation() bool { return k == M2O || k == O2M }

func (k ColumnKind) valid() bool {
	switch k {
	case Varchar, Integer, BigInt, Float, Bool, Date, Timestamp, Bytea, JSONB, M2O, O2M:
		return true
	}
	return false
}

// ColumnDef is the raw, unlinked description of a column as it appears in
// a table declaration (the `type-spec` of spec.md §6): a scalar SQL type,
// or "m2o <table>.<col>" / "o2m <table>.<col>".
type ColumnDef struct {
	Name      string
	TypeSpec  string
	NotNull   bool
	Default   string
	ArrayDims int
}

// Column is a fully parsed column, still unlinked to its relation target
// (linking happens when the Registry is built, since the target table may
// not exist yet).
type Column struct {
	Name      string
	Kind      ColumnKind
	ArrayDims int
	NotNull   bool
	Default   string

	// ForeignTable/ForeignCol are set for M2O/O2M columns.
	ForeignTable string
	ForeignCol   string

	table *Table
}

func (c *Column) Table() *Table { return c.table }

func (c *Column) IsScalar() bool { return !c.Kind.IsRelation() }

// parseColumnDef turns a raw type-spec string ("varchar", "m2o team.id",
// "o2m member.team", "integer[]") into a Column, mirroring
// table.py:Column.__init__.
func parseColumnDef(def ColumnDef) (*Column, error) {
	spec := strings.TrimSpace(def.TypeSpec)
	col := &Column{Name: def.Name, NotNull: def.NotNull, Default: def.Default}

	if strings.Contains(spec, " ") {
		parts := strings.SplitN(spec, " ", 2)
		kind := strings.ToUpper(parts[0])
		fk := parts[1]
		if !strings.Contains(fk, ".") {
			return nil, fmt.Errorf("malformed column definition %q for %q", def.TypeSpec, def.Name)
		}
		dotIdx := strings.LastIndex(fk, ".")
		col.ForeignTable, col.ForeignCol = fk[:dotIdx], fk[dotIdx+1:]
		spec = kind
	}

	base := strings.ToUpper(spec)
	dims := 0
	for strings.HasSuffix(base, "[]") {
		base = strings.TrimSuffix(base, "[]")
		dims++
	}
	kind := ColumnKind(base)
	if !kind.valid() {
		return nil, fmt.Errorf("unexpected type %q for column %q", def.TypeSpec, def.Name)
	}
	if dims > 0 && kind.IsRelation() {
		return nil, fmt.Errorf("array type is not supported on %q (column %q)", kind, def.Name)
	}
	col.Kind = kind
	col.ArrayDims = dims
	return col, nil
}

// TableDef is the raw declaration of a table, as parsed from a schema
// file (spec.md §6): name, ordered columns, natural key, optional extra
// unique indexes.
type TableDef struct {
	Name    string
	Columns []ColumnDef
	Key     []string
	Unique  [][]string
	// Values holds optional seed rows (column name -> value), applied by
	// CreateTables once the table exists (mirrors table.py's `values`).
	Values []map[string]any
}

// Table is a fully parsed table: its id surrogate is always present,
// its key is always non-empty and validated against its own columns.
type Table struct {
	Name       string
	Columns    []*Column
	OwnColumns []*Column // columns excluding id and O2M virtual columns
	Key        []string
	Unique     [][]string
	Values     []map[string]any

	byName map[string]*Column
}

func newTable(def TableDef) (*Table, error) {
	t := &Table{Name: def.Name, Unique: def.Unique, Values: def.Values, byName: map[string]*Column{}}

	hasID := false
	for _, cd := range def.Columns {
		if cd.Name == "id" {
			hasID = true
		}
	}
	cols := make([]ColumnDef, 0, len(def.Columns)+1)
	if !hasID {
		cols = append(cols, ColumnDef{Name: "id", TypeSpec: "integer"})
	}
	cols = append(cols, def.Columns...)

	for _, cd := range cols {
		col, err := parseColumnDef(cd)
		if err != nil {
			return nil, &schemaErr{table: def.Name, err: err}
		}
		col.table = t
		t.Columns = append(t.Columns, col)
		t.byName[col.Name] = col
	}

	for _, c := range t.Columns {
		if c.Name != "id" && c.Kind != O2M {
			t.OwnColumns = append(t.OwnColumns, c)
		}
	}

	key := def.Key
	if len(key) == 0 {
		nonID := make([]string, 0, 1)
		for _, c := range t.Columns {
			if c.Name != "id" {
				nonID = append(nonID, c.Name)
			}
		}
		if len(t.Columns) == 2 {
			key = nonID
		} else {
			return nil, &schemaErr{table: def.Name, err: fmt.Errorf("no key defined on %s", def.Name)}
		}
	}
	t.Key = key

	for _, k := range t.Key {
		col, ok := t.byName[k]
		if !ok {
			return nil, &schemaErr{table: def.Name, err: fmt.Errorf("key column %q does not exist", k)}
		}
		if col.Kind == O2M {
			return nil, &schemaErr{table: def.Name, err: fmt.Errorf("key column %q cannot be an o2m column", k)}
		}
	}
	return t, nil
}

func (t *Table) GetColumn(name string) (*Column, error) {
	c, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found in table %q", name, t.Name)
	}
	return c, nil
}

// DefaultFields mirrors table.py:Table.default_fields: the natural
// field list for a view built without explicit fields — scalar columns
// by name, m2o columns expanded as "<col>.<key...>" dotted paths.
func (t *Table) DefaultFields(reg *Registry) ([]string, error) {
	var fields []string
	for _, c := range t.OwnColumns {
		if c.Kind == M2O {
			ft, err := reg.Table(c.ForeignTable)
			if err != nil {
				return nil, err
			}
			for _, k := range ft.Key {
				fields = append(fields, c.Name+"."+k)
			}
		} else {
			fields = append(fields, c.Name)
		}
	}
	return fields, nil
}

type schemaErr struct {
	table string
	err   error
}

func (e *schemaErr) Error() string { return e.err.Error() }
func (e *schemaErr) Unwrap() error { return e.err }
