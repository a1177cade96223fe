package schema

import (
	"fmt"
	"sort"

	"github.com/tanker-db/tanker/tkerr"
)

// Relation is a linked, validated edge between two tables: the m2o column
// that carries the foreign key, and the (table, column) it targets.
// Computed once at Build() time and cached per table, sorted by
// (source column, target table, target column) as spec.md §4.A requires,
// so that path resolution (component C) is deterministic.
type Relation struct {
	Column       *Column
	TargetTable  *Table
	TargetColumn *Column
}

// Registry is the immutable, process-wide set of linked tables. It is
// built once (by Build) and never mutated afterwards — the only shared
// mutable state across scopes is explicitly excluded from this type
// (see spec.md §5).
type Registry struct {
	tables     map[string]*Table
	order      []string
	relations  map[string][]Relation // table name -> sorted relation list
	referenced map[string]bool       // table name -> is it an m2o target anywhere
}

// Build parses and links a list of table declarations into a Registry.
// Mirrors context.py:Context.register + the m2o/o2m linking deferred to
// first use in the original (there, links are resolved lazily via
// Column.get_foreign_table(); here we resolve and validate eagerly so
// that a malformed declaration fails at build time rather than at first
// query, per spec.md §4.A).
func Build(defs []TableDef) (*Registry, error) {
	reg := &Registry{
		tables:     map[string]*Table{},
		relations:  map[string][]Relation{},
		referenced: map[string]bool{},
	}

	for _, def := range defs {
		if _, dup := reg.tables[def.Name]; dup {
			return nil, &tkerr.SchemaError{Table: def.Name, Message: "duplicate table declaration"}
		}
		t, err := newTable(def)
		if err != nil {
			return nil, &tkerr.SchemaError{Table: def.Name, Message: err.Error()}
		}
		reg.tables[def.Name] = t
		reg.order = append(reg.order, def.Name)
	}

	// Link m2o/o2m columns to concrete table/column nodes.
	for _, t := range reg.tables {
		for _, c := range t.Columns {
			switch c.Kind {
			case M2O:
				target, ok := reg.tables[c.ForeignTable]
				if !ok {
					return nil, &tkerr.SchemaError{
						Table: t.Name, Column: c.Name,
						Message: fmt.Sprintf("m2o target table %q does not exist", c.ForeignTable),
					}
				}
				targetCol, err := target.GetColumn(c.ForeignCol)
				if err != nil {
					return nil, &tkerr.SchemaError{
						Table: t.Name, Column: c.Name,
						Message: fmt.Sprintf("m2o target column %q.%q does not exist", c.ForeignTable, c.ForeignCol),
					}
				}
				if !isUnique(target, c.ForeignCol) {
					return nil, &tkerr.SchemaError{
						Table: t.Name, Column: c.Name,
						Message: fmt.Sprintf("m2o target %q.%q is not unique", c.ForeignTable, c.ForeignCol),
					}
				}
				reg.referenced[c.ForeignTable] = true
				reg.relations[t.Name] = append(reg.relations[t.Name], Relation{
					Column: c, TargetTable: target, TargetColumn: targetCol,
				})
			case O2M:
				target, ok := reg.tables[c.ForeignTable]
				if !ok {
					return nil, &tkerr.SchemaError{
						Table: t.Name, Column: c.Name,
						Message: fmt.Sprintf("o2m source table %q does not exist", c.ForeignTable),
					}
				}
				backCol, err := target.GetColumn(c.ForeignCol)
				if err != nil || backCol.Kind != M2O {
					return nil, &tkerr.SchemaError{
						Table: t.Name, Column: c.Name,
						Message: fmt.Sprintf("o2m source %q.%q must name an existing m2o column", c.ForeignTable, c.ForeignCol),
					}
				}
			}
		}
	}

	for name := range reg.relations {
		rels := reg.relations[name]
		sort.Slice(rels, func(i, j int) bool {
			if rels[i].Column.Name != rels[j].Column.Name {
				return rels[i].Column.Name < rels[j].Column.Name
			}
			if rels[i].TargetTable.Name != rels[j].TargetTable.Name {
				return rels[i].TargetTable.Name < rels[j].TargetTable.Name
			}
			return rels[i].TargetColumn.Name < rels[j].TargetColumn.Name
		})
		reg.relations[name] = rels
	}

	return reg, nil
}

func isUnique(t *Table, colName string) bool {
	if colName == "id" {
		return true
	}
	if len(t.Key) == 1 && t.Key[0] == colName {
		return true
	}
	for _, u := range t.Unique {
		if len(u) == 1 && u[0] == colName {
			return true
		}
	}
	return false
}

func (r *Registry) Table(name string) (*Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, &tkerr.SchemaError{Table: name, Message: "table not found in registry"}
	}
	return t, nil
}

// Tables returns every table in declaration order.
func (r *Registry) Tables() []*Table {
	out := make([]*Table, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tables[name])
	}
	return out
}

// Referenced reports whether table `name` is the target of at least one
// m2o column anywhere in the registry (used by the Postgres DDL generator
// to decide whether `id` needs an explicit PRIMARY KEY).
func (r *Registry) Referenced(name string) bool { return r.referenced[name] }

// Paths enumerates every relation path between `from` and `to`, shortest
// first — a direct port of table.py:Table.link(), kept as a supplemental,
// tooling-facing operation (SPEC_FULL §3+) even though the read-side
// resolver only needs a single greedy walk.
func (r *Registry) Paths(from, to *Table) [][]Relation {
	type pathSet = [][]Relation
	paths := map[string]pathSet{}
	wave := []*Table{from}
	visited := map[*Table]bool{}

	for len(wave) > 0 {
		var next []*Table
		for _, tbl := range wave {
			if visited[tbl] {
				continue
			}
			visited[tbl] = true
			for _, rel := range r.relations[tbl.Name] {
				existing := paths[tbl.Name]
				var extended pathSet
				if len(existing) > 0 {
					for _, p := range existing {
						cp := append(append([]Relation{}, p...), rel)
						extended = append(extended, cp)
					}
				} else {
					extended = pathSet{{rel}}
				}
				paths[rel.TargetTable.Name] = append(paths[rel.TargetTable.Name], extended...)
				next = append(next, rel.TargetTable)
			}
		}
		wave = next
	}

	result := paths[to.Name]
	sort.Slice(result, func(i, j int) bool { return len(result[i]) < len(result[j]) })
	return result
}
