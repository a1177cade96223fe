// Package pathresolve implements the field-path resolver (component C):
// turning a dotted path "a.b.c" rooted at a base table into a chain of
// join specs plus a terminal qualified column, with deterministic,
// memoized aliasing so that two paths sharing a prefix within the same
// view compilation reuse the same join.
//
// Grounded on original_source/tanker/expression.py: ReferenceSet.get_ref
// is ported field-for-field, including the alias-reuse trick of keying
// joins on (left_table, right_table, left_col, right_col) in an ordered
// map rather than on the path string itself.
package pathresolve

import (
	"fmt"
	"strings"

	"github.com/tanker-db/tanker/internal/schema"
	"github.com/tanker-db/tanker/tkerr"
)

// JoinKey identifies a single join uniquely within a compilation: the
// alias of the table the join originates from, the table being joined,
// and the columns that equate them.
type JoinKey struct {
	LeftAlias string
	RightTable string
	LeftCol   string
	RightCol  string
}

// Join is one resolved LEFT JOIN, in first-seen order.
type Join struct {
	Key   JoinKey
	Alias string
}

// Reference is the result of resolving a single dotted path: the table
// and column the path terminates on, the alias to qualify it with, and
// the original column object (so the compiler can inspect its type).
type Reference struct {
	Table  *schema.Table
	Field  string
	Alias  string
	Column *schema.Column
}

// joinCounter is shared across an entire view compilation, including any
// nested sub-view resolvers, so that aliases stay globally unique (and
// stable) regardless of which sub-expression triggers a join first.
type joinCounter struct{ n int }

func (c *joinCounter) next() int {
	c.n++
	return c.n
}

// Resolver resolves paths against one table, tracking every join it has
// emitted so far. Table aliasing can be overridden per-column via
// aliasOverride; every resolver built in this module passes nil.
type Resolver struct {
	registry      *schema.Registry
	table         *schema.Table
	baseAlias     string
	aliasOverride map[string]string // column name -> forced alias for the base table

	counter *joinCounter
	joins   *[]Join
	index   *map[JoinKey]string

	parent *Resolver
}

// New creates a root resolver over `table`. baseAlias defaults to the
// table's own name when empty.
func New(reg *schema.Registry, table *schema.Table, baseAlias string, aliasOverride map[string]string) *Resolver {
	if baseAlias == "" {
		baseAlias = table.Name
	}
	idx := map[JoinKey]string{}
	return &Resolver{
		registry:      reg,
		table:         table,
		baseAlias:     baseAlias,
		aliasOverride: aliasOverride,
		counter:       &joinCounter{},
		joins:         &[]Join{},
		index:         &idx,
	}
}

// Sub creates a resolver for a correlated sub-view: a fresh join list
// and alias index (it renders its own nested FROM clause), sharing only
// this resolver's join counter so aliases remain unique across the
// whole compilation tree (mirrors ReferenceSet.get_nb_joins walking to
// the root before counting).
func (r *Resolver) Sub(table *schema.Table) *Resolver {
	idx := map[JoinKey]string{}
	return &Resolver{
		registry:  r.registry,
		table:     table,
		baseAlias: table.Name,
		counter:   r.counter,
		joins:     &[]Join{},
		index:     &idx,
		parent:    r,
	}
}

// SubAt creates a resolver for an independent join chain rooted at
// `table` under a fixed alias — a fresh join list and alias index (it
// is not part of the caller's own FROM clause), but sharing the
// caller's join counter so aliases allocated inside it cannot collide
// with any other chain built from the same counter. Used by the write
// pipeline's per-column FK-resolution chains.
func (r *Resolver) SubAt(table *schema.Table, alias string) *Resolver {
	idx := map[JoinKey]string{}
	return &Resolver{
		registry:  r.registry,
		table:     table,
		baseAlias: alias,
		counter:   r.counter,
		joins:     &[]Join{},
		index:     &idx,
		parent:    r,
	}
}

// At creates a resolver rooted at `table` under a fixed, already-known
// alias (an ACL filter attached to a table reached via some join, for
// instance), sharing this resolver's join list, alias index and counter
// so further relation traversal from that table is appended to the same
// outer FROM clause rather than a nested one.
func (r *Resolver) At(table *schema.Table, alias string) *Resolver {
	return &Resolver{
		registry:  r.registry,
		table:     table,
		baseAlias: alias,
		counter:   r.counter,
		joins:     r.joins,
		index:     r.index,
		parent:    r,
	}
}

func (r *Resolver) tableAlias(column string) string {
	if r.aliasOverride != nil {
		if a, ok := r.aliasOverride[column]; ok {
			return a
		}
	}
	return r.baseAlias
}

// BaseAlias returns the alias this resolver's root table is queried
// under.
func (r *Resolver) BaseAlias() string { return r.baseAlias }

// Joins returns every join resolved so far, in first-seen order.
func (r *Resolver) Joins() []Join { return *r.joins }

// Resolve turns a dotted path into a terminal Reference, recording any
// joins needed along the way as a side effect.
func (r *Resolver) Resolve(path string) (*Reference, error) {
	return r.resolve(path, r.table, "")
}

func (r *Resolver) resolve(desc string, table *schema.Table, forcedAlias string) (*Reference, error) {
	if !strings.Contains(desc, ".") {
		col, err := table.GetColumn(desc)
		if err != nil {
			return nil, &tkerr.ResolveError{Table: table.Name, Path: desc, Cause: err.Error()}
		}
		alias := forcedAlias
		if alias == "" {
			alias = r.tableAlias(col.Name)
		}
		return &Reference{Table: table, Field: desc, Alias: alias, Column: col}, nil
	}

	head, tail, _ := strings.Cut(desc, ".")
	rel, err := table.GetColumn(head)
	if err != nil {
		return nil, &tkerr.ResolveError{Table: table.Name, Path: desc, Cause: err.Error()}
	}
	if !rel.Kind.IsRelation() {
		return nil, &tkerr.ResolveError{Table: table.Name, Path: desc, Cause: fmt.Sprintf("%q is not a relation column", head)}
	}

	var leftCol, rightCol, rightTableName string
	if rel.Kind == schema.M2O {
		leftCol = head
		rightCol = rel.ForeignCol
		rightTableName = rel.ForeignTable
	} else {
		foreignTable, err := r.registry.Table(rel.ForeignTable)
		if err != nil {
			return nil, &tkerr.ResolveError{Table: table.Name, Path: desc, Cause: err.Error()}
		}
		backCol, err := foreignTable.GetColumn(rel.ForeignCol)
		if err != nil {
			return nil, &tkerr.ResolveError{Table: table.Name, Path: desc, Cause: err.Error()}
		}
		leftCol = backCol.ForeignCol
		rightCol = rel.ForeignCol
		rightTableName = rel.ForeignTable
	}

	leftAlias := forcedAlias
	if leftAlias == "" {
		leftAlias = r.tableAlias(head)
	}

	foreignTable, err := r.registry.Table(rightTableName)
	if err != nil {
		return nil, &tkerr.ResolveError{Table: table.Name, Path: desc, Cause: err.Error()}
	}

	key := JoinKey{LeftAlias: leftAlias, RightTable: rightTableName, LeftCol: leftCol, RightCol: rightCol}
	alias, ok := (*r.index)[key]
	if !ok {
		alias = fmt.Sprintf("%s_%d", rightTableName, r.counter.next())
		(*r.index)[key] = alias
		*r.joins = append(*r.joins, Join{Key: key, Alias: alias})
	}

	return r.resolve(tail, foreignTable, alias)
}
