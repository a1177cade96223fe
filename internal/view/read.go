package view

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tanker-db/tanker/internal/compile"
	"github.com/tanker-db/tanker/internal/dbctx"
	"github.com/tanker-db/tanker/internal/pathresolve"
	"github.com/tanker-db/tanker/internal/sexpr"
	"github.com/tanker-db/tanker/tkerr"
)

// Filter is anything accepted as a read/delete filter: a raw s-expression
// string, a slice of such (implicit AND), or a map of field name to
// scalar value (implicit equality conjunction) — mirrors the three
// filter shapes view.py:View.read accepts.
type Filter any

// Order is one ORDER BY term: a bare field-path string (ascending), or
// an (expr, "asc"|"desc") pair.
type Order struct {
	Expr string
	Desc bool
}

// ReadOptions holds every optional read() argument beyond the field
// list itself.
type ReadOptions struct {
	Filter Filter
	Order  []Order
	Limit  int64 // 0 means unbounded
	Offset int64
	// HasLimit/HasOffset distinguish "0" from "unset" since 0 is a valid
	// LIMIT.
	HasLimit  bool
	HasOffset bool
}

// Plan is the fully compiled read: SQL text, bound parameters, and the
// output field order (for the cursor's .Dict()).
type Plan struct {
	SQL     string
	Params  []any
	Fields  []string
}

// Compile lowers this view's projection, filter, ACL-read injection,
// group-by inference and order into one SELECT, following spec.md
// §4.F's six-step pipeline exactly.
func (v *View) Compile(s *dbctx.Scope, opts ReadOptions) (*Plan, error) {
	resolver := pathresolve.New(v.Registry, v.Table, "", nil)
	env := v.env()
	c := compile.New(v.Registry, resolver, s.Dialect, env, nil, s.Config.Args)

	// Step 1: resolve every projection field, populating the join list
	// as a side effect.
	selectCols := make([]string, len(v.Fields))
	hasAggregate := false
	for i, f := range v.Fields {
		sql, err := v.compileField(c, f)
		if err != nil {
			return nil, err
		}
		selectCols[i] = fmt.Sprintf("%s AS %s", sql, s.Dialect.Quote(f.Name))
		if f.Kind == KindExpr && compile.IsAggregate(f.Node) {
			hasAggregate = true
		}
	}

	// Step 2: filter.
	whereParts, err := compileFilter(c, opts.Filter)
	if err != nil {
		return nil, err
	}

	// Step 3: ACL-read injection for every table in the join set.
	aclParts, err := v.compileACLRead(c, s, resolver)
	if err != nil {
		return nil, err
	}
	whereParts = append(whereParts, aclParts...)

	// Step 4: order.
	orderParts := make([]string, 0, len(opts.Order))
	for _, o := range opts.Order {
		sql, err := compileOrderExpr(c, v, o.Expr)
		if err != nil {
			return nil, err
		}
		if o.Desc {
			sql += " DESC"
		} else {
			sql += " ASC"
		}
		orderParts = append(orderParts, sql)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(selectCols, ", "), s.Dialect.Quote(v.Table.Name))
	for _, clause := range compile.JoinClauses(s.Dialect, resolver.Joins()) {
		b.WriteByte(' ')
		b.WriteString(clause)
	}
	if len(whereParts) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(whereParts, " AND "))
	}
	if hasAggregate {
		if groupBy := nonAggregateFieldAliases(s, v); groupBy != "" {
			b.WriteString(" GROUP BY ")
			b.WriteString(groupBy)
		}
	}
	if len(orderParts) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(orderParts, ", "))
	}
	if opts.HasLimit {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	if opts.HasOffset {
		fmt.Fprintf(&b, " OFFSET %d", opts.Offset)
	}

	fieldNames := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		fieldNames[i] = f.Name
	}
	return &Plan{SQL: b.String(), Params: c.Params, Fields: fieldNames}, nil
}

// Read compiles and executes the plan, returning a Cursor over the
// result set.
func (v *View) Read(ctx context.Context, opts ReadOptions) (*Cursor, error) {
	s, err := dbctx.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := v.Compile(s, opts)
	if err != nil {
		return nil, err
	}
	rows, err := s.Query(ctx, plan.SQL, plan.Params...)
	if err != nil {
		return nil, err
	}
	return newCursor(rows, plan.Fields), nil
}

// env builds the Env map the compiler uses to let one field's
// expression refer to another field's descriptor by its bare name
// (base_env in expression.py). "{name}" alias fields are left out; they
// are resolved by compileField instead.
func (v *View) env() map[string]string {
	env := map[string]string{}
	for _, f := range v.Fields {
		if f.Kind != KindAlias {
			env[f.Name] = f.Desc
		}
	}
	return env
}

func (v *View) compileField(c *compile.Compiler, f *Field) (string, error) {
	switch f.Kind {
	case KindExpr:
		return c.Compile(f.Node)
	case KindAlias:
		name := strings.TrimSuffix(strings.TrimPrefix(f.Desc, "{"), "}")
		if other, ok := v.Field(name); ok {
			return v.compileField(c, other)
		}
		return "", &tkerr.ResolveError{Table: v.Table.Name, Path: f.Desc, Cause: "no such aliased field"}
	default: // KindColumn, KindPath
		ref, err := c.Resolver.Resolve(f.Desc)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s.%s", c.Dialect.Quote(ref.Alias), c.Dialect.Quote(ref.Field)), nil
	}
}

// compileACLRead conjoins an acl-read[T] filter for every table in the
// join set (base table plus every joined table), per spec.md §4.F step
// 3. A table reached through more than one join alias gets its ACL
// filter applied once per occurrence.
func (v *View) compileACLRead(c *compile.Compiler, s *dbctx.Scope, resolver *pathresolve.Resolver) ([]string, error) {
	type occurrence struct {
		tableName string
		alias     string
	}
	occs := []occurrence{{tableName: v.Table.Name, alias: resolver.BaseAlias()}}
	for _, j := range resolver.Joins() {
		occs = append(occs, occurrence{tableName: j.Key.RightTable, alias: j.Alias})
	}

	var out []string
	for _, occ := range occs {
		filterStr, ok := s.Config.ACLRead[occ.tableName]
		if !ok || filterStr == "" {
			continue
		}
		table, err := v.Registry.Table(occ.tableName)
		if err != nil {
			return nil, err
		}
		node, err := sexpr.Parse(filterStr)
		if err != nil {
			return nil, err
		}
		sub := compile.New(v.Registry, resolver.At(table, occ.alias), s.Dialect, nil, c.Args, c.Kwargs)
		sub.Parent = c
		sub.Params = c.Params // share numbering so markers stay unique
		sql, err := sub.Compile(node)
		if err != nil {
			return nil, err
		}
		c.Params = sub.Params
		out = append(out, sql)
	}
	return out, nil
}

// compileFilter lowers the three accepted filter shapes into a flat
// slice of AND-conjoined SQL fragments.
func compileFilter(c *compile.Compiler, filter Filter) ([]string, error) {
	switch f := filter.(type) {
	case nil:
		return nil, nil
	case string:
		node, err := sexpr.Parse(f)
		if err != nil {
			return nil, err
		}
		sql, err := c.Compile(node)
		if err != nil {
			return nil, err
		}
		return []string{sql}, nil
	case []string:
		var out []string
		for _, s := range f {
			parts, err := compileFilter(c, s)
			if err != nil {
				return nil, err
			}
			out = append(out, parts...)
		}
		return out, nil
	case map[string]any:
		// Implicit equality conjunction: each entry becomes
		// "field = <marker>" with the value bound through EmitParam so it
		// is always parameterized, never inlined as a literal.
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			lhs, err := c.Resolver.Resolve(k)
			if err != nil {
				return nil, err
			}
			marker := c.Dialect.Quote(lhs.Alias) + "." + c.Dialect.Quote(lhs.Field)
			param := c.EmitParam(f[k])
			out = append(out, fmt.Sprintf("%s = %s", marker, param))
		}
		return out, nil
	default:
		return nil, &tkerr.ArgError{Name: "filter", Message: fmt.Sprintf("unsupported filter type %T", filter)}
	}
}

func compileOrderExpr(c *compile.Compiler, v *View, expr string) (string, error) {
	if strings.HasPrefix(expr, "(") {
		node, err := sexpr.Parse(expr)
		if err != nil {
			return "", err
		}
		return c.Compile(node)
	}
	if f, ok := v.Field(expr); ok {
		return v.compileField(c, f)
	}
	ref, err := c.Resolver.Resolve(expr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", c.Dialect.Quote(ref.Alias), c.Dialect.Quote(ref.Field)), nil
}

// nonAggregateFieldAliases renders the GROUP BY clause implied by the
// presence of an aggregate field: every projected column that is not
// itself an aggregate expression, per spec.md §4.E ("Aggregates trigger
// grouping").
func nonAggregateFieldAliases(s *dbctx.Scope, v *View) string {
	var cols []string
	for _, f := range v.Fields {
		if f.Kind == KindExpr && compile.IsAggregate(f.Node) {
			continue
		}
		cols = append(cols, s.Dialect.Quote(f.Name))
	}
	return strings.Join(cols, ", ")
}
