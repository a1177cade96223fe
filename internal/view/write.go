package view

import (
	"context"
	"fmt"
	"strings"

	"github.com/tanker-db/tanker/internal/compile"
	"github.com/tanker-db/tanker/internal/dbctx"
	"github.com/tanker-db/tanker/internal/pathresolve"
	"github.com/tanker-db/tanker/internal/schema"
	"github.com/tanker-db/tanker/internal/sexpr"
	"github.com/tanker-db/tanker/tkerr"
)

const tmpTableName = "tk_tmp_write"

// tmpBatchSize bounds how many rows go into a single staging INSERT —
// large enough to amortize round-trips, small enough to stay well under
// a driver's bound-parameter ceiling.
const tmpBatchSize = 500

// WriteOptions mirrors View.write's keyword arguments.
type WriteOptions struct {
	Insert     bool
	Update     bool
	Purge      bool
	Filter     Filter
	DisableACL bool
}

// DefaultWriteOptions returns the usual upsert shape: insert new rows,
// update existing ones, no purge.
func DefaultWriteOptions() WriteOptions { return WriteOptions{Insert: true, Update: true} }

// WriteResult reports how many rows were held back by a filter/ACL and
// how many were deleted by a purge, mirroring the original's
// `{'filtered': n, 'deleted': m}` return value.
type WriteResult struct {
	Filtered int64
	Deleted  int64
}

// writeColumn is one physical target column together with the resolved
// SQL expression the upsert's SELECT should read it from (a literal tmp
// column for a plain field, or an alias into the FK-resolution join
// chain for a dotted natural-key path).
type writeColumn struct {
	col  *schema.Column
	expr string // e.g. `"tk_tmp_write"."name"` or `"fk_country_1"."id"`
}

// Write stages `rows` through a temporary table and emits a single
// upsert, following spec.md §4.G's five-step pipeline. Each row is a
// name->value mapping keyed by view field name (a caller holding
// column-major data should transpose it into this shape first — see
// design note "Dataframe interop").
func (v *View) Write(ctx context.Context, rows []map[string]any, opts WriteOptions) (WriteResult, error) {
	var res WriteResult
	s, err := dbctx.FromContext(ctx)
	if err != nil {
		return res, err
	}
	if err := v.ValidateKey(); err != nil {
		return res, err
	}

	writable := v.writableFields()
	if len(writable) == 0 {
		return res, &tkerr.ArgError{Name: v.Table.Name, Message: "view has no writable fields"}
	}

	if err := v.createTempTable(ctx, s, writable); err != nil {
		return res, err
	}
	defer s.Exec(ctx, fmt.Sprintf("DROP TABLE %s", s.Dialect.Quote(tmpTableName)))

	if err := v.loadTempTable(ctx, s, writable, rows); err != nil {
		return res, err
	}

	cols, joins, err := v.resolveWriteColumns(s)
	if err != nil {
		return res, err
	}

	filterCnt, err := v.applyWriteACL(ctx, s, opts)
	if err != nil {
		return res, err
	}
	res.Filtered = filterCnt

	if opts.Insert || opts.Update {
		if err := v.upsert(ctx, s, cols, joins, opts); err != nil {
			return res, err
		}
	}
	if opts.Purge {
		deleted, err := v.purgeMissing(ctx, s, cols, joins)
		if err != nil {
			return res, err
		}
		res.Deleted = deleted
	}
	return res, nil
}

func (v *View) writableFields() []*Field {
	var out []*Field
	for _, f := range v.Fields {
		if f.IsWritable() {
			out = append(out, f)
		}
	}
	return out
}

// tmpColumnName is the physical name a writable field's value is staged
// under: the target column's own name for a plain field, or the field's
// full dotted descriptor for a natural-key path — spec.md §4.G step 2.
func tmpColumnName(f *Field) string {
	if f.Kind == KindPath {
		return f.Desc
	}
	return f.Column.Name
}

func (v *View) createTempTable(ctx context.Context, s *dbctx.Scope, writable []*Field) error {
	keySet := map[string]bool{}
	for _, name := range v.KeyFields {
		keySet[name] = true
	}

	var defs []string
	for _, f := range writable {
		col, err := v.terminalColumn(f)
		if err != nil {
			return err
		}
		def := fmt.Sprintf("%s %s", s.Dialect.Quote(tmpColumnName(f)), scalarTypeSQL(s, col))
		if keySet[f.Name] {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	q := fmt.Sprintf("CREATE TEMPORARY TABLE %s (%s)", s.Dialect.Quote(tmpTableName), strings.Join(defs, ", "))
	_, err := s.Exec(ctx, q)
	return err
}

// terminalColumn resolves the column a field's value is actually typed
// as: the target column itself for a plain field, the remote natural-key
// column for a dotted path (mirrors ViewField's `remote_col`).
func (v *View) terminalColumn(f *Field) (*schema.Column, error) {
	if f.Kind != KindPath {
		return f.Column, nil
	}
	ref, err := pathresolve.New(v.Registry, v.Table, "", nil).Resolve(f.Desc)
	if err != nil {
		return nil, err
	}
	return ref.Column, nil
}

func scalarTypeSQL(s *dbctx.Scope, c *schema.Column) string {
	if c.ArrayDims > 0 {
		return s.Dialect.ArrayType(string(c.Kind), c.ArrayDims)
	}
	return string(c.Kind)
}

func (v *View) loadTempTable(ctx context.Context, s *dbctx.Scope, writable []*Field, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	colNames := make([]string, len(writable))
	for i, f := range writable {
		colNames[i] = s.Dialect.Quote(tmpColumnName(f))
	}

	for start := 0; start < len(rows); start += tmpBatchSize {
		end := start + tmpBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		var placeholders []string
		var args []any
		n := 0
		for _, row := range batch {
			marks := make([]string, len(writable))
			for i, f := range writable {
				n++
				marks[i] = s.Dialect.Placeholder(n)
				args = append(args, row[f.Name])
			}
			placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")
		}

		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			s.Dialect.Quote(tmpTableName), strings.Join(colNames, ", "), strings.Join(placeholders, ", "))
		if _, err := s.Exec(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

// resolveWriteColumns builds the FK-resolution join chain (spec.md §4.G
// step 3) for every m2o target column written via a dotted natural-key
// path, and the trivial tmp-column reference for everything else. It
// returns, alongside the per-column SELECT expression, every extra LEFT
// JOIN clause the FK-resolution joins require.
func (v *View) resolveWriteColumns(s *dbctx.Scope) ([]writeColumn, []string, error) {
	tmp := s.Dialect.Quote(tmpTableName)
	var out []writeColumn
	var joins []string
	fkCounter := 0
	root := pathresolve.New(v.Registry, v.Table, v.Table.Name, nil)

	for _, col := range v.columns {
		fields := v.columnFields[col]
		if col.Kind != schema.M2O || (len(fields) == 1 && fields[0].Kind == KindColumn) {
			// Either a plain scalar column, or the fk column's raw id
			// was supplied directly — no join needed.
			f := fields[0]
			out = append(out, writeColumn{col: col, expr: fmt.Sprintf("%s.%s", tmp, s.Dialect.Quote(tmpColumnName(f)))})
			continue
		}

		foreignTable, err := v.Registry.Table(col.ForeignTable)
		if err != nil {
			return nil, nil, err
		}
		fkCounter++
		firstAlias := fmt.Sprintf("fk_%s_%d", col.ForeignTable, fkCounter)
		fkResolver := root.SubAt(foreignTable, firstAlias)

		var onConds []string
		for _, f := range fields {
			tail := strings.TrimPrefix(f.Desc, col.Name+".")
			ref, err := fkResolver.Resolve(tail)
			if err != nil {
				return nil, nil, err
			}
			onConds = append(onConds, fmt.Sprintf("%s.%s = %s.%s",
				tmp, s.Dialect.Quote(tmpColumnName(f)),
				s.Dialect.Quote(ref.Alias), s.Dialect.Quote(ref.Field)))
		}

		joins = append(joins, fmt.Sprintf("LEFT JOIN %s AS %s ON (%s)",
			s.Dialect.Quote(col.ForeignTable), s.Dialect.Quote(firstAlias), strings.Join(onConds, " AND ")))
		// Any further hops the dotted path needed beyond the first (e.g.
		// "country.region.name") were recorded on fkResolver itself.
		joins = append(joins, compile.JoinClauses(s.Dialect, fkResolver.Joins())...)

		out = append(out, writeColumn{
			col:  col,
			expr: fmt.Sprintf("%s.%s", s.Dialect.Quote(firstAlias), s.Dialect.Quote("id")),
		})
	}
	return out, joins, nil
}

func countTmpRows(ctx context.Context, s *dbctx.Scope) (int64, error) {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.Dialect.Quote(tmpTableName))
	rows, err := s.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, &tkerr.DriverError{Query: q, Err: err}
		}
	}
	return n, rows.Err()
}

// applyWriteACL purges rows from tmp that fail an explicit write filter
// or the table's acl-write entry, returning how many were held back —
// spec.md §4.G step 5. Only ACL text resolvable directly against the
// staged columns is supported (see design note "Write-ACL ambiguity");
// an ACL expression needing any relation traversal reports ArgError
// rather than emit an unsound query.
func (v *View) applyWriteACL(ctx context.Context, s *dbctx.Scope, opts WriteOptions) (int64, error) {
	var filters []string
	switch f := opts.Filter.(type) {
	case nil:
	case string:
		filters = append(filters, f)
	case []string:
		filters = append(filters, f...)
	default:
		return 0, &tkerr.ArgError{Name: "filter", Message: fmt.Sprintf("unsupported write filter type %T", opts.Filter)}
	}
	if !opts.DisableACL {
		if aclStr, ok := s.Config.ACLWrite[v.Table.Name]; ok && aclStr != "" {
			filters = append(filters, aclStr)
		}
	}
	if len(filters) == 0 {
		return 0, nil
	}

	resolver := pathresolve.New(v.Registry, v.Table, tmpTableName, nil)
	c := compile.New(v.Registry, resolver, s.Dialect, nil, nil, s.Config.Args)
	var conds []string
	for _, f := range filters {
		node, err := sexpr.Parse(f)
		if err != nil {
			return 0, err
		}
		sql, err := c.Compile(node)
		if err != nil {
			return 0, err
		}
		conds = append(conds, sql)
	}
	if len(resolver.Joins()) > 0 {
		return 0, &tkerr.ArgError{Name: v.Table.Name, Message: "write filter/ACL requires a relation traversal beyond the staged columns, which is not supported"}
	}

	before, err := countTmpRows(ctx, s)
	if err != nil {
		return 0, err
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE NOT (%s)", s.Dialect.Quote(tmpTableName), strings.Join(conds, " AND "))
	if _, err := s.Exec(ctx, q, c.Params...); err != nil {
		return 0, err
	}
	after, err := countTmpRows(ctx, s)
	if err != nil {
		return 0, err
	}
	return before - after, nil
}

// upsert emits the single-statement INSERT ... ON CONFLICT DO UPDATE
// (step 4). SQLite 3.24+ accepts the same ON CONFLICT syntax as
// Postgres, so both flavors share this query shape.
func (v *View) upsert(ctx context.Context, s *dbctx.Scope, cols []writeColumn, joins []string, opts WriteOptions) error {
	main := s.Dialect.Quote(v.Table.Name)
	tmp := s.Dialect.Quote(tmpTableName)

	exprByCol := map[string]string{}
	var mainFields, selectExprs []string
	for _, c := range cols {
		exprByCol[c.col.Name] = c.expr
		mainFields = append(mainFields, s.Dialect.Quote(c.col.Name))
		selectExprs = append(selectExprs, fmt.Sprintf("%s AS %s", c.expr, s.Dialect.Quote(c.col.Name)))
	}

	var mainJoinConds []string
	for _, k := range v.KeyCols {
		mainJoinConds = append(mainJoinConds, fmt.Sprintf("%s.%s = %s", main, s.Dialect.Quote(k), exprByCol[k]))
	}

	joinType := "LEFT"
	if !opts.Insert {
		joinType = "INNER"
	}

	var updSet []string
	if opts.Update {
		keySet := map[string]bool{}
		for _, k := range v.KeyCols {
			keySet[k] = true
		}
		for _, c := range cols {
			if keySet[c.col.Name] {
				continue
			}
			updSet = append(updSet, fmt.Sprintf("%s = EXCLUDED.%s", s.Dialect.Quote(c.col.Name), s.Dialect.Quote(c.col.Name)))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s", main, strings.Join(mainFields, ", "), strings.Join(selectExprs, ", "), tmp)
	for _, j := range joins {
		b.WriteByte(' ')
		b.WriteString(j)
	}
	fmt.Fprintf(&b, " %s JOIN %s ON (%s)", joinType, main, strings.Join(mainJoinConds, " AND "))

	keyCols := make([]string, len(v.KeyCols))
	for i, k := range v.KeyCols {
		keyCols[i] = s.Dialect.Quote(k)
	}
	if len(updSet) > 0 {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keyCols, ", "), strings.Join(updSet, ", "))
	} else {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", strings.Join(keyCols, ", "))
	}

	_, err := s.Exec(ctx, b.String())
	return err
}

// purgeMissing deletes every row of the target table whose key does not
// appear among the (post-filter) staged rows, implementing
// `write(purge=true)`.
func (v *View) purgeMissing(ctx context.Context, s *dbctx.Scope, cols []writeColumn, joins []string) (int64, error) {
	main := s.Dialect.Quote(v.Table.Name)
	tmp := s.Dialect.Quote(tmpTableName)

	exprByCol := map[string]string{}
	for _, c := range cols {
		exprByCol[c.col.Name] = c.expr
	}

	var mainKeyCols, subExprs []string
	for _, k := range v.KeyCols {
		mainKeyCols = append(mainKeyCols, s.Dialect.Quote(k))
		subExprs = append(subExprs, exprByCol[k])
	}

	sub := fmt.Sprintf("SELECT %s FROM %s", strings.Join(subExprs, ", "), tmp)
	for _, j := range joins {
		sub += " " + j
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE (%s) NOT IN (%s)", main, strings.Join(mainKeyCols, ", "), sub)
	res, err := s.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &tkerr.DriverError{Query: q, Err: err}
	}
	return n, nil
}
