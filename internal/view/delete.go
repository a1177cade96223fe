package view

import (
	"context"
	"fmt"
	"strings"

	"github.com/tanker-db/tanker/internal/dbctx"
	"github.com/tanker-db/tanker/tkerr"
)

// DeleteByFilter emits `DELETE FROM <T> WHERE id IN (<subquery built
// from filter>)`, per spec.md §4.G "Delete". The subquery is this
// view's own read compilation restricted to the id column, so the
// filter gets the full expression language (joins, ACL, placeholders).
func (v *View) DeleteByFilter(ctx context.Context, filter Filter) (int64, error) {
	s, err := dbctx.FromContext(ctx)
	if err != nil {
		return 0, err
	}

	idView, err := New(v.Registry, v.Table, []FieldSpec{{Name: "id", Desc: "id"}})
	if err != nil {
		return 0, err
	}
	plan, err := idView.Compile(s, ReadOptions{Filter: filter})
	if err != nil {
		return 0, err
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", s.Dialect.Quote(v.Table.Name), s.Dialect.Quote("id"), plan.SQL)
	res, err := s.Exec(ctx, q, plan.Params...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &tkerr.DriverError{Query: q, Err: err}
	}
	return n, nil
}

// DeleteByData stages `rows` exactly as Write does, then deletes every
// row of the target table whose natural key matches one staged row.
func (v *View) DeleteByData(ctx context.Context, rows []map[string]any) (int64, error) {
	s, err := dbctx.FromContext(ctx)
	if err != nil {
		return 0, err
	}
	if err := v.ValidateKey(); err != nil {
		return 0, err
	}

	writable := v.writableFields()
	if err := v.createTempTable(ctx, s, writable); err != nil {
		return 0, err
	}
	defer s.Exec(ctx, fmt.Sprintf("DROP TABLE %s", s.Dialect.Quote(tmpTableName)))

	if err := v.loadTempTable(ctx, s, writable, rows); err != nil {
		return 0, err
	}
	cols, joins, err := v.resolveWriteColumns(s)
	if err != nil {
		return 0, err
	}

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

	q := fmt.Sprintf("DELETE FROM %s WHERE (%s) IN (%s)", main, strings.Join(mainKeyCols, ", "), sub)
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
