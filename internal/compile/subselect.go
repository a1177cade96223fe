package compile

import (
	"fmt"
	"strings"

	"github.com/tanker-db/tanker/internal/pathresolve"
	"github.com/tanker-db/tanker/internal/sexpr"
	"github.com/tanker-db/tanker/tkerr"
)

// compileFrom lowers "(from <table> (select ...) (where ...) ...)" into
// a parenthesised sub-SELECT whose _parent pointer is the enclosing
// compiler, so that correlated references like "_parent.id" resolve
// against the outer view (spec.md §4.E "Sub-views").
func compileFrom(c *Compiler, args []sexpr.Node) (string, error) {
	if len(args) < 2 {
		return "", &tkerr.ParseError{Message: "\"from\" expects a table name and at least one of select/where"}
	}
	tableSym, ok := args[0].(*sexpr.Symbol)
	if !ok {
		return "", &tkerr.ParseError{Message: "\"from\" first argument must be a bare table name"}
	}
	table, err := c.Registry.Table(tableSym.Name)
	if err != nil {
		return "", err
	}

	sub := c.sub(table)
	sub.Params = c.Params // share numbering so markers stay unique

	var selectClause string
	var tail []string
	for _, item := range args[1:] {
		l, ok := item.(*sexpr.List)
		if !ok {
			return "", &tkerr.ParseError{Message: "\"from\" sub-forms must be parenthesised"}
		}
		head := sexpr.Head(l)
		sql, err := sub.compile(l, false)
		if err != nil {
			return "", err
		}
		if head == "select" || head == "select-distinct" {
			selectClause = sql
		} else {
			tail = append(tail, sql)
		}
	}
	if selectClause == "" {
		return "", &tkerr.ParseError{Message: "\"from\" requires a (select ...) sub-form"}
	}
	c.Params, c.Args = sub.Params, sub.Args

	parts := []string{selectClause, fmt.Sprintf("FROM %s", sub.Dialect.Quote(table.Name))}
	for _, j := range sub.Resolver.Joins() {
		parts = append(parts, joinSQL(sub, j))
	}
	parts = append(parts, tail...)
	return strings.Join(parts, " "), nil
}

func joinSQL(c *Compiler, j pathresolve.Join) string {
	return fmt.Sprintf(`LEFT JOIN %s AS %s ON (%s.%s = %s.%s)`,
		c.Dialect.Quote(j.Key.RightTable), c.Dialect.Quote(j.Alias),
		c.Dialect.Quote(j.Key.LeftAlias), c.Dialect.Quote(j.Key.LeftCol),
		c.Dialect.Quote(j.Alias), c.Dialect.Quote(j.Key.RightCol),
	)
}
