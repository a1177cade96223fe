package compile

import (
	"github.com/tanker-db/tanker/internal/dialect"
	"github.com/tanker-db/tanker/internal/pathresolve"
)

// JoinClauses renders every join a resolver recorded into a LEFT JOIN
// clause, in the order they were first needed (spec.md §4.F: "Joins are
// always LEFT JOIN").
func JoinClauses(dia dialect.Dialect, joins []pathresolve.Join) []string {
	out := make([]string, 0, len(joins))
	for _, j := range joins {
		c := &Compiler{Dialect: dia}
		out = append(out, joinSQL(c, j))
	}
	return out
}
