package compile

import (
	"fmt"
	"strings"

	"github.com/tanker-db/tanker/internal/dialect"
	"github.com/tanker-db/tanker/internal/sexpr"
	"github.com/tanker-db/tanker/tkerr"
)

// builtinHeads is the registry mapping a head symbol to its lowering
// function — the Go equivalent of Expression.builtins/aggregates in
// expression.py. It is package-level and mutable at init time only
// through RegisterHead, giving the same open/closed extensibility the
// design notes call for ("a tagged-variant AST plus a registry keyed on
// head-symbol").
var builtinHeads = map[string]HeadFunc{}
var specialHeads = map[string]SpecialFunc{}

// RegisterHead adds or overrides a lowering function for `head`. Callers
// wanting a custom expression form should call this before compiling any
// view that uses it.
func RegisterHead(head string, fn HeadFunc) {
	builtinHeads[strings.ToLower(head)] = fn
}

func infix(op string) HeadFunc {
	return func(c *Compiler, args []string) (string, error) {
		if len(args) != 2 {
			return "", &tkerr.ParseError{Message: fmt.Sprintf("%q expects 2 arguments, got %d", op, len(args))}
		}
		return fmt.Sprintf("%s %s %s", args[0], op, args[1]), nil
	}
}

func aggregate(name string) HeadFunc {
	return func(c *Compiler, args []string) (string, error) {
		if len(args) == 0 {
			return fmt.Sprintf("%s(*)", name), nil
		}
		return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", ")), nil
	}
}

func init() {
	builtinHeads["and"] = func(c *Compiler, args []string) (string, error) {
		if len(args) == 0 {
			return "", &tkerr.ParseError{Message: "\"and\" needs at least one argument"}
		}
		return "(" + strings.Join(args, " AND ") + ")", nil
	}
	builtinHeads["or"] = func(c *Compiler, args []string) (string, error) {
		if len(args) == 0 {
			return "", &tkerr.ParseError{Message: "\"or\" needs at least one argument"}
		}
		return "(" + strings.Join(args, " OR ") + ")", nil
	}
	builtinHeads["not"] = func(c *Compiler, args []string) (string, error) {
		if len(args) != 1 {
			return "", &tkerr.ParseError{Message: "\"not\" expects 1 argument"}
		}
		return fmt.Sprintf("NOT (%s)", args[0]), nil
	}

	builtinHeads["="] = infix("=")
	builtinHeads["!="] = infix("!=")
	builtinHeads["<"] = infix("<")
	builtinHeads["<="] = infix("<=")
	builtinHeads[">"] = infix(">")
	builtinHeads[">="] = infix(">=")

	builtinHeads["like"] = func(c *Compiler, args []string) (string, error) {
		if len(args) != 2 {
			return "", &tkerr.ParseError{Message: "\"like\" expects 2 arguments"}
		}
		return fmt.Sprintf("%s %s %s", args[0], c.Dialect.Like(false), args[1]), nil
	}
	builtinHeads["ilike"] = func(c *Compiler, args []string) (string, error) {
		if len(args) != 2 {
			return "", &tkerr.ParseError{Message: "\"ilike\" expects 2 arguments"}
		}
		if c.Dialect.Flavor() == dialect.SQLite {
			return fmt.Sprintf("%s LIKE %s COLLATE NOCASE", args[0], args[1]), nil
		}
		return fmt.Sprintf("%s %s %s", args[0], c.Dialect.Like(true), args[1]), nil
	}

	builtinHeads["in"] = func(c *Compiler, args []string) (string, error) {
		if len(args) < 2 {
			return "", &tkerr.ParseError{Message: "\"in\" expects at least 2 arguments"}
		}
		return fmt.Sprintf("%s IN (%s)", args[0], strings.Join(args[1:], ", ")), nil
	}
	builtinHeads["is"] = infix("IS")

	builtinHeads["+"] = infix("+")
	builtinHeads["-"] = func(c *Compiler, args []string) (string, error) {
		switch len(args) {
		case 1:
			return fmt.Sprintf("-%s", args[0]), nil
		case 2:
			return fmt.Sprintf("(%s - %s)", args[0], args[1]), nil
		default:
			return "", &tkerr.ParseError{Message: "\"-\" expects 1 or 2 arguments"}
		}
	}
	builtinHeads["*"] = infix("*")
	builtinHeads["/"] = infix("/")

	builtinHeads["count"] = aggregate("COUNT")
	builtinHeads["sum"] = aggregate("SUM")
	builtinHeads["avg"] = aggregate("AVG")
	builtinHeads["min"] = aggregate("MIN")
	builtinHeads["max"] = aggregate("MAX")

	builtinHeads["cast"] = func(c *Compiler, args []string) (string, error) {
		if len(args) != 2 {
			return "", &tkerr.ParseError{Message: "\"cast\" expects 2 arguments"}
		}
		return fmt.Sprintf("CAST(%s AS %s)", args[0], args[1]), nil
	}
	builtinHeads["coalesce"] = func(c *Compiler, args []string) (string, error) {
		if len(args) < 2 {
			return "", &tkerr.ParseError{Message: "\"coalesce\" expects at least 2 arguments"}
		}
		return fmt.Sprintf("COALESCE(%s)", strings.Join(args, ", ")), nil
	}
	builtinHeads["nullif"] = func(c *Compiler, args []string) (string, error) {
		if len(args) != 2 {
			return "", &tkerr.ParseError{Message: "\"nullif\" expects 2 arguments"}
		}
		return fmt.Sprintf("NULLIF(%s, %s)", args[0], args[1]), nil
	}

	specialHeads["extract"] = func(c *Compiler, args []sexpr.Node) (string, error) {
		if len(args) != 2 {
			return "", &tkerr.ParseError{Message: "\"extract\" expects 2 arguments"}
		}
		str, ok := args[0].(*sexpr.String)
		if !ok {
			return "", &tkerr.ParseError{Message: "\"extract\" first argument must be a quoted unit"}
		}
		expr, err := c.compile(args[1], false)
		if err != nil {
			return "", err
		}
		return c.Dialect.Extract("'"+str.Value+"'", expr), nil
	}

	specialHeads["count"] = func(c *Compiler, args []sexpr.Node) (string, error) {
		c.aggregateSeen = true
		if len(args) == 1 {
			if sym, ok := args[0].(*sexpr.Symbol); ok && sym.Name == "*" {
				return "COUNT(*)", nil
			}
		}
		compiled := make([]string, 0, len(args))
		for _, a := range args {
			sql, err := c.compile(a, false)
			if err != nil {
				return "", err
			}
			compiled = append(compiled, sql)
		}
		if len(compiled) == 0 {
			return "COUNT(*)", nil
		}
		return fmt.Sprintf("COUNT(%s)", strings.Join(compiled, ", ")), nil
	}

	specialHeads["exists"] = func(c *Compiler, args []sexpr.Node) (string, error) {
		if len(args) != 1 {
			return "", &tkerr.ParseError{Message: "\"exists\" expects 1 argument (a sub-view)"}
		}
		sub, err := c.compile(args[0], false)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EXISTS (%s)", sub), nil
	}

	specialHeads["from"] = compileFrom
	specialHeads["select"] = func(c *Compiler, args []sexpr.Node) (string, error) {
		return compileProjection(c, "SELECT", args)
	}
	specialHeads["select-distinct"] = func(c *Compiler, args []sexpr.Node) (string, error) {
		return compileProjection(c, "SELECT DISTINCT", args)
	}
	specialHeads["where"] = func(c *Compiler, args []sexpr.Node) (string, error) {
		compiled := make([]string, 0, len(args))
		for _, a := range args {
			sql, err := c.compile(a, false)
			if err != nil {
				return "", err
			}
			compiled = append(compiled, sql)
		}
		return "WHERE " + strings.Join(compiled, " AND "), nil
	}
}

func compileProjection(c *Compiler, keyword string, args []sexpr.Node) (string, error) {
	compiled := make([]string, 0, len(args))
	for _, a := range args {
		sql, err := c.compile(a, false)
		if err != nil {
			return "", err
		}
		compiled = append(compiled, sql)
	}
	return keyword + " " + strings.Join(compiled, ", "), nil
}
