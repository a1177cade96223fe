// Package compile implements the expression compiler (component E):
// lowering an s-expression AST, together with resolved field paths and
// argument bindings, into SQL text plus a flat parameter list, under a
// compilation context carrying the view being compiled, the alias
// counter, the parameter accumulator and a parent pointer used to
// resolve "_parent.…" inside correlated sub-selects.
//
// Grounded on original_source/tanker/expression.py: Expression/AST/
// ExpressionSymbol/ExpressionParam are collapsed here into a single
// recursive Compile over the sexpr.Node tree, with the builtins/
// aggregates dictionaries of Expression ported as the Heads registry in
// forms.go.
package compile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tanker-db/tanker/internal/dialect"
	"github.com/tanker-db/tanker/internal/pathresolve"
	"github.com/tanker-db/tanker/internal/schema"
	"github.com/tanker-db/tanker/internal/sexpr"
	"github.com/tanker-db/tanker/tkerr"
)

// HeadFunc lowers one builtin form: the already-compiled SQL text of
// each argument is passed in, and the function returns the lowered SQL
// text for the whole form. Forms that need access to raw (uncompiled)
// argument nodes (extract, from/exists, aggregates with "*") receive the
// Compiler and the raw nodes instead, see SpecialFunc below.
type HeadFunc func(c *Compiler, args []string) (string, error)

// SpecialFunc is used by forms that need the raw argument nodes rather
// than their compiled SQL text (extract's unit argument, from/select/
// where, count's bare "*").
type SpecialFunc func(c *Compiler, args []sexpr.Node) (string, error)

// Compiler walks one compilation tree: a view's select/filter/order
// expressions, plus any correlated sub-views opened via (from ...) or
// (exists ...). One Compiler is created per view.read()/write() call.
type Compiler struct {
	Resolver *pathresolve.Resolver
	Registry *schema.Registry
	Dialect  dialect.Dialect

	// Env resolves a bare symbol to another expression string before
	// falling back to field-path resolution — the view's named/aliased
	// fields (base_env in expression.py).
	Env map[string]string

	// Args/Kwargs are the argument bindings a {placeholder} pulls from.
	Args   []any
	Kwargs map[string]any

	Params []any

	Parent *Compiler

	heads    map[string]HeadFunc
	specials map[string]SpecialFunc

	aggregateSeen bool
}

// New creates a root compiler over the table `resolver` is rooted at,
// compiling against `reg` under `dia`. env/args/kwargs may be nil.
func New(reg *schema.Registry, resolver *pathresolve.Resolver, dia dialect.Dialect, env map[string]string, args []any, kwargs map[string]any) *Compiler {
	c := &Compiler{
		Resolver: resolver,
		Registry: reg,
		Dialect:  dia,
		Env:      env,
		Args:     args,
		Kwargs:   kwargs,
	}
	c.heads = builtinHeads
	c.specials = specialHeads
	return c
}

// sub creates a compiler for a correlated sub-view rooted at `table`,
// sharing this compiler's join-alias counter (via a Sub() resolver) but
// starting a fresh Env. compileFrom threads the parameter accumulator
// and the remaining positional args through the child and back.
func (c *Compiler) sub(table *schema.Table) *Compiler {
	child := New(c.Registry, c.Resolver.Sub(table), c.Dialect, nil, c.Args, c.Kwargs)
	child.Parent = c
	return child
}

// Compile lowers a parsed node to SQL text, treating a bare Symbol as a
// field path / env alias.
func (c *Compiler) Compile(node sexpr.Node) (string, error) {
	return c.compile(node, false)
}

// compile is Compile's recursive worker. isHead controls whether a bare
// Symbol is looked up as a builtin head (only valid as the first item of
// a List) or as a field path / env alias.
func (c *Compiler) compile(node sexpr.Node, isHead bool) (string, error) {
	switch n := node.(type) {
	case *sexpr.Number:
		return c.literalNumber(n), nil
	case *sexpr.String:
		return sqlQuoteString(n.Value), nil
	case *sexpr.Placeholder:
		return c.compilePlaceholder(n)
	case *sexpr.Symbol:
		return c.compileSymbol(n, isHead)
	case *sexpr.List:
		return c.compileList(n)
	default:
		return "", fmt.Errorf("unknown AST node %T", node)
	}
}

func (c *Compiler) literalNumber(n *sexpr.Number) string {
	if n.IsFloat {
		return strconv.FormatFloat(n.Float, 'g', -1, 64)
	}
	return strconv.FormatInt(n.Int, 10)
}

func sqlQuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (c *Compiler) compileSymbol(n *sexpr.Symbol, isHead bool) (string, error) {
	if isHead {
		// Builtin head symbols are looked up by the caller
		// (compileList); reaching here means a bare head-position
		// symbol was compiled directly, which only happens for
		// "(from <table> ...)" table names, handled specially.
		return n.Name, nil
	}

	if strings.HasPrefix(n.Name, "_parent.") {
		return c.compileParentRef(strings.TrimPrefix(n.Name, "_parent."))
	}

	if desc, ok := c.Env[n.Name]; ok && desc != n.Name {
		if strings.HasPrefix(desc, "(") {
			sub, err := sexpr.Parse(desc)
			if err != nil {
				return "", err
			}
			return c.compile(sub, false)
		}
		return c.resolveField(desc)
	}

	sql, err := c.resolveField(n.Name)
	if err == nil {
		return sql, nil
	}
	// Unresolvable bare symbols fall back to raw SQL keyword text for
	// the common idiom of a literal "null" in e.g. (is x null) —
	// anything else is a genuine ResolveError.
	if strings.EqualFold(n.Name, "null") {
		return "null", nil
	}
	return "", err
}

func (c *Compiler) resolveField(path string) (string, error) {
	ref, err := c.Resolver.Resolve(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", c.Dialect.Quote(ref.Alias), c.Dialect.Quote(ref.Field)), nil
}

// compileParentRef walks up `_parent.` prefixes to the owning compiler
// and resolves the remaining path against its resolver — used by
// correlated ACL sub-views (spec.md §8 scenario 6).
func (c *Compiler) compileParentRef(rest string) (string, error) {
	cur := c
	for strings.HasPrefix(rest, "_parent.") {
		if cur.Parent == nil {
			return "", &tkerr.ResolveError{Path: "_parent." + rest, Cause: "no enclosing view"}
		}
		cur = cur.Parent
		rest = strings.TrimPrefix(rest, "_parent.")
	}
	if cur.Parent == nil {
		return "", &tkerr.ResolveError{Path: rest, Cause: "no enclosing view"}
	}
	return cur.Parent.resolveField(rest)
}

func (c *Compiler) compileList(l *sexpr.List) (string, error) {
	head := sexpr.Head(l)
	if head == "" {
		return "", &tkerr.ParseError{Message: "list must start with a symbol head"}
	}
	args := l.Items[1:]

	if special, ok := c.specials[head]; ok {
		return special(c, args)
	}

	fn, ok := c.heads[head]
	if !ok {
		return "", &tkerr.ParseError{Message: fmt.Sprintf("unknown head %q", head)}
	}

	if isAggregateHead(head) {
		c.aggregateSeen = true
	}

	compiled := make([]string, 0, len(args))
	for _, a := range args {
		sql, err := c.compile(a, false)
		if err != nil {
			return "", err
		}
		compiled = append(compiled, sql)
	}
	return fn(c, compiled)
}

func (c *Compiler) compilePlaceholder(p *sexpr.Placeholder) (string, error) {
	value, err := c.placeholderValue(p.Raw)
	if err != nil {
		return "", err
	}
	return c.emitParam(value), nil
}

// EmitParam binds a value that did not come through a {placeholder}
// token — e.g. a filter map's right-hand side — returning the marker(s)
// to splice into the SQL text. See emitParam for the placeholder path.
func (c *Compiler) EmitParam(value any) string { return c.emitParam(value) }

// emitParam appends one (or, for a slice value, several) bound
// parameter(s), returning the comma-separated marker(s) to splice into
// the SQL text — mirrors AST.emit_literal.
func (c *Compiler) emitParam(value any) string {
	switch v := value.(type) {
	case []any:
		markers := make([]string, len(v))
		for i, item := range v {
			c.Params = append(c.Params, item)
			markers[i] = c.Dialect.Placeholder(len(c.Params))
		}
		return strings.Join(markers, ", ")
	default:
		c.Params = append(c.Params, value)
		return c.Dialect.Placeholder(len(c.Params))
	}
}

// placeholderValue resolves "{name}", "{name.attr}" and "{}" against
// Args/Kwargs, mirroring ExpressionParam.eval.
func (c *Compiler) placeholderValue(raw string) (any, error) {
	key, tail, hasTail := strings.Cut(raw, ".")

	var value any
	if key == "" {
		if len(c.Args) == 0 {
			return nil, &tkerr.ArgError{Name: "{}", Message: "no positional argument left to bind"}
		}
		value, c.Args = c.Args[0], c.Args[1:]
	} else if idx, err := strconv.Atoi(key); err == nil {
		if idx < 0 || idx >= len(c.Args) {
			return nil, &tkerr.ArgError{Name: key, Message: "positional argument index out of range"}
		}
		value = c.Args[idx]
	} else if v, ok := c.Kwargs[key]; ok {
		value = v
	} else {
		return nil, &tkerr.ArgError{Name: key, Message: "no value bound for placeholder"}
	}

	if hasTail {
		return lookupAttr(value, tail, key)
	}
	return value, nil
}

func lookupAttr(value any, path, name string) (any, error) {
	cur := value
	for _, attr := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, &tkerr.ArgError{Name: name, Message: fmt.Sprintf("cannot look up %q on non-map value", attr)}
		}
		v, ok := m[attr]
		if !ok {
			return nil, &tkerr.ArgError{Name: name, Message: fmt.Sprintf("attribute %q not found", attr)}
		}
		cur = v
	}
	return cur, nil
}

// IsAggregate reports whether a parsed node contains at least one
// aggregate head anywhere in its tree — used by the read pipeline to
// decide whether to infer a GROUP BY (spec.md §4.E "Aggregates trigger
// grouping").
func IsAggregate(node sexpr.Node) bool {
	l, ok := node.(*sexpr.List)
	if !ok {
		return false
	}
	if isAggregateHead(sexpr.Head(l)) {
		return true
	}
	for _, item := range l.Items[1:] {
		if IsAggregate(item) {
			return true
		}
	}
	return false
}

func isAggregateHead(head string) bool {
	switch head {
	case "count", "sum", "avg", "min", "max":
		return true
	}
	return false
}
