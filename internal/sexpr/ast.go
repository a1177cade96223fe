package sexpr

// Node is any element of a parsed s-expression tree: a List, Symbol,
// Number, String or Placeholder.
type Node interface {
	isNode()
}

// List is a parenthesised form: (head arg...). Head is always the first
// element of Items.
type List struct {
	Items []Node
}

// Symbol is a bare identifier: either a field path ("a.b.c"), or (when
// first in a List) a builtin head name.
type Symbol struct {
	Name string
}

// Number is an inlined integer or float literal.
type Number struct {
	IsFloat bool
	Int     int64
	Float   float64
}

// String is an inlined, already-unquoted string literal.
type String struct {
	Value string
}

// Placeholder is `{name}`, `{name.attr}` or `{}` — pulls a value from the
// argument bindings at compile time (spec.md §4.E).
type Placeholder struct {
	// Raw is the text between the braces, e.g. "name.attr:fmt!conv".
	Raw string
}

func (*List) isNode()        {}
func (*Symbol) isNode()      {}
func (*Number) isNode()      {}
func (*String) isNode()      {}
func (*Placeholder) isNode() {}
