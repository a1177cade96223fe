package sexpr

import (
	"strconv"
	"strings"

	"github.com/tanker-db/tanker/tkerr"
)

// Parse tokenizes and reads a single s-expression, returning its root
// Node. A bare atom (no surrounding parens) is a valid top-level
// expression, mirroring Expression.parse/Expression.read in
// expression.py, which accepts both "(= a b)" and a lone "col" or
// "{param}".
func Parse(input string) (Node, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &tkerr.ParseError{Input: input, Message: "unexpected EOF while reading"}
	}
	node, rest, err := read(tokens, input)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, &tkerr.ParseError{Input: input, Message: "unexpected tokens after expression"}
	}
	return node, nil
}

func read(tokens []string, input string) (Node, []string, error) {
	if len(tokens) == 0 {
		return nil, nil, &tkerr.ParseError{Input: input, Message: "unexpected EOF while reading"}
	}
	tok := tokens[0]
	tokens = tokens[1:]

	switch tok {
	case "(":
		var items []Node
		for {
			if len(tokens) == 0 {
				return nil, nil, &tkerr.ParseError{Input: input, Message: "unexpected EOF, missing )"}
			}
			if tokens[0] == ")" {
				tokens = tokens[1:]
				break
			}
			var node Node
			var err error
			node, tokens, err = read(tokens, input)
			if err != nil {
				return nil, nil, err
			}
			items = append(items, node)
		}
		if len(items) == 0 {
			return nil, nil, &tkerr.ParseError{Input: input, Message: "empty form ()"}
		}
		return &List{Items: items}, tokens, nil
	case ")":
		return nil, nil, &tkerr.ParseError{Input: input, Message: "unexpected )"}
	default:
		node, err := atom(tok, input)
		return node, tokens, err
	}
}

func atom(tok, input string) (Node, error) {
	if len(tok) >= 2 {
		for _, q := range []byte{'"', '\''} {
			if tok[0] == q && tok[len(tok)-1] == q {
				return &String{Value: unescape(tok[1 : len(tok)-1])}, nil
			}
		}
	}
	if len(tok) >= 2 && tok[0] == '{' && tok[len(tok)-1] == '}' {
		return &Placeholder{Raw: tok[1 : len(tok)-1]}, nil
	}
	if tok == "{}" {
		return &Placeholder{Raw: ""}, nil
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return &Number{Int: i}, nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return &Number{IsFloat: true, Float: f}, nil
	}
	return &Symbol{Name: tok}, nil
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, "\"\"", "\"")
	s = strings.ReplaceAll(s, "''", "'")
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\'`, "'")
	return s
}

// Head returns the leading symbol name of a List, lower-cased, or ""
// if the list's head is not a bare symbol.
func Head(l *List) string {
	if len(l.Items) == 0 {
		return ""
	}
	if sym, ok := l.Items[0].(*Symbol); ok {
		return strings.ToLower(sym.Name)
	}
	return ""
}
