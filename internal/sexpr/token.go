// Package sexpr implements the tokenizer and reader for tanker's
// filter/projection mini-language (spec.md §4.D):
//
//	expr    := atom | '(' head expr* ')'
//	head    := symbol
//	atom    := symbol | number | string | placeholder
//	string  := "…" | '…'
//	placeholder := '{' name '}' | '{' name '.' attrpath '}' | '{}'
//
// Grounded on original_source/tanker/expression.py: Expression.parse used
// Python's shlex with extended wordchars (".!=<>:{}-") instead of a
// bespoke tokenizer; Tokenize below is a direct port of that lexing rule
// so that the same input produces the same token stream.
package sexpr

import (
	"strings"

	"github.com/tanker-db/tanker/tkerr"
)

const extraWordChars = ".!=<>:{}-"

func isWordChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune(extraWordChars, r):
		return true
	case r == '_':
		return true
	}
	return false
}

// Tokenize splits an s-expression string into tokens: parens are always
// their own token; quoted strings (single or double quote, with doubled
// or backslash escaping) are kept whole including their quotes; runs of
// word characters form one token each. Whitespace is insignificant.
func Tokenize(input string) ([]string, error) {
	var tokens []string
	runes := []rune(input)
	i, n := 0, len(runes)

	for i < n {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			i++
		case r == '(' || r == ')':
			tokens = append(tokens, string(r))
			i++
		case r == '"' || r == '\'':
			quote := r
			j := i + 1
			var b strings.Builder
			b.WriteRune(quote)
			closed := false
			for j < n {
				c := runes[j]
				if c == '\\' && j+1 < n {
					b.WriteRune(c)
					b.WriteRune(runes[j+1])
					j += 2
					continue
				}
				if c == quote {
					// Doubled-quote escape: "" inside a "..." string.
					if j+1 < n && runes[j+1] == quote {
						b.WriteRune(c)
						b.WriteRune(c)
						j += 2
						continue
					}
					b.WriteRune(c)
					j++
					closed = true
					break
				}
				b.WriteRune(c)
				j++
			}
			if !closed {
				return nil, &tkerr.ParseError{Input: input, Message: "unterminated string literal"}
			}
			tokens = append(tokens, b.String())
			i = j
		default:
			j := i
			for j < n && isWordChar(runes[j]) {
				j++
			}
			if j == i {
				// Not a word character on its own (e.g. "*", "/", "+"):
				// shlex would still hand this back as a one-character
				// word rather than rejecting it, so do the same.
				tokens = append(tokens, string(r))
				i++
				continue
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		}
	}
	return tokens, nil
}
