// Package tkerr defines the typed error hierarchy raised across tanker's
// compilation and execution pipeline (schema build, path/expression
// compilation, scope handling and driver execution).
package tkerr

import "fmt"

// SchemaError reports an inconsistent table/column/relation declaration,
// raised while building a schema registry.
type SchemaError struct {
	Table   string
	Column  string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema error: table %q column %q: %s", e.Table, e.Column, e.Message)
	}
	if e.Table != "" {
		return fmt.Sprintf("schema error: table %q: %s", e.Table, e.Message)
	}
	return fmt.Sprintf("schema error: %s", e.Message)
}

// ResolveError reports an unknown field path encountered while compiling a
// view, before any SQL is sent to the database.
type ResolveError struct {
	Table string
	Path  string
	Cause string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("cannot resolve path %q on table %q: %s", e.Path, e.Table, e.Cause)
}

// ParseError reports a malformed s-expression: unbalanced parens, an
// unknown head symbol, or an otherwise unreadable token stream.
type ParseError struct {
	Input   string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %q: %s", e.Input, e.Message)
}

// ArgError reports a missing or wrong-shaped argument binding: a
// placeholder with no value, or an attribute/item lookup that failed.
type ArgError struct {
	Name    string
	Message string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("argument error for %q: %s", e.Name, e.Message)
}

// NotInScope is raised when a view read/write/delete call is attempted
// outside of an active scope (see dbctx.Connect).
type NotInScope struct{}

func (e *NotInScope) Error() string {
	return "no active tanker scope: call dbctx.Connect first"
}

// ConstraintError wraps a foreign-key or NOT NULL violation surfaced by
// the driver, annotated with the offending table/column when known.
type ConstraintError struct {
	Table  string
	Column string
	Value  any
	Err    error
}

func (e *ConstraintError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("constraint violation on %s.%s (value %v): %s", e.Table, e.Column, e.Value, e.Err)
	}
	return fmt.Sprintf("constraint violation on %s: %s", e.Table, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// DriverError wraps an underlying connection/SQL error verbatim.
type DriverError struct {
	Query string
	Err   error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error: %s (query: %s)", e.Err, e.Query)
}

func (e *DriverError) Unwrap() error { return e.Err }
