// Package dbctx implements the context & connection pool component
// (component B): process/transaction-scoped handles, per-flavor dialect
// shims, and the scope-bound config (ACL filters, arbitrary {key}
// argument values) every view read/write call needs.
//
// Per design note "Global context" (spec.md §9), the scope is carried as
// a value inside context.Context rather than as a goroutine-local or
// process-global mutable cell — Go's idiomatic analogue of the
// original's threading.local-backed ContextStack
// (original_source/tanker/utils.py:ContextStack).
package dbctx

import (
	"go.uber.org/zap"

	"github.com/tanker-db/tanker/internal/schema"
)

// Config mirrors spec.md §6: the db_uri (whose scheme selects the
// dialect), the schema declaration, read/write ACL filters keyed by
// table, and arbitrary user values usable as {key} inside expressions.
type Config struct {
	DBURI string

	// Schema is the parsed table declaration list. Building the
	// registry from it is cached per DBURI (see pool.go), matching
	// Context._registries in the original.
	Schema []schema.TableDef

	ACLRead  map[string]string
	ACLWrite map[string]string

	// Args holds arbitrary values usable as {key} placeholders inside
	// any expression compiled under this scope (the original's
	// ctx.cfg, merged into TankerCursor.split's kwargs).
	Args map[string]any

	// PoolMaxConns bounds the size of the underlying connection pool
	// (spec.md §5 "max size configurable"). Zero means driver default.
	PoolMaxConns int

	// Logger receives every statement this scope runs, at the levels
	// described in SPEC_FULL.md §2+ "Structured logging". Nil falls back
	// to a no-op logger; the tanker package's SetLogger sets the
	// process-wide default that Connect fills this in with.
	Logger *zap.SugaredLogger
}
