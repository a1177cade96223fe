// Package dialect holds the per-flavor (PostgreSQL / SQLite) SQL shims
// referenced throughout spec.md: placeholder style, quoting, upsert
// syntax, and the translations listed in design note "SQLite dialect
// gaps" (no ILIKE, no array type, EXTRACT -> strftime). These
// translations live here, not in the expression compiler, exactly as
// the design notes require.
//
// Grounded on original_source/tanker/context.py (Pool/Context flavor
// branching) and the "true"/"false"/"strftime" entries of
// expression.py:Expression.builtins.
package dialect

import "fmt"

type Flavor int

const (
	Postgres Flavor = iota
	SQLite
)

func (f Flavor) String() string {
	if f == Postgres {
		return "postgresql"
	}
	return "sqlite"
}

// ParseFlavor maps a db_uri scheme (spec.md §6) to a Flavor.
func ParseFlavor(scheme string) (Flavor, error) {
	switch scheme {
	case "postgresql", "postgres":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("unsupported scheme %q in db_uri", scheme)
	}
}

// Dialect exposes the small set of SQL-text differences the compiler and
// view engine need to know about. Everything else (the AST, the join
// resolution, the upsert shape) is flavor-agnostic.
type Dialect interface {
	Flavor() Flavor
	// Quote wraps an identifier in the flavor's quoting style.
	Quote(ident string) string
	// Placeholder returns the positional parameter marker for the n'th
	// (1-based) bound argument.
	Placeholder(n int) string
	// Like lowers a case-sensitivity-aware LIKE/ILIKE form.
	Like(insensitive bool) string
	// Extract lowers "(extract <unit> <expr>)".
	Extract(unit, expr string) string
	// True/False lower the boolean literals.
	True() string
	False() string
	// AutoIncrementID returns the column definition used for the implicit
	// "id" surrogate, including a PRIMARY KEY clause where the flavor
	// needs one; `referenced` reports whether the table is an m2o target.
	AutoIncrementID(bigint, referenced bool) string
	// ArrayType returns the storage type for an array-of-base column;
	// SQLite has no native array type and falls back to JSON text.
	ArrayType(base string, dims int) string
	// UpsertSupported reports whether `INSERT ... ON CONFLICT` is
	// available; both flavors tanker targets support it (SQLite from
	// 3.24), so this is always true, but the seam exists to
	// mirror the teacher's ctx.legacy_pg fallback path (view.py:write).
	UpsertSupported() bool
}

func For(f Flavor) Dialect {
	switch f {
	case Postgres:
		return postgresDialect{}
	case SQLite:
		return sqliteDialect{}
	default:
		panic("unknown flavor")
	}
}
