package dialect

import "fmt"

type sqliteDialect struct{}

func (sqliteDialect) Flavor() Flavor { return SQLite }

func (sqliteDialect) Quote(ident string) string { return `"` + ident + `"` }

func (sqliteDialect) Placeholder(n int) string { return "?" }

// Like always returns LIKE: SQLite has no ILIKE. Case-insensitivity is
// instead requested via COLLATE NOCASE appended after the pattern,
// injected by the expression compiler when it lowers an (ilike ...) form
// under this dialect.
func (sqliteDialect) Like(insensitive bool) string { return "LIKE" }

// Extract has no SQLite equivalent; EXTRACT(unit FROM expr) lowers to
// strftime('<fmt>', expr) per design note "SQLite dialect gaps".
func (sqliteDialect) Extract(unit, expr string) string {
	return fmt.Sprintf("CAST(strftime(%s, %s) AS INTEGER)", strftimeFormat(unit), expr)
}

func strftimeFormat(unit string) string {
	switch unit {
	case "'year'", "year":
		return "'%Y'"
	case "'month'", "month":
		return "'%m'"
	case "'day'", "day":
		return "'%d'"
	case "'hour'", "hour":
		return "'%H'"
	case "'minute'", "minute":
		return "'%M'"
	case "'second'", "second":
		return "'%S'"
	default:
		return "'%Y'"
	}
}

func (sqliteDialect) True() string  { return "1" }
func (sqliteDialect) False() string { return "0" }

func (sqliteDialect) AutoIncrementID(bigint, referenced bool) string {
	return "INTEGER PRIMARY KEY"
}

// ArrayType: no native array type in SQLite, arrays are stored as JSON
// text per design note "SQLite dialect gaps".
func (sqliteDialect) ArrayType(base string, dims int) string {
	return "TEXT"
}

func (sqliteDialect) UpsertSupported() bool { return true }
