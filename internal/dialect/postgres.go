package dialect

import "fmt"

type postgresDialect struct{}

func (postgresDialect) Flavor() Flavor { return Postgres }

func (postgresDialect) Quote(ident string) string { return `"` + ident + `"` }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) Like(insensitive bool) string {
	if insensitive {
		return "ILIKE"
	}
	return "LIKE"
}

func (postgresDialect) Extract(unit, expr string) string {
	return fmt.Sprintf("EXTRACT(%s FROM %s)", unit, expr)
}

func (postgresDialect) True() string  { return "true" }
func (postgresDialect) False() string { return "false" }

func (postgresDialect) AutoIncrementID(bigint, referenced bool) string {
	kind := "SERIAL"
	if bigint {
		kind = "BIGSERIAL"
	}
	if referenced {
		kind += " PRIMARY KEY"
	}
	return kind
}

func (postgresDialect) ArrayType(base string, dims int) string {
	suffix := ""
	for i := 0; i < dims; i++ {
		suffix += "[]"
	}
	return base + suffix
}

func (postgresDialect) UpsertSupported() bool { return true }
