package dbctx

import (
	"context"
	"fmt"
	"strings"

	"github.com/tanker-db/tanker/internal/dialect"
	"github.com/tanker-db/tanker/internal/schema"
	"github.com/tanker-db/tanker/tkerr"
)

// CreateTables emits CREATE TABLE for every table missing from the live
// catalog, then ALTER TABLE for m2o columns (so cyclic references work),
// then CREATE UNIQUE INDEX over each table's natural key — idempotent
// against an existing schema exactly as spec.md §4.A describes.
//
// Grounded on original_source/tanker/context.py: Context.create_tables /
// create_table / add_columns / create_index, three-pass by design so
// that a table whose m2o column references a table created later in the
// same call still succeeds.
func (s *Scope) CreateTables(ctx context.Context) error {
	existing, err := s.introspectTables(ctx)
	if err != nil {
		return err
	}
	existingColumns, err := s.introspectColumns(ctx, existing)
	if err != nil {
		return err
	}
	existingIndexes, err := s.introspectIndexes(ctx)
	if err != nil {
		return err
	}

	for _, t := range s.Registry.Tables() {
		if existing[t.Name] {
			continue
		}
		if err := s.createTableSkeleton(ctx, t); err != nil {
			return err
		}
		existing[t.Name] = true
		for _, c := range t.Columns {
			if c.Kind == schema.M2O && s.Dialect.Flavor() == dialect.Postgres {
				// Not created by createTableSkeleton; addRelationColumns adds it.
				continue
			}
			if existingColumns[t.Name] == nil {
				existingColumns[t.Name] = map[string]bool{}
			}
			existingColumns[t.Name][c.Name] = true
		}
	}
	for _, t := range s.Registry.Tables() {
		if err := s.addRelationColumns(ctx, t, existingColumns[t.Name]); err != nil {
			return err
		}
	}
	for _, t := range s.Registry.Tables() {
		if err := s.createKeyIndex(ctx, t, existingIndexes); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scope) introspectTables(ctx context.Context) (map[string]bool, error) {
	var query string
	if s.Dialect.Flavor() == dialect.SQLite {
		query = "SELECT name FROM sqlite_master WHERE type = 'table'"
	} else {
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema = 'public'"
	}
	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &tkerr.DriverError{Query: query, Err: err}
		}
		out[name] = true
	}
	return out, rows.Err()
}

// introspectColumns returns, per already-existing table, the set of column
// names already present — so addRelationColumns can skip an m2o column a
// prior CreateTables call already added instead of re-issuing its ALTER
// TABLE and failing on a duplicate-column error.
//
// Grounded on original_source/tanker/context.py: Context.add_columns reads
// db_columns from the live catalog first and only ALTERs in the columns
// missing from it.
func (s *Scope) introspectColumns(ctx context.Context, tables map[string]bool) (map[string]map[string]bool, error) {
	out := map[string]map[string]bool{}
	if s.Dialect.Flavor() == dialect.SQLite {
		for t := range tables {
			rows, err := s.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", s.Dialect.Quote(t)))
			if err != nil {
				return nil, err
			}
			cols := map[string]bool{}
			for rows.Next() {
				var cid int
				var name, ctype string
				var notnull, pk int
				var dflt any
				if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
					rows.Close()
					return nil, &tkerr.DriverError{Query: "PRAGMA table_info", Err: err}
				}
				cols[name] = true
			}
			closeErr := rows.Err()
			rows.Close()
			if closeErr != nil {
				return nil, closeErr
			}
			out[t] = cols
		}
		return out, nil
	}

	query := "SELECT table_name, column_name FROM information_schema.columns WHERE table_schema = 'public'"
	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var table, col string
		if err := rows.Scan(&table, &col); err != nil {
			return nil, &tkerr.DriverError{Query: query, Err: err}
		}
		if out[table] == nil {
			out[table] = map[string]bool{}
		}
		out[table][col] = true
	}
	return out, rows.Err()
}

// introspectIndexes returns the set of index names already present, so
// createKeyIndex can skip a natural-key index a prior CreateTables call
// already created.
//
// Grounded on original_source/tanker/context.py: Context.create_index
// checks db_indexes before issuing CREATE INDEX.
func (s *Scope) introspectIndexes(ctx context.Context) (map[string]bool, error) {
	var query string
	if s.Dialect.Flavor() == dialect.SQLite {
		query = "SELECT name FROM sqlite_master WHERE type = 'index'"
	} else {
		query = "SELECT indexname FROM pg_indexes WHERE schemaname = 'public'"
	}
	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &tkerr.DriverError{Query: query, Err: err}
		}
		out[name] = true
	}
	return out, rows.Err()
}

// createTableSkeleton emits CREATE TABLE with the implicit id surrogate
// and every non-relation column. O2M columns are virtual and never
// materialize. M2O columns are deferred to addRelationColumns for
// Postgres, where a forward reference to a not-yet-created table fails
// inside CREATE TABLE — but inlined here for SQLite, since its ALTER
// TABLE ADD COLUMN never enforces a FOREIGN KEY constraint added after
// the fact (the clause parses but is silently unenforced), while its
// CREATE TABLE happily forward-references a table that doesn't exist
// yet (existence is only checked at DML time, not DDL time).
func (s *Scope) createTableSkeleton(ctx context.Context, t *schema.Table) error {
	var defs []string
	for _, c := range t.Columns {
		if c.Kind == schema.O2M {
			continue
		}
		if c.Kind == schema.M2O {
			if s.Dialect.Flavor() != dialect.SQLite {
				continue
			}
			defs = append(defs, s.m2oColumnDefSQL(t, c))
			continue
		}
		defs = append(defs, s.columnDefSQL(t, c))
	}
	q := fmt.Sprintf(`CREATE TABLE %s (%s)`, s.Dialect.Quote(t.Name), strings.Join(defs, ", "))
	_, err := s.Exec(ctx, q)
	if err != nil {
		return err
	}
	s.Logger.Infow("table created", "table", t.Name)
	return nil
}

// m2oColumnDefSQL is the SQLite-only inline form of a relation column:
// the same REFERENCES ... ON DELETE CASCADE clause addRelationColumns
// issues via ALTER TABLE for Postgres, but written into CREATE TABLE
// itself so SQLite actually enforces it.
func (s *Scope) m2oColumnDefSQL(t *schema.Table, c *schema.Column) string {
	def := fmt.Sprintf("INTEGER REFERENCES %s (%s) ON DELETE CASCADE",
		s.Dialect.Quote(c.ForeignTable), s.Dialect.Quote(c.ForeignCol))
	if isKeyColumn(t, c.Name) {
		def += " NOT NULL"
	}
	return fmt.Sprintf("%s %s", s.Dialect.Quote(c.Name), def)
}

func (s *Scope) columnDefSQL(t *schema.Table, c *schema.Column) string {
	var def string
	switch {
	case c.Name == "id":
		def = s.Dialect.AutoIncrementID(c.Kind == schema.BigInt, s.Registry.Referenced(t.Name))
	case c.ArrayDims > 0:
		def = s.Dialect.ArrayType(string(c.Kind), c.ArrayDims)
	default:
		def = string(c.Kind)
		if c.Default != "" {
			def += " DEFAULT " + c.Default
		}
	}
	if isKeyColumn(t, c.Name) && c.Name != "id" {
		def += " NOT NULL"
	}
	return fmt.Sprintf("%s %s", s.Dialect.Quote(c.Name), def)
}

func isKeyColumn(t *schema.Table, name string) bool {
	for _, k := range t.Key {
		if k == name {
			return true
		}
	}
	return false
}

// addRelationColumns ALTERs in every m2o column for Postgres that the live
// catalog doesn't already have, deferred past table creation so that a
// cycle of m2o references across two tables resolves regardless of
// creation order. SQLite's relation columns are already inlined by
// createTableSkeleton (see its comment), so there is nothing left to add
// here.
//
// existingColumns skips a column a prior CreateTables call already added,
// matching original_source/tanker/context.py's add_columns, which only
// ALTERs in the columns missing from db_columns.
func (s *Scope) addRelationColumns(ctx context.Context, t *schema.Table, existingColumns map[string]bool) error {
	if s.Dialect.Flavor() != dialect.Postgres {
		return nil
	}
	for _, c := range t.Columns {
		if c.Kind != schema.M2O {
			continue
		}
		if existingColumns[c.Name] {
			continue
		}
		def := fmt.Sprintf(`INTEGER REFERENCES %s (%s) ON DELETE CASCADE`,
			s.Dialect.Quote(c.ForeignTable), s.Dialect.Quote(c.ForeignCol))
		q := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, s.Dialect.Quote(t.Name), s.Dialect.Quote(c.Name), def)
		if _, err := s.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// createKeyIndex issues CREATE UNIQUE INDEX over a table's natural key
// unless the index already exists, matching original_source/tanker/
// context.py's create_index, which checks db_indexes first.
func (s *Scope) createKeyIndex(ctx context.Context, t *schema.Table, existingIndexes map[string]bool) error {
	if len(t.Key) == 0 {
		return nil
	}
	idxName := "unique_index_" + t.Name
	if existingIndexes[idxName] {
		return nil
	}
	cols := make([]string, len(t.Key))
	for i, k := range t.Key {
		cols[i] = s.Dialect.Quote(k)
	}
	q := fmt.Sprintf(`CREATE UNIQUE INDEX %s ON %s (%s)`, s.Dialect.Quote(idxName), s.Dialect.Quote(t.Name), strings.Join(cols, ", "))
	_, err := s.Exec(ctx, q)
	return err
}
