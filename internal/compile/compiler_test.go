package compile

import (
	"strings"
	"testing"

	"github.com/tanker-db/tanker/internal/dialect"
	"github.com/tanker-db/tanker/internal/pathresolve"
	"github.com/tanker-db/tanker/internal/schema"
	"github.com/tanker-db/tanker/internal/sexpr"
)

func testRegistry(t *testing.T) (*schema.Registry, *schema.Table) {
	t.Helper()
	reg, err := schema.Build([]schema.TableDef{
		{
			Name:    "team",
			Columns: []schema.ColumnDef{{Name: "name", TypeSpec: "varchar"}},
			Key:     []string{"name"},
		},
		{
			Name: "person",
			Columns: []schema.ColumnDef{
				{Name: "name", TypeSpec: "varchar"},
				{Name: "height_cm", TypeSpec: "integer"},
				{Name: "team", TypeSpec: "m2o team.id"},
			},
			Key: []string{"name"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	person, err := reg.Table("person")
	if err != nil {
		t.Fatal(err)
	}
	return reg, person
}

func newCompiler(t *testing.T) *Compiler {
	reg, person := testRegistry(t)
	resolver := pathresolve.New(reg, person, "", nil)
	return New(reg, resolver, dialect.For(dialect.SQLite), nil, nil, nil)
}

func compileString(t *testing.T, c *Compiler, src string) string {
	t.Helper()
	node, err := sexpr.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	sql, err := c.Compile(node)
	if err != nil {
		t.Fatal(err)
	}
	return sql
}

func TestCompileSimpleComparison(t *testing.T) {
	c := newCompiler(t)
	got := compileString(t, c, `(= name "Alastair")`)
	want := `"person"."name" = 'Alastair'`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if len(c.Params) != 0 {
		t.Fatalf("expected no bound params for a literal string, got %v", c.Params)
	}
}

func TestCompileNumericLiteralIsInlined(t *testing.T) {
	c := newCompiler(t)
	got := compileString(t, c, `(> height_cm 150)`)
	want := `"person"."height_cm" > 150`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompilePlaceholderBindsPositionalArg(t *testing.T) {
	reg, person := testRegistry(t)
	resolver := pathresolve.New(reg, person, "", nil)
	c := New(reg, resolver, dialect.For(dialect.SQLite), nil, []any{150}, nil)
	got := compileString(t, c, `(> height_cm {})`)
	if got != `"person"."height_cm" > ?` {
		t.Fatalf("got %q", got)
	}
	if len(c.Params) != 1 || c.Params[0] != 150 {
		t.Fatalf("expected bound param 150, got %v", c.Params)
	}
}

func TestCompilePostgresPlaceholdersAreNumbered(t *testing.T) {
	reg, person := testRegistry(t)
	resolver := pathresolve.New(reg, person, "", nil)
	c := New(reg, resolver, dialect.For(dialect.Postgres), nil, []any{150, 200}, nil)
	got := compileString(t, c, `(and (> height_cm {}) (< height_cm {}))`)
	want := `("person"."height_cm" > $1 AND "person"."height_cm" < $2)`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompileAndOr(t *testing.T) {
	c := newCompiler(t)
	got := compileString(t, c, `(or (= name "Alastair") (= name "Ed"))`)
	want := `("person"."name" = 'Alastair' OR "person"."name" = 'Ed')`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompileAggregateMarksAggregateSeen(t *testing.T) {
	c := newCompiler(t)
	node, err := sexpr.Parse(`(count name)`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compile(node); err != nil {
		t.Fatal(err)
	}
	if !c.aggregateSeen {
		t.Fatal("expected count() to mark aggregateSeen")
	}
	if !IsAggregate(node) {
		t.Fatal("expected IsAggregate to report true for a count() node")
	}
}

func TestCompileIlikeOnSQLiteFallsBackToCollateNocase(t *testing.T) {
	c := newCompiler(t)
	got := compileString(t, c, `(ilike name "al%")`)
	want := `"person"."name" LIKE 'al%' COLLATE NOCASE`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompileUnknownHeadIsParseError(t *testing.T) {
	c := newCompiler(t)
	node, err := sexpr.Parse(`(frobnicate name)`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compile(node); err == nil {
		t.Fatal("expected an error for an unregistered head symbol")
	}
}

func TestCompileRelationColumnWithoutDotJoinsNothing(t *testing.T) {
	c := newCompiler(t)
	// A bare "team" (no trailing dot) resolves to the FK column itself,
	// not the joined side — spec.md's path-resolution edge case.
	got := compileString(t, c, `(= team 1)`)
	if got != `"person"."team" = 1` {
		t.Fatalf("got %q", got)
	}
	if len(c.Resolver.Joins()) != 0 {
		t.Fatalf("expected no joins for a bare relation column, got %v", c.Resolver.Joins())
	}
}

func TestCompileExistsSubViewCorrelatesOnParentID(t *testing.T) {
	reg, err := schema.Build([]schema.TableDef{
		{
			Name:    "speaker",
			Columns: []schema.ColumnDef{{Name: "name", TypeSpec: "varchar"}},
			Key:     []string{"name"},
		},
		{
			Name: "event_speaker",
			Columns: []schema.ColumnDef{
				{Name: "speaker", TypeSpec: "m2o speaker.id"},
			},
			Key: []string{"speaker"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	speaker, err := reg.Table("speaker")
	if err != nil {
		t.Fatal(err)
	}
	resolver := pathresolve.New(reg, speaker, "", nil)
	c := New(reg, resolver, dialect.For(dialect.SQLite), nil, nil, nil)

	got := compileString(t, c, `(exists (from event_speaker (select 1) (where (= speaker _parent.id))))`)
	if got == "" {
		t.Fatal("expected non-empty compiled SQL")
	}
	if !containsAll(got, "EXISTS (", "SELECT 1", `FROM "event_speaker"`, `WHERE "event_speaker"."speaker" = "speaker"."id"`) {
		t.Fatalf("unexpected sub-select SQL: %q", got)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func TestCompileDottedRelationPathEmitsJoin(t *testing.T) {
	c := newCompiler(t)
	got := compileString(t, c, `(= team.name "engineering")`)
	if len(c.Resolver.Joins()) != 1 {
		t.Fatalf("expected exactly one join, got %v", c.Resolver.Joins())
	}
	alias := c.Resolver.Joins()[0].Alias
	want := `"` + alias + `"."name" = 'engineering'`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
