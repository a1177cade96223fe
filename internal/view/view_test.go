package view_test

import (
	"context"
	"fmt"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/tanker-db/tanker/internal/dbctx"
	"github.com/tanker-db/tanker/internal/schema"
	"github.com/tanker-db/tanker/internal/view"
)

// Hook up gocheck into the "go test" runner.
func TestView(t *testing.T) { TestingT(t) }

type ViewSuite struct {
	closers []func()
}

var _ = Suite(&ViewSuite{})

func (s *ViewSuite) TearDownTest(c *C) {
	for _, closeFn := range s.closers {
		closeFn()
	}
	s.closers = nil
}

var dbCounter int

// connect opens a fresh scope over its own private in-memory database —
// dbctx's pool is cached per db_uri, so each test gets a distinct URI to
// avoid sharing tables or rows with any other test in this run.
func (s *ViewSuite) connect(c *C, defs []schema.TableDef) context.Context {
	dbCounter++
	cfg := dbctx.Config{
		DBURI:  fmt.Sprintf("sqlite:///:memory:?t=%d", dbCounter),
		Schema: defs,
	}
	ctx, closeFn, err := dbctx.Connect(context.Background(), cfg)
	c.Assert(err, IsNil)

	scope, err := dbctx.FromContext(ctx)
	c.Assert(err, IsNil)
	c.Assert(scope.CreateTables(ctx), IsNil)

	s.closers = append(s.closers, func() { closeFn(nil) })
	return ctx
}

func teamPersonSchema() []schema.TableDef {
	return []schema.TableDef{
		{
			Name:    "team",
			Columns: []schema.ColumnDef{{Name: "name", TypeSpec: "varchar"}},
			Key:     []string{"name"},
		},
		{
			Name: "person",
			Columns: []schema.ColumnDef{
				{Name: "name", TypeSpec: "varchar"},
				{Name: "team", TypeSpec: "m2o team.id"},
			},
			Key: []string{"name"},
		},
	}
}

// personByTeamName is the person view used throughout this suite: "team"
// writes and reads through the team's natural key rather than its
// surrogate id, the common case spec.md §4.G exists to support.
func personByTeamName(ctx context.Context) (*view.View, error) {
	return view.New(must(dbctx.FromContext(ctx)).Registry, mustTable(ctx, "person"), []view.FieldSpec{
		{Name: "name", Desc: "name"},
		{Name: "team", Desc: "team.name"},
	})
}

func (s *ViewSuite) TestWriteThenReadRoundTrips(c *C) {
	ctx := s.connect(c, teamPersonSchema())

	teams, err := view.New(must(dbctx.FromContext(ctx)).Registry, mustTable(ctx, "team"), nil)
	c.Assert(err, IsNil)
	_, err = teams.Write(ctx, []map[string]any{{"name": "engineering"}}, view.DefaultWriteOptions())
	c.Assert(err, IsNil)

	people, err := personByTeamName(ctx)
	c.Assert(err, IsNil)
	_, err = people.Write(ctx, []map[string]any{{"name": "Alastair", "team": "engineering"}}, view.DefaultWriteOptions())
	c.Assert(err, IsNil)

	cur, err := people.Read(ctx, view.ReadOptions{})
	c.Assert(err, IsNil)
	rows, err := cur.Dict()
	c.Assert(err, IsNil)
	c.Assert(rows, HasLen, 1)
	c.Assert(rows[0]["name"], Equals, "Alastair")
	c.Assert(rows[0]["team"], Equals, "engineering")
}

func (s *ViewSuite) TestWriteIsIdempotent(c *C) {
	ctx := s.connect(c, teamPersonSchema())
	teams, err := view.New(must(dbctx.FromContext(ctx)).Registry, mustTable(ctx, "team"), nil)
	c.Assert(err, IsNil)

	_, err = teams.Write(ctx, []map[string]any{{"name": "engineering"}}, view.DefaultWriteOptions())
	c.Assert(err, IsNil)
	_, err = teams.Write(ctx, []map[string]any{{"name": "engineering"}}, view.DefaultWriteOptions())
	c.Assert(err, IsNil)

	cur, err := teams.Read(ctx, view.ReadOptions{})
	c.Assert(err, IsNil)
	rows, err := cur.Dict()
	c.Assert(err, IsNil)
	c.Assert(rows, HasLen, 1)
}

func (s *ViewSuite) TestDottedPathReadJoinsRelatedTable(c *C) {
	ctx := s.connect(c, teamPersonSchema())
	teams, err := view.New(must(dbctx.FromContext(ctx)).Registry, mustTable(ctx, "team"), nil)
	c.Assert(err, IsNil)
	_, err = teams.Write(ctx, []map[string]any{{"name": "engineering"}}, view.DefaultWriteOptions())
	c.Assert(err, IsNil)

	people, err := personByTeamName(ctx)
	c.Assert(err, IsNil)
	_, err = people.Write(ctx, []map[string]any{{"name": "Alastair", "team": "engineering"}}, view.DefaultWriteOptions())
	c.Assert(err, IsNil)

	v, err := view.New(must(dbctx.FromContext(ctx)).Registry, mustTable(ctx, "person"), []view.FieldSpec{
		{Name: "name", Desc: "name"},
		{Name: "team_name", Desc: "team.name"},
	})
	c.Assert(err, IsNil)
	cur, err := v.Read(ctx, view.ReadOptions{})
	c.Assert(err, IsNil)
	rows, err := cur.Dict()
	c.Assert(err, IsNil)
	c.Assert(rows, HasLen, 1)
	c.Assert(rows[0]["team_name"], Equals, "engineering")
}

func (s *ViewSuite) TestFilterRestrictsRows(c *C) {
	ctx := s.connect(c, teamPersonSchema())
	teams, err := view.New(must(dbctx.FromContext(ctx)).Registry, mustTable(ctx, "team"), nil)
	c.Assert(err, IsNil)
	_, err = teams.Write(ctx, []map[string]any{{"name": "engineering"}, {"name": "sales"}}, view.DefaultWriteOptions())
	c.Assert(err, IsNil)

	people, err := personByTeamName(ctx)
	c.Assert(err, IsNil)
	_, err = people.Write(ctx, []map[string]any{
		{"name": "Alastair", "team": "engineering"},
		{"name": "Paul", "team": "sales"},
	}, view.DefaultWriteOptions())
	c.Assert(err, IsNil)

	cur, err := people.Read(ctx, view.ReadOptions{Filter: `(= team.name "sales")`})
	c.Assert(err, IsNil)
	rows, err := cur.Dict()
	c.Assert(err, IsNil)
	c.Assert(rows, HasLen, 1)
	c.Assert(rows[0]["name"], Equals, "Paul")
}

func (s *ViewSuite) TestCascadeDeleteOnParentRemovesChildren(c *C) {
	ctx := s.connect(c, teamPersonSchema())
	scope := must(dbctx.FromContext(ctx))

	teams, err := view.New(scope.Registry, mustTable(ctx, "team"), nil)
	c.Assert(err, IsNil)
	_, err = teams.Write(ctx, []map[string]any{{"name": "engineering"}}, view.DefaultWriteOptions())
	c.Assert(err, IsNil)

	people, err := personByTeamName(ctx)
	c.Assert(err, IsNil)
	_, err = people.Write(ctx, []map[string]any{{"name": "Alastair", "team": "engineering"}}, view.DefaultWriteOptions())
	c.Assert(err, IsNil)

	n, err := teams.DeleteByFilter(ctx, `(= name "engineering")`)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, int64(1))

	cur, err := people.Read(ctx, view.ReadOptions{})
	c.Assert(err, IsNil)
	rows, err := cur.Dict()
	c.Assert(err, IsNil)
	c.Assert(rows, HasLen, 0)
}

func (s *ViewSuite) TestDeleteByFilterRemovesMatchingRows(c *C) {
	ctx := s.connect(c, teamPersonSchema())
	teams, err := view.New(must(dbctx.FromContext(ctx)).Registry, mustTable(ctx, "team"), nil)
	c.Assert(err, IsNil)
	_, err = teams.Write(ctx, []map[string]any{{"name": "engineering"}, {"name": "sales"}}, view.DefaultWriteOptions())
	c.Assert(err, IsNil)

	n, err := teams.DeleteByFilter(ctx, `(= name "sales")`)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, int64(1))

	cur, err := teams.Read(ctx, view.ReadOptions{})
	c.Assert(err, IsNil)
	rows, err := cur.Dict()
	c.Assert(err, IsNil)
	c.Assert(rows, HasLen, 1)
	c.Assert(rows[0]["name"], Equals, "engineering")
}

func mustTable(ctx context.Context, name string) *schema.Table {
	s := must(dbctx.FromContext(ctx))
	t, err := s.Registry.Table(name)
	if err != nil {
		panic(err)
	}
	return t
}

func must(s *dbctx.Scope, err error) *dbctx.Scope {
	if err != nil {
		panic(err)
	}
	return s
}
