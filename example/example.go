// Package example is a runnable walkthrough of the tanker API: declare a
// schema with m2o relations to a team table, create its tables, seed and read back
// rows through a couple of views.
//
// Adapted from _examples/canonical-sqlair's example.go, which ran the
// same person/location/team walkthrough against the teacher's
// $Type.field/&Type.* query binder; here the same data is driven
// through tanker's schema-declared views instead.
package example

import (
	"context"
	"fmt"

	"github.com/tanker-db/tanker"
	"github.com/tanker-db/tanker/internal/schema"
)

func exampleSchema() []schema.TableDef {
	return []schema.TableDef{
		{
			Name:    "team",
			Columns: []schema.ColumnDef{{Name: "name", TypeSpec: "varchar"}},
			Key:     []string{"name"},
		},
		{
			Name: "location",
			Columns: []schema.ColumnDef{
				{Name: "room_id", TypeSpec: "integer"},
				{Name: "name", TypeSpec: "varchar"},
				{Name: "team", TypeSpec: "m2o team.id"},
			},
			Key: []string{"room_id"},
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

func example() error {
	ctx := context.Background()
	cfg := tanker.Config{DBURI: "sqlite:///:memory:", Schema: exampleSchema()}

	ctx, closeFn, err := tanker.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn(nil)

	if err := tanker.CreateTables(ctx); err != nil {
		return err
	}

	teams, err := tanker.NewView(ctx, "team")
	if err != nil {
		return err
	}
	if _, err := teams.Write(ctx, []tanker.M{
		{"name": "engineering"},
		{"name": "presentation engineering"},
		{"name": "management"},
		{"name": "marketing"},
		{"name": "legal"},
		{"name": "hr"},
		{"name": "sales"},
		{"name": "leadership"},
	}, tanker.DefaultWriteOptions()); err != nil {
		return err
	}

	people, err := tanker.NewView(ctx, "person",
		tanker.FieldSpec{Name: "name", Desc: "name"},
		tanker.FieldSpec{Name: "team", Desc: "team.name"},
	)
	if err != nil {
		return err
	}
	if _, err := people.Write(ctx, []tanker.M{
		{"name": "Alastair", "team": "engineering"},
		{"name": "Ed", "team": "engineering"},
		{"name": "Marco", "team": "engineering"},
		{"name": "Pedro", "team": "management"},
		{"name": "Serdar", "team": "presentation engineering"},
		{"name": "Joe", "team": "marketing"},
		{"name": "Ben", "team": "legal"},
		{"name": "Sam", "team": "hr"},
		{"name": "Paul", "team": "sales"},
		{"name": "Mark", "team": "leadership"},
		{"name": "Gustavo", "team": "leadership"},
	}, tanker.DefaultWriteOptions()); err != nil {
		return err
	}

	locations, err := tanker.NewView(ctx, "location",
		tanker.FieldSpec{Name: "room_id", Desc: "room_id"},
		tanker.FieldSpec{Name: "name", Desc: "name"},
		tanker.FieldSpec{Name: "team", Desc: "team.name"},
	)
	if err != nil {
		return err
	}
	if _, err := locations.Write(ctx, []tanker.M{
		{"room_id": 1, "name": "Basement", "team": "engineering"},
		{"room_id": 34, "name": "Floor 2", "team": "presentation engineering"},
		{"room_id": 19, "name": "Floor 3", "team": "management"},
		{"room_id": 66, "name": "The Market", "team": "marketing"},
		{"room_id": 7, "name": "Court", "team": "legal"},
		{"room_id": 9, "name": "Floors 4 to 89", "team": "hr"},
		{"room_id": 73, "name": "Bar", "team": "sales"},
		{"room_id": 32, "name": "Penthouse", "team": "leadership"},
	}, tanker.DefaultWriteOptions()); err != nil {
		return err
	}

	// Find someone on the engineering team.
	engineer, err := tanker.NewView(ctx, "person", tanker.FieldSpec{Name: "name", Desc: "name"})
	if err != nil {
		return err
	}
	cur, err := engineer.Read(ctx, tanker.ReadOptions{Filter: `(= team.name "engineering")`, Limit: 1, HasLimit: true})
	if err != nil {
		return err
	}
	rows, err := cur.Dict()
	cur.Close()
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		fmt.Printf("%s is on the engineering team.\n", rows[0]["name"])
	}

	// Print out which team is housed in which room, joining location to
	// team.
	roster, err := tanker.NewView(ctx, "location",
		tanker.FieldSpec{Name: "room", Desc: "name"},
		tanker.FieldSpec{Name: "team", Desc: "team.name"},
	)
	if err != nil {
		return err
	}
	cur, err = roster.Read(ctx, tanker.ReadOptions{Order: []tanker.Order{{Expr: "room"}}})
	if err != nil {
		return err
	}
	defer cur.Close()
	rooms, err := cur.Dict()
	if err != nil {
		return err
	}
	for _, r := range rooms {
		fmt.Printf("%s houses the %s team\n", r["room"], r["team"])
	}

	return nil
}
