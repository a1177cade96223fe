// Package demo is a second runnable walkthrough, exercising the
// tanker.StructToRow/RowToStruct struct-binding convenience alongside
// the plain map[string]any rows example/example.go uses.
//
// Adapted from _examples/canonical-sqlair's demo.go, which ran the same
// person/place height comparison against the teacher's query binder;
// here person and place are tanker tables related by a town m2o column.
package demo

import (
	"context"
	"fmt"

	"github.com/tanker-db/tanker"
	"github.com/tanker-db/tanker/internal/schema"
)

type Person struct {
	Name     string `db:"name"`
	Height   int    `db:"height_cm"`
	HomeTown string `db:"home_town"`
}

type Place struct {
	Name       string `db:"town_name"`
	Population int    `db:"population"`
}

func demoSchema() []schema.TableDef {
	return []schema.TableDef{
		{
			Name: "place",
			Columns: []schema.ColumnDef{
				{Name: "town_name", TypeSpec: "varchar"},
				{Name: "population", TypeSpec: "integer"},
			},
			Key: []string{"town_name"},
		},
		{
			Name: "person",
			Columns: []schema.ColumnDef{
				{Name: "name", TypeSpec: "varchar"},
				{Name: "height_cm", TypeSpec: "integer"},
				{Name: "home_town", TypeSpec: "m2o place.id"},
			},
			Key: []string{"name"},
		},
	}
}

func example() error {
	ctx := context.Background()
	cfg := tanker.Config{DBURI: "sqlite:///:memory:", Schema: demoSchema()}

	ctx, closeFn, err := tanker.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn(nil)

	if err := tanker.CreateTables(ctx); err != nil {
		return err
	}

	places := []Place{
		{"Kabul", 13000000},
		{"Berlin", 3677472},
		{"Brasília", 3039444},
		{"Cape Town", 4710000},
	}
	placeRows := make([]any, len(places))
	for i, p := range places {
		placeRows[i] = p
	}
	placeMaps, err := tanker.StructsToRows(placeRows)
	if err != nil {
		return err
	}
	placeView, err := tanker.NewView(ctx, "place")
	if err != nil {
		return err
	}
	if _, err := placeView.Write(ctx, placeMaps, tanker.DefaultWriteOptions()); err != nil {
		return err
	}

	people := []Person{
		{"Jim", 150, "Kabul"},
		{"Saba", 162, "Berlin"},
		{"Dave", 169, "Brasília"},
		{"Sophie", 174, "Berlin"},
		{"Kiri", 168, "Cape Town"},
	}
	personRows := make([]any, len(people))
	for i, p := range people {
		personRows[i] = p
	}
	personMaps, err := tanker.StructsToRows(personRows)
	if err != nil {
		return err
	}
	personView, err := tanker.NewView(ctx, "person",
		tanker.FieldSpec{Name: "name", Desc: "name"},
		tanker.FieldSpec{Name: "height_cm", Desc: "height_cm"},
		tanker.FieldSpec{Name: "home_town", Desc: "home_town.town_name"},
	)
	if err != nil {
		return err
	}
	if _, err := personView.Write(ctx, personMaps, tanker.DefaultWriteOptions()); err != nil {
		return err
	}

	jim := people[0]

	// Find people taller than Jim.
	tallerThan, err := tanker.NewView(ctx, "person",
		tanker.FieldSpec{Name: "name", Desc: "name"},
		tanker.FieldSpec{Name: "height_cm", Desc: "height_cm"},
		tanker.FieldSpec{Name: "home_town", Desc: "home_town.town_name"},
	)
	if err != nil {
		return err
	}
	cur, err := tallerThan.Read(ctx, tanker.ReadOptions{Filter: fmt.Sprintf("(> height_cm %d)", jim.Height)})
	if err != nil {
		return err
	}
	rows, err := cur.Dict()
	cur.Close()
	if err != nil {
		return err
	}
	for _, row := range rows {
		var p Person
		if err := tanker.RowToStruct(row, &p); err != nil {
			return err
		}
		fmt.Printf("%s is taller than %s.\n", p.Name, jim.Name)
	}

	// Find cities with people taller than Jim, joining through home_town.
	tallerCities, err := tanker.NewView(ctx, "person",
		tanker.FieldSpec{Name: "name", Desc: "name"},
		tanker.FieldSpec{Name: "town", Desc: "home_town.town_name"},
		tanker.FieldSpec{Name: "population", Desc: "home_town.population"},
	)
	if err != nil {
		return err
	}
	cur, err = tallerCities.Read(ctx, tanker.ReadOptions{Filter: fmt.Sprintf("(> height_cm %d)", jim.Height)})
	if err != nil {
		return err
	}
	defer cur.Close()
	cityRows, err := cur.Dict()
	if err != nil {
		return err
	}
	fmt.Println("Cities with people taller than Jim:")
	for _, row := range cityRows {
		fmt.Printf("  %s lives in %s (pop. %v)\n", row["name"], row["town"], row["population"])
	}
	return nil
}

func main() {
	if err := example(); err != nil {
		panic(err)
	}
}
