package schema

import "testing"

func teamPersonDefs() []TableDef {
	return []TableDef{
		{
			Name:    "team",
			Columns: []ColumnDef{{Name: "name", TypeSpec: "varchar"}},
			Key:     []string{"name"},
		},
		{
			Name: "person",
			Columns: []ColumnDef{
				{Name: "name", TypeSpec: "varchar"},
				{Name: "team", TypeSpec: "m2o team.name"},
			},
			Key: []string{"name"},
		},
	}
}

func TestBuildLinksM2O(t *testing.T) {
	reg, err := Build(teamPersonDefs())
	if err != nil {
		t.Fatal(err)
	}
	person, err := reg.Table("person")
	if err != nil {
		t.Fatal(err)
	}
	col, err := person.GetColumn("team")
	if err != nil {
		t.Fatal(err)
	}
	if col.Kind != M2O {
		t.Fatalf("expected team column to be M2O, got %s", col.Kind)
	}
	if !reg.Referenced("team") {
		t.Fatal("expected team to be marked as referenced")
	}
}

func TestBuildRejectsUnknownForeignTable(t *testing.T) {
	defs := []TableDef{
		{
			Name:    "person",
			Columns: []ColumnDef{{Name: "team", TypeSpec: "m2o team.name"}},
			Key:     []string{"team"},
		},
	}
	if _, err := Build(defs); err == nil {
		t.Fatal("expected error for missing m2o target table")
	}
}

func TestBuildRejectsNonUniqueM2OTarget(t *testing.T) {
	defs := []TableDef{
		{
			Name: "team",
			Columns: []ColumnDef{
				{Name: "name", TypeSpec: "varchar"},
				{Name: "region", TypeSpec: "varchar"},
			},
			Key: []string{"name", "region"},
		},
		{
			Name: "person",
			Columns: []ColumnDef{
				{Name: "name", TypeSpec: "varchar"},
				{Name: "team", TypeSpec: "m2o team.region"},
			},
			Key: []string{"name"},
		},
	}
	if _, err := Build(defs); err == nil {
		t.Fatal("expected error for m2o target column that is not unique")
	}
}

func TestBuildRejectsDuplicateTable(t *testing.T) {
	defs := teamPersonDefs()
	defs = append(defs, defs[0])
	if _, err := Build(defs); err == nil {
		t.Fatal("expected error for duplicate table declaration")
	}
}

func TestImplicitIDAndDefaultKey(t *testing.T) {
	reg, err := Build([]TableDef{{
		Name:    "team",
		Columns: []ColumnDef{{Name: "name", TypeSpec: "varchar"}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	team, err := reg.Table("team")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := team.GetColumn("id"); err != nil {
		t.Fatal("expected implicit id column")
	}
	if len(team.Key) != 1 || team.Key[0] != "name" {
		t.Fatalf("expected inferred key [name], got %v", team.Key)
	}
}

func TestRegistryPathsFindsDirectRelation(t *testing.T) {
	reg, err := Build(teamPersonDefs())
	if err != nil {
		t.Fatal(err)
	}
	person, _ := reg.Table("person")
	team, _ := reg.Table("team")
	paths := reg.Paths(person, team)
	if len(paths) != 1 || len(paths[0]) != 1 {
		t.Fatalf("expected a single direct relation, got %#v", paths)
	}
}
