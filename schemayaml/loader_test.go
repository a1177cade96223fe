package schemayaml

import (
	"strings"
	"testing"
)

const testDoc = `
schema:
  - table: team
    columns:
      name: varchar
    key: [name]
  - table: person
    columns:
      name: varchar
      team: m2o team.name
      age: integer
    key: [name]
    values:
      - name: root
        age: 0
acl-read:
  person: "(= 1 1)"
acl-write:
  person: "(= 1 1)"
`

func TestLoadPreservesColumnOrder(t *testing.T) {
	defs, aclRead, aclWrite, err := Load(strings.NewReader(testDoc))
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(defs))
	}
	person := defs[1]
	if person.Name != "person" {
		t.Fatalf("expected second table to be person, got %s", person.Name)
	}
	wantOrder := []string{"name", "team", "age"}
	if len(person.Columns) != len(wantOrder) {
		t.Fatalf("expected %d columns, got %d", len(wantOrder), len(person.Columns))
	}
	for i, want := range wantOrder {
		if person.Columns[i].Name != want {
			t.Fatalf("column %d: expected %s, got %s", i, want, person.Columns[i].Name)
		}
	}
	if person.Columns[1].TypeSpec != "m2o team.name" {
		t.Fatalf("unexpected type spec for team column: %q", person.Columns[1].TypeSpec)
	}

	if len(person.Values) != 1 || person.Values[0]["name"] != "root" {
		t.Fatalf("unexpected seed values: %#v", person.Values)
	}

	if aclRead["person"] != "(= 1 1)" {
		t.Fatalf("unexpected acl-read: %#v", aclRead)
	}
	if aclWrite["person"] != "(= 1 1)" {
		t.Fatalf("unexpected acl-write: %#v", aclWrite)
	}
}

func TestLoadRejectsMissingTableName(t *testing.T) {
	_, _, _, err := Load(strings.NewReader("schema:\n  - columns:\n      name: varchar\n"))
	if err == nil {
		t.Fatal("expected error for missing table name")
	}
}

func TestLoadSchemaOmitsACLs(t *testing.T) {
	defs, err := LoadSchema(strings.NewReader(testDoc))
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(defs))
	}
}
