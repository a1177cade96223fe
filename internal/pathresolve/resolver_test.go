package pathresolve

import (
	"testing"

	"github.com/tanker-db/tanker/internal/schema"
)

func buildRegistry(t *testing.T) (*schema.Registry, *schema.Table, *schema.Table) {
	t.Helper()
	reg, err := schema.Build([]schema.TableDef{
		{
			Name:    "country",
			Columns: []schema.ColumnDef{{Name: "name", TypeSpec: "varchar"}},
			Key:     []string{"name"},
		},
		{
			Name: "city",
			Columns: []schema.ColumnDef{
				{Name: "name", TypeSpec: "varchar"},
				{Name: "country", TypeSpec: "m2o country.name"},
			},
			Key: []string{"name"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	city, err := reg.Table("city")
	if err != nil {
		t.Fatal(err)
	}
	country, err := reg.Table("country")
	if err != nil {
		t.Fatal(err)
	}
	return reg, city, country
}

func TestResolvePlainColumn(t *testing.T) {
	reg, city, _ := buildRegistry(t)
	r := New(reg, city, "", nil)
	ref, err := r.Resolve("name")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Alias != "city" || ref.Field != "name" {
		t.Fatalf("unexpected reference: %#v", ref)
	}
	if len(r.Joins()) != 0 {
		t.Fatalf("expected no joins for a plain column, got %v", r.Joins())
	}
}

func TestResolveDottedPathEmitsJoin(t *testing.T) {
	reg, city, _ := buildRegistry(t)
	r := New(reg, city, "", nil)
	ref, err := r.Resolve("country.name")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Field != "name" {
		t.Fatalf("expected terminal field 'name', got %q", ref.Field)
	}
	if len(r.Joins()) != 1 {
		t.Fatalf("expected exactly 1 join, got %d", len(r.Joins()))
	}
	if r.Joins()[0].Key.RightTable != "country" {
		t.Fatalf("expected join into country, got %#v", r.Joins()[0])
	}
}

func TestResolveSharedPrefixReusesJoin(t *testing.T) {
	reg, city, _ := buildRegistry(t)
	r := New(reg, city, "", nil)
	if _, err := r.Resolve("country.name"); err != nil {
		t.Fatal(err)
	}
	firstAlias := r.Joins()[0].Alias
	if _, err := r.Resolve("country.name"); err != nil {
		t.Fatal(err)
	}
	if len(r.Joins()) != 1 {
		t.Fatalf("expected the second resolve to reuse the join, got %d joins", len(r.Joins()))
	}
	if r.Joins()[0].Alias != firstAlias {
		t.Fatalf("expected the same alias to be reused, got %q vs %q", r.Joins()[0].Alias, firstAlias)
	}
}

func TestResolveRejectsNonRelationDottedHead(t *testing.T) {
	reg, city, _ := buildRegistry(t)
	r := New(reg, city, "", nil)
	if _, err := r.Resolve("name.foo"); err == nil {
		t.Fatal("expected error resolving a dotted path through a scalar column")
	}
}

func TestSubAtKeepsIndependentJoinSet(t *testing.T) {
	reg, city, country := buildRegistry(t)
	r := New(reg, city, "", nil)
	if _, err := r.Resolve("country.name"); err != nil {
		t.Fatal(err)
	}

	sub := r.SubAt(country, "country_override")
	if _, err := sub.Resolve("name"); err != nil {
		t.Fatal(err)
	}
	if len(sub.Joins()) != 0 {
		t.Fatalf("expected SubAt's own join list to stay empty for a plain column, got %v", sub.Joins())
	}
	if len(r.Joins()) != 1 {
		t.Fatalf("expected the parent's join list to be untouched by SubAt, got %v", r.Joins())
	}
}
