package typeinfo

import "testing"

type widget struct {
	Name  string `db:"name"`
	Price int    `db:"price,omitempty"`
	skip  bool
}

func TestStructToRow(t *testing.T) {
	row, err := StructToRow(widget{Name: "bolt", Price: 5})
	if err != nil {
		t.Fatal(err)
	}
	if row["name"] != "bolt" || row["price"] != 5 {
		t.Fatalf("unexpected row: %#v", row)
	}
	if _, ok := row["skip"]; ok {
		t.Fatalf("untagged field leaked into row: %#v", row)
	}
}

func TestStructToRowOmitEmpty(t *testing.T) {
	row, err := StructToRow(widget{Name: "bolt"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := row["price"]; ok {
		t.Fatalf("omitempty zero value should be dropped: %#v", row)
	}
}

func TestRowToStruct(t *testing.T) {
	var w widget
	if err := RowToStruct(map[string]any{"name": "nut", "price": 3}, &w); err != nil {
		t.Fatal(err)
	}
	if w.Name != "nut" || w.Price != 3 {
		t.Fatalf("unexpected struct: %#v", w)
	}
}

func TestParseTagRejectsBadName(t *testing.T) {
	if _, _, err := parseTag("1bad"); err == nil {
		t.Fatal("expected error for invalid column name")
	}
}
