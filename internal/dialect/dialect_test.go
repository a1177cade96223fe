package dialect

import "testing"

func TestParseFlavor(t *testing.T) {
	if f, err := ParseFlavor("postgresql"); err != nil || f != Postgres {
		t.Fatalf("expected Postgres, got %v, %v", f, err)
	}
	if f, err := ParseFlavor("sqlite"); err != nil || f != SQLite {
		t.Fatalf("expected SQLite, got %v, %v", f, err)
	}
	if _, err := ParseFlavor("mysql"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestPostgresPlaceholdersAreNumbered(t *testing.T) {
	d := For(Postgres)
	if got := d.Placeholder(1); got != "$1" {
		t.Fatalf("expected $1, got %q", got)
	}
	if got := d.Placeholder(12); got != "$12" {
		t.Fatalf("expected $12, got %q", got)
	}
}

func TestSQLitePlaceholdersAreQuestionMarks(t *testing.T) {
	d := For(SQLite)
	if got := d.Placeholder(1); got != "?" {
		t.Fatalf("expected ?, got %q", got)
	}
	if got := d.Placeholder(7); got != "?" {
		t.Fatalf("expected ?, got %q", got)
	}
}

func TestSQLiteHasNoNativeILike(t *testing.T) {
	d := For(SQLite)
	if d.Like(true) != "LIKE" {
		t.Fatalf("expected SQLite to fall back to LIKE for ilike, got %q", d.Like(true))
	}
	if For(Postgres).Like(true) != "ILIKE" {
		t.Fatal("expected Postgres to support ILIKE directly")
	}
}

func TestSQLiteExtractLowersToStrftime(t *testing.T) {
	d := For(SQLite)
	got := d.Extract("'year'", `"t"."created_at"`)
	want := `CAST(strftime('%Y', "t"."created_at") AS INTEGER)`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPostgresExtractUsesExtractFrom(t *testing.T) {
	d := For(Postgres)
	got := d.Extract("year", `"t"."created_at"`)
	want := `EXTRACT(year FROM "t"."created_at")`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAutoIncrementIDReferencedGetsPrimaryKey(t *testing.T) {
	d := For(Postgres)
	if got := d.AutoIncrementID(false, true); got != "SERIAL PRIMARY KEY" {
		t.Fatalf("got %q", got)
	}
	if got := d.AutoIncrementID(true, false); got != "BIGSERIAL" {
		t.Fatalf("got %q", got)
	}
	// SQLite's INTEGER PRIMARY KEY is the rowid alias regardless of
	// whether the table is ever referenced by another table's m2o.
	if got := For(SQLite).AutoIncrementID(false, false); got != "INTEGER PRIMARY KEY" {
		t.Fatalf("got %q", got)
	}
}

func TestArrayTypeFallsBackToJSONTextOnSQLite(t *testing.T) {
	if got := For(SQLite).ArrayType("varchar", 1); got != "TEXT" {
		t.Fatalf("got %q", got)
	}
	if got := For(Postgres).ArrayType("varchar", 2); got != "varchar[][]" {
		t.Fatalf("got %q", got)
	}
}
