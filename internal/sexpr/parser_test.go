package sexpr

import "testing"

func TestParseSimpleList(t *testing.T) {
	node, err := Parse(`(= team "engineering")`)
	if err != nil {
		t.Fatal(err)
	}
	l, ok := node.(*List)
	if !ok {
		t.Fatalf("expected *List, got %T", node)
	}
	if len(l.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(l.Items))
	}
	if Head(l) != "=" {
		t.Fatalf("expected head '=', got %q", Head(l))
	}
	sym, ok := l.Items[1].(*Symbol)
	if !ok || sym.Name != "team" {
		t.Fatalf("expected symbol 'team', got %#v", l.Items[1])
	}
	str, ok := l.Items[2].(*String)
	if !ok || str.Value != "engineering" {
		t.Fatalf("expected string 'engineering', got %#v", l.Items[2])
	}
}

func TestParseNestedList(t *testing.T) {
	node, err := Parse(`(and (= team "engineering") (> height_cm 150))`)
	if err != nil {
		t.Fatal(err)
	}
	l := node.(*List)
	if Head(l) != "and" {
		t.Fatalf("expected head 'and', got %q", Head(l))
	}
	if len(l.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(l.Items))
	}
	if _, ok := l.Items[1].(*List); !ok {
		t.Fatalf("expected nested list, got %#v", l.Items[1])
	}
}

func TestParseNumberAndPlaceholder(t *testing.T) {
	node, err := Parse(`(> height_cm {min_height})`)
	if err != nil {
		t.Fatal(err)
	}
	l := node.(*List)
	if ph, ok := l.Items[2].(*Placeholder); !ok || ph.Raw != "min_height" {
		t.Fatalf("expected placeholder 'min_height', got %#v", l.Items[2])
	}

	node, err = Parse(`(= population 3677472)`)
	if err != nil {
		t.Fatal(err)
	}
	l = node.(*List)
	num, ok := l.Items[2].(*Number)
	if !ok || num.IsFloat || num.Int != 3677472 {
		t.Fatalf("expected integer 3677472, got %#v", l.Items[2])
	}
}

func TestParseRejectsUnbalancedParens(t *testing.T) {
	if _, err := Parse(`(= team "engineering"`); err == nil {
		t.Fatal("expected error for unbalanced parens")
	}
}

func TestParseDottedFieldPath(t *testing.T) {
	node, err := Parse(`home_town.population`)
	if err != nil {
		t.Fatal(err)
	}
	sym, ok := node.(*Symbol)
	if !ok || sym.Name != "home_town.population" {
		t.Fatalf("expected dotted symbol, got %#v", node)
	}
}
