// Package typeinfo reflects over Go struct types tagged with `db:"..."`
// the way the teacher's SQLair input/output expression binder does, but
// repurposed for tanker's own wire shape: a row is a map[string]any keyed
// by view field name, not a set of named query parameters. This package
// exists purely to let a caller pass/receive plain structs instead of
// maps to View.Write/Cursor.Dict, via the StructToRow/RowToStruct helpers.
//
// Grounded on _examples/canonical-sqlair's internal/typeinfo: the same
// `db` tag convention and field-walking approach (GetTypeInfo's cache,
// parseTag's name/omitempty split), rewritten around map[string]any
// instead of reflect.Value locators bound to query parameter positions.
package typeinfo

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

// Field is one tagged struct field: the Go field index and the row key
// it corresponds to.
type Field struct {
	Index     int
	Name      string
	OmitEmpty bool
}

// Info is the reflected field set of one struct type, keyed by its `db`
// tag name.
type Info struct {
	Type       reflect.Type
	TagToField map[string]Field
}

var (
	cacheMu sync.RWMutex
	cache   = map[reflect.Type]*Info{}
)

// Of returns the cached Info for a struct type, generating it on first
// use — mirrors GetTypeInfo's cache-by-reflect.Type strategy.
func Of(v any) (*Info, error) {
	if v == nil {
		return nil, fmt.Errorf("typeinfo: cannot reflect nil value")
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("typeinfo: need struct or pointer to struct, got %s", rv.Kind())
	}
	typ := rv.Type()

	cacheMu.RLock()
	info, ok := cache[typ]
	cacheMu.RUnlock()
	if ok {
		return info, nil
	}

	info, err := build(typ)
	if err != nil {
		return nil, err
	}
	cacheMu.Lock()
	cache[typ] = info
	cacheMu.Unlock()
	return info, nil
}

func build(typ reflect.Type) (*Info, error) {
	info := &Info{Type: typ, TagToField: map[string]Field{}}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		raw := f.Tag.Get("db")
		if raw == "" {
			continue
		}
		name, omitEmpty, err := parseTag(raw)
		if err != nil {
			return nil, fmt.Errorf("typeinfo: struct %s field %s: %w", typ.Name(), f.Name, err)
		}
		info.TagToField[name] = Field{Index: i, Name: f.Name, OmitEmpty: omitEmpty}
	}
	return info, nil
}

var validColNameRx = regexp.MustCompile(`^([a-zA-Z_])+([a-zA-Z_0-9])*$`)

func parseTag(tag string) (string, bool, error) {
	parts := strings.Split(tag, ",")
	if len(parts) > 2 {
		return "", false, fmt.Errorf("too many options in db tag %q", tag)
	}
	omitEmpty := false
	if len(parts) == 2 {
		if strings.ToLower(parts[1]) != "omitempty" {
			return "", false, fmt.Errorf("unexpected db tag option %q", parts[1])
		}
		omitEmpty = true
	}
	name := parts[0]
	if name == "" || !validColNameRx.MatchString(name) {
		return "", false, fmt.Errorf("invalid column name in db tag %q", tag)
	}
	return name, omitEmpty, nil
}

// StructToRow converts one tagged struct into a row keyed by its `db`
// tags — the shape View.Write/DeleteByData accept.
func StructToRow(v any) (map[string]any, error) {
	info, err := Of(v)
	if err != nil {
		return nil, err
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	row := make(map[string]any, len(info.TagToField))
	for tag, f := range info.TagToField {
		fv := rv.Field(f.Index)
		if f.OmitEmpty && fv.IsZero() {
			continue
		}
		row[tag] = fv.Interface()
	}
	return row, nil
}

// StructsToRows applies StructToRow across a slice of structs (accepted
// as []any so callers can pass a typed slice via a simple loop, since Go
// generics would shift tanker's own API away from the teacher's plain
// any-based style).
func StructsToRows(vs []any) ([]map[string]any, error) {
	rows := make([]map[string]any, len(vs))
	for i, v := range vs {
		row, err := StructToRow(v)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

// RowToStruct fills the `db`-tagged fields of dest (a pointer to struct)
// from a row keyed by the same tag names — the inverse of StructToRow,
// used to decode Cursor.Dict() results.
func RowToStruct(row map[string]any, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("typeinfo: need non-nil pointer to struct, got %T", dest)
	}
	info, err := Of(rv.Elem().Interface())
	if err != nil {
		return err
	}
	elem := rv.Elem()
	for tag, f := range info.TagToField {
		val, ok := row[tag]
		if !ok || val == nil {
			continue
		}
		field := elem.Field(f.Index)
		rvVal := reflect.ValueOf(val)
		if !rvVal.Type().AssignableTo(field.Type()) {
			if !rvVal.Type().ConvertibleTo(field.Type()) {
				return fmt.Errorf("typeinfo: cannot assign %s into field %s (%s)", rvVal.Type(), f.Name, field.Type())
			}
			rvVal = rvVal.Convert(field.Type())
		}
		field.Set(rvVal)
	}
	return nil
}
