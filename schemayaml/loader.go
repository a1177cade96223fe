// Package schemayaml loads a tanker schema declaration — and the
// read/write ACL map alongside it — from YAML, per spec.md §6's "Schema
// file format": a sequence of table records with `table`, `columns`
// (name -> type-spec), `key` and an optional `unique` list of extra
// unique-index column lists.
//
// Grounded on original_source/tanker/__init__.py's yaml_load helper,
// which reads the same shape of document with PyYAML; here the parsed
// document feeds schema.Build directly rather than through an
// intermediate dict walk.
package schemayaml

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"

	"github.com/tanker-db/tanker/internal/schema"
)

// tableDoc is the raw YAML shape of one table record. Columns is kept as
// a yaml.MapSlice rather than a plain map so column declaration order —
// which drives CREATE TABLE column order and the view package's default
// field list — survives the round trip; yaml.v2 randomizes map iteration
// order the way Go's own map does.
type tableDoc struct {
	Table   string                   `yaml:"table"`
	Columns yaml.MapSlice            `yaml:"columns"`
	Key     []string                 `yaml:"key"`
	Unique  [][]string               `yaml:"unique"`
	Values  []map[string]interface{} `yaml:"values"`
}

// Document is the top-level shape a schema file may carry: the table
// list plus the acl-read/acl-write maps spec.md §6's Config also
// recognizes, so one file can describe an entire deployment.
type Document struct {
	Tables   []tableDoc        `yaml:"schema"`
	ACLRead  map[string]string `yaml:"acl-read"`
	ACLWrite map[string]string `yaml:"acl-write"`
}

// Load parses a YAML schema document into the table declarations
// schema.Build consumes, plus its acl-read/acl-write maps.
func Load(r io.Reader) ([]schema.TableDef, map[string]string, map[string]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading schema document: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, nil, fmt.Errorf("parsing schema document: %w", err)
	}

	defs := make([]schema.TableDef, 0, len(doc.Tables))
	for _, td := range doc.Tables {
		def, err := toTableDef(td)
		if err != nil {
			return nil, nil, nil, err
		}
		defs = append(defs, def)
	}
	return defs, doc.ACLRead, doc.ACLWrite, nil
}

// LoadSchema is the common case of Load for callers that only need the
// table declarations, discarding any acl-read/acl-write section.
func LoadSchema(r io.Reader) ([]schema.TableDef, error) {
	defs, _, _, err := Load(r)
	return defs, err
}

func toTableDef(td tableDoc) (schema.TableDef, error) {
	if td.Table == "" {
		return schema.TableDef{}, fmt.Errorf("schema record missing required \"table\" key")
	}

	return schema.TableDef{
		Name:    td.Table,
		Columns: columnDefsFromSlice(td.Columns),
		Key:     td.Key,
		Unique:  td.Unique,
		Values:  valuesFrom(td.Values),
	}, nil
}

func columnDefsFromSlice(cols yaml.MapSlice) []schema.ColumnDef {
	defs := make([]schema.ColumnDef, 0, len(cols))
	for _, item := range cols {
		name := fmt.Sprintf("%v", item.Key)
		defs = append(defs, schema.ColumnDef{Name: name, TypeSpec: fmt.Sprintf("%v", item.Value)})
	}
	return defs
}

func valuesFrom(raw []map[string]interface{}) []map[string]any {
	if len(raw) == 0 {
		return nil
	}
	out := make([]map[string]any, len(raw))
	for i, row := range raw {
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v
		}
		out[i] = m
	}
	return out
}
