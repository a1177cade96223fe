// Package tanker is the public entry point: a schema-driven relational
// view compiler that turns dotted field paths and s-expression filters
// into single SQL statements against PostgreSQL or SQLite, following the
// five design components underneath (internal/schema, internal/dbctx,
// internal/pathresolve, internal/compile, internal/view).
//
// Grounded on _examples/canonical-sqlair's sqlair.go: the same shape of
// thin wrapping package — Connect/Prepare-equivalent entry points plus a
// package-level M convenience type — around an internal compiler, though
// the object being compiled here is a schema-bound view rather than a
// reflected Go struct.
package tanker

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/tanker-db/tanker/internal/dbctx"
	"github.com/tanker-db/tanker/internal/schema"
	"github.com/tanker-db/tanker/internal/typeinfo"
	"github.com/tanker-db/tanker/internal/view"
	"github.com/tanker-db/tanker/schemayaml"
)

// M is a convenience alias for a single row (or s-expression map filter):
// any named map[string]any type works equally well, exactly as the
// teacher's sqlair.M is "not a special type".
type M = map[string]any

// Config mirrors spec.md §6's recognized keys.
type Config = dbctx.Config

// FieldSpec, ReadOptions, WriteOptions, Filter, Order, Cursor and
// WriteResult are re-exported from internal/view so that callers never
// need to import an internal package directly.
type (
	View         = view.View
	FieldSpec    = view.FieldSpec
	ReadOptions  = view.ReadOptions
	WriteOptions = view.WriteOptions
	Filter       = view.Filter
	Order        = view.Order
	Cursor       = view.Cursor
	WriteResult  = view.WriteResult
	Columns      = view.Columns
)

// DefaultWriteOptions returns the usual upsert shape: insert new rows,
// update existing ones, no purge, ACL enforced.
func DefaultWriteOptions() WriteOptions { return view.DefaultWriteOptions() }

var defaultLogger = zap.NewNop().Sugar()

// SetLogger replaces the process-wide default logger every subsequent
// Connect call uses unless its Config already names one — the role
// `logging.getLogger("tanker")` plays in the original.
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	defaultLogger = l
}

// ConfigFromYAML populates a Config's Schema/ACLRead/ACLWrite from a YAML
// schema document (spec.md §6 "Schema file format"), leaving DBURI,
// Args and PoolMaxConns for the caller to fill in separately.
func ConfigFromYAML(r io.Reader, cfg Config) (Config, error) {
	defs, aclRead, aclWrite, err := schemayaml.Load(r)
	if err != nil {
		return cfg, err
	}
	cfg.Schema = defs
	cfg.ACLRead = aclRead
	cfg.ACLWrite = aclWrite
	return cfg, nil
}

// Connect begins a transaction-bound scope over cfg's database, exactly
// as dbctx.Connect, filling in the process-wide logger when cfg doesn't
// name its own.
func Connect(ctx context.Context, cfg Config) (context.Context, func(error) error, error) {
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger
	}
	return dbctx.Connect(ctx, cfg)
}

// Disconnect closes every connection pool tanker has opened in this
// process.
func Disconnect() { dbctx.Disconnect() }

// NewView compiles a field list against `table`, resolved from the
// active scope's schema registry; an empty specs list falls back to the
// table's default field set (spec.md §3 "default fields").
func NewView(ctx context.Context, table string, specs ...FieldSpec) (*View, error) {
	s, err := dbctx.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.Registry.Table(table)
	if err != nil {
		return nil, err
	}
	return view.New(s.Registry, t, specs)
}

// CreateTables issues the idempotent DDL for every declared table
// (spec.md §4.A), then applies each table's seed `values` (table.py's
// `values` argument, supplemented from original_source — see
// SPEC_FULL.md §3+) as an upsert so re-running it is a no-op.
func CreateTables(ctx context.Context) error {
	s, err := dbctx.FromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.CreateTables(ctx); err != nil {
		return err
	}
	return applySeedValues(ctx, s)
}

func applySeedValues(ctx context.Context, s *dbctx.Scope) error {
	for _, t := range s.Registry.Tables() {
		if len(t.Values) == 0 {
			continue
		}
		v, err := view.New(s.Registry, t, nil)
		if err != nil {
			return err
		}
		if _, err := v.Write(ctx, t.Values, DefaultWriteOptions()); err != nil {
			return err
		}
	}
	return nil
}

// Tables lists every declared table name, in schema-declaration order.
func Tables(ctx context.Context) ([]string, error) {
	s, err := dbctx.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.Registry.Tables()))
	for _, t := range s.Registry.Tables() {
		out = append(out, t.Name)
	}
	return out, nil
}

// Table returns the schema declaration for one table, for introspection
// (the `tk info <table>` CLI subcommand).
func Table(ctx context.Context, name string) (*schema.Table, error) {
	s, err := dbctx.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.Registry.Table(name)
}

// StructToRow/StructsToRows/RowToStruct let a caller work with `db`
// tagged structs instead of map[string]any rows when driving
// View.Write/DeleteByData or decoding Cursor.Dict results — see the
// internal/typeinfo entry in DESIGN.md.
var (
	StructToRow   = typeinfo.StructToRow
	StructsToRows = typeinfo.StructsToRows
	RowToStruct   = typeinfo.RowToStruct
)
