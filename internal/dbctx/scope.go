package dbctx

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/tanker-db/tanker/internal/dialect"
	"github.com/tanker-db/tanker/internal/schema"
	"github.com/tanker-db/tanker/tkerr"
)

// Queryer is the subset of *sql.DB/*sql.Tx every statement in tanker is
// issued through. Both satisfy it, so a Scope works identically whether
// or not it is nested inside a savepoint.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Scope is the active, transaction-bound handle every view read/write
// call runs against: connection, transaction, schema registry and
// config, exactly as spec.md §4.B describes. It is immutable once
// entered; nested scopes get their own Scope value wrapping a
// SAVEPOINT.
type Scope struct {
	Registry *schema.Registry
	Dialect  dialect.Dialect
	Config   Config
	Logger   *zap.SugaredLogger

	q    Queryer
	tx   *sql.Tx
	pool *pool
	name string // savepoint name, empty at the outermost scope
}

type scopeKeyType struct{}

var scopeKey = scopeKeyType{}

// WithScope attaches a Scope to ctx, overriding any scope already there.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// FromContext returns the active scope, or a NotInScope error if no
// scope is active — every exported view operation calls this first.
func FromContext(ctx context.Context) (*Scope, error) {
	s, ok := ctx.Value(scopeKey).(*Scope)
	if !ok || s == nil {
		return nil, &tkerr.NotInScope{}
	}
	return s, nil
}

var noopLogger = zap.NewNop().Sugar()

// Connect begins a transaction-bound scope over cfg's database,
// returning a derived context carrying it plus a Close function the
// caller must invoke exactly once: Close(nil) commits, Close(err) rolls
// back and returns err unchanged (a rollback failure is only logged).
// Calling Connect again from within an already-scoped context opens a
// SAVEPOINT instead of a new connection, per spec.md §4.B "Nesting is
// supported via savepoints".
func Connect(ctx context.Context, cfg Config) (context.Context, func(error) error, error) {
	if parent, err := FromContext(ctx); err == nil {
		return connectNested(ctx, parent)
	}

	p, err := getPool(cfg)
	if err != nil {
		return nil, nil, err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, &tkerr.DriverError{Query: "BEGIN", Err: err}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger
	}
	s := &Scope{
		Registry: p.registry,
		Dialect:  dialect.For(p.flavor),
		Config:   cfg,
		Logger:   logger,
		q:        tx,
		tx:       tx,
		pool:     p,
	}

	closeFn := func(outer error) error {
		if outer != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.Logger.Debugw("rollback failed", "error", rbErr)
			}
			return outer
		}
		if err := tx.Commit(); err != nil {
			return &tkerr.DriverError{Query: "COMMIT", Err: err}
		}
		return nil
	}
	return WithScope(ctx, s), closeFn, nil
}

func connectNested(ctx context.Context, parent *Scope) (context.Context, func(error) error, error) {
	name := fmt.Sprintf("tk_sp_%p", parent)
	if _, err := parent.q.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, nil, &tkerr.DriverError{Query: "SAVEPOINT " + name, Err: err}
	}
	child := &Scope{
		Registry: parent.Registry,
		Dialect:  parent.Dialect,
		Config:   parent.Config,
		Logger:   parent.Logger,
		q:        parent.q,
		tx:       parent.tx,
		pool:     parent.pool,
		name:     name,
	}
	closeFn := func(outer error) error {
		if outer != nil {
			if _, err := parent.q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
				child.Logger.Debugw("savepoint rollback failed", "error", err)
			}
			return outer
		}
		_, err := parent.q.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
		return err
	}
	return WithScope(ctx, child), closeFn, nil
}

// Exec runs a statement with no expected rows, translating driver errors
// into the typed hierarchy from tkerr.
func (s *Scope) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.Logger.Debugw("sql exec", "query", query, "params", args)
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError(query, err)
	}
	return res, nil
}

// Query runs a statement expecting rows.
func (s *Scope) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	s.Logger.Debugw("sql query", "query", query, "params", args)
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError(query, err)
	}
	return rows, nil
}

func classifyError(query string, err error) error {
	// Dialect drivers surface constraint violations with different
	// error shapes; a best-effort substring match is sufficient here
	// since the original also just wraps the raw DB exception
	// (context.py:DBError) and lets callers re-raise.
	msg := err.Error()
	if containsAny(msg, "UNIQUE constraint", "violates unique constraint",
		"FOREIGN KEY constraint", "violates foreign key constraint",
		"NOT NULL constraint", "violates not-null constraint") {
		return &tkerr.ConstraintError{Err: err}
	}
	return &tkerr.DriverError{Query: query, Err: err}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if contains(s, sub) {
			return true
		}
	}
	return false
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
