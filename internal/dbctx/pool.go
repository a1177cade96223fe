package dbctx

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" database/sql driver

	"github.com/tanker-db/tanker/internal/dialect"
	"github.com/tanker-db/tanker/internal/schema"
)

type pool struct {
	db      *sql.DB
	flavor  dialect.Flavor
	schema  string // postgres search_path / fragment
	mu      sync.Mutex
	registry *schema.Registry
}

var (
	poolsMu sync.Mutex
	pools   = map[string]*pool{}
)

// getPool returns the process-wide *sql.DB for `dbURI`, creating it (and
// registering the schema registry) on first use — mirrors
// context.py:Pool.get_pool caching one pool per db_uri.
func getPool(cfg Config) (*pool, error) {
	dbURI := cfg.DBURI
	if dbURI == "" {
		dbURI = "sqlite:///:memory:"
	}

	poolsMu.Lock()
	defer poolsMu.Unlock()

	if p, ok := pools[dbURI]; ok {
		return p, nil
	}

	u, err := url.Parse(dbURI)
	if err != nil {
		return nil, fmt.Errorf("invalid db_uri %q: %w", dbURI, err)
	}
	flavor, err := dialect.ParseFlavor(u.Scheme)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	var pgSchema string
	switch flavor {
	case dialect.SQLite:
		path := u.Path
		if len(path) > 0 {
			path = path[1:]
		}
		db, err = sql.Open("sqlite3", path+"?_foreign_keys=on")
	case dialect.Postgres:
		pgSchema = u.Fragment
		connURI := dbURI
		if pgSchema != "" {
			connURI = strings.TrimSuffix(dbURI, "#"+pgSchema)
		}
		db, err = sql.Open("pgx", connURI)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", dbURI, err)
	}
	if cfg.PoolMaxConns > 0 {
		db.SetMaxOpenConns(cfg.PoolMaxConns)
	}

	reg, err := schema.Build(cfg.Schema)
	if err != nil {
		return nil, err
	}

	p := &pool{db: db, flavor: flavor, schema: pgSchema, registry: reg}
	pools[dbURI] = p
	return p, nil
}

// Disconnect closes every pool tanker has opened in this process. Mainly
// useful for tests.
func Disconnect() {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	for uri, p := range pools {
		p.db.Close()
		delete(pools, uri)
	}
}
