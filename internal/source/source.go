// Package source defines the narrow read interface through which the rest of
// the application talks to the legacy catalog database, plus a registry of
// concrete backends (firebird, mssql, postgres).
//
// The interface is intentionally minimal: list user tables, list the columns
// of a table in physical order, run a parameterized SELECT, ping, close.
// Nothing above this package assumes fixed table or column names; the shape
// of the remote schema is inferred at runtime by internal/catalog.
package source

import (
	"context"
	"fmt"
	"sync"
)

// Config carries the connection parameters for a source backend.
//
// Database is the server-side path or identifier of the database; for
// Firebird deployments this is the full file path on the server
// (e.g. C:/SGBR/BASESGMASTER.FDB).
type Config struct {
	Kind     string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Charset  string
	Role     string
}

// Conn is the read-only view of a source database.
//
// Implementations scope connection acquisition per call (database/sql or
// pgxpool semantics); callers never hold a dedicated connection across
// operations.
type Conn interface {
	// ListTables returns the names of user tables (no system relations,
	// no views), in the order the backend's catalog reports them.
	ListTables(ctx context.Context) ([]string, error)

	// ListColumns returns the column names of table ordered by physical
	// position. A nonexistent table yields an empty slice, not an error.
	ListColumns(ctx context.Context, table string) ([]string, error)

	// Query runs a parameterized SELECT and returns the result column names
	// (as reported by the backend) together with the row values.
	Query(ctx context.Context, query string, args ...any) (cols []string, rows [][]any, err error)

	// Ping verifies the source is reachable. This is the only operation that
	// surfaces "source unavailable" as a reportable condition.
	Ping(ctx context.Context) error

	// Dialect exposes the SQL fragments that differ between backends.
	Dialect() Dialect

	Close() error
}

// Dialect abstracts the SQL syntax differences the catalog client needs:
// row limiting, parameter placeholders, substring matching, and the typed
// NULL literals substituted for unmapped optional columns.
type Dialect interface {
	// SelectLimit returns the fragments bounding a SELECT to n rows.
	// prefix is injected immediately after the SELECT keyword (Firebird
	// "FIRST n", MSSQL "TOP n"), suffix is appended to the statement
	// (Postgres "LIMIT n"). Exactly one of the two is non-empty.
	SelectLimit(n int) (prefix, suffix string)

	// Placeholder returns the parameter marker for the i-th argument
	// (1-based): "?" for Firebird, "@pN" for MSSQL, "$N" for Postgres.
	Placeholder(i int) string

	// Contains returns a case-insensitive substring-match expression for
	// col against the given placeholder.
	Contains(col, placeholder string) string

	// ContainsArg wraps the user term into the argument form Contains
	// expects (bare term for Firebird CONTAINING, %term% for LIKE).
	ContainsArg(term string) string

	// CastText renders col as a text expression usable with LIKE.
	CastText(col string) string

	// NullDecimal and NullVarchar are the typed NULL literals projected in
	// place of unmapped optional columns.
	NullDecimal() string
	NullVarchar() string
}

type factory func(ctx context.Context, cfg Config) (Conn, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "firebird", "mssql").
// Called from init() in backend packages; registering the same kind twice
// panics to fail fast on ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("source: Register called with empty kind")
	}
	if f == nil {
		panic("source: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("source: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a Conn using the registered backend factory for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Conn, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("source: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("source: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
