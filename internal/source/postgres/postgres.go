// Package postgres implements source.Conn for Postgres sources.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"catalogo/internal/source"
)

type conn struct {
	pool *pgxpool.Pool
}

func init() {
	source.Register("postgres", New)
}

// New opens a pgx pool and validates connectivity.
func New(ctx context.Context, cfg source.Config) (source.Conn, error) {
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("postgres: database name is required")
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	dsn := fmt.Sprintf("postgresql://%s:%s@%s:%d/%s",
		url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password),
		host, port, url.PathEscape(cfg.Database))

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &conn{pool: pool}, nil
}

func (c *conn) Close() error {
	c.pool.Close()
	return nil
}

func (c *conn) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *conn) ListTables(ctx context.Context) ([]string, error) {
	const q = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
ORDER BY table_name`
	_, rows, err := c.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if len(r) == 1 {
			out = append(out, strings.TrimSpace(fmt.Sprint(r[0])))
		}
	}
	return out, nil
}

func (c *conn) ListColumns(ctx context.Context, table string) ([]string, error) {
	const q = `
SELECT column_name
FROM information_schema.columns
WHERE table_schema = 'public' AND lower(table_name) = lower($1)
ORDER BY ordinal_position`
	_, rows, err := c.Query(ctx, q, strings.TrimSpace(table))
	if err != nil {
		return nil, fmt.Errorf("postgres: list columns of %s: %w", table, err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if len(r) == 1 {
			out = append(out, strings.TrimSpace(fmt.Sprint(r[0])))
		}
	}
	return out, nil
}

func (c *conn) Query(ctx context.Context, query string, args ...any) ([]string, [][]any, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

func (c *conn) Dialect() source.Dialect { return Dialect{} }

// Dialect implements source.Dialect for Postgres.
type Dialect struct{}

func (Dialect) SelectLimit(n int) (string, string) {
	return "", fmt.Sprintf(" LIMIT %d", n)
}

func (Dialect) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }

func (Dialect) Contains(col, placeholder string) string {
	return col + " ILIKE " + placeholder
}

func (Dialect) ContainsArg(term string) string { return "%" + term + "%" }

func (Dialect) CastText(col string) string { return "CAST(" + col + " AS TEXT)" }

func (Dialect) NullDecimal() string { return "CAST(NULL AS NUMERIC(18,4))" }
func (Dialect) NullVarchar() string { return "CAST(NULL AS VARCHAR(120))" }
