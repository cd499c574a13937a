// Package mssql implements source.Conn for SQL Server, for deployments where
// the legacy ERP runs on MSSQL instead of Firebird.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"catalogo/internal/source"
)

type conn struct {
	db *sql.DB
}

func init() {
	source.Register("mssql", New)
}

// New opens a SQL Server connection pool and validates connectivity.
func New(ctx context.Context, cfg source.Config) (source.Conn, error) {
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("mssql: database name is required")
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 1433
	}

	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	q := url.Values{}
	q.Set("database", cfg.Database)
	u.RawQuery = q.Encode()

	db, err := sql.Open("sqlserver", u.String())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &conn{db: db}, nil
}

func (c *conn) Close() error { return c.db.Close() }

func (c *conn) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *conn) ListTables(ctx context.Context) ([]string, error) {
	const q = `
SELECT TABLE_NAME
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`
	_, rows, err := c.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mssql: list tables: %w", err)
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
SELECT COLUMN_NAME
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_NAME = @p1
ORDER BY ORDINAL_POSITION`
	_, rows, err := c.Query(ctx, q, strings.TrimSpace(table))
	if err != nil {
		return nil, fmt.Errorf("mssql: list columns of %s: %w", table, err)
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
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

func (c *conn) Dialect() source.Dialect { return Dialect{} }

// Dialect implements source.Dialect for T-SQL.
type Dialect struct{}

func (Dialect) SelectLimit(n int) (string, string) {
	return fmt.Sprintf("TOP %d ", n), ""
}

func (Dialect) Placeholder(i int) string { return fmt.Sprintf("@p%d", i) }

func (Dialect) Contains(col, placeholder string) string {
	return "LOWER(" + col + ") LIKE " + placeholder
}

func (Dialect) ContainsArg(term string) string {
	return "%" + strings.ToLower(term) + "%"
}

func (Dialect) CastText(col string) string {
	return "CAST(" + col + " AS VARCHAR(64))"
}

func (Dialect) NullDecimal() string { return "CAST(NULL AS DECIMAL(18,4))" }
func (Dialect) NullVarchar() string { return "CAST(NULL AS VARCHAR(120))" }
