// Package firebird implements source.Conn for Firebird 2.5+ servers reached
// over the wire protocol. This is the backend the legacy ERP deployments use.
package firebird

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/nakagami/firebirdsql"
	"golang.org/x/text/encoding/charmap"

	"catalogo/internal/source"
)

type conn struct {
	db      *sql.DB
	charset string
}

func init() {
	source.Register("firebird", New)
}

// New opens a Firebird connection pool and validates connectivity.
//
// The database in cfg must be the full server-side path of the .FDB file
// when connecting remotely (Firebird 2.5 resolves it on the server).
func New(ctx context.Context, cfg source.Config) (source.Conn, error) {
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("firebird: database path is required")
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3050
	}

	params := url.Values{}
	if cfg.Charset != "" {
		params.Set("charset", cfg.Charset)
	}
	if cfg.Role != "" {
		params.Set("role", cfg.Role)
	}

	dsn := fmt.Sprintf("%s:%s@%s:%d/%s",
		cfg.User, cfg.Password, host, port, strings.TrimPrefix(cfg.Database, "/"))
	if len(params) > 0 {
		dsn += "?" + params.Encode()
	}

	db, err := sql.Open("firebirdsql", dsn)
	if err != nil {
		return nil, err
	}

	// The legacy server is a small on-prem box; keep the pool tiny so each
	// operation effectively acquires and releases its own connection.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &conn{db: db, charset: cfg.Charset}, nil
}

func (c *conn) Close() error { return c.db.Close() }

func (c *conn) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

// ListTables queries RDB$RELATIONS for user tables, excluding system
// relations and views.
func (c *conn) ListTables(ctx context.Context) ([]string, error) {
	const q = `
SELECT TRIM(RDB$RELATION_NAME)
FROM RDB$RELATIONS
WHERE RDB$VIEW_BLR IS NULL
  AND (RDB$SYSTEM_FLAG IS NULL OR RDB$SYSTEM_FLAG = 0)
ORDER BY 1`
	_, rows, err := c.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("firebird: list tables: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if len(r) == 1 {
			out = append(out, strings.TrimSpace(fmt.Sprint(r[0])))
		}
	}
	return out, nil
}

// ListColumns queries RDB$RELATION_FIELDS ordered by physical position.
func (c *conn) ListColumns(ctx context.Context, table string) ([]string, error) {
	const q = `
SELECT TRIM(rf.RDB$FIELD_NAME)
FROM RDB$RELATION_FIELDS rf
JOIN RDB$FIELDS f ON rf.RDB$FIELD_SOURCE = f.RDB$FIELD_NAME
WHERE rf.RDB$RELATION_NAME = ?
ORDER BY rf.RDB$FIELD_POSITION`
	_, rows, err := c.Query(ctx, q, strings.ToUpper(strings.TrimSpace(table)))
	if err != nil {
		return nil, fmt.Errorf("firebird: list columns of %s: %w", table, err)
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
				vals[i] = c.decodeText(b)
			}
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

// decodeText converts raw column bytes into a Go string. Legacy bases store
// text in single-byte charsets (WIN1252 in every deployment seen so far);
// the driver hands those back undecoded for NONE/OCTETS columns.
func (c *conn) decodeText(b []byte) string {
	cs := strings.ToUpper(strings.TrimSpace(c.charset))
	switch cs {
	case "", "WIN1252":
		if s, err := charmap.Windows1252.NewDecoder().Bytes(b); err == nil {
			return string(s)
		}
	case "ISO8859_1":
		if s, err := charmap.ISO8859_1.NewDecoder().Bytes(b); err == nil {
			return string(s)
		}
	}
	return string(b)
}

func (c *conn) Dialect() source.Dialect { return Dialect{} }

// Dialect implements source.Dialect for Firebird SQL.
type Dialect struct{}

func (Dialect) SelectLimit(n int) (string, string) {
	return fmt.Sprintf("FIRST %d ", n), ""
}

func (Dialect) Placeholder(int) string { return "?" }

// Contains uses CONTAINING, which is case-insensitive on Firebird 2.5.
func (Dialect) Contains(col, placeholder string) string {
	return col + " CONTAINING " + placeholder
}

func (Dialect) ContainsArg(term string) string { return term }

func (Dialect) CastText(col string) string {
	return "CAST(" + col + " AS VARCHAR(64))"
}

func (Dialect) NullDecimal() string { return "CAST(NULL AS DECIMAL(18,4))" }
func (Dialect) NullVarchar() string { return "CAST(NULL AS VARCHAR(120))" }
