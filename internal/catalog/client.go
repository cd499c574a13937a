// Package catalog implements the schema-discovery client for the legacy
// product database: it locates the product table at runtime, maps its
// columns onto canonical roles, and runs snapshot, batch-attribute and
// loose-search queries against the resolved signature.
//
// Design constraints:
//   - Discovery is heuristic and best-effort; "no table found" is a normal
//     outcome, never an error, and downstream operations degrade to empty
//     results.
//   - Only names taken from the system catalog are interpolated into SQL;
//     every user-supplied value travels as a bind parameter.
package catalog

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"catalogo/internal/source"
)

// Options configure a Client beyond its source connection.
type Options struct {
	// OverrideTable pins the product table instead of heuristic discovery.
	// The override is validated before acceptance; an override that fails
	// validation is logged and discarded.
	OverrideTable string

	// OverrideColumns pins individual role→column assignments, used together
	// with OverrideTable. Unset roles fall back to candidate resolution
	// against the table's real columns.
	OverrideColumns map[Role]string

	// StockPriceSQL, when set, replaces the generated batch-attribute query.
	// It must contain the CodesPlaceholder token, which is expanded into the
	// bind-parameter list for the code batch.
	StockPriceSQL string

	// Logger used for swallowed failures (invalid override, per-table
	// cascade errors). Zero value logs nowhere.
	Logger zerolog.Logger
}

// Signature is the resolved (table, column-mapping) pair for the product
// catalog. Immutable once produced.
type Signature struct {
	Table   string
	Mapping ColumnMapping
}

// Client resolves and queries the product table of one source database.
//
// The resolved signature is memoized for the lifetime of the Client; the
// memo is the only shared mutable state and is replaced atomically under a
// mutex. Invalidate clears it (used by tests and by admin re-probe flows).
type Client struct {
	src  source.Conn
	opts Options

	mu  sync.Mutex
	sig *Signature
}

// NewClient wraps a source connection.
func NewClient(src source.Conn, opts Options) *Client {
	return &Client{src: src, opts: opts}
}

// Source exposes the underlying connection for health probes and ad hoc
// tooling (cmd/dump, cmd/dboverview).
func (c *Client) Source() source.Conn { return c.src }

// Invalidate drops the memoized signature so the next Discover re-resolves.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.sig = nil
	c.mu.Unlock()
}

func (c *Client) cachedSignature() *Signature {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sig
}

func (c *Client) storeSignature(sig *Signature) {
	c.mu.Lock()
	c.sig = sig
	c.mu.Unlock()
}

// trimUpper is the comparison form used for table-name checks.
func trimUpper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
