package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// nonCatalogKeywords exclude tables whose names suggest movement documents
// (orders, invoices, receipts, line items) rather than a product catalog.
var nonCatalogKeywords = []string{
	"COMANDA", "PEDID", "ORCAMENT", "CUPOM", "VENDA", "NF", "NOTA", "MOV",
}

// likelyCatalogNames get a small score bonus on exact match.
var likelyCatalogNames = []string{"TPRODUTO", "TPRODUTOS", "PRODUTO", "PRODUTOS", "TPROD"}

// candidate is a scored discovery result, kept in discovery order so ties
// resolve to the first table encountered.
type candidate struct {
	sig   Signature
	score int
	order int
}

// Discover resolves the product-table signature.
//
// Resolution order:
//  1. memoized signature, if present;
//  2. the configured manual override, validated (table exists, mandatory
//     columns exist, the table has at least one row); a failing override
//     is logged and discarded, never fatal;
//  3. heuristic discovery across all user tables.
//
// A nil signature with nil error means no table qualified; callers treat
// that as "no data available" and degrade gracefully.
func (c *Client) Discover(ctx context.Context) (*Signature, error) {
	if sig := c.cachedSignature(); sig != nil {
		return sig, nil
	}

	if c.opts.OverrideTable != "" {
		sig, err := c.validateOverride(ctx)
		if err == nil && sig != nil {
			c.storeSignature(sig)
			return sig, nil
		}
		if err != nil {
			c.opts.Logger.Warn().Err(err).
				Str("table", c.opts.OverrideTable).
				Msg("configured product table override is invalid; falling back to discovery")
		}
	}

	cands, err := c.scoreCandidates(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, nil
	}
	sig := cands[0].sig
	c.storeSignature(&sig)
	return &sig, nil
}

// DiscoverCandidates returns up to maxCount candidate signatures ranked by
// score (discovery order breaks ties). In lenient mode the non-catalog
// name-pattern exclusion is skipped; this is the last-resort pool for the
// loose-search cascade.
func (c *Client) DiscoverCandidates(ctx context.Context, maxCount int, lenient bool) ([]Signature, error) {
	cands, err := c.scoreCandidates(ctx, lenient)
	if err != nil {
		return nil, err
	}
	if maxCount > 0 && len(cands) > maxCount {
		cands = cands[:maxCount]
	}
	out := make([]Signature, 0, len(cands))
	for _, cd := range cands {
		out = append(out, cd.sig)
	}
	return out, nil
}

func (c *Client) scoreCandidates(ctx context.Context, lenient bool) ([]candidate, error) {
	tables, err := c.src.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	var cands []candidate
	for i, t := range tables {
		if !lenient && hasNonCatalogName(t) {
			continue
		}

		cols, err := c.src.ListColumns(ctx, t)
		if err != nil {
			c.opts.Logger.Debug().Err(err).Str("table", t).Msg("skipping table: column listing failed")
			continue
		}
		m := MapColumns(cols)
		if !m.Valid() {
			continue
		}
		if !c.tableHasRows(ctx, t, m[RoleCodigo]) {
			continue
		}

		cands = append(cands, candidate{
			sig:   Signature{Table: t, Mapping: m},
			score: scoreTable(t, m),
			order: i,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].order < cands[j].order
	})
	return cands, nil
}

// scoreTable weights a mapped table: mandatory roles dominate, price and
// barcode are weak signals, a resolvable stock column is a stronger one,
// and an exact "likely name" match nudges real catalogs above lookalikes.
func scoreTable(table string, m ColumnMapping) int {
	s := 0
	if m[RoleCodigo] != "" {
		s += 10
	}
	if m[RoleDescricao] != "" {
		s += 10
	}
	if m[RolePreco] != "" {
		s += 2
	}
	if m[RoleBarras] != "" {
		s += 1
	}
	if m[RoleEstoque] != "" {
		s += 3
	}
	up := trimUpper(table)
	for _, n := range likelyCatalogNames {
		if up == n {
			s += 2
			break
		}
	}
	return s
}

func hasNonCatalogName(table string) bool {
	up := trimUpper(table)
	for _, k := range nonCatalogKeywords {
		if strings.Contains(up, k) {
			return true
		}
	}
	return false
}

// tableHasRows runs the cheap existence probe: a bounded single-column
// SELECT. Any failure counts as "no rows": a table we cannot read is not a
// usable catalog.
func (c *Client) tableHasRows(ctx context.Context, table, codigoCol string) bool {
	d := c.src.Dialect()
	prefix, suffix := d.SelectLimit(1)
	q := fmt.Sprintf("SELECT %s%s FROM %s%s", prefix, codigoCol, table, suffix)
	_, rows, err := c.src.Query(ctx, q)
	return err == nil && len(rows) > 0
}

// validateOverride checks the manually configured table and role columns
// against the live catalog before accepting them.
func (c *Client) validateOverride(ctx context.Context) (*Signature, error) {
	table := strings.TrimSpace(c.opts.OverrideTable)

	tables, err := c.src.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate override: %w", err)
	}
	found := ""
	for _, t := range tables {
		if trimUpper(t) == trimUpper(table) {
			found = t
			break
		}
	}
	if found == "" {
		return nil, fmt.Errorf("validate override: table %q does not exist", table)
	}

	cols, err := c.src.ListColumns(ctx, found)
	if err != nil {
		return nil, fmt.Errorf("validate override: %w", err)
	}
	m := MapColumns(cols)
	for role, col := range c.opts.OverrideColumns {
		if col == "" {
			continue
		}
		actual := ""
		for _, cc := range cols {
			if trimUpper(cc) == trimUpper(col) {
				actual = cc
				break
			}
		}
		if actual == "" {
			return nil, fmt.Errorf("validate override: column %q (role %s) not in table %s", col, role, found)
		}
		m[role] = actual
	}
	if !m.Valid() {
		return nil, fmt.Errorf("validate override: table %s lacks mandatory codigo/descricao columns", found)
	}
	if !c.tableHasRows(ctx, found, m[RoleCodigo]) {
		return nil, fmt.Errorf("validate override: table %s has no rows", found)
	}
	return &Signature{Table: found, Mapping: m}, nil
}
