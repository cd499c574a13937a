package catalog

import (
	"context"
	"fmt"
	"strings"
)

// SearchLoose runs the multi-table substring search used when the local
// cache has no answer. Each term must match (AND), and within a term any
// of description, code-as-text or barcode may match (OR).
//
// Tables are tried in a widening cascade: the primary discovered table
// first, then the strict candidate ranking, then the lenient ranking that
// ignores the movement-table name exclusions. Per-table failures are
// logged and skipped; results are deduplicated by code across tables and
// collection stops once limit codes are held.
func (c *Client) SearchLoose(ctx context.Context, terms []string, limit int) ([]Product, error) {
	clean := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 200
	}

	var out []Product
	seen := make(map[string]struct{})
	tried := make(map[string]struct{})

	collect := func(sig Signature) {
		prods, err := c.searchTable(ctx, sig, clean, limit)
		if err != nil {
			c.opts.Logger.Debug().Err(err).Str("table", sig.Table).Msg("loose search: table skipped")
			return
		}
		for _, p := range prods {
			if _, dup := seen[p.Codigo]; dup {
				continue
			}
			seen[p.Codigo] = struct{}{}
			out = append(out, p)
			if len(out) >= limit {
				return
			}
		}
	}

	tryAll := func(sigs []Signature) {
		for _, sig := range sigs {
			if len(out) >= limit {
				return
			}
			key := trimUpper(sig.Table)
			if _, done := tried[key]; done {
				continue
			}
			tried[key] = struct{}{}
			collect(sig)
		}
	}

	if sig, err := c.Discover(ctx); err != nil {
		return nil, err
	} else if sig != nil {
		tryAll([]Signature{*sig})
	}

	if len(out) < limit {
		sigs, err := c.DiscoverCandidates(ctx, 10, false)
		if err != nil {
			return nil, err
		}
		tryAll(sigs)
	}

	// Last resort: widen past the name exclusions. Catalogs occasionally
	// live in tables named after the module that owns them.
	if len(out) == 0 {
		sigs, err := c.DiscoverCandidates(ctx, 20, true)
		if err != nil {
			return nil, err
		}
		tryAll(sigs)
	}
	return out, nil
}

func (c *Client) searchTable(ctx context.Context, sig Signature, terms []string, limit int) ([]Product, error) {
	d := c.src.Dialect()
	prefix, suffix := d.SelectLimit(limit)

	sel := []string{
		sig.Mapping[RoleCodigo] + " AS CODIGO",
		sig.Mapping[RoleDescricao] + " AS DESCRICAO",
		projectOptional(sig.Mapping, RoleBarras, d.NullVarchar()) + " AS BARRAS",
		projectOptional(sig.Mapping, RolePreco, d.NullDecimal()) + " AS PRECO",
	}

	var (
		conds []string
		args  []any
	)
	argN := 0
	ph := func(v any) string {
		argN++
		args = append(args, v)
		return d.Placeholder(argN)
	}
	for _, term := range terms {
		ors := []string{
			d.Contains(sig.Mapping[RoleDescricao], ph(d.ContainsArg(term))),
			fmt.Sprintf("%s LIKE %s", d.CastText(sig.Mapping[RoleCodigo]), ph("%"+term+"%")),
		}
		if barras := sig.Mapping[RoleBarras]; barras != "" {
			ors = append(ors, fmt.Sprintf("%s LIKE %s", d.CastText(barras), ph("%"+term+"%")))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	q := fmt.Sprintf("SELECT %s%s FROM %s WHERE %s ORDER BY %s%s",
		prefix, strings.Join(sel, ", "), sig.Table,
		strings.Join(conds, " AND "), sig.Mapping[RoleDescricao], suffix)

	cols, rows, err := c.src.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return productsFromRows(cols, rows), nil
}
