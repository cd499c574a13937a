package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// CodesPlaceholder is the token a custom StockPriceSQL template must contain;
// it is expanded into the bind-parameter list of the code batch.
const CodesPlaceholder = "{codes_in}"

// Product is one normalized row of the product catalog.
type Product struct {
	Codigo    string
	Descricao string
	Barras    string
	Preco     *float64
}

// Attributes are the live per-code values fetched for enrichment. Extras
// carries the optional roles (fornecedor/marca/grupo/subgrupo) sparsely;
// which of them exist varies per deployment, so they are a map rather than
// fixed fields.
type Attributes struct {
	Descricao string
	Estoque   *float64
	Preco     *float64
	Extras    map[string]string
}

// FetchSnapshot selects up to limit rows of the discovered table, projecting
// code/description/barcode/price with typed NULLs for unmapped optional
// columns. Without a resolved signature it returns nil, nil (no data
// available is not an error).
func (c *Client) FetchSnapshot(ctx context.Context, limit int) ([]Product, error) {
	sig, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, nil
	}

	d := c.src.Dialect()
	prefix, suffix := d.SelectLimit(limit)

	sel := []string{
		sig.Mapping[RoleCodigo] + " AS CODIGO",
		sig.Mapping[RoleDescricao] + " AS DESCRICAO",
		projectOptional(sig.Mapping, RoleBarras, d.NullVarchar()) + " AS BARRAS",
		projectOptional(sig.Mapping, RolePreco, d.NullDecimal()) + " AS PRECO",
	}
	q := fmt.Sprintf("SELECT %s%s FROM %s%s", prefix, strings.Join(sel, ", "), sig.Table, suffix)

	cols, rows, err := c.src.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot from %s: %w", sig.Table, err)
	}
	return productsFromRows(cols, rows), nil
}

// FetchBatchAttributes returns live attributes for a batch of codes, keyed
// by normalized code. An empty batch short-circuits without a query.
//
// With a custom StockPriceSQL template configured, that statement runs
// as-is (after placeholder expansion) and its result columns are read by
// name. Otherwise the query is generated from the resolved signature and
// includes every optional role the table actually has.
func (c *Client) FetchBatchAttributes(ctx context.Context, codes []string) (map[string]Attributes, error) {
	codes = normalizeCodes(codes)
	if len(codes) == 0 {
		return map[string]Attributes{}, nil
	}

	d := c.src.Dialect()
	args := make([]any, len(codes))
	phs := make([]string, len(codes))
	for i, code := range codes {
		args[i] = code
		phs[i] = d.Placeholder(i + 1)
	}
	inList := strings.Join(phs, ",")

	var q string
	if custom := strings.TrimSpace(c.opts.StockPriceSQL); custom != "" {
		if !strings.Contains(custom, CodesPlaceholder) {
			return nil, fmt.Errorf("custom stock/price SQL lacks %s token", CodesPlaceholder)
		}
		q = strings.ReplaceAll(custom, CodesPlaceholder, inList)
	} else {
		sig, err := c.Discover(ctx)
		if err != nil {
			return nil, err
		}
		if sig == nil {
			return map[string]Attributes{}, nil
		}

		sel := []string{
			sig.Mapping[RoleCodigo] + " AS CODIGO",
			sig.Mapping[RoleDescricao] + " AS DESCRICAO",
			projectOptional(sig.Mapping, RoleEstoque, d.NullDecimal()) + " AS ESTOQUE",
			projectOptional(sig.Mapping, RolePreco, d.NullDecimal()) + " AS PRECO",
		}
		for _, role := range extraRoles {
			if col := sig.Mapping[role]; col != "" {
				sel = append(sel, fmt.Sprintf("%s AS %s", col, strings.ToUpper(string(role))))
			}
		}
		q = fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
			strings.Join(sel, ", "), sig.Table, d.CastText(sig.Mapping[RoleCodigo]), inList)
	}

	cols, rows, err := c.src.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch attributes: %w", err)
	}

	out := make(map[string]Attributes, len(rows))
	for _, r := range rows {
		rec := rowMap(cols, r)
		code := strings.TrimSpace(asString(rec["codigo"]))
		if code == "" {
			continue
		}
		attr := Attributes{
			Descricao: strings.TrimSpace(asString(rec["descricao"])),
			Estoque:   asFloat(rec["estoque"]),
			Preco:     asFloat(rec["preco"]),
		}
		for _, role := range extraRoles {
			if v := strings.TrimSpace(asString(rec[string(role)])); v != "" {
				if attr.Extras == nil {
					attr.Extras = make(map[string]string, len(extraRoles))
				}
				attr.Extras[string(role)] = v
			}
		}
		out[code] = attr
	}
	return out, nil
}

func projectOptional(m ColumnMapping, role Role, nullLiteral string) string {
	if col := m[role]; col != "" {
		return col
	}
	return nullLiteral
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// rowMap keys row values by lowercased, trimmed column name, the same way
// the CLI probes read cursor descriptions.
func rowMap(cols []string, row []any) map[string]any {
	m := make(map[string]any, len(cols))
	for i, c := range cols {
		if i < len(row) {
			m[strings.ToLower(strings.TrimSpace(c))] = row[i]
		}
	}
	return m
}

func productsFromRows(cols []string, rows [][]any) []Product {
	out := make([]Product, 0, len(rows))
	for _, r := range rows {
		rec := rowMap(cols, r)
		code := strings.TrimSpace(asString(rec["codigo"]))
		if code == "" {
			continue
		}
		out = append(out, Product{
			Codigo:    code,
			Descricao: strings.TrimSpace(asString(rec["descricao"])),
			Barras:    strings.TrimSpace(asString(rec["barras"])),
			Preco:     asFloat(rec["preco"]),
		})
	}
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(v)
	}
}

// asFloat coerces the numeric shapes drivers hand back (int64, float64,
// decimal strings, byte slices) into *float64; nil and unparseable values
// map to nil.
func asFloat(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return &t
	case float32:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case int:
		f := float64(t)
		return &f
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	case []byte:
		if f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64); err == nil {
			return &f
		}
	default:
		if f, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(v)), 64); err == nil {
			return &f
		}
	}
	return nil
}
