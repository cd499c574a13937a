// Package search implements the dual-source reconciler: the product term
// and the vehicle term each resolve to an independent set of candidate
// codes (local cache first, live source fallback), the sets are combined,
// and the final codes are enriched with live attributes.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"catalogo/internal/cache"
	"catalogo/internal/catalog"
	"catalogo/internal/metrics"
)

// DescricaoPlaceholder fills in for codes that are neither cached nor
// described by the live attribute fetch.
const DescricaoPlaceholder = "(sem descrição no cache)"

// SourceSearcher is the slice of the catalog client the reconciler needs.
type SourceSearcher interface {
	SearchLoose(ctx context.Context, terms []string, limit int) ([]catalog.Product, error)
	FetchBatchAttributes(ctx context.Context, codes []string) (map[string]catalog.Attributes, error)
}

// Item is one search hit. Optional numeric attributes stay nil when the
// live fetch could not supply them; Extras carries whichever of
// fornecedor/marca/grupo/subgrupo the discovered table happens to have.
type Item struct {
	Codigo    string            `json:"codigo"`
	Descricao string            `json:"descricao"`
	Estoque   *float64          `json:"estoque"`
	Preco     *float64          `json:"preco"`
	Extras    map[string]string `json:"extras,omitempty"`
}

// Result is the reconciled, enriched, sorted hit list.
type Result struct {
	Items []Item `json:"items"`
	Count int    `json:"count"`
}

// Service reconciles cache and source answers for one search request.
type Service struct {
	store *cache.Store
	src   SourceSearcher
	log   zerolog.Logger
}

func NewService(store *cache.Store, src SourceSearcher, log zerolog.Logger) *Service {
	return &Service{store: store, src: src, log: log}
}

// Search resolves candidate code sets for the product term and the vehicle
// term, combines them (intersection when both terms produced codes, the
// non-empty side otherwise), and enriches the final set.
//
// detalhe narrows the vehicle term: it joins the words fed to the
// application lookup, so "fiesta" + "2011" resolves as "fiesta 2011".
// With every term blank the result is empty and no enrichment query runs.
func (s *Service) Search(ctx context.Context, produto, veiculo, detalhe string) (Result, error) {
	produto = strings.TrimSpace(produto)
	veiculo = strings.TrimSpace(veiculo)
	detalhe = strings.TrimSpace(detalhe)

	if produto == "" && veiculo == "" && detalhe == "" {
		return Result{Items: []Item{}}, nil
	}

	var prodCodes, vehCodes []string
	var err error
	if produto != "" {
		prodCodes, err = s.codesForProduct(ctx, produto)
		if err != nil {
			return Result{}, err
		}
	}
	if veiculo != "" || detalhe != "" {
		vehCodes, err = s.codesForVehicle(ctx, strings.TrimSpace(veiculo+" "+detalhe))
		if err != nil {
			return Result{}, err
		}
	}

	codes := combine(prodCodes, vehCodes)
	if len(codes) == 0 {
		return Result{Items: []Item{}}, nil
	}

	items, err := s.enrich(ctx, codes)
	if err != nil {
		return Result{}, err
	}
	return Result{Items: items, Count: len(items)}, nil
}

// codesForProduct resolves the product-term candidate set: cache substring
// search first, loose source search as fallback. Loose hits are written
// back into the cache best-effort so the next identical search stays local.
func (s *Service) codesForProduct(ctx context.Context, term string) ([]string, error) {
	cached, err := s.store.SearchProducts(ctx, term, 500)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		codes := make([]string, 0, len(cached))
		for _, p := range cached {
			codes = append(codes, p.Codigo)
		}
		return codes, nil
	}

	metrics.IncCounter("search.loose_fallback", 1)
	loose, err := s.src.SearchLoose(ctx, strings.Fields(term), 200)
	if err != nil {
		s.log.Warn().Err(err).Str("term", term).Msg("loose source search failed")
		return nil, nil
	}
	if len(loose) == 0 {
		return nil, nil
	}

	warm := make([]cache.Product, 0, len(loose))
	codes := make([]string, 0, len(loose))
	for _, p := range loose {
		codes = append(codes, p.Codigo)
		if p.Descricao != "" {
			warm = append(warm, cache.Product{Codigo: p.Codigo, Descricao: p.Descricao})
		}
	}
	if err := s.store.UpsertProducts(ctx, warm); err != nil {
		s.log.Warn().Err(err).Msg("could not warm cache from loose search")
	}
	return codes, nil
}

// codesForVehicle resolves the vehicle-term candidate set from the curated
// application links; with no links matching, the vehicle words fall back to
// the product-text path (descriptions often embed the vehicle name).
func (s *Service) codesForVehicle(ctx context.Context, term string) ([]string, error) {
	hits, err := s.store.SearchApplications(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		seen := make(map[string]struct{}, len(hits))
		codes := make([]string, 0, len(hits))
		for _, h := range hits {
			if _, dup := seen[h.CodigoProduto]; dup {
				continue
			}
			seen[h.CodigoProduto] = struct{}{}
			codes = append(codes, h.CodigoProduto)
		}
		return codes, nil
	}
	return s.codesForProduct(ctx, term)
}

// combine applies the set policy: intersection when both sides are
// non-empty, otherwise whichever side has codes.
func combine(prod, veh []string) []string {
	switch {
	case len(prod) == 0:
		return veh
	case len(veh) == 0:
		return prod
	}
	in := make(map[string]struct{}, len(veh))
	for _, c := range veh {
		in[c] = struct{}{}
	}
	var out []string
	for _, c := range prod {
		if _, ok := in[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// enrich merges cached descriptions with live attributes for the final
// code set. A failing live fetch degrades to cache-only items; a code with
// no description from either side gets the placeholder.
func (s *Service) enrich(ctx context.Context, codes []string) ([]Item, error) {
	codes = dedupeSorted(codes)

	cached, err := s.store.ProductsByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}

	live, err := s.src.FetchBatchAttributes(ctx, codes)
	if err != nil {
		s.log.Warn().Err(err).Int("codes", len(codes)).Msg("live attribute fetch failed; serving cache-only results")
		live = map[string]catalog.Attributes{}
	}

	items := make([]Item, 0, len(codes))
	for _, code := range codes {
		it := Item{Codigo: code, Descricao: cached[code].Descricao}
		if a, ok := live[code]; ok {
			if a.Descricao != "" {
				it.Descricao = a.Descricao
			}
			it.Estoque = a.Estoque
			it.Preco = a.Preco
			it.Extras = a.Extras
		}
		if it.Descricao == "" {
			it.Descricao = DescricaoPlaceholder
		}
		items = append(items, it)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Descricao) < strings.ToLower(items[j].Descricao)
	})
	return items, nil
}

// dedupeSorted sorts codes so enrichment and tie-breaking are deterministic
// regardless of which resolution path produced the set.
func dedupeSorted(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
