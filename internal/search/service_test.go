package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogo/internal/cache"
	"catalogo/internal/catalog"
)

// fakeSource scripts the live side of the reconciler.
type fakeSource struct {
	loose      []catalog.Product
	looseErr   error
	looseCalls int

	attrs     map[string]catalog.Attributes
	attrsErr  error
	attrCalls int
}

func (f *fakeSource) SearchLoose(_ context.Context, terms []string, _ int) ([]catalog.Product, error) {
	f.looseCalls++
	return f.loose, f.looseErr
}

func (f *fakeSource) FetchBatchAttributes(_ context.Context, codes []string) (map[string]catalog.Attributes, error) {
	f.attrCalls++
	if f.attrsErr != nil {
		return nil, f.attrsErr
	}
	out := map[string]catalog.Attributes{}
	for _, c := range codes {
		if a, ok := f.attrs[c]; ok {
			out[c] = a
		}
	}
	return out, nil
}

func newTestService(t *testing.T, src *fakeSource) (*Service, *cache.Store) {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store, src, zerolog.Nop()), store
}

func seedProducts(t *testing.T, store *cache.Store, products ...cache.Product) {
	t.Helper()
	require.NoError(t, store.UpsertProducts(context.Background(), products))
}

func TestSearchAllTermsEmpty(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	svc, _ := newTestService(t, src)

	res, err := svc.Search(context.Background(), "", "  ", "")
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, res.Count)
	assert.Zero(t, src.attrCalls, "empty search must not issue an enrichment query")
	assert.Zero(t, src.looseCalls)
}

func TestSearchCombinationLaws(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := &fakeSource{}
	svc, store := newTestService(t, src)

	seedProducts(t, store,
		cache.Product{Codigo: "A", Descricao: "CORREIA ALTERNADOR"},
		cache.Product{Codigo: "B", Descricao: "CORREIA DENTADA"},
		cache.Product{Codigo: "C", Descricao: "CORREIA POLY-V"},
		cache.Product{Codigo: "D", Descricao: "TENSOR"},
	)
	uno, err := store.UpsertVehicle(ctx, cache.Vehicle{Marca: "Fiat", Modelo: "Uno", AnoInicio: 1995, AnoFim: 2004, Motor: "1.0"})
	require.NoError(t, err)
	for _, code := range []string{"B", "C", "D"} {
		require.NoError(t, store.AddApplication(ctx, code, uno))
	}
	gol, err := store.UpsertVehicle(ctx, cache.Vehicle{Marca: "VW", Modelo: "Gol", AnoInicio: 2008, AnoFim: 2013, Motor: "1.6"})
	require.NoError(t, err)
	require.NoError(t, store.AddApplication(ctx, "A", gol))

	t.Run("product term only returns the full product set", func(t *testing.T) {
		res, err := svc.Search(ctx, "correia", "", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, itemCodes(res))
	})

	t.Run("vehicle term only returns the application set", func(t *testing.T) {
		res, err := svc.Search(ctx, "", "uno", "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"B", "C", "D"}, itemCodes(res))
	})

	t.Run("both terms intersect", func(t *testing.T) {
		res, err := svc.Search(ctx, "correia", "uno", "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"B", "C"}, itemCodes(res))
		assert.Equal(t, 2, res.Count)
	})

	t.Run("disjoint sets intersect to nothing", func(t *testing.T) {
		// "tensor" resolves to {D}, "gol" to {A}; both non-empty, no overlap.
		attrBefore := src.attrCalls
		res, err := svc.Search(ctx, "tensor", "gol", "")
		require.NoError(t, err)
		assert.Empty(t, res.Items)
		assert.Equal(t, attrBefore, src.attrCalls, "empty intersection must skip enrichment")
	})
}

func TestSearchEndToEndVehicleYearRange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	estoque, preco := 3.0, 450.0
	src := &fakeSource{attrs: map[string]catalog.Attributes{
		"BAT1": {Descricao: "Bateria 60Ah", Estoque: &estoque, Preco: &preco},
	}}
	svc, store := newTestService(t, src)

	seedProducts(t, store, cache.Product{Codigo: "BAT1", Descricao: "Bateria 60Ah"})
	v1, err := store.UpsertVehicle(ctx, cache.Vehicle{Marca: "Ford", Modelo: "Fiesta", AnoInicio: 2010, AnoFim: 2012, Motor: "1.6"})
	require.NoError(t, err)
	require.NoError(t, store.AddApplication(ctx, "BAT1", v1))

	res, err := svc.Search(ctx, "Bateria", "Fiesta 2011", "")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	it := res.Items[0]
	assert.Equal(t, "BAT1", it.Codigo)
	assert.Equal(t, "Bateria 60Ah", it.Descricao)
	require.NotNil(t, it.Estoque)
	assert.Equal(t, 3.0, *it.Estoque)
	require.NotNil(t, it.Preco)
	assert.Equal(t, 450.0, *it.Preco)
}

func TestSearchLooseFallbackWarmsCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := &fakeSource{loose: []catalog.Product{{Codigo: "NOVO1", Descricao: "PALHETA DIANTEIRA"}}}
	svc, _ := newTestService(t, src)

	res, err := svc.Search(ctx, "palheta", "", "")
	require.NoError(t, err)
	require.Equal(t, []string{"NOVO1"}, itemCodes(res))
	assert.Equal(t, 1, src.looseCalls)

	// Second identical search must be answered from the warmed cache.
	res, err = svc.Search(ctx, "palheta", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"NOVO1"}, itemCodes(res))
	assert.Equal(t, 1, src.looseCalls, "warmed cache must absorb the repeat search")
}

func TestSearchLooseFailureDegradesToEmpty(t *testing.T) {
	t.Parallel()

	src := &fakeSource{looseErr: errors.New("source offline")}
	svc, _ := newTestService(t, src)

	res, err := svc.Search(context.Background(), "vela", "", "")
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestSearchEnrichment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("live description overrides cached", func(t *testing.T) {
		t.Parallel()
		src := &fakeSource{attrs: map[string]catalog.Attributes{
			"P1": {Descricao: "VELA NGK BKR6E", Extras: map[string]string{"marca": "NGK"}},
		}}
		svc, store := newTestService(t, src)
		seedProducts(t, store, cache.Product{Codigo: "P1", Descricao: "VELA NGK"})

		res, err := svc.Search(ctx, "vela", "", "")
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "VELA NGK BKR6E", res.Items[0].Descricao)
		assert.Equal(t, "NGK", res.Items[0].Extras["marca"])
	})

	t.Run("fetch failure serves cache-only items", func(t *testing.T) {
		t.Parallel()
		src := &fakeSource{attrsErr: errors.New("source offline")}
		svc, store := newTestService(t, src)
		seedProducts(t, store, cache.Product{Codigo: "P1", Descricao: "VELA NGK"})

		res, err := svc.Search(ctx, "vela", "", "")
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "VELA NGK", res.Items[0].Descricao)
		assert.Nil(t, res.Items[0].Estoque)
	})

	t.Run("undescribed code gets the placeholder", func(t *testing.T) {
		t.Parallel()
		src := &fakeSource{}
		svc, store := newTestService(t, src)

		// A curated application can point at a code the cache never saw.
		v, err := store.UpsertVehicle(ctx, cache.Vehicle{Marca: "VW", Modelo: "Gol", AnoInicio: 2008, AnoFim: 2012})
		require.NoError(t, err)
		require.NoError(t, store.AddApplication(ctx, "FANTASMA", v))

		res, err := svc.Search(ctx, "", "gol", "")
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, DescricaoPlaceholder, res.Items[0].Descricao)
	})
}

func TestSearchDetalheNarrowsVehicleTerm(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := &fakeSource{}
	svc, store := newTestService(t, src)
	seedProducts(t, store,
		cache.Product{Codigo: "PAD1", Descricao: "PASTILHA FREIO"},
		cache.Product{Codigo: "BAT1", Descricao: "BATERIA 60AH"},
	)
	v1, err := store.UpsertVehicle(ctx, cache.Vehicle{Marca: "Ford", Modelo: "Fiesta", AnoInicio: 2010, AnoFim: 2012})
	require.NoError(t, err)
	v2, err := store.UpsertVehicle(ctx, cache.Vehicle{Marca: "Ford", Modelo: "Fiesta", AnoInicio: 2013, AnoFim: 2016})
	require.NoError(t, err)
	require.NoError(t, store.AddApplication(ctx, "PAD1", v1))
	require.NoError(t, store.AddApplication(ctx, "BAT1", v1))
	require.NoError(t, store.AddApplication(ctx, "BAT1", v2))

	// detalhe joins the vehicle lookup, so the year narrows the application
	// set before the product filter intersects it.
	res, err := svc.Search(ctx, "pastilha", "fiesta", "2011")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "PAD1", res.Items[0].Codigo)

	// Without a product term the narrowed application set is the result.
	res, err = svc.Search(ctx, "", "fiesta", "2014")
	require.NoError(t, err)
	assert.Equal(t, []string{"BAT1"}, itemCodes(res))

	// detalhe alone still resolves (vehicle side, product-text fallback).
	res, err = svc.Search(ctx, "", "", "bateria")
	require.NoError(t, err)
	assert.Equal(t, []string{"BAT1"}, itemCodes(res))
}

func itemCodes(r Result) []string {
	out := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, it.Codigo)
	}
	return out
}
