package autosync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"catalogo/internal/cache"
	"catalogo/internal/catalog"
)

type fakeFetcher struct {
	snapshot []catalog.Product
	err      error
	calls    int
}

func (f *fakeFetcher) FetchSnapshot(context.Context, int) ([]catalog.Product, error) {
	f.calls++
	return f.snapshot, f.err
}

func newTestOrchestrator(t *testing.T, fetcher *fakeFetcher, intervalMinutes int) (*Orchestrator, *cache.Store) {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, fetcher, intervalMinutes, 5000, zerolog.Nop()), store
}

func TestRefreshStampsLastSync(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := &fakeFetcher{snapshot: []catalog.Product{
		{Codigo: "1", Descricao: "VELA"},
		{Codigo: "2", Descricao: "FILTRO"},
	}}
	o, store := newTestOrchestrator(t, f, 30)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	if err := o.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	n, err := store.CountProducts(ctx)
	if err != nil {
		t.Fatalf("CountProducts: %v", err)
	}
	if n != 2 {
		t.Errorf("cached products = %d, want 2", n)
	}
	if got := o.LastSync(ctx); !got.Equal(now) {
		t.Errorf("LastSync = %v, want %v", got, now)
	}
}

func TestRefreshFailureLeavesStampUnset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := &fakeFetcher{err: errors.New("source offline")}
	o, _ := newTestOrchestrator(t, f, 30)

	if err := o.Refresh(ctx); err == nil {
		t.Fatal("expected Refresh error")
	}
	if !o.LastSync(ctx).IsZero() {
		t.Error("failed refresh must not stamp last_sync")
	}
}

func TestAutoSyncStaleness(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("never synced triggers refresh", func(t *testing.T) {
		t.Parallel()
		f := &fakeFetcher{}
		o, _ := newTestOrchestrator(t, f, 30)

		o.AutoSync(ctx)
		if f.calls != 1 {
			t.Errorf("fetch calls = %d, want 1", f.calls)
		}
	})

	t.Run("fresh stamp skips refresh", func(t *testing.T) {
		t.Parallel()
		f := &fakeFetcher{}
		o, _ := newTestOrchestrator(t, f, 30)
		now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
		o.now = func() time.Time { return now }

		if err := o.Refresh(ctx); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		f.calls = 0

		o.now = func() time.Time { return now.Add(10 * time.Minute) }
		o.AutoSync(ctx)
		if f.calls != 0 {
			t.Errorf("fetch calls = %d, want 0 within the interval", f.calls)
		}
	})

	t.Run("elapsed interval triggers refresh", func(t *testing.T) {
		t.Parallel()
		f := &fakeFetcher{}
		o, _ := newTestOrchestrator(t, f, 30)
		now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
		o.now = func() time.Time { return now }

		if err := o.Refresh(ctx); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		f.calls = 0

		o.now = func() time.Time { return now.Add(31 * time.Minute) }
		o.AutoSync(ctx)
		if f.calls != 1 {
			t.Errorf("fetch calls = %d, want 1 after the interval elapsed", f.calls)
		}
	})

	t.Run("interval zero always refreshes", func(t *testing.T) {
		t.Parallel()
		f := &fakeFetcher{}
		o, _ := newTestOrchestrator(t, f, 0)

		o.AutoSync(ctx)
		o.AutoSync(ctx)
		if f.calls != 2 {
			t.Errorf("fetch calls = %d, want 2", f.calls)
		}
	})

	t.Run("unparseable stamp counts as stale", func(t *testing.T) {
		t.Parallel()
		f := &fakeFetcher{}
		o, store := newTestOrchestrator(t, f, 30)
		if err := store.SetMeta(ctx, "last_sync", "not-a-timestamp"); err != nil {
			t.Fatalf("SetMeta: %v", err)
		}

		o.AutoSync(ctx)
		if f.calls != 1 {
			t.Errorf("fetch calls = %d, want 1", f.calls)
		}
	})
}

func TestAutoSyncSwallowsRefreshErrors(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{err: errors.New("source offline")}
	o, _ := newTestOrchestrator(t, f, 0)

	// Must not panic or propagate; the caller is a live search request.
	o.AutoSync(context.Background())
	if f.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls)
	}
}
