// Package autosync keeps the local product mirror fresh: it refreshes the
// cache from the source when the last successful sync is older than the
// configured interval, and optionally runs the same check on a timer.
package autosync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"catalogo/internal/cache"
	"catalogo/internal/catalog"
	"catalogo/internal/metrics"
)

const metaLastSync = "last_sync"

// SnapshotFetcher produces the bulk catalog snapshot to mirror.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, limit int) ([]catalog.Product, error)
}

// Orchestrator decides when the mirror is stale and refreshes it.
type Orchestrator struct {
	store           *cache.Store
	fetcher         SnapshotFetcher
	intervalMinutes int
	snapshotLimit   int
	log             zerolog.Logger

	cron    *cron.Cron
	running atomic.Bool

	now func() time.Time
}

// New builds an orchestrator. intervalMinutes 0 means "refresh on every
// check"; snapshotLimit bounds the bulk fetch.
func New(store *cache.Store, fetcher SnapshotFetcher, intervalMinutes, snapshotLimit int, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:           store,
		fetcher:         fetcher,
		intervalMinutes: intervalMinutes,
		snapshotLimit:   snapshotLimit,
		log:             log,
		now:             time.Now,
	}
}

// AutoSync refreshes the mirror when stale. Failures are logged, never
// returned: a search request that triggered the check must still be served
// from whatever the cache holds.
func (o *Orchestrator) AutoSync(ctx context.Context) {
	if !o.stale(ctx) {
		return
	}
	if !o.running.CompareAndSwap(false, true) {
		return
	}
	defer o.running.Store(false)

	if err := o.Refresh(ctx); err != nil {
		o.log.Warn().Err(err).Msg("auto sync failed; serving stale cache")
	}
}

// stale reports whether a refresh is due. A missing or unparseable
// last_sync stamp counts as stale.
func (o *Orchestrator) stale(ctx context.Context) bool {
	if o.intervalMinutes <= 0 {
		return true
	}
	raw, err := o.store.GetMeta(ctx, metaLastSync)
	if err != nil || raw == "" {
		return true
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return true
	}
	return o.now().Sub(last) >= time.Duration(o.intervalMinutes)*time.Minute
}

// Refresh unconditionally pulls a fresh snapshot into the mirror and stamps
// the sync time. The stamp is only written after a successful upsert.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	start := o.now()

	snapshot, err := o.fetcher.FetchSnapshot(ctx, o.snapshotLimit)
	if err != nil {
		metrics.IncCounter("sync.failed", 1)
		return fmt.Errorf("refresh: %w", err)
	}

	rows := make([]cache.Product, 0, len(snapshot))
	for _, p := range snapshot {
		rows = append(rows, cache.Product{Codigo: p.Codigo, Descricao: p.Descricao})
	}
	if err := o.store.UpsertProducts(ctx, rows); err != nil {
		metrics.IncCounter("sync.failed", 1)
		return fmt.Errorf("refresh: %w", err)
	}
	if err := o.store.SetMeta(ctx, metaLastSync, o.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	metrics.IncCounter("sync.completed", 1)
	metrics.IncCounter("sync.rows", float64(len(rows)))
	metrics.ObserveDuration("sync.duration", o.now().Sub(start))
	o.log.Info().Int("products", len(rows)).Msg("catalog mirror refreshed")
	return nil
}

// LastSync returns the recorded sync time, zero when never synced.
func (o *Orchestrator) LastSync(ctx context.Context) time.Time {
	raw, err := o.store.GetMeta(ctx, metaLastSync)
	if err != nil || raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Start launches the periodic background check. A non-positive interval
// disables the timer (per-request AutoSync still applies).
func (o *Orchestrator) Start(ctx context.Context) {
	if o.intervalMinutes <= 0 {
		return
	}
	o.cron = cron.New()
	spec := fmt.Sprintf("@every %dm", o.intervalMinutes)
	if _, err := o.cron.AddFunc(spec, func() { o.AutoSync(ctx) }); err != nil {
		o.log.Error().Err(err).Str("spec", spec).Msg("could not schedule sync timer")
		return
	}
	o.cron.Start()
	o.log.Info().Str("spec", spec).Msg("sync timer started")
}

// Stop halts the timer and waits for an in-flight run to finish.
func (o *Orchestrator) Stop() {
	if o.cron == nil {
		return
	}
	<-o.cron.Stop().Done()
}
