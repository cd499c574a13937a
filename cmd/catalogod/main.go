// Command catalogod runs the parts-catalog server: it mirrors the legacy
// product database into a local SQLite cache and serves the search UI and
// JSON API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"catalogo/internal/autosync"
	"catalogo/internal/cache"
	"catalogo/internal/catalog"
	"catalogo/internal/config"
	"catalogo/internal/metrics"
	"catalogo/internal/metrics/datadog"
	"catalogo/internal/search"
	"catalogo/internal/source"
	"catalogo/internal/web"

	// register all source backends with the source factory.
	_ "catalogo/internal/source/all"
)

func main() {
	var (
		cfgPath   string
		noBrowser bool
	)
	flag.StringVar(&cfgPath, "config", "catalogo.toml", "configuration file path")
	flag.BoolVar(&noBrowser, "no-browser", false, "do not open the browser on startup")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	// Metrics backend: config → env → none.
	backendName := cfg.Metrics.Backend
	if backendName == "" || backendName == "none" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		b := datadog.NewBackend(context.Background(), datadog.Options{
			Tags: datadog.ParseTagsCSV(cfg.Metrics.Tags),
		})
		metrics.SetBackend(b)
		defer func() { _ = b.Close() }()
		log.Info().Msg("datadog metrics enabled")
	case "", "none":
	default:
		log.Warn().Str("backend", backendName).Msg("unknown metrics backend; metrics disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := source.Open(ctx, cfg.SourceConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open source database")
	}
	defer src.Close()

	store, err := cache.Open(cfg.App.CachePath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open local cache")
	}
	defer store.Close()

	opts := cfg.CatalogOptions()
	opts.Logger = log
	client := catalog.NewClient(src, opts)

	orch := autosync.New(store, client, cfg.App.AutosyncMinutes, cfg.App.SnapshotLimit, log)
	orch.AutoSync(ctx)
	orch.Start(ctx)
	defer orch.Stop()

	svc := search.NewService(store, client, log)
	srv, err := web.NewServer(svc, store, orch, src, log)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot build server")
	}

	httpSrv := &http.Server{Addr: cfg.App.HTTPAddr, Handler: srv.Router}
	go func() {
		log.Info().Str("addr", cfg.App.HTTPAddr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	if cfg.App.OpenBrowser && !noBrowser {
		go openBrowser(log, "http://"+cfg.App.HTTPAddr)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete")
	}
}

// openBrowser points the operator's default browser at the UI shortly
// after startup. Best-effort; headless hosts just log and move on.
func openBrowser(log zerolog.Logger, url string) {
	time.Sleep(1500 * time.Millisecond)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Debug().Err(err).Msg("could not open browser")
		fmt.Fprintf(os.Stderr, "abra %s no navegador\n", url)
	}
}
