// Command search runs one dual search from the terminal, the same path the
// web UI uses, and prints the reconciled results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"catalogo/internal/autosync"
	"catalogo/internal/cache"
	"catalogo/internal/catalog"
	"catalogo/internal/config"
	"catalogo/internal/search"
	"catalogo/internal/source"

	_ "catalogo/internal/source/all"
)

func main() {
	var (
		cfgPath string
		produto string
		veiculo string
		detalhe string
		noSync  bool
	)
	flag.StringVar(&cfgPath, "config", "catalogo.toml", "configuration file path")
	flag.StringVar(&produto, "produto", "", "product search term")
	flag.StringVar(&veiculo, "veiculo", "", "vehicle search term")
	flag.StringVar(&detalhe, "detalhe", "", "narrowing detail term")
	flag.BoolVar(&noSync, "no-sync", false, "skip the cache staleness check")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if produto == "" && veiculo == "" && detalhe == "" {
		log.Fatal().Msg("informe -produto, -veiculo ou -detalhe")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

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

	if !noSync {
		autosync.New(store, client, cfg.App.AutosyncMinutes, cfg.App.SnapshotLimit, log).AutoSync(ctx)
	}

	res, err := search.NewService(store, client, log).Search(ctx, produto, veiculo, detalhe)
	if err != nil {
		log.Fatal().Err(err).Msg("search failed")
	}

	if res.Count == 0 {
		fmt.Println("nenhum resultado")
		return
	}
	for _, it := range res.Items {
		line := fmt.Sprintf("%-12s %s", it.Codigo, it.Descricao)
		if it.Estoque != nil {
			line += fmt.Sprintf("  estoque=%.0f", *it.Estoque)
		}
		if it.Preco != nil {
			line += fmt.Sprintf("  preco=%.2f", *it.Preco)
		}
		fmt.Println(line)
	}
	fmt.Fprintf(os.Stderr, "%d item(ns)\n", res.Count)
}
