// Command probe inspects the source database and reports which tables
// qualify as product catalogs, which one discovery would pick, and a few
// sample rows from it. Use it when a deployment's search comes back empty.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"catalogo/internal/catalog"
	"catalogo/internal/config"
	"catalogo/internal/source"

	_ "catalogo/internal/source/all"
)

func main() {
	var (
		cfgPath    string
		candidates int
		lenient    bool
	)
	flag.StringVar(&cfgPath, "config", "catalogo.toml", "configuration file path")
	flag.IntVar(&candidates, "candidates", 10, "how many candidate tables to report")
	flag.BoolVar(&lenient, "lenient", false, "include tables whose names look like movement documents")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	src, err := source.Open(ctx, cfg.SourceConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open source database")
	}
	defer src.Close()

	opts := cfg.CatalogOptions()
	opts.Logger = log
	client := catalog.NewClient(src, opts)

	sigs, err := client.DiscoverCandidates(ctx, candidates, lenient)
	if err != nil {
		log.Fatal().Err(err).Msg("candidate discovery failed")
	}
	if len(sigs) == 0 {
		fmt.Println("nenhuma tabela de produtos encontrada")
		return
	}

	fmt.Printf("%d tabela(s) candidatas:\n\n", len(sigs))
	for i, sig := range sigs {
		fmt.Printf("%2d. %s\n", i+1, sig.Table)
		for _, role := range []catalog.Role{
			catalog.RoleCodigo, catalog.RoleDescricao, catalog.RoleBarras,
			catalog.RolePreco, catalog.RoleEstoque,
		} {
			if col := sig.Mapping[role]; col != "" {
				fmt.Printf("      %-10s -> %s\n", role, col)
			}
		}
	}

	sig, err := client.Discover(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("discovery failed")
	}
	if sig == nil {
		return
	}
	fmt.Printf("\nescolhida: %s\n\n", sig.Table)

	sample, err := client.FetchSnapshot(ctx, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("sample fetch failed")
	}
	for _, p := range sample {
		line := fmt.Sprintf("%s  %s", p.Codigo, p.Descricao)
		if p.Barras != "" {
			line += "  [" + p.Barras + "]"
		}
		fmt.Println(strings.TrimSpace(line))
	}
}
