// Command dboverview exports a markdown survey of the source database:
// every user table, its columns, and a short data sample. Handy for
// sizing up an unfamiliar ERP base before configuring the catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"catalogo/internal/config"
	"catalogo/internal/source"

	_ "catalogo/internal/source/all"
)

func main() {
	var (
		cfgPath string
		outPath string
		sample  int
	)
	flag.StringVar(&cfgPath, "config", "catalogo.toml", "configuration file path")
	flag.StringVar(&outPath, "out", "db_overview.md", "output markdown file")
	flag.IntVar(&sample, "sample", 5, "sample rows per table")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	src, err := source.Open(ctx, cfg.SourceConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open source database")
	}
	defer src.Close()

	f, err := os.Create(outPath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create output file")
	}
	defer f.Close()

	fmt.Fprintf(f, "# Database Overview\n\n")
	fmt.Fprintf(f, "- Kind: `%s`\n", cfg.Source.Kind)
	fmt.Fprintf(f, "- Database: `%s`\n\n", cfg.Source.Database)

	tables, err := src.ListTables(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot list tables")
	}

	for _, t := range tables {
		fmt.Fprintf(f, "## %s\n", t)

		cols, err := src.ListColumns(ctx, t)
		if err != nil {
			fmt.Fprintf(f, "(falha ao ler metadados: %v)\n\n", err)
			continue
		}
		for _, c := range cols {
			fmt.Fprintf(f, "- `%s`\n", c)
		}

		prefix, suffix := src.Dialect().SelectLimit(sample)
		q := fmt.Sprintf("SELECT %s%s FROM %s%s", prefix, strings.Join(cols, ", "), t, suffix)
		names, rows, err := src.Query(ctx, q)
		if err != nil {
			fmt.Fprintf(f, "\n(falha ao ler amostra: %v)\n\n", err)
			continue
		}
		if len(rows) == 0 {
			fmt.Fprintf(f, "\n(tabela vazia)\n\n")
			continue
		}

		fmt.Fprintf(f, "\n| %s |\n", strings.Join(names, " | "))
		seps := make([]string, len(names))
		for i := range seps {
			seps[i] = "---"
		}
		fmt.Fprintf(f, "| %s |\n", strings.Join(seps, " | "))
		for _, r := range rows {
			parts := make([]string, len(r))
			for i, v := range r {
				parts[i] = sanitize(v, 120)
			}
			fmt.Fprintf(f, "| %s |\n", strings.Join(parts, " | "))
		}
		fmt.Fprintln(f)
	}

	log.Info().Str("out", outPath).Int("tables", len(tables)).Msg("overview exported")
}

// sanitize renders one cell value markdown-safe: newlines escaped, pipes
// replaced, long values truncated.
func sanitize(v any, maxLen int) string {
	if v == nil {
		return ""
	}
	if b, ok := v.([]byte); ok {
		if len(b) > maxLen {
			return fmt.Sprintf("<BLOB %d bytes>", len(b))
		}
		v = string(b)
	}
	s := fmt.Sprint(v)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "|", `\|`)
	if r := []rune(s); len(r) > maxLen {
		s = string(r[:maxLen-1]) + "…"
	}
	return strings.TrimSpace(s)
}
