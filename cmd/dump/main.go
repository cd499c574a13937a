// Command dump prints rows of one source table, for ad hoc inspection of a
// customer's database.
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
		table   string
		cols    string
		where   string
		limit   int
	)
	flag.StringVar(&cfgPath, "config", "catalogo.toml", "configuration file path")
	flag.StringVar(&table, "table", "", "table to dump (required)")
	flag.StringVar(&cols, "cols", "*", "comma-separated column list")
	flag.StringVar(&where, "where", "", "optional WHERE clause (raw SQL, no parameters)")
	flag.IntVar(&limit, "limit", 20, "maximum rows")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if strings.TrimSpace(table) == "" {
		log.Fatal().Msg("-table is required")
	}

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

	prefix, suffix := src.Dialect().SelectLimit(limit)
	q := fmt.Sprintf("SELECT %s%s FROM %s", prefix, cols, table)
	if strings.TrimSpace(where) != "" {
		q += " WHERE " + where
	}
	q += suffix

	names, rows, err := src.Query(ctx, q)
	if err != nil {
		log.Fatal().Err(err).Str("query", q).Msg("query failed")
	}

	fmt.Println(strings.Join(names, " | "))
	for _, r := range rows {
		parts := make([]string, len(r))
		for i, v := range r {
			if v == nil {
				parts[i] = "NULL"
				continue
			}
			parts[i] = strings.TrimSpace(fmt.Sprint(v))
		}
		fmt.Println(strings.Join(parts, " | "))
	}
	fmt.Fprintf(os.Stderr, "%d linha(s)\n", len(rows))
}
