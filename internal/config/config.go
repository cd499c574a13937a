// Package config loads the application configuration from a TOML file with
// environment-variable overrides for the connection secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"catalogo/internal/catalog"
	"catalogo/internal/source"
)

// Config is the full application configuration.
type Config struct {
	Source   Source   `toml:"source"`
	Override Override `toml:"override"`
	App      App      `toml:"app"`
	Metrics  Metrics  `toml:"metrics"`
}

// Source describes the legacy database connection.
type Source struct {
	Kind     string `toml:"kind"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Charset  string `toml:"charset"`
	Role     string `toml:"role"`
}

// Override optionally pins the product table and its role columns instead
// of heuristic discovery, and can replace the generated stock/price query.
type Override struct {
	Table         string `toml:"table"`
	ColCodigo     string `toml:"col_codigo"`
	ColDescricao  string `toml:"col_descricao"`
	ColBarras     string `toml:"col_barras"`
	ColPreco      string `toml:"col_preco"`
	ColEstoque    string `toml:"col_estoque"`
	ColFornecedor string `toml:"col_fornecedor"`
	ColMarca      string `toml:"col_marca"`
	ColGrupo      string `toml:"col_grupo"`
	ColSubgrupo   string `toml:"col_subgrupo"`
	StockPriceSQL string `toml:"stock_price_sql"`
}

// App holds the serving parameters.
type App struct {
	HTTPAddr        string `toml:"http_addr"`
	CachePath       string `toml:"cache_path"`
	AutosyncMinutes int    `toml:"autosync_minutes"`
	SnapshotLimit   int    `toml:"snapshot_limit"`
	OpenBrowser     bool   `toml:"open_browser"`
}

// Metrics selects the metrics backend ("none" or "datadog").
type Metrics struct {
	Backend string `toml:"backend"`
	Tags    string `toml:"tags"`
}

// Load reads path (optional; "" loads defaults only), applies environment
// overrides and validates. The source database path is the one setting the
// application cannot run without.
func Load(path string) (Config, error) {
	cfg := Config{
		Source: Source{
			Kind:    "firebird",
			Host:    "localhost",
			Port:    3050,
			User:    "SYSDBA",
			Charset: "WIN1252",
		},
		App: App{
			HTTPAddr:        "127.0.0.1:8000",
			CachePath:       "catalogo.db",
			AutosyncMinutes: 30,
			SnapshotLimit:   5000,
			OpenBrowser:     true,
		},
		Metrics: Metrics{Backend: "none"},
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)

	if strings.TrimSpace(cfg.Source.Database) == "" {
		return Config{}, fmt.Errorf("load config: source.database is required (or set SOURCE_DATABASE)")
	}
	return cfg, nil
}

// applyEnv lets deployment scripts override the connection settings without
// editing the config file. Only the source section is env-addressable.
func applyEnv(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setStr(&cfg.Source.Kind, "SOURCE_KIND")
	setStr(&cfg.Source.Host, "SOURCE_HOST")
	setStr(&cfg.Source.Database, "SOURCE_DATABASE")
	setStr(&cfg.Source.User, "SOURCE_USER")
	setStr(&cfg.Source.Password, "SOURCE_PASSWORD")
	setStr(&cfg.Source.Charset, "SOURCE_CHARSET")
	setStr(&cfg.Source.Role, "SOURCE_ROLE")

	if v := strings.TrimSpace(os.Getenv("SOURCE_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Source.Port = p
		}
	}
}

// SourceConfig converts the source section into the connection config.
func (c Config) SourceConfig() source.Config {
	return source.Config{
		Kind:     c.Source.Kind,
		Host:     c.Source.Host,
		Port:     c.Source.Port,
		Database: c.Source.Database,
		User:     c.Source.User,
		Password: c.Source.Password,
		Charset:  c.Source.Charset,
		Role:     c.Source.Role,
	}
}

// CatalogOptions converts the override section into catalog client options.
func (c Config) CatalogOptions() catalog.Options {
	cols := map[catalog.Role]string{
		catalog.RoleCodigo:     c.Override.ColCodigo,
		catalog.RoleDescricao:  c.Override.ColDescricao,
		catalog.RoleBarras:     c.Override.ColBarras,
		catalog.RolePreco:      c.Override.ColPreco,
		catalog.RoleEstoque:    c.Override.ColEstoque,
		catalog.RoleFornecedor: c.Override.ColFornecedor,
		catalog.RoleMarca:      c.Override.ColMarca,
		catalog.RoleGrupo:      c.Override.ColGrupo,
		catalog.RoleSubgrupo:   c.Override.ColSubgrupo,
	}
	for role, col := range cols {
		if strings.TrimSpace(col) == "" {
			delete(cols, role)
		}
	}
	return catalog.Options{
		OverrideTable:   strings.TrimSpace(c.Override.Table),
		OverrideColumns: cols,
		StockPriceSQL:   c.Override.StockPriceSQL,
	}
}
