// Package cache persists the local mirror of the product catalog and the
// manually curated vehicle-application data in a SQLite file. It is the
// fast path for searches; the legacy source is only consulted when the
// mirror has no answer or for live stock/price enrichment.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS produtos_cache (
	codigo    TEXT PRIMARY KEY,
	descricao TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_produtos_descricao ON produtos_cache(descricao);

CREATE TABLE IF NOT EXISTS veiculos (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	marca      TEXT NOT NULL,
	modelo     TEXT NOT NULL,
	ano_inicio INTEGER NOT NULL DEFAULT 0,
	ano_fim    INTEGER NOT NULL DEFAULT 0,
	motor      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_veiculos_marca_modelo ON veiculos(marca, modelo);

CREATE TABLE IF NOT EXISTS aplicacoes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	codigo_produto TEXT NOT NULL,
	veiculo_id     INTEGER NOT NULL REFERENCES veiculos(id)
);
CREATE INDEX IF NOT EXISTS idx_aplicacoes_produto ON aplicacoes(codigo_produto);
CREATE INDEX IF NOT EXISTS idx_aplicacoes_veiculo ON aplicacoes(veiculo_id);

CREATE TABLE IF NOT EXISTS meta (
	k TEXT PRIMARY KEY,
	v TEXT NOT NULL
);
`

// Product is one cached catalog row: just enough to search by.
type Product struct {
	Codigo    string
	Descricao string
}

// Vehicle is one curated vehicle record.
type Vehicle struct {
	ID        int64
	Marca     string
	Modelo    string
	AnoInicio int
	AnoFim    int
	Motor     string
}

// ApplicationHit is one product↔vehicle link joined with its vehicle.
type ApplicationHit struct {
	CodigoProduto string
	Vehicle       Vehicle
}

// Store wraps the SQLite mirror database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the mirror database at path and ensures
// the schema. WAL keeps the web handlers readable while a sync writes.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpsertProducts replaces the description of existing codes and inserts new
// ones, in a single transaction. Blank codes are skipped.
func (s *Store) UpsertProducts(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert products: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO produtos_cache (codigo, descricao) VALUES (?, ?)
		ON CONFLICT(codigo) DO UPDATE SET descricao = excluded.descricao`)
	if err != nil {
		return fmt.Errorf("upsert products: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		codigo := strings.TrimSpace(p.Codigo)
		if codigo == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, codigo, strings.TrimSpace(p.Descricao)); err != nil {
			return fmt.Errorf("upsert product %s: %w", codigo, err)
		}
	}
	return tx.Commit()
}

// SearchProducts matches every whitespace-separated word of term as a
// substring of either description or code.
func (s *Store) SearchProducts(ctx context.Context, term string, limit int) ([]Product, error) {
	terms := strings.Fields(term)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 500
	}
	var conds []string
	var args []any
	for _, t := range terms {
		conds = append(conds, "(descricao LIKE ? COLLATE NOCASE OR codigo LIKE ? COLLATE NOCASE)")
		pat := "%" + t + "%"
		args = append(args, pat, pat)
	}
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT codigo, descricao FROM produtos_cache
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY descricao LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// ProductsByCodes returns the cached rows for the given codes, keyed by code.
func (s *Store) ProductsByCodes(ctx context.Context, codes []string) (map[string]Product, error) {
	out := make(map[string]Product, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	phs := make([]string, len(codes))
	args := make([]any, len(codes))
	for i, c := range codes {
		phs[i] = "?"
		args[i] = c
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT codigo, descricao FROM produtos_cache WHERE codigo IN ("+strings.Join(phs, ",")+")",
		args...)
	if err != nil {
		return nil, fmt.Errorf("products by codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.Codigo, &p.Descricao); err != nil {
			return nil, fmt.Errorf("products by codes: %w", err)
		}
		out[p.Codigo] = p
	}
	return out, rows.Err()
}

// normalizeVehicle trims text fields and clamps negative years to zero,
// the canonical form both lookup and insert use so duplicates cannot arise
// from formatting differences.
func normalizeVehicle(v Vehicle) Vehicle {
	v.Marca = strings.TrimSpace(v.Marca)
	v.Modelo = strings.TrimSpace(v.Modelo)
	v.Motor = strings.TrimSpace(v.Motor)
	if v.AnoInicio < 0 {
		v.AnoInicio = 0
	}
	if v.AnoFim < 0 {
		v.AnoFim = 0
	}
	return v
}

// UpsertVehicle returns the id of the vehicle matching all five identity
// fields, inserting it first if absent. Idempotent.
func (s *Store) UpsertVehicle(ctx context.Context, v Vehicle) (int64, error) {
	v = normalizeVehicle(v)
	if v.Marca == "" || v.Modelo == "" {
		return 0, fmt.Errorf("upsert vehicle: marca and modelo are required")
	}

	if id, err := s.findVehicleID(ctx, v); err != nil {
		return 0, err
	} else if id != 0 {
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO veiculos (marca, modelo, ano_inicio, ano_fim, motor)
		VALUES (?, ?, ?, ?, ?)`,
		v.Marca, v.Modelo, v.AnoInicio, v.AnoFim, v.Motor)
	if err != nil {
		return 0, fmt.Errorf("insert vehicle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert vehicle: %w", err)
	}
	return id, nil
}

func (s *Store) findVehicleID(ctx context.Context, v Vehicle) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM veiculos
		WHERE marca = ? COLLATE NOCASE AND modelo = ? COLLATE NOCASE
		  AND ano_inicio = ? AND ano_fim = ? AND motor = ? COLLATE NOCASE`,
		v.Marca, v.Modelo, v.AnoInicio, v.AnoFim, v.Motor).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find vehicle: %w", err)
	}
	return id, nil
}

// ListVehicles returns every curated vehicle, brand/model ordered.
func (s *Store) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, marca, modelo, ano_inicio, ano_fim, motor
		FROM veiculos ORDER BY marca, modelo, ano_inicio`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()
	return scanVehicles(rows)
}

// SuggestVehicles powers the vehicle autocomplete: every whitespace-separated
// term of q must match one of the five vehicle fields.
func (s *Store) SuggestVehicles(ctx context.Context, q string) ([]Vehicle, error) {
	terms := strings.Fields(q)
	if len(terms) == 0 {
		return nil, nil
	}

	where, args := vehicleTermsWhere(terms, "")
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, marca, modelo, ano_inicio, ano_fim, motor
		FROM veiculos WHERE `+where+`
		ORDER BY marca, modelo, ano_inicio LIMIT 50`, args...)
	if err != nil {
		return nil, fmt.Errorf("suggest vehicles: %w", err)
	}
	defer rows.Close()
	return scanVehicles(rows)
}

// vehicleTermsWhere builds the AND-of-terms condition shared by vehicle
// suggestion and application search. Text terms substring-match any of the
// five vehicle fields; a term that parses as a year additionally matches
// vehicles whose [ano_inicio, ano_fim] range covers it (an open range end
// is stored as 0).
func vehicleTermsWhere(terms []string, prefix string) (string, []any) {
	col := func(name string) string { return prefix + name }

	var conds []string
	var args []any
	for _, t := range terms {
		pat := "%" + t + "%"
		ors := []string{
			col("marca") + " LIKE ? COLLATE NOCASE",
			col("modelo") + " LIKE ? COLLATE NOCASE",
			col("motor") + " LIKE ? COLLATE NOCASE",
			"CAST(" + col("ano_inicio") + " AS TEXT) LIKE ?",
			"CAST(" + col("ano_fim") + " AS TEXT) LIKE ?",
		}
		args = append(args, pat, pat, pat, pat, pat)
		if year, err := strconv.Atoi(t); err == nil && year > 0 {
			ors = append(ors, "("+col("ano_inicio")+" <= ? AND ("+col("ano_fim")+" >= ? OR "+col("ano_fim")+" = 0))")
			args = append(args, year, year)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	return strings.Join(conds, " AND "), args
}

// AddApplication links a product code to a vehicle. Duplicate links are
// accepted silently; they do not change query results.
func (s *Store) AddApplication(ctx context.Context, codigoProduto string, veiculoID int64) error {
	codigoProduto = strings.TrimSpace(codigoProduto)
	if codigoProduto == "" || veiculoID == 0 {
		return fmt.Errorf("add application: codigo_produto and veiculo_id are required")
	}
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM aplicacoes WHERE codigo_produto = ? AND veiculo_id = ?",
		codigoProduto, veiculoID).Scan(&exists)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("add application: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO aplicacoes (codigo_produto, veiculo_id) VALUES (?, ?)",
		codigoProduto, veiculoID)
	if err != nil {
		return fmt.Errorf("add application: %w", err)
	}
	return nil
}

// SearchApplications matches q against the vehicle fields of linked vehicles
// (every term must match) and returns the product links.
func (s *Store) SearchApplications(ctx context.Context, q string) ([]ApplicationHit, error) {
	terms := strings.Fields(q)
	if len(terms) == 0 {
		return nil, nil
	}

	where, args := vehicleTermsWhere(terms, "v.")
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.codigo_produto, v.id, v.marca, v.modelo, v.ano_inicio, v.ano_fim, v.motor
		FROM aplicacoes a JOIN veiculos v ON v.id = a.veiculo_id
		WHERE `+where+`
		ORDER BY v.marca, v.modelo, a.codigo_produto LIMIT 500`, args...)
	if err != nil {
		return nil, fmt.Errorf("search applications: %w", err)
	}
	defer rows.Close()

	var out []ApplicationHit
	for rows.Next() {
		var h ApplicationHit
		if err := rows.Scan(&h.CodigoProduto, &h.Vehicle.ID, &h.Vehicle.Marca,
			&h.Vehicle.Modelo, &h.Vehicle.AnoInicio, &h.Vehicle.AnoFim, &h.Vehicle.Motor); err != nil {
			return nil, fmt.Errorf("search applications: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ApplicationsForProduct returns the vehicles a product code is linked to.
func (s *Store) ApplicationsForProduct(ctx context.Context, codigoProduto string) ([]Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.marca, v.modelo, v.ano_inicio, v.ano_fim, v.motor
		FROM aplicacoes a JOIN veiculos v ON v.id = a.veiculo_id
		WHERE a.codigo_produto = ?
		ORDER BY v.marca, v.modelo, v.ano_inicio`, strings.TrimSpace(codigoProduto))
	if err != nil {
		return nil, fmt.Errorf("applications for product: %w", err)
	}
	defer rows.Close()
	return scanVehicles(rows)
}

// GetMeta returns the value for k, or "" when unset.
func (s *Store) GetMeta(ctx context.Context, k string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT v FROM meta WHERE k = ?", k).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", k, err)
	}
	return v, nil
}

func (s *Store) SetMeta(ctx context.Context, k, v string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (k, v) VALUES (?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v`, k, v)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", k, err)
	}
	return nil
}

// CountProducts reports the cached catalog size, used by health reporting.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM produtos_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func scanProducts(rows *sql.Rows) ([]Product, error) {
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.Codigo, &p.Descricao); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanVehicles(rows *sql.Rows) ([]Vehicle, error) {
	var out []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.Marca, &v.Modelo, &v.AnoInicio, &v.AnoFim, &v.Motor); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
