package catalog

import "strings"

// Role is a canonical semantic meaning a column of the product table can
// carry. Roles codigo and descricao are mandatory for a mapping to be
// usable; all others render as typed NULLs when absent.
type Role string

const (
	RoleCodigo     Role = "codigo"
	RoleDescricao  Role = "descricao"
	RoleBarras     Role = "barras"
	RolePreco      Role = "preco"
	RoleEstoque    Role = "estoque"
	RoleFornecedor Role = "fornecedor"
	RoleMarca      Role = "marca"
	RoleGrupo      Role = "grupo"
	RoleSubgrupo   Role = "subgrupo"
)

// extraRoles are the sparse enrichment roles carried through batch-attribute
// lookups when the discovered table happens to have them.
var extraRoles = []Role{RoleFornecedor, RoleMarca, RoleGrupo, RoleSubgrupo}

// roleCandidates lists, per role, the column names seen across legacy ERP
// bases in order of preference. Resolution is first-match-wins; order here
// is a behavioral contract, not cosmetics.
var roleCandidates = map[Role][]string{
	RoleCodigo:     {"CODPRODUTO", "CODIGO", "COD", "IDPRODUTO", "ID", "C_PRODUTO"},
	RoleDescricao:  {"DESCRICAO", "DESCRICAOAPLICACAO", "PRODUTO", "NOME", "DESCR", "DESCRI"},
	RoleBarras:     {"BARRAS", "CODBARRAS", "CODIGOBARRAS", "EAN", "GTIN"},
	RolePreco:      {"PRECO", "PRECOVENDA", "VALOR", "PRECO1", "VLRVENDA"},
	RoleEstoque:    {"ESTOQUE", "SALDO", "QTDESTOQUE", "QTD", "QTDE", "QUANTIDADE", "QTD_TOTAL", "QTD_DISPONIVEL", "QTESTOQUE"},
	RoleFornecedor: {"FORNECEDOR", "NOMEFORNECEDOR", "CODFORNECEDOR", "FORN"},
	RoleMarca:      {"MARCA", "FABRICANTE"},
	RoleGrupo:      {"GRUPO", "CODGRUPO", "SECAO"},
	RoleSubgrupo:   {"SUBGRUPO", "CODSUBGRUPO"},
}

// ColumnMapping maps roles to actual column names of one table.
// Built once per table; treated as immutable after creation.
type ColumnMapping map[Role]string

// MapColumns resolves each role to the first candidate name present in
// columns (case-insensitive exact match). No fuzzy or partial matching.
// Pure and deterministic; the caller decides which roles are mandatory.
func MapColumns(columns []string) ColumnMapping {
	byUpper := make(map[string]string, len(columns))
	for _, c := range columns {
		u := strings.ToUpper(strings.TrimSpace(c))
		if _, seen := byUpper[u]; !seen {
			byUpper[u] = strings.TrimSpace(c)
		}
	}

	m := make(ColumnMapping)
	for role, cands := range roleCandidates {
		for _, cand := range cands {
			if actual, ok := byUpper[strings.ToUpper(cand)]; ok {
				m[role] = actual
				break
			}
		}
	}
	return m
}

// Valid reports whether the mandatory roles are both mapped.
func (m ColumnMapping) Valid() bool {
	return m[RoleCodigo] != "" && m[RoleDescricao] != ""
}
