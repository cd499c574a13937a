package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"catalogo/internal/cache"
	"catalogo/internal/metrics"
	"catalogo/internal/search"
)

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error().Err(err).Str("template", name).Msg("template render failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.autoSync(r.Context())
	s.render(w, "index.html", nil)
}

type resultsPage struct {
	Produto string
	Veiculo string
	Detalhe string
	Results search.Result
	Err     string
}

func (s *Server) handleSearchHTML(w http.ResponseWriter, r *http.Request) {
	s.autoSync(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "formulário inválido", http.StatusBadRequest)
		return
	}
	page := resultsPage{
		Produto: r.PostFormValue("produto"),
		Veiculo: r.PostFormValue("veiculo"),
		Detalhe: r.PostFormValue("detalhe"),
	}

	start := time.Now()
	res, err := s.svc.Search(r.Context(), page.Produto, page.Veiculo, page.Detalhe)
	metrics.ObserveDuration("search.duration", time.Since(start), "path:html")
	if err != nil {
		s.log.Error().Err(err).Msg("search failed")
		page.Err = "A busca falhou. Verifique a conexão com o banco e tente novamente."
	}
	metrics.IncCounter("search.total", 1, "path:html")

	page.Results = res
	s.render(w, "results.html", page)
}

func (s *Server) handleSearchJSON(w http.ResponseWriter, r *http.Request) {
	s.autoSync(r.Context())
	q := r.URL.Query()

	start := time.Now()
	res, err := s.svc.Search(r.Context(), q.Get("produto"), q.Get("veiculo"), q.Get("detalhe"))
	metrics.ObserveDuration("search.duration", time.Since(start), "path:api")
	if err != nil {
		s.log.Error().Err(err).Msg("search failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	metrics.IncCounter("search.total", 1, "path:api")
	writeJSON(w, http.StatusOK, res)
}

type healthResponse struct {
	SourceOK       bool   `json:"source_ok"`
	LastSync       string `json:"last_sync,omitempty"`
	CachedProducts int    `json:"cached_products"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h := healthResponse{}

	if s.src != nil {
		h.SourceOK = s.src.Ping(ctx) == nil
	}
	if s.sync != nil {
		if t := s.sync.LastSync(ctx); !t.IsZero() {
			h.LastSync = t.Format(time.RFC3339)
		}
	}
	if n, err := s.store.CountProducts(ctx); err == nil {
		h.CachedProducts = n
	}
	writeJSON(w, http.StatusOK, h)
}

type produtoSuggestion struct {
	Codigo    string `json:"codigo"`
	Descricao string `json:"descricao"`
}

func (s *Server) handleSuggestProduto(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, []produtoSuggestion{})
		return
	}
	prods, err := s.store.SearchProducts(r.Context(), q, 20)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]produtoSuggestion, 0, len(prods))
	for _, p := range prods {
		out = append(out, produtoSuggestion{Codigo: p.Codigo, Descricao: p.Descricao})
	}
	writeJSON(w, http.StatusOK, out)
}

type veiculoSuggestion struct {
	Marca     string `json:"marca"`
	Modelo    string `json:"modelo"`
	AnoInicio int    `json:"ano_inicio"`
	AnoFim    int    `json:"ano_fim"`
	Motor     string `json:"motor"`
}

func (s *Server) handleSuggestVeiculo(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.store.SuggestVehicles(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]veiculoSuggestion, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, veiculoSuggestion{
			Marca: v.Marca, Modelo: v.Modelo,
			AnoInicio: v.AnoInicio, AnoFim: v.AnoFim, Motor: v.Motor,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type adminPage struct {
	Vehicles []cache.Vehicle
	Err      string
}

func (s *Server) handleAdminAplicacoes(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.store.ListVehicles(r.Context())
	page := adminPage{Vehicles: vehicles}
	if err != nil {
		page.Err = err.Error()
	}
	s.render(w, "admin_aplicacoes.html", page)
}

func (s *Server) handleAdminAddAplicacao(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "formulário inválido", http.StatusBadRequest)
		return
	}

	codigo := strings.TrimSpace(r.PostFormValue("codigo_produto"))
	anoInicio, _ := strconv.Atoi(r.PostFormValue("ano_inicio"))
	anoFim, _ := strconv.Atoi(r.PostFormValue("ano_fim"))
	v := cache.Vehicle{
		Marca:     r.PostFormValue("marca"),
		Modelo:    r.PostFormValue("modelo"),
		AnoInicio: anoInicio,
		AnoFim:    anoFim,
		Motor:     r.PostFormValue("motor"),
	}

	id, err := s.store.UpsertVehicle(r.Context(), v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.AddApplication(r.Context(), codigo, id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/admin/aplicacoes", http.StatusSeeOther)
}
