// Package web serves the staff-facing UI and the JSON API over chi. Every
// page and API request first gives the sync orchestrator a chance to
// refresh a stale catalog mirror.
package web

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"catalogo/internal/autosync"
	"catalogo/internal/cache"
	"catalogo/internal/search"
	"catalogo/internal/source"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Server wires the HTTP surface of the catalog application.
type Server struct {
	Router *chi.Mux

	svc   *search.Service
	store *cache.Store
	sync  *autosync.Orchestrator
	src   source.Conn
	log   zerolog.Logger

	tmpl *template.Template
}

// NewServer builds the server and mounts all handlers.
func NewServer(svc *search.Service, store *cache.Store, sync *autosync.Orchestrator, src source.Conn, log zerolog.Logger) (*Server, error) {
	funcs := template.FuncMap{
		"qty": func(p *float64) string {
			if p == nil {
				return "—"
			}
			return strconv.FormatFloat(*p, 'f', 0, 64)
		},
		"money": func(p *float64) string {
			if p == nil {
				return "—"
			}
			return "R$ " + strconv.FormatFloat(*p, 'f', 2, 64)
		},
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		Router: chi.NewRouter(),
		svc:    svc,
		store:  store,
		sync:   sync,
		src:    src,
		log:    log,
		tmpl:   tmpl,
	}
	s.mountHandlers()
	return s, nil
}

func (s *Server) mountHandlers() {
	s.Router.Use(s.requestLogger)
	s.Router.Use(s.panicHandler)

	s.Router.Get("/", s.handleIndex)
	s.Router.Post("/search", s.handleSearchHTML)

	s.Router.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearchJSON)
		r.Get("/health", s.handleHealth)
		r.Get("/suggest/produto", s.handleSuggestProduto)
		r.Get("/suggest/veiculo", s.handleSuggestVeiculo)
	})

	s.Router.Route("/admin", func(r chi.Router) {
		r.Get("/aplicacoes", s.handleAdminAplicacoes)
		r.Post("/aplicacoes/add", s.handleAdminAddAplicacao)
	})

	static, _ := fs.Sub(staticFS, "static")
	s.Router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
}

// autoSync runs the per-request staleness check the way the page handlers
// expect: in-line, best-effort, never failing the request.
func (s *Server) autoSync(ctx context.Context) {
	if s.sync != nil {
		s.sync.AutoSync(ctx)
	}
}
