// Package server is a read-only HTTP viewer for stored comparison runs.
package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/TobiSchelling/summaryqc/internal/database"
	"github.com/TobiSchelling/summaryqc/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

const (
	pageTTL      = 5 * time.Minute
	cleanupEvery = 10 * time.Minute
	runListLimit = 100
)

// Server is the HTTP server for browsing runs.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
	cache *cache.Cache
	log   *zap.Logger
}

// New creates a new Server. A nil logger discards logs.
func New(db *database.DB, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"percent": func(f *float64) string {
			if f == nil {
				return "-"
			}
			return fmt.Sprintf("%.2f", *f*100)
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of the base so that every page can
	// define "title" and "content".
	pageNames := []string{"index.html", "run.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		db:    db,
		pages: pages,
		mux:   http.NewServeMux(),
		cache: cache.New(pageTTL, cleanupEvery),
		log:   log,
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /runs/{id}", s.handleRun)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.ListRuns(runListLimit)
	if err != nil {
		s.log.Error("listing runs", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		s.log.Error("reading stats", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Runs":  runs,
		"Stats": stats,
	})
}

// runPage is everything the run template shows. Pages are cached by id and
// reused while the stored run keeps the same creation time and report.
type runPage struct {
	Run     *database.Run
	Scores  []database.VariantScore
	Changes []database.RowChange
	Defects []database.RowDefect
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.db.GetRun(id)
	if err != nil {
		s.log.Error("loading run", zap.String("run", id), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		s.cache.Delete(id)
		http.NotFound(w, r)
		return
	}
	if cached, ok := s.cache.Get(id); ok {
		if page := cached.(*runPage); sameRun(page.Run, run) {
			s.render(w, "run.html", page)
			return
		}
	}

	page, err := s.loadRun(run)
	if err != nil {
		s.log.Error("loading run", zap.String("run", id), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.cache.Set(id, page, cache.DefaultExpiration)
	s.render(w, "run.html", page)
}

func (s *Server) loadRun(run *database.Run) (*runPage, error) {
	page := &runPage{Run: run}
	var err error
	if page.Scores, err = s.db.GetVariantScores(run.ID); err != nil {
		return nil, err
	}
	if page.Changes, err = s.db.GetRowChanges(run.ID); err != nil {
		return nil, err
	}
	if page.Defects, err = s.db.GetRowDefects(run.ID); err != nil {
		return nil, err
	}
	return page, nil
}

func sameRun(a, b *database.Run) bool {
	return a.CreatedAt == b.CreatedAt && a.ReportMarkdown == b.ReportMarkdown
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.log.Error("template not found", zap.String("template", name))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.log.Error("rendering template", zap.String("template", name), zap.Error(err))
	}
}

func renderMarkdown(text string) template.HTML {
	html, err := report.RenderHTML(text)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(html) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int, log *zap.Logger) error {
	srv, err := New(db, log)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv.log.Info("server listening", zap.String("url", "http://"+addr))
	return http.ListenAndServe(addr, srv.Handler())
}
