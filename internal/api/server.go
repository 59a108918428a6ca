package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/bookmarkd/internal/config"
	"github.com/dgallion1/bookmarkd/internal/pipeline"
	"github.com/dgallion1/bookmarkd/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for bookmarkd.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	registry     *session.Registry
	hub          *Hub
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, hub *Hub, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		registry:     orch.Registry(),
		hub:          hub,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/documents", s.handleUpload)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/stats/resolve", s.handleResolveStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Route("/api/documents/{docID}", func(r chi.Router) {
			r.Get("/", s.handleGetDocument)
			r.Delete("/", s.handleDeleteDocument)
			r.Put("/outline", s.handlePutOutline)
			r.Get("/index", s.handleIndex)
			r.Get("/resolve", s.handleResolve)
			r.Post("/annotations", s.handleAnnotations)
			r.Get("/report", s.handleReport)
			r.Get("/events", s.handleEvents)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
