// Package web exposes the read-only monitoring JSON API: session
// status, cache analytics, and phase documentation. The dashboard UI
// itself is an external collaborator; this API feeds it.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/altowierigge/maestro/internal/cache"
	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/logging"
)

// Server serves the monitoring API.
type Server struct {
	store  *cache.Store
	docs   core.DocumentationCollaborator
	cost   cache.CostModel
	logger *logging.Logger
	addr   string
}

// New creates a monitoring server.
func New(addr string, store *cache.Store, docs core.DocumentationCollaborator, cost cache.CostModel, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		store:  store,
		docs:   docs,
		cost:   cost,
		logger: logger,
		addr:   addr,
	}
}

// Handler builds the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler)

	r.Get("/api/healthz", s.handleHealth)
	r.Get("/api/cache/stats", s.handleCacheStats)
	r.Get("/api/cache/entries", s.handleCacheEntries)
	r.Get("/api/sessions/{session}/docs", s.handleSessionDocs)
	r.Get("/api/sessions/{session}/plan", s.handleSessionPlan)
	return r
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("monitoring API listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Analytics(s.cost))
}

func (s *Server) handleCacheEntries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Entries())
}

func (s *Server) handleSessionDocs(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	docs, err := s.docs.PhaseDocs(r.Context(), session)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if docs == nil {
		docs = []core.PhaseDocumentation{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleSessionPlan(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	plan, err := s.docs.ArchitecturePlan(r.Context(), session)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if plan == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no architecture plan for session"})
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
