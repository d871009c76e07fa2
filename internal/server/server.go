// Package server exposes the admin HTTP API: health, reconciliation status,
// and endpoints to trigger runs out of schedule.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"nflpickem/reconciler/internal/feed"
	"nflpickem/reconciler/internal/models"
	"nflpickem/reconciler/internal/reconcile"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Reconciler is the pipeline surface the admin API drives.
type Reconciler interface {
	Status(ctx context.Context) (*reconcile.Status, error)
	ReconcileAll(ctx context.Context) (*reconcile.Stats, error)
	ReconcileWeek(ctx context.Context, week int) (*reconcile.Stats, error)
	SyncScores(ctx context.Context) (*reconcile.ScoreStats, error)
	CleanupStaleLines(ctx context.Context) (int64, error)
}

// HealthChecker reports storage health for the health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server is the admin HTTP server.
type Server struct {
	pipeline Reconciler
	db       HealthChecker
	httpSrv  *http.Server
}

// New creates the admin server listening on the given port.
func New(port int, pipeline Reconciler, db HealthChecker) *Server {
	s := &Server{
		pipeline: pipeline,
		db:       db,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/odds/status", s.handleStatus)
		r.Post("/odds/update", s.handleUpdateAll)
		r.Post("/odds/update/{week}", s.handleUpdateWeek)
		r.Post("/odds/cleanup", s.handleCleanup)
		r.Post("/scores/fetch", s.handleFetchScores)
	})

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	return s
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpSrv.Addr).Msg("Admin server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"status": "ok",
	}
	if err := s.db.Health(r.Context()); err != nil {
		payload["status"] = "degraded"
		payload["database"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, payload)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.pipeline.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.ReconcileAll(r.Context())
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUpdateWeek(w http.ResponseWriter, r *http.Request) {
	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil || week < models.WeekPreseason || week > models.WeekPostseason {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid week %q", chi.URLParam(r, "week")))
		return
	}

	stats, err := s.pipeline.ReconcileWeek(r.Context(), week)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.pipeline.CleanupStaleLines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *Server) handleFetchScores(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.SyncScores(r.Context())
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeRunError maps pipeline failures to meaningful statuses: a missing
// API key is the caller's configuration problem, an in-flight run is a
// conflict, anything else is a server error.
func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feed.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, reconcile.ErrRunInProgress):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
