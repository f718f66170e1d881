package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/shooting-data-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusReporter reports pipeline readiness and the latest completed run.
type StatusReporter interface {
	CheckReadiness(ctx context.Context) error
	LastRun() *pipeline.RunResult
}

// Server exposes health, readiness, run status, and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	status     StatusReporter
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /statusz, and
// /metrics routes.
func NewServer(addr string, status StatusReporter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		status: status,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /statusz", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.status.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleStatus summarizes the latest run, including its failure counts, so an
// operator can see skipped records without opening the stats database.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	run := s.status.LastRun()
	if run == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no completed runs"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":          run.RunID,
		"source":          run.Source,
		"dataset_sha256":  run.DatasetSHA256,
		"started_at":      run.StartedAt.UTC().Format(time.RFC3339),
		"finished_at":     run.FinishedAt.UTC().Format(time.RFC3339),
		"raw_count":       run.RawCount,
		"parsed_count":    run.ParsedCount,
		"parse_failures":  run.ParseFailures,
		"enriched_count":  run.EnrichedCount,
		"lookup_failures": len(run.LookupFailures),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
