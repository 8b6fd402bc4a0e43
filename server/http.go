// Package server provides the diagnostics HTTP server: health, aggregated
// cache statistics, Prometheus metrics, and turbo tier management.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/instant-nav/navigator"
	"github.com/wolfeidau/instant-nav/telemetry"
	"github.com/wolfeidau/instant-nav/turbo"
)

// Config holds server configuration.
type Config struct {
	// Address to listen on (e.g., ":8090")
	Address string

	// AuthToken protects mutating endpoints when set. Empty disables
	// authentication.
	AuthToken string

	// Logger for the server
	Logger *slog.Logger
}

// Server is the diagnostics HTTP server. It reads from and manages a
// Coordinator but owns none of its stores.
type Server struct {
	config      Config
	httpServer  *http.Server
	coordinator *navigator.Coordinator
	logger      *slog.Logger
}

// New creates a server exposing the given coordinator.
func New(cfg Config, coordinator *navigator.Coordinator) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Address == "" {
		cfg.Address = ":8090"
	}

	s := &Server{
		config:      cfg,
		coordinator: coordinator,
		logger:      cfg.Logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.loggingMiddleware(s.authMiddleware(mux)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("GET /metrics", telemetry.PrometheusHandler())
	mux.HandleFunc("GET /turbo/tier", s.handleGetTier)
	mux.HandleFunc("PUT /turbo/tier", s.handleSetTier)
	mux.HandleFunc("POST /caches/clear", s.handleClearCaches)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleStats returns aggregated per-store statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.coordinator.Stats()); err != nil {
		s.logger.Error("encoding stats", "error", err)
	}
}

// handleGetTier returns the active turbo tier and its block counters.
func (s *Server) handleGetTier(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.coordinator.Turbo().Stats()); err != nil {
		s.logger.Error("encoding tier stats", "error", err)
	}
}

// handleSetTier switches the active turbo tier.
func (s *Server) handleSetTier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}

	tier, err := turbo.ParseTier(req.Tier)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}

	s.coordinator.Turbo().SetTier(tier)
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"tier":%q}`, tier.String())
}

// handleClearCaches drops the page, resource and prerender stores.
func (s *Server) handleClearCaches(w http.ResponseWriter, r *http.Request) {
	s.coordinator.ClearCaches()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"cleared"}`))
}

// loggingMiddleware logs HTTP requests with structured fields for analysis.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		s.logger.Info("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"status_class", telemetry.StatusClass(wrapped.status),
			"bytes_sent", wrapped.bytesWritten,
			"duration_ms", duration.Milliseconds(),
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		telemetry.RecordHTTP(r.Context(), r.URL.Path, wrapped.status, wrapped.bytesWritten, duration)
	})
}

// Start starts the server.
func (s *Server) Start() error {
	s.logger.Info("starting diagnostics server", "address", s.config.Address)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down diagnostics server")
	return s.httpServer.Shutdown(ctx)
}

// Address returns the server's listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// bytes written.
type responseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Unwrap returns the underlying ResponseWriter.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
