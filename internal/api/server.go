// Package api hosts the ops HTTP server. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the last cycle summary.
//   - GET/POST/DELETE /v1/blocklist for runtime source blocking.
//   - POST /v1/cleanup to trigger old-item cleanup manually.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/monitor"
	"github.com/flatwatch/scraper/internal/progress/sinks"
)

const cleanupTimeout = 30 * time.Second

// Server wires the ops handlers to the pipeline's shared state.
type Server struct {
	router    chi.Router
	blocklist *monitor.Blocklist
	status    *sinks.StatusSink
	store     monitor.TaskStore
	registry  *prometheus.Registry
	logger    *zap.Logger
	ready     atomic.Bool
}

// Middleware is a chi middleware constructor applied to every route.
type Middleware = func(http.Handler) http.Handler

// NewServer constructs a Server with middleware and routes. status, store,
// and registry may be nil; the matching endpoints then report unavailable.
func NewServer(
	blocklist *monitor.Blocklist,
	status *sinks.StatusSink,
	store monitor.TaskStore,
	registry *prometheus.Registry,
	logger *zap.Logger,
	extra ...Middleware,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		blocklist: blocklist,
		status:    status,
		store:     store,
		registry:  registry,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	for _, mw := range extra {
		r.Use(mw)
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/metrics", s.metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Route("/blocklist", func(r chi.Router) {
			r.Get("/", s.listBlocklist)
			r.Post("/", s.addBlocklist)
			r.Delete("/", s.removeBlocklist)
		})
		r.Post("/cleanup", s.triggerCleanup)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReady flips the readiness probe once the pipeline has started.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "pipeline not started")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics registry unavailable")
		return
	}
	promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "status tracking disabled")
		return
	}
	status, ok := s.status.Latest()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"cycle": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycle": status})
}

type blocklistRequest struct {
	Pattern string `json:"pattern"`
}

func (s *Server) listBlocklist(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"patterns": s.blocklist.Patterns()})
}

func (s *Server) addBlocklist(w http.ResponseWriter, r *http.Request) {
	var req blocklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pattern == "" {
		writeError(w, http.StatusBadRequest, "missing pattern")
		return
	}
	s.blocklist.Add(req.Pattern)
	s.logger.Info("source blocked via api", zap.String("pattern", req.Pattern))
	writeJSON(w, http.StatusOK, map[string]any{"patterns": s.blocklist.Patterns()})
}

func (s *Server) removeBlocklist(w http.ResponseWriter, r *http.Request) {
	var req blocklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pattern == "" {
		writeError(w, http.StatusBadRequest, "missing pattern")
		return
	}
	s.blocklist.Remove(req.Pattern)
	s.logger.Info("source unblocked via api", zap.String("pattern", req.Pattern))
	writeJSON(w, http.StatusOK, map[string]any{"patterns": s.blocklist.Patterns()})
}

type cleanupRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

func (s *Server) triggerCleanup(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "task store unavailable")
		return
	}
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OlderThanDays <= 0 {
		writeError(w, http.StatusBadRequest, "older_than_days must be > 0")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), cleanupTimeout)
	defer cancel()
	if err := s.store.CleanupOldItems(ctx, req.OlderThanDays); err != nil {
		s.logger.Error("manual cleanup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"older_than_days": req.OlderThanDays})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Debug("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
