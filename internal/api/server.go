package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/progress-tree/internal/metrics"
	"github.com/JakeFAU/progress-tree/internal/progress/sinks"
)

const requestTimeout = 10 * time.Second

// SnapshotStore is the read side of sinks.MemorySink.
type SnapshotStore interface {
	Get(runID uuid.UUID) (sinks.Snapshot, bool)
	List() []sinks.Snapshot
}

// Server wires HTTP handlers to the snapshot store and metrics registry.
type Server struct {
	router   chi.Router
	store    SnapshotStore
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	httpMet  *metrics.HTTP
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithHTTPMetrics records request counts and latencies on m.
func WithHTTPMetrics(m *metrics.HTTP) ServerOption {
	return func(s *Server) {
		s.httpMet = m
	}
}

// NewServer constructs a Server with middleware and routes. A nil gatherer
// serves the default Prometheus registry.
func NewServer(store SnapshotStore, gatherer prometheus.Gatherer, logger *zap.Logger, opts ...ServerOption) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:    store,
		gatherer: gatherer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	r := chi.NewRouter()
	if s.httpMet != nil {
		r.Use(s.httpMet.Middleware)
	}
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1/runs", func(r chi.Router) {
		r.Get("/", s.listRuns)
		r.Get("/{run_id}", s.getRun)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
