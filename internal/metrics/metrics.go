// Package metrics exposes Prometheus collectors for the status server.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UnmatchedRoute labels requests that no route pattern matched.
const UnmatchedRoute = "unmatched"

// HTTP holds the request collectors for one registry.
type HTTP struct {
	requestsTotal          *prometheus.CounterVec
	requestDurationSeconds *prometheus.HistogramVec
}

// NewHTTP creates the HTTP collectors and registers them on reg.
func NewHTTP(reg prometheus.Registerer) (*HTTP, error) {
	h := &HTTP{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progtree_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		),
		requestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "progtree_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		),
	}
	for _, c := range []prometheus.Collector{h.requestsTotal, h.requestDurationSeconds} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register http metrics: %w", err)
		}
	}
	return h, nil
}

// SanitizeRoute maps an empty route pattern to UnmatchedRoute so unknown
// paths share one series.
func SanitizeRoute(pattern string) string {
	if pattern == "" {
		return UnmatchedRoute
	}
	return pattern
}

// ObserveHTTPRequest increments the HTTP request metrics.
func (h *HTTP) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	h.requestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	h.requestDurationSeconds.WithLabelValues(method, SanitizeRoute(route)).Observe(duration.Seconds())
}
