package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/progress-tree/internal/metrics"
	"github.com/JakeFAU/progress-tree/internal/progress"
	"github.com/JakeFAU/progress-tree/internal/progress/sinks"
)

func newTestServer(t *testing.T) (*Server, uuid.UUID) {
	t.Helper()

	reg := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(reg)
	require.NoError(t, err)
	store := sinks.NewMemorySink()
	httpMetrics, err := metrics.NewHTTP(reg)
	require.NoError(t, err)

	runID := uuid.New()
	batch := []progress.Record{
		{RunID: progress.UUIDToBytes(runID), Seq: 1, TS: time.Now(), Kind: progress.KindTitle, Title: "sync", HierarchyTitle: "sync > files"},
		{RunID: progress.UUIDToBytes(runID), Seq: 2, TS: time.Now(), Kind: progress.KindPercent, Title: "sync", HierarchyTitle: "sync > files", Percent: 42},
	}
	require.NoError(t, store.Consume(context.Background(), batch))
	require.NoError(t, promSink.Consume(context.Background(), batch))

	return NewServer(store, reg, zap.NewNop(), WithHTTPMetrics(httpMetrics)), runID
}

func serve(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	rec := serve(s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	s, runID := newTestServer(t)
	rec := serve(s, "/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []sinks.Snapshot `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	require.Equal(t, runID, body.Runs[0].RunID)
	require.Equal(t, 42, body.Runs[0].Percent)
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	s, runID := newTestServer(t)
	rec := serve(s, "/v1/runs/"+runID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var snap sinks.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, "sync > files", snap.HierarchyTitle)
	require.False(t, snap.Done)
}

func TestGetRunErrors(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	require.Equal(t, http.StatusBadRequest, serve(s, "/v1/runs/not-a-uuid").Code)
	require.Equal(t, http.StatusNotFound, serve(s, "/v1/runs/"+uuid.NewString()).Code)

	empty := NewServer(nil, prometheus.NewRegistry(), nil)
	require.Equal(t, http.StatusServiceUnavailable, serve(empty, "/v1/runs").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s, runID := newTestServer(t)
	rec := serve(s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "progtree_runs_active 1"), body)
	require.Contains(t, body, `progtree_run_percent{run_id="`+runID.String()+`"} 42`)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	t.Parallel()

	s, runID := newTestServer(t)
	require.Equal(t, http.StatusOK, serve(s, "/v1/runs/"+runID.String()).Code)
	body := serve(s, "/metrics").Body.String()
	require.Contains(t, body, `progtree_http_requests_total{code="200",method="GET"} 1`)
	require.Contains(t, body, `progtree_http_request_duration_seconds_count{method="GET",route="/v1/runs/{run_id}"} 1`)
}
