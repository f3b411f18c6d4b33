package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JakeFAU/progress-tree/internal/progress/sinks"
)

// listRuns handles GET /v1/runs and returns {"runs": [...]}, oldest first.
func (s *Server) listRuns(w http.ResponseWriter, _ *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot store unavailable")
		return
	}
	runs := s.store.List()
	if runs == nil {
		runs = []sinks.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// getRun handles GET /v1/runs/{run_id}: 400 for a malformed ID, 404 when
// the run has not been seen.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot store unavailable")
		return
	}
	runID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "run_id")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run_id")
		return
	}
	snap, ok := s.store.Get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
