package sinks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/progress-tree/internal/progress"
)

// Snapshot is the latest known state of one run.
type Snapshot struct {
	RunID          uuid.UUID `json:"run_id"`
	Title          string    `json:"title"`
	HierarchyTitle string    `json:"hierarchy_title"`
	Percent        int       `json:"percent"`
	Done           bool      `json:"done"`
	Records        int64     `json:"records"`
	LastSeq        int64     `json:"last_seq"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MemorySink keeps the latest Snapshot per run for read-only queries such
// as the HTTP API. It is safe for concurrent use.
type MemorySink struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]*Snapshot
	order []uuid.UUID
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{runs: make(map[uuid.UUID]*Snapshot)}
}

// Consume folds the batch into per-run snapshots. Records older than the
// last applied sequence number are counted but do not overwrite state.
func (s *MemorySink) Consume(_ context.Context, batch []progress.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range batch {
		id := rec.RunUUID()
		snap, ok := s.runs[id]
		if !ok {
			snap = &Snapshot{RunID: id, StartedAt: rec.TS}
			s.runs[id] = snap
			s.order = append(s.order, id)
		}
		snap.Records++
		if rec.Seq <= snap.LastSeq {
			continue
		}
		snap.LastSeq = rec.Seq
		snap.Title = rec.Title
		snap.HierarchyTitle = rec.HierarchyTitle
		snap.Percent = rec.Percent
		snap.Done = snap.Done || rec.Done
		if rec.TS.After(snap.UpdatedAt) {
			snap.UpdatedAt = rec.TS
		}
	}
	return nil
}

// Get returns the snapshot for runID.
func (s *MemorySink) Get(runID uuid.UUID) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.runs[runID]
	if !ok {
		return Snapshot{}, false
	}
	return *snap, true
}

// List returns all snapshots, oldest run first.
func (s *MemorySink) List() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.runs[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Close implements the Sink interface; snapshots stay readable after Close.
func (s *MemorySink) Close(context.Context) error {
	return nil
}
