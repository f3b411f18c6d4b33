package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/progress-tree/internal/progress"
)

// PrometheusSink exports progress metrics via Prometheus. It owns collectors
// for records per kind, per-run completion percentage and run lifecycle.
type PrometheusSink struct {
	records       *prometheus.CounterVec
	runPercent    *prometheus.GaugeVec
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsActive    prometheus.Gauge

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progtree_records_total",
			Help: "Progress records consumed partitioned by kind.",
		}, []string{"kind"}),
		runPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "progtree_run_percent",
			Help: "Last reported completion percentage per run.",
		}, []string{"run_id"}),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progtree_runs_started_total",
			Help: "Runs observed for the first time.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progtree_runs_completed_total",
			Help: "Runs that reported a Done record.",
		}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progtree_runs_active",
			Help: "Runs seen but not yet done.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.records,
		s.runPercent,
		s.runsStarted,
		s.runsCompleted,
		s.runsActive,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Record) error {
	for _, rec := range batch {
		s.consumeRecord(rec)
	}
	return nil
}

func (s *PrometheusSink) consumeRecord(rec progress.Record) {
	s.records.WithLabelValues(string(rec.Kind)).Inc()
	runID := rec.RunUUID().String()
	if s.tracker.start(rec.RunID) {
		s.runsStarted.Inc()
		s.runsActive.Inc()
	}
	switch rec.Kind {
	case progress.KindPercent:
		s.runPercent.WithLabelValues(runID).Set(float64(rec.Percent))
	case progress.KindDone:
		if s.tracker.complete(rec.RunID) {
			s.runsCompleted.Inc()
			s.runsActive.Dec()
			s.runPercent.WithLabelValues(runID).Set(100)
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu   sync.Mutex
	seen map[[16]byte]bool
}

func newRunTracker() *runTracker {
	return &runTracker{seen: make(map[[16]byte]bool)}
}

// start reports whether id was not seen before.
func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[id]; ok {
		return false
	}
	t.seen[id] = false
	return true
}

// complete reports whether id transitioned to done with this call.
func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if done, ok := t.seen[id]; !ok || done {
		return false
	}
	t.seen[id] = true
	return true
}
