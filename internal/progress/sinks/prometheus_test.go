package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/progress-tree/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and gauges follow a run's records.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	now := time.Now()
	batch := []progress.Record{
		{RunID: runID, Seq: 1, TS: now, Kind: progress.KindTitle},
		{RunID: runID, Seq: 2, TS: now, Kind: progress.KindPercent, Percent: 40},
		{RunID: runID, Seq: 3, TS: now, Kind: progress.KindActivity, Percent: 40},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsActive))
	require.Equal(t, 40.0, testutil.ToFloat64(sink.runPercent.WithLabelValues(runUUID.String())))

	done := []progress.Record{
		{RunID: runID, Seq: 4, TS: now, Kind: progress.KindDone, Percent: 40, Done: true},
		{RunID: runID, Seq: 5, TS: now, Kind: progress.KindDone, Percent: 40, Done: true},
	}
	require.NoError(t, sink.Consume(context.Background(), done))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsActive))
	require.Equal(t, 100.0, testutil.ToFloat64(sink.runPercent.WithLabelValues(runUUID.String())))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.records.WithLabelValues(string(progress.KindDone))))
	require.Equal(t, 4, testutil.CollectAndCount(sink.records, "progtree_records_total"))
}

// TestPrometheusSinkDuplicateRegistration surfaces registry conflicts.
func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
