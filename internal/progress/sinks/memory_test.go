package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/progress-tree/internal/progress"
)

// TestMemorySinkKeepsLatestSnapshot folds records per run and ignores stale sequence numbers.
func TestMemorySinkKeepsLatestSnapshot(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink()
	first := uuid.New()
	second := uuid.New()
	now := time.Now()

	require.NoError(t, sink.Consume(context.Background(), []progress.Record{
		{RunID: progress.UUIDToBytes(first), Seq: 1, TS: now, Kind: progress.KindTitle, Title: "a", HierarchyTitle: "a > x"},
		{RunID: progress.UUIDToBytes(first), Seq: 3, TS: now.Add(2 * time.Second), Kind: progress.KindPercent, Title: "a", HierarchyTitle: "a > y", Percent: 60},
		{RunID: progress.UUIDToBytes(first), Seq: 2, TS: now.Add(time.Second), Kind: progress.KindPercent, Title: "a", Percent: 30},
		{RunID: progress.UUIDToBytes(second), Seq: 1, TS: now.Add(time.Second), Kind: progress.KindDone, Done: true},
	}))

	snap, ok := sink.Get(first)
	require.True(t, ok)
	require.Equal(t, 60, snap.Percent)
	require.Equal(t, "a > y", snap.HierarchyTitle)
	require.Equal(t, int64(3), snap.Records)
	require.Equal(t, int64(3), snap.LastSeq)
	require.False(t, snap.Done)
	require.Equal(t, now, snap.StartedAt)

	list := sink.List()
	require.Len(t, list, 2)
	require.Equal(t, first, list[0].RunID)
	require.True(t, list[1].Done)

	_, ok = sink.Get(uuid.New())
	require.False(t, ok)
	require.NoError(t, sink.Close(context.Background()))
}
