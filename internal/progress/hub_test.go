package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestHubBatchBySize verifies the hub flushes immediately once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(HubConfig{
		BufferSize:      8,
		MaxBatchRecords: 2,
		MaxBatchWait:    time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	rec := sampleRecord(KindPercent)
	hub.Emit(rec)
	hub.Emit(rec)
	require.Eventually(t, func() bool {
		batches := sink.Batches()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubBatchByTimer verifies the timer-based flush kicks in when the batch is small.
func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(HubConfig{
		BufferSize:      4,
		MaxBatchRecords: 10,
		MaxBatchWait:    25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleRecord(KindTitle))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNonBlockingWithoutConsumers asserts Emit never blocks callers.
func TestHubEmitNonBlockingWithoutConsumers(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:     HubConfig{Logger: zap.NewNop()},
		records: make(chan Record),
	}
	start := time.Now()
	hub.Emit(sampleRecord(KindActivity))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

// TestHubDiscardsInvalidRecords keeps malformed records away from sinks.
func TestHubDiscardsInvalidRecords(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(HubConfig{MaxBatchWait: time.Minute}, sink)
	hub.Emit(Record{Kind: KindDone})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
	require.True(t, sink.Closed())
}

// TestHubFlushOnClose ensures Close drains buffered records before returning.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(HubConfig{
		BufferSize:      4,
		MaxBatchRecords: 100,
		MaxBatchWait:    time.Minute,
	}, sink)

	hub.Emit(sampleRecord(KindDone))

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)
	require.True(t, sink.Closed())

	hub.Emit(sampleRecord(KindDone))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Record
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]Record{}}
}

func (s *stubSink) Consume(_ context.Context, batch []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Record(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stubSink) Batches() [][]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Record, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]Record(nil), b...)
	}
	return out
}

func sampleRecord(kind Kind) Record {
	return Record{
		RunID:   UUIDToBytes(uuid.New()),
		Seq:     1,
		TS:      time.Now(),
		Kind:    kind,
		Percent: 10,
	}
}
