package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// HubConfig controls buffering and batching for the Hub.
//   - BufferSize: size of the internal channel (default 1024).
//   - MaxBatchRecords: flush once this many records queue (default 256).
//   - MaxBatchWait: flush after this duration even if the batch is small (default 250ms).
//   - SinkTimeout: per-sink timeout while flushing (default 5s).
//   - BaseContext: parent context passed to sink calls (defaults to context.Background()).
//   - Logger: optional structured logger used for warnings.
type HubConfig struct {
	BufferSize      int
	MaxBatchRecords int
	MaxBatchWait    time.Duration
	SinkTimeout     time.Duration
	BaseContext     context.Context
	Logger          *zap.Logger
}

const (
	defaultBufferSize      = 1024
	defaultMaxBatchRecords = 256
	defaultMaxBatchWait    = 250 * time.Millisecond
	defaultSinkTimeout     = 5 * time.Second
	dropLogInterval        = 5 * time.Second
)

func (c HubConfig) withDefaults() HubConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.MaxBatchRecords <= 0 {
		c.MaxBatchRecords = defaultMaxBatchRecords
	}
	if c.MaxBatchWait <= 0 {
		c.MaxBatchWait = defaultMaxBatchWait
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = defaultSinkTimeout
	}
	if c.BaseContext == nil {
		c.BaseContext = context.Background()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Hub moves Records off the goroutine that drives a node tree and fans them
// out to sinks in batches. Emit never blocks, so a slow sink cannot stall the
// synchronous event relay. Hub is safe for concurrent use.
type Hub struct {
	cfg         HubConfig
	sinks       []Sink
	records     chan Record
	stopCh      chan struct{}
	doneCh      chan struct{}
	dropLimiter rateLimiter
	dropped     atomic.Int64
	closed      atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub initializes a Hub and starts its batching goroutine.
func NewHub(cfg HubConfig, sinks ...Sink) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:         cfg,
		sinks:       append([]Sink(nil), sinks...),
		records:     make(chan Record, cfg.BufferSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		dropLimiter: rateLimiter{interval: dropLogInterval},
	}
	go h.run()
	return h
}

// Emit enqueues a Record. Invalid records are discarded; when the buffer is
// full the record is dropped and a rate-limited warning is logged.
func (h *Hub) Emit(rec Record) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := rec.Validate(); err != nil {
		h.cfg.Logger.Debug("discarding invalid progress record", zap.Error(err))
		return
	}
	select {
	case h.records <- rec:
	default:
		h.dropped.Add(1)
		if h.dropLimiter.Allow(time.Now()) {
			count := h.dropped.Swap(0)
			h.cfg.Logger.Warn("progress records dropped due to backpressure", zap.Int64("dropped", count))
		}
	}
}

// Close drains buffered records, flushes and closes sinks, and waits for the
// batching goroutine to exit. Later calls only wait.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	b := newBatcher(h.cfg.MaxBatchRecords, h.cfg.MaxBatchWait)
	for {
		select {
		case rec := <-h.records:
			if b.add(rec) {
				h.flush(b.take())
			}
		case <-b.timer.C:
			b.armed = false
			h.flush(b.take())
		case <-h.stopCh:
			b.disarm()
			h.drain(b)
			return
		}
	}
}

func (h *Hub) drain(b *batcher) {
	for {
		select {
		case rec := <-h.records:
			if b.add(rec) {
				h.flush(b.take())
			}
		default:
			b.disarm()
			h.flush(b.take())
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) flush(batch []Record) {
	if len(batch) == 0 {
		return
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, batch); err != nil {
			h.cfg.Logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.cfg.Logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}

// batcher accumulates records until the size limit or the wait timer fires.
type batcher struct {
	max   int
	wait  time.Duration
	buf   []Record
	timer *time.Timer
	armed bool
}

func newBatcher(limit int, wait time.Duration) *batcher {
	timer := time.NewTimer(wait)
	timer.Stop()
	return &batcher{
		max:   limit,
		wait:  wait,
		buf:   make([]Record, 0, limit),
		timer: timer,
	}
}

// add appends rec and reports whether the batch is full.
func (b *batcher) add(rec Record) bool {
	b.buf = append(b.buf, rec)
	if len(b.buf) >= b.max {
		b.disarm()
		return true
	}
	b.arm()
	return false
}

// take hands out a copy of the pending batch so sinks may retain it.
func (b *batcher) take() []Record {
	if len(b.buf) == 0 {
		return nil
	}
	out := append([]Record(nil), b.buf...)
	b.buf = b.buf[:0]
	return out
}

func (b *batcher) arm() {
	if b.armed {
		return
	}
	b.timer.Reset(b.wait)
	b.armed = true
}

func (b *batcher) disarm() {
	if !b.armed {
		return
	}
	if !b.timer.Stop() {
		select {
		case <-b.timer.C:
		default:
		}
	}
	b.armed = false
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
