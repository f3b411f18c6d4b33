package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/progress-tree/internal/progress"
)

// LogSink emits structured logs for progress streams. Activity records are
// logged at debug level since they carry no new information.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each record in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Record) error {
	for _, rec := range batch {
		fields := []zap.Field{
			zap.String("run_id", rec.RunUUID().String()),
			zap.Int64("seq", rec.Seq),
			zap.String("kind", string(rec.Kind)),
			zap.String("title", rec.HierarchyTitle),
			zap.Int("percent", rec.Percent),
			zap.Bool("done", rec.Done),
			zap.Time("ts", rec.TS),
		}
		if rec.Kind == progress.KindActivity {
			s.logger.Debug("progress activity", fields...)
			continue
		}
		s.logger.Info("progress record", fields...)
	}
	return nil
}

// Close flushes the logger. Sync errors on terminals are ignored.
func (s *LogSink) Close(context.Context) error {
	_ = s.logger.Sync()
	return nil
}
