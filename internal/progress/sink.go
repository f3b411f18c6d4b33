package progress

import "context"

// Sink consumes batches of progress records. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Record) error
	Close(ctx context.Context) error
}

// Emitter publishes individual records; Hub satisfies this interface so a
// Forwarder stays agnostic about how records are buffered or consumed.
type Emitter interface {
	Emit(rec Record)
}
