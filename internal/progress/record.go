package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which node event a Record was flattened from.
type Kind string

// Supported record kinds.
const (
	KindTitle    Kind = "TITLE"
	KindPercent  Kind = "PERCENT"
	KindActivity Kind = "ACTIVITY"
	KindDone     Kind = "DONE"
)

// Record is a value snapshot of one node event, safe to hand to other
// goroutines after the node has moved on.
type Record struct {
	// RunID identifies the tree the record came from.
	RunID [16]byte
	// Seq increases by one per record within a run, starting at 1.
	Seq int64
	// TS is the UTC timestamp recorded by the forwarder.
	TS time.Time
	// Kind is the event variant.
	Kind Kind
	// Title is the source node's own title.
	Title string
	// HierarchyTitle is the source node's joined title at the time of the event.
	HierarchyTitle string
	// Percent is the source node's last dispatched percentage.
	Percent int
	// Done mirrors the source node's terminal flag.
	Done bool
}

// Validate performs coarse validation on Record payloads.
func (r Record) Validate() error {
	if r.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if r.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch r.Kind {
	case KindTitle, KindActivity, KindDone:
	case KindPercent:
		if r.Percent < 0 || r.Percent > 100 {
			return fmt.Errorf("percent %d out of range", r.Percent)
		}
	default:
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (r Record) RunUUID() uuid.UUID {
	return uuid.UUID(r.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Record form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// KindOf maps an event to its record kind.
func KindOf(evt Event) (Kind, bool) {
	switch evt.(type) {
	case TitleChanged:
		return KindTitle, true
	case PercentChanged:
		return KindPercent, true
	case Activity:
		return KindActivity, true
	case Done:
		return KindDone, true
	default:
		return "", false
	}
}

// Clock supplies record timestamps.
type Clock interface {
	Now() time.Time
}

// Forwarder turns the events of one node into Records for an Emitter.
type Forwarder struct {
	runID   [16]byte
	emitter Emitter
	clock   Clock
	seq     int64
	sub     *Subscription
}

// Forward subscribes to every event of node and emits one Record per event.
// The node is usually a root so the records describe the whole run.
func Forward(node *Node, runID uuid.UUID, emitter Emitter, clock Clock) (*Forwarder, error) {
	if node == nil || emitter == nil || clock == nil {
		return nil, errors.New("forward: node, emitter and clock are required")
	}
	f := &Forwarder{
		runID:   UUIDToBytes(runID),
		emitter: emitter,
		clock:   clock,
	}
	sub, err := node.Listen(CategoryAny, f.handle)
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	f.sub = sub
	return f, nil
}

// Stop detaches the forwarder from its node.
func (f *Forwarder) Stop() {
	f.sub.Unsubscribe()
}

func (f *Forwarder) handle(evt Event) error {
	kind, ok := KindOf(evt)
	if !ok {
		return fmt.Errorf("forward: unsupported event %T", evt)
	}
	src := evt.Source()
	f.seq++
	rec := Record{
		RunID:          f.runID,
		Seq:            f.seq,
		TS:             f.clock.Now(),
		Kind:           kind,
		Title:          src.Title(),
		HierarchyTitle: src.HierarchyTitle(),
		Percent:        src.Percent(),
		Done:           src.IsDone(),
	}
	if pc, ok := evt.(PercentChanged); ok {
		rec.Percent = pc.Percent
	}
	f.emitter.Emit(rec)
	return nil
}
