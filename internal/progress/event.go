package progress

import "github.com/JakeFAU/progress-tree/internal/eventbus"

// Event categories a listener may subscribe to. CategoryAny receives every
// event a node dispatches.
const (
	CategoryAny      = eventbus.Any
	CategoryTitle    eventbus.Category = "progress.title"
	CategoryPercent  eventbus.Category = "progress.percent"
	CategoryActivity eventbus.Category = "progress.activity"
	CategoryDone     eventbus.Category = "progress.done"
)

// Event is dispatched by a Node. Source is the node that produced it.
type Event interface {
	eventbus.Event
	Source() *Node
}

// Listener receives node events.
type Listener = eventbus.Listener[Event]

// Subscription is returned by Node.Listen.
type Subscription = eventbus.Subscription[Event]

// TitleChanged reports that the node's hierarchy title may have changed.
type TitleChanged struct {
	Node *Node
}

// Category implements eventbus.Event.
func (TitleChanged) Category() eventbus.Category { return CategoryTitle }

// Source implements Event.
func (e TitleChanged) Source() *Node { return e.Node }

// PercentChanged reports a new completion percentage in [0, 100]. Reaching
// 100 is not proof of completion; wait for Done.
type PercentChanged struct {
	Node    *Node
	Percent int
}

// Category implements eventbus.Event.
func (PercentChanged) Category() eventbus.Category { return CategoryPercent }

// Source implements Event.
func (e PercentChanged) Source() *Node { return e.Node }

// Activity is a liveness signal without measurable progress.
type Activity struct {
	Node *Node
}

// Category implements eventbus.Event.
func (Activity) Category() eventbus.Category { return CategoryActivity }

// Source implements Event.
func (e Activity) Source() *Node { return e.Node }

// Done reports that the node reached terminal completion.
type Done struct {
	Node *Node
}

// Category implements eventbus.Event.
func (Done) Category() eventbus.Category { return CategoryDone }

// Source implements Event.
func (e Done) Source() *Node { return e.Node }
