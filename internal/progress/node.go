package progress

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/progress-tree/internal/eventbus"
)

// DefaultSeparator joins titles in HierarchyTitle.
const DefaultSeparator = " > "

// ErrInvalidArgument is returned for division counts a constructor cannot accept.
var ErrInvalidArgument = errors.New("invalid argument")

// Option configures a root Node.
type Option func(*nodeConfig)

type nodeConfig struct {
	title     string
	divisions int
	separator string
	logger    *zap.Logger
}

// WithTitle sets the root title.
func WithTitle(title string) Option {
	return func(c *nodeConfig) {
		c.title = title
	}
}

// WithDivisions sets how many units the root's work is split into. It must be
// at least 1.
func WithDivisions(n int) Option {
	return func(c *nodeConfig) {
		c.divisions = n
	}
}

// WithSeparator overrides DefaultSeparator for the whole tree.
func WithSeparator(sep string) Option {
	return func(c *nodeConfig) {
		c.separator = sep
	}
}

// WithLogger sets the logger that reports listener failures for the whole tree.
func WithLogger(logger *zap.Logger) Option {
	return func(c *nodeConfig) {
		c.logger = logger
	}
}

// Node is one level of a progress hierarchy. A Node is not safe for
// concurrent use; every method dispatches its events synchronously before
// returning and listeners may call back into the tree.
type Node struct {
	title     string
	parent    *Node
	divisions int
	index     int
	done      bool
	percent   int
	separator string
	logger    *zap.Logger
	bus       *eventbus.Bus[Event]

	child *Node
	relay *Subscription
}

// New creates a root Node. Without options the root has no title and a single
// division.
func New(opts ...Option) (*Node, error) {
	cfg := nodeConfig{divisions: 1, separator: DefaultSeparator}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.divisions <= 0 {
		return nil, fmt.Errorf("%w: root division count must be >= 1, got %d", ErrInvalidArgument, cfg.divisions)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return newNode(cfg, nil), nil
}

func newNode(cfg nodeConfig, parent *Node) *Node {
	return &Node{
		title:     cfg.title,
		parent:    parent,
		divisions: cfg.divisions,
		separator: cfg.separator,
		logger:    cfg.logger,
		bus:       eventbus.New[Event](eventbus.WithLogger(cfg.logger)),
	}
}

// Title returns the node's own title.
func (n *Node) Title() string { return n.title }

// Parent returns the node that created n, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// DivisionCount returns the number of units n is split into.
func (n *Node) DivisionCount() int { return n.divisions }

// DivisionIndex returns the number of completed units.
func (n *Node) DivisionIndex() int { return n.index }

// Percent returns the last percentage dispatched by n.
func (n *Node) Percent() int { return n.percent }

// CurrentChild returns the child whose events are being relayed, if any.
func (n *Node) CurrentChild() *Node { return n.child }

// IsDone reports whether n reached terminal completion.
func (n *Node) IsDone() bool { return n.done }

// Listen subscribes listener to events of category dispatched by n.
func (n *Node) Listen(category eventbus.Category, listener Listener) (*Subscription, error) {
	sub, err := n.bus.Subscribe(category, listener)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return sub, nil
}

// CreateChild splits one unit of n into divisions sub-units. A live child is
// abandoned first and counted as one completed unit. A zero-division child
// has nothing to wait for: n advances immediately and the child is never
// linked. Once n is done the child is returned unlinked.
func (n *Node) CreateChild(title string, divisions int) (*Node, error) {
	if divisions < 0 {
		return nil, fmt.Errorf("%w: child division count must be >= 0, got %d", ErrInvalidArgument, divisions)
	}
	if n.child != nil {
		n.detachChild()
		n.Advance(1)
	}

	child := newNode(nodeConfig{
		title:     title,
		divisions: divisions,
		separator: n.separator,
		logger:    n.logger,
	}, n)

	if n.done {
		return child, nil
	}
	if divisions == 0 {
		n.Advance(1)
		return child, nil
	}

	relay, err := child.bus.Subscribe(CategoryAny, n.relayChild)
	if err != nil {
		return nil, fmt.Errorf("link child: %w", err)
	}
	n.child = child
	n.relay = relay
	if title != "" {
		child.dispatch(TitleChanged{Node: child})
	}
	return child, nil
}

// SetTitle replaces n's own title and notifies listeners.
func (n *Node) SetTitle(title string) {
	if n.done {
		return
	}
	n.title = title
	n.dispatch(TitleChanged{Node: n})
}

// Inc completes one unit.
func (n *Node) Inc() {
	n.Advance(1)
}

// Advance moves the division index by delta.
func (n *Node) Advance(delta int) {
	n.SetProgress(n.index + delta)
}

// SetProgress sets the division index, clamped to [0, DivisionCount]. Any
// live child is dropped without being counted. Reaching DivisionCount
// completes n with a Done event and no final PercentChanged.
func (n *Node) SetProgress(value int) {
	if n.done {
		return
	}
	value = max(0, min(value, n.divisions))
	if value == n.index {
		return
	}
	n.index = value
	n.detachChild()

	if n.index >= n.divisions {
		n.Done()
		return
	}
	n.reportPercent(float64(100*n.index) / float64(n.divisions))
}

// Activity signals that work is ongoing without measurable progress.
func (n *Node) Activity() {
	if n.done {
		return
	}
	n.dispatch(Activity{Node: n})
}

// Done forces completion. Calling it again is a no-op.
func (n *Node) Done() {
	if n.done {
		return
	}
	n.done = true
	n.dispatch(Done{Node: n})
}

// HierarchyTitle joins n's title with the titles of its live descendants.
// Empty titles are skipped; the result is empty when none are set.
func (n *Node) HierarchyTitle() string {
	parts := make([]string, 0, 2)
	if n.title != "" {
		parts = append(parts, n.title)
	}
	if n.child != nil {
		if sub := n.child.HierarchyTitle(); sub != "" {
			parts = append(parts, sub)
		}
	}
	return strings.Join(parts, n.separator)
}

func (n *Node) relayChild(evt Event) error {
	if n.done || n.child == nil || evt.Source() != n.child {
		return nil
	}
	switch e := evt.(type) {
	case TitleChanged:
		n.dispatch(TitleChanged{Node: n})
	case PercentChanged:
		n.reportPercent(float64(100*n.index+e.Percent) / float64(n.divisions))
	case Activity:
		n.dispatch(Activity{Node: n})
	case Done:
		if n.child.HierarchyTitle() != "" {
			n.dispatch(TitleChanged{Node: n})
		}
		n.Advance(1)
	}
	return nil
}

// detachChild forgets the live child and stops relaying its events.
func (n *Node) detachChild() {
	if n.child == nil {
		return
	}
	n.relay.Unsubscribe()
	n.child = nil
	n.relay = nil
}

// reportPercent rounds half up, clamps to [0, 100] and dispatches only when
// the value differs from the last one dispatched.
func (n *Node) reportPercent(percent float64) {
	next := int(math.Floor(percent + 0.5))
	next = max(0, min(next, 100))
	if next == n.percent {
		return
	}
	n.percent = next
	n.dispatch(PercentChanged{Node: n, Percent: next})
}

// dispatch delivers evt on n's bus. Listener failures are already logged by
// the bus and never interrupt the state machine.
func (n *Node) dispatch(evt Event) {
	_ = n.bus.Dispatch(evt)
}
