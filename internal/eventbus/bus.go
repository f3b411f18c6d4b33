// Package eventbus provides a synchronous, category-keyed publish/subscribe
// dispatcher. Listeners register for a category and receive every event whose
// category is that category or one of its descendants. The universal Any
// category matches every event.
package eventbus

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Category tags an event variant.
type Category string

// Any matches every dispatched event.
const Any Category = "*"

// ErrInvalidCategory is returned when subscribing with an empty category.
var ErrInvalidCategory = errors.New("eventbus: invalid category")

// Event is anything that can report its own category.
type Event interface {
	Category() Category
}

// Listener handles a dispatched event. A returned error is logged and joined
// into the Dispatch result; it never stops delivery to other listeners.
type Listener[E Event] func(evt E) error

// Option configures a Bus.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	parents map[Category]Category
}

// WithLogger sets the logger used to report listener failures.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithParent declares parent as a supertype of child, so listeners on parent
// also receive child events.
func WithParent(child, parent Category) Option {
	return func(o *options) {
		if o.parents == nil {
			o.parents = make(map[Category]Category)
		}
		o.parents[child] = parent
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription[E Event] struct {
	bus      *Bus[E]
	category Category
	listener Listener[E]
}

// Category returns the category the subscription was registered for.
func (s *Subscription[E]) Category() Category {
	return s.category
}

// Unsubscribe removes the subscription from its bus. Calling it more than
// once is a no-op.
func (s *Subscription[E]) Unsubscribe() {
	if s == nil {
		return
	}
	s.bus.Unsubscribe(s)
}

// Bus dispatches events of type E to subscribed listeners. Dispatch runs
// listeners inline on the caller's goroutine.
type Bus[E Event] struct {
	mu      sync.Mutex
	logger  *zap.Logger
	parents map[Category]Category
	links   map[Category][]*Subscription[E]
	order   []Category
}

// New constructs an empty Bus.
func New[E Event](opts ...Option) *Bus[E] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus[E]{
		logger:  logger,
		parents: o.parents,
		links:   make(map[Category][]*Subscription[E]),
	}
}

// Subscribe registers listener for category and returns a handle that can be
// used to unsubscribe.
func (b *Bus[E]) Subscribe(category Category, listener Listener[E]) (*Subscription[E], error) {
	if category == "" {
		return nil, ErrInvalidCategory
	}
	if listener == nil {
		return nil, fmt.Errorf("subscribe %q: nil listener", category)
	}
	sub := &Subscription[E]{bus: b, category: category, listener: listener}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.links[category]; !ok {
		b.order = append(b.order, category)
	}
	// Copy on write so snapshots held by an in-flight Dispatch stay intact.
	subs := b.links[category]
	next := make([]*Subscription[E], len(subs), len(subs)+1)
	copy(next, subs)
	b.links[category] = append(next, sub)
	return sub, nil
}

// Unsubscribe removes sub. Unknown or already removed subscriptions are
// ignored.
func (b *Bus[E]) Unsubscribe(sub *Subscription[E]) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.links[sub.category]
	for i, s := range subs {
		if s != sub {
			continue
		}
		next := make([]*Subscription[E], 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		b.links[sub.category] = next
		return
	}
}

// Len reports the number of live subscriptions across all categories.
func (b *Bus[E]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, subs := range b.links {
		n += len(subs)
	}
	return n
}

// Dispatch delivers evt to every matching listener. The listener set is
// captured before the first listener runs; subscriptions changed during the
// pass apply to the next Dispatch. All listener failures are returned joined.
func (b *Bus[E]) Dispatch(evt E) error {
	targets := b.snapshot(evt.Category())
	var errs error
	for _, sub := range targets {
		if err := b.deliver(sub, evt); err != nil {
			b.logger.Warn("event listener failed",
				zap.String("category", string(evt.Category())),
				zap.String("subscribed", string(sub.category)),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (b *Bus[E]) snapshot(category Category) []*Subscription[E] {
	matching := b.lineage(category)

	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*Subscription[E]
	for _, c := range b.order {
		if _, ok := matching[c]; !ok {
			continue
		}
		out = append(out, b.links[c]...)
	}
	return out
}

// lineage returns category, its declared ancestors and Any.
func (b *Bus[E]) lineage(category Category) map[Category]struct{} {
	out := map[Category]struct{}{Any: {}}
	for c := category; c != ""; {
		if _, seen := out[c]; seen {
			break
		}
		out[c] = struct{}{}
		c = b.parents[c]
	}
	return out
}

func (b *Bus[E]) deliver(sub *Subscription[E], evt E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return sub.listener(evt)
}
