// Package progress reports hierarchical task progress to observers. A Node
// splits one unit of its parent's progress into a fixed number of divisions;
// the active child's events are relayed into percentage-weighted events on the
// parent, so code at any level can subscribe without knowing how much work
// exists below it.
//
// The package also carries the asynchronous side used by collaborators: a
// Forwarder flattens node events into Records, and a non-blocking Hub batches
// those Records to pluggable sinks such as Prometheus metrics or structured
// logs.
package progress
