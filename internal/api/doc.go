// Package api exposes the read-only HTTP interface of progtree: health,
// Prometheus metrics and per-run progress snapshots.
package api
