// Package sinks implements concrete progress record consumers: Prometheus
// metrics, structured logging and an in-memory snapshot store. Each sink
// satisfies progress.Sink and is safe for repeated Consume/Close cycles.
package sinks
