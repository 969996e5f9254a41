// Package monitoring provides Prometheus metrics for the terminal bridge:
// PTY and session gauges, command counters by origin and status, and HTTP
// request instrumentation via gin middleware.
package monitoring
