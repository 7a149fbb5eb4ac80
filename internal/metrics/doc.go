// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Wire client connection state, reconnects and message counts
//   - Execution-report bus depth and drops
//   - Reference half-life and staleness
//   - Latency probe round-trip time
//   - Execution coordinator outcomes and residual quantity
package metrics
