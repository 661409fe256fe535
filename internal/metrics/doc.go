// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Access token renewals by outcome
//   - REST request counts and latencies per endpoint
//   - Order book fetch outcomes and batch durations
//   - WebSocket message counts and connection state
//
// Collectors are package-level so any component can record into them;
// Register attaches them to a registry once at startup.
package metrics
