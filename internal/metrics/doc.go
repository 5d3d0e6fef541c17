// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Broadcast rounds, units coalesced per round and round duration
//   - Object and market deliveries, delivery failures and auto-unsubscribes
//   - Value fetch errors
//   - Gauges supplied by the daemon (sessions, applied blocks, relay throughput)
package metrics
