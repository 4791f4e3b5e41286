// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Poll cycle outcomes, durations and per-wallet evaluation results
//   - Alerts delivered by kind and result, plus outbox depth
//   - Stream connection state, reconnects and message rates by channel
//   - Liquidation events and liquidated notional
//   - Registry size
package metrics
