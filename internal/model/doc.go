// Package model defines shared data types used across the liquidation monitor.
//
// Conventions:
//   - Prices, sizes and account values: float64 in quote currency (USD)
//   - Wallet addresses: lowercase 0x-prefixed hex strings
//   - Timestamps: time.Time, or int64 milliseconds when mirroring exchange fields
package model
