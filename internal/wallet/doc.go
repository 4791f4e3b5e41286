// Package wallet implements the wallet registry: the mapping of monitored
// wallet addresses to the chat ids subscribed to them.
//
// The registry is mutated by chat command handlers and read by the poller
// through Snapshot, which returns a deep copy taken under the read lock.
// Every successful mutation is written through to a Store.
package wallet
