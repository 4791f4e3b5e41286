// Package poller implements the wallet risk polling engine.
//
// Each cycle:
//   - Takes a snapshot of the wallet registry
//   - Fetches one market snapshot shared by every wallet in the cycle
//   - Evaluates wallets concurrently with a bounded worker limit
//   - Forwards each wallet's alerts to every subscriber of that wallet
//
// A failed snapshot fetch skips the cycle and retries after a fixed pause.
// One wallet's failure never affects the others.
package poller
