// Package connection implements the streaming WebSocket client.
//
// The client:
//   - Dials the exchange WebSocket endpoint and subscribes to user events
//   - Sends an application-level {"method":"ping"} every ping interval
//   - Treats a missing pong (or a failed ping write) as a dead connection
//   - Delivers raw frames, in arrival order, on a single channel
//
// Reconnection is not handled here; see Backoff and State for the pieces
// callers use to drive it.
package connection
