// Package router decodes raw stream frames by channel.
//
// Channels:
//   - pong: heartbeat answer
//   - subscriptionResponse: subscribe acknowledgement
//   - user: user events; fills are extracted, including liquidation markers
//   - error: server-side error text
//
// Anything else is counted as unknown and skipped.
package router
