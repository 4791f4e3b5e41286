package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrHeartbeatFailed = errors.New("heartbeat ping failed")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Request is an outgoing WebSocket request.
type Request struct {
	Method       string        `json:"method"` // "subscribe", "unsubscribe", "ping"
	Subscription *Subscription `json:"subscription,omitempty"`
}

// Subscription identifies a stream feed.
type Subscription struct {
	Type string `json:"type"` // "userEvents", "userFills", ...
	User string `json:"user,omitempty"`
}

// SubscribeUserEvents builds the subscribe request for an address's user events.
func SubscribeUserEvents(user string) Request {
	return Request{
		Method:       "subscribe",
		Subscription: &Subscription{Type: "userEvents", User: user},
	}
}

// PingRequest is the application-level heartbeat.
var PingRequest = Request{Method: "ping"}

// Encode marshals the request.
func (r Request) Encode() []byte {
	data, _ := json.Marshal(r)
	return data
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g., wss://api.hyperliquid.xyz/ws)
	PingInterval time.Duration // Heartbeat cadence
	PingTimeout  time.Duration // Max time without pong before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 30 * time.Second,
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}
