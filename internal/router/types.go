package router

import "time"

// Kind classifies a decoded stream message.
type Kind int

const (
	KindUnknown Kind = iota
	KindPong
	KindSubscriptionResponse
	KindUserEvent
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindPong:
		return "pong"
	case KindSubscriptionResponse:
		return "subscriptionResponse"
	case KindUserEvent:
		return "user"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Stream channel names.
const (
	ChannelPong                 = "pong"
	ChannelSubscriptionResponse = "subscriptionResponse"
	ChannelUser                 = "user"
	ChannelError                = "error"
)

// Wire types for JSON parsing

// envelope is used for fast channel extraction.
type envelope struct {
	Channel string `json:"channel"`
}

// userEventWire is the wire format for "user" channel messages. Only one of
// the data members is set per message.
type userEventWire struct {
	Channel string `json:"channel"`
	Data    struct {
		Fills []fillWire `json:"fills"`
	} `json:"data"`
}

// fillWire is one fill in a user event.
type fillWire struct {
	Coin          string           `json:"coin"`
	Px            string           `json:"px"`
	Sz            string           `json:"sz"`
	Side          string           `json:"side"` // "B" or "A"
	Time          int64            `json:"time"` // ms
	StartPosition string           `json:"startPosition"`
	Dir           string           `json:"dir"` // "Open Long", "Close Short", ...
	ClosedPnl     string           `json:"closedPnl"`
	Hash          string           `json:"hash"`
	Oid           int64            `json:"oid"`
	Crossed       bool             `json:"crossed"`
	Fee           string           `json:"fee"`
	Tid           int64            `json:"tid"`
	Liquidation   *liquidationWire `json:"liquidation,omitempty"`
}

// liquidationWire marks a fill produced by a liquidation.
type liquidationWire struct {
	LiquidatedUser string `json:"liquidatedUser"`
	MarkPx         string `json:"markPx"`
	Method         string `json:"method"` // "market" or "backstop"
}

// errorWire is the wire format for "error" channel messages.
type errorWire struct {
	Channel string `json:"channel"`
	Data    string `json:"data"`
}

// Stats contains decoding statistics.
type Stats struct {
	MessagesReceived int64
	MessagesRouted   int64
	ParseErrors      int64
	UnknownMessages  int64
	LastMessageAt    time.Time
}
