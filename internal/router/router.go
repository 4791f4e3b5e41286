package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/rickgao/liqwatch/internal/connection"
	"github.com/rickgao/liqwatch/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedMessage is wrapped by every decoding failure.
var ErrMalformedMessage = errors.New("malformed stream message")

// Message is a decoded stream message.
type Message struct {
	Kind       Kind
	Channel    string
	Fills      []model.Fill // KindUserEvent only
	Error      string       // KindError only
	ReceivedAt time.Time
}

// Router decodes raw stream frames into typed messages. Route is called
// from a single goroutine per connection; Stats may be called concurrently.
type Router struct {
	logger *slog.Logger

	mu              sync.RWMutex
	received        int64
	routed          int64
	parseErrors     int64
	unknownMessages int64
	lastMessageAt   time.Time
}

// New creates a Router.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger}
}

// Route decodes one raw message. A malformed message returns an error
// wrapping ErrMalformedMessage; the caller drops it and continues.
func (r *Router) Route(raw connection.TimestampedMessage) (Message, error) {
	r.mu.Lock()
	r.received++
	r.lastMessageAt = raw.ReceivedAt
	r.mu.Unlock()

	msg, err := decode(raw.Data)
	msg.ReceivedAt = raw.ReceivedAt

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case err != nil:
		r.parseErrors++
	case msg.Kind == KindUnknown:
		r.unknownMessages++
		r.logger.Debug("skipping message", "channel", msg.Channel)
	default:
		r.routed++
	}

	return msg, err
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		MessagesReceived: r.received,
		MessagesRouted:   r.routed,
		ParseErrors:      r.parseErrors,
		UnknownMessages:  r.unknownMessages,
		LastMessageAt:    r.lastMessageAt,
	}
}

// decode parses a single frame.
func decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	msg := Message{Channel: env.Channel}

	switch env.Channel {
	case ChannelPong:
		msg.Kind = KindPong

	case ChannelSubscriptionResponse:
		msg.Kind = KindSubscriptionResponse

	case ChannelUser:
		fills, err := parseUserEvent(data)
		if err != nil {
			return Message{Channel: env.Channel}, err
		}
		msg.Kind = KindUserEvent
		msg.Fills = fills

	case ChannelError:
		var wire errorWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return Message{Channel: env.Channel}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		msg.Kind = KindError
		msg.Error = wire.Data

	default:
		msg.Kind = KindUnknown
	}

	return msg, nil
}

// parseUserEvent extracts the fills of a user event. Events without fills
// (funding, non-user cancels) yield an empty slice.
func parseUserEvent(data []byte) ([]model.Fill, error) {
	var wire userEventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	fills := make([]model.Fill, 0, len(wire.Data.Fills))
	for i, fw := range wire.Data.Fills {
		f, err := fw.toModel()
		if err != nil {
			return nil, fmt.Errorf("fill %d: %w", i, err)
		}
		fills = append(fills, f)
	}

	return fills, nil
}

func (fw fillWire) toModel() (model.Fill, error) {
	px, err := parseNumber("px", fw.Px)
	if err != nil {
		return model.Fill{}, err
	}
	sz, err := parseNumber("sz", fw.Sz)
	if err != nil {
		return model.Fill{}, err
	}

	f := model.Fill{
		Coin:  fw.Coin,
		Price: px,
		Size:  sz,
		Side:  fw.Side,
		Dir:   fw.Dir,
		Time:  fw.Time,
	}

	if fw.Liquidation != nil {
		mark, err := parseNumber("liquidation.markPx", fw.Liquidation.MarkPx)
		if err != nil {
			return model.Fill{}, err
		}
		f.Liquidation = &model.LiquidationMarker{
			LiquidatedUser: fw.Liquidation.LiquidatedUser,
			MarkPrice:      mark,
			Method:         fw.Liquidation.Method,
		}
	}

	return f, nil
}

func parseNumber(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrMalformedMessage, field, s)
	}
	return v, nil
}
