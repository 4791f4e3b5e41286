package alert

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/liqwatch/internal/metrics"
)

// ErrOutboxClosed is returned when posting to a stopped outbox.
var ErrOutboxClosed = errors.New("outbox closed")

// Dispatcher delivers one text message to one recipient.
type Dispatcher interface {
	Send(ctx context.Context, recipient int64, text string) error
}

// Notifier accepts alerts for delivery.
type Notifier interface {
	Notify(ctx context.Context, recipient int64, a Alert) error
}

// envelope is a queued delivery.
type envelope struct {
	recipient int64
	alert     Alert
	queuedAt  time.Time
}

// Outbox queues alerts and delivers them sequentially through a Dispatcher.
// Delivery failures are logged and counted; nothing is retried.
type Outbox struct {
	dispatcher  Dispatcher
	logger      *slog.Logger
	sendTimeout time.Duration

	queue *Queue[envelope]
}

// NewOutbox creates an outbox. sendTimeout bounds each Dispatcher call.
func NewOutbox(d Dispatcher, sendTimeout time.Duration, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}

	return &Outbox{
		dispatcher:  d,
		logger:      logger,
		sendTimeout: sendTimeout,
		queue:       NewQueue[envelope](64),
	}
}

// Notify queues an alert. It never blocks on delivery.
func (o *Outbox) Notify(_ context.Context, recipient int64, a Alert) error {
	if !o.queue.Push(envelope{recipient: recipient, alert: a, queuedAt: time.Now()}) {
		return ErrOutboxClosed
	}
	metrics.OutboxDepth.Set(float64(o.queue.Len()))
	return nil
}

// Send queues a plain reply, so the outbox can stand in for a Dispatcher.
func (o *Outbox) Send(ctx context.Context, recipient int64, text string) error {
	return o.Notify(ctx, recipient, Alert{Kind: KindReply, Text: text})
}

// Pending returns the number of queued alerts.
func (o *Outbox) Pending() int {
	return o.queue.Len()
}

// Run delivers queued alerts until ctx is cancelled. Alerts still queued at
// shutdown are dropped.
func (o *Outbox) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		o.queue.Close()
	}()

	for {
		env, ok := o.queue.Pop()
		if !ok {
			return nil
		}
		metrics.OutboxDepth.Set(float64(o.queue.Len()))

		if ctx.Err() != nil {
			dropped := 1 + o.drain()
			o.logger.Warn("outbox stopped with pending alerts", "dropped", dropped)
			return nil
		}

		o.deliver(ctx, env)
	}
}

// drain empties the queue after shutdown and returns how many alerts it
// discarded.
func (o *Outbox) drain() int {
	n := 0
	for {
		if _, ok := o.queue.TryPop(); !ok {
			break
		}
		n++
	}
	metrics.OutboxDepth.Set(0)
	return n
}

func (o *Outbox) deliver(ctx context.Context, env envelope) {
	sendCtx, cancel := context.WithTimeout(ctx, o.sendTimeout)
	defer cancel()

	err := o.dispatcher.Send(sendCtx, env.recipient, env.alert.Text)
	metrics.RecordAlert(string(env.alert.Kind), err)

	if err != nil {
		o.logger.Warn("alert delivery failed",
			"recipient", env.recipient,
			"kind", env.alert.Kind,
			"error", err,
		)
		return
	}

	o.logger.Debug("alert delivered",
		"recipient", env.recipient,
		"kind", env.alert.Kind,
		"queued_for", time.Since(env.queuedAt),
	)
}
