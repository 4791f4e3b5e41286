package liquidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/liqwatch/internal/alert"
	"github.com/rickgao/liqwatch/internal/connection"
	"github.com/rickgao/liqwatch/internal/metrics"
	"github.com/rickgao/liqwatch/internal/model"
	"github.com/rickgao/liqwatch/internal/router"
)

// ClientFactory builds a connection client for one connection attempt.
type ClientFactory func(cfg connection.ClientConfig, logger *slog.Logger) connection.Client

// Config holds stream watcher configuration.
type Config struct {
	URL     string
	Address string  // Account whose fills are watched
	ChatIDs []int64 // Recipients of every liquidation alert

	PingInterval time.Duration // Heartbeat period (default: 30s)
	PingTimeout  time.Duration // Silence before the connection is stale (default: 3x PingInterval)
	WriteTimeout time.Duration

	ReconnectBaseDelay time.Duration // First reconnect delay (default: 5s)
	ReconnectMaxDelay  time.Duration // Reconnect delay cap (default: 300s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval:       30 * time.Second,
		PingTimeout:        90 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReconnectBaseDelay: 5 * time.Second,
		ReconnectMaxDelay:  300 * time.Second,
	}
}

// Status is a point-in-time view of the watcher.
type Status struct {
	State        connection.State
	ConnectionID string
	ConnectedAt  time.Time
	DownSince    time.Time // zero while connected
	Reconnects   int64
	Events       int64
	NextDelay    time.Duration
}

// Watcher keeps one subscription to an account's fill stream alive,
// reconnecting with exponential backoff, and turns each liquidation batch
// into one alert for every configured chat.
type Watcher struct {
	cfg       Config
	formatter *alert.Formatter
	notifier  alert.Notifier
	router    *router.Router
	newClient ClientFactory
	logger    *slog.Logger

	state      atomic.Int32
	reconnects atomic.Int64
	events     atomic.Int64

	// Guarded by mu.
	mu          sync.RWMutex
	backoff     *connection.Backoff
	connID      string
	connectedAt time.Time
	downSince   time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithClientFactory replaces the websocket client constructor.
func WithClientFactory(f ClientFactory) WatcherOption {
	return func(w *Watcher) {
		w.newClient = f
	}
}

// NewWatcher creates a stream watcher.
func NewWatcher(cfg Config, formatter *alert.Formatter, notifier alert.Notifier, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if formatter == nil {
		formatter = alert.NewFormatter("")
	}
	def := DefaultConfig()
	if cfg.PingInterval == 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PingTimeout == 0 {
		cfg.PingTimeout = 3 * cfg.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = def.ReconnectMaxDelay
	}

	w := &Watcher{
		cfg:       cfg,
		formatter: formatter,
		notifier:  notifier,
		router:    router.New(logger),
		newClient: connection.NewClient,
		logger:    logger,
		backoff:   connection.NewBackoff(cfg.ReconnectBaseDelay, cfg.ReconnectMaxDelay),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.mu.Lock()
	w.downSince = time.Now()
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run()

	w.logger.Info("liquidation watcher started",
		"address", w.cfg.Address,
		"recipients", len(w.cfg.ChatIDs),
	)

	return nil
}

// Stop closes the connection and waits for the watcher to exit.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("liquidation watcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current connection state.
func (w *Watcher) State() connection.State {
	return connection.State(w.state.Load())
}

// Status returns the current watcher status.
func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return Status{
		State:        w.State(),
		ConnectionID: w.connID,
		ConnectedAt:  w.connectedAt,
		DownSince:    w.downSince,
		Reconnects:   w.reconnects.Load(),
		Events:       w.events.Load(),
		NextDelay:    w.backoff.Peek(),
	}
}

// RouterStats returns decoding statistics.
func (w *Watcher) RouterStats() router.Stats {
	return w.router.Stats()
}

func (w *Watcher) setState(s connection.State) {
	w.state.Store(int32(s))
	metrics.SetStreamState(int(s))
}

// run connects, consumes until the connection fails, then waits out the
// backoff and tries again until the context ends.
func (w *Watcher) run() {
	defer w.wg.Done()
	defer w.setState(connection.StateDisconnected)

	for attempt := 0; ; attempt++ {
		if w.ctx.Err() != nil {
			return
		}
		if attempt > 0 {
			w.reconnects.Add(1)
			metrics.StreamReconnects.Inc()
		}

		w.setState(connection.StateConnecting)
		client, err := w.connect()
		if err != nil {
			w.setState(connection.StateDisconnected)
			if w.ctx.Err() != nil {
				return
			}
			delay := w.nextDelay()
			w.logger.Warn("stream connect failed",
				"error", err,
				"retry_in", delay,
			)
			if !w.sleep(delay) {
				return
			}
			continue
		}

		w.mu.Lock()
		w.backoff.Reset()
		w.mu.Unlock()
		w.setState(connection.StateConnected)

		err = w.consume(client)
		_ = client.Close()
		w.setState(connection.StateDisconnected)

		w.mu.Lock()
		w.downSince = time.Now()
		w.mu.Unlock()

		if w.ctx.Err() != nil {
			return
		}

		delay := w.nextDelay()
		w.logger.Warn("stream disconnected",
			"conn_id", w.Status().ConnectionID,
			"error", err,
			"retry_in", delay,
		)
		if !w.sleep(delay) {
			return
		}
	}
}

func (w *Watcher) nextDelay() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.backoff.Next()
}

// sleep waits d or until the watcher is stopped. It reports false on stop.
func (w *Watcher) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-w.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// connect dials and subscribes to the account's user events.
func (w *Watcher) connect() (connection.Client, error) {
	id := uuid.NewString()
	logger := w.logger.With("conn_id", id)

	client := w.newClient(connection.ClientConfig{
		URL:          w.cfg.URL,
		PingInterval: w.cfg.PingInterval,
		PingTimeout:  w.cfg.PingTimeout,
		WriteTimeout: w.cfg.WriteTimeout,
		BufferSize:   connection.DefaultClientConfig().BufferSize,
	}, logger)

	if err := client.Connect(w.ctx); err != nil {
		return nil, err
	}

	if err := client.Send(connection.SubscribeUserEvents(w.cfg.Address).Encode()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("subscribe user events: %w", err)
	}

	w.mu.Lock()
	w.connID = id
	w.connectedAt = time.Now()
	w.downSince = time.Time{}
	w.mu.Unlock()

	logger.Info("stream connected", "url", w.cfg.URL, "address", w.cfg.Address)
	return client, nil
}

// consume handles messages in arrival order until the connection reports an
// error or the watcher stops.
func (w *Watcher) consume(client connection.Client) error {
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case err := <-client.Errors():
			if err == nil {
				err = errors.New("connection closed")
			}
			return err
		case raw := <-client.Messages():
			w.handle(client, raw)
		}
	}
}

func (w *Watcher) handle(client connection.Client, raw connection.TimestampedMessage) {
	msg, err := w.router.Route(raw)
	if err != nil {
		metrics.StreamMessages.WithLabelValues("malformed").Inc()
		w.logger.Warn("dropping malformed stream message", "error", err)
		return
	}
	metrics.StreamMessages.WithLabelValues(msg.Kind.String()).Inc()

	switch msg.Kind {
	case router.KindPong:
		client.MarkAlive()
	case router.KindSubscriptionResponse:
		w.logger.Info("subscription acknowledged")
	case router.KindUserEvent:
		w.handleFills(msg.Fills)
	case router.KindError:
		w.logger.Warn("stream error message", "error", msg.Error)
	}
}

// handleFills aggregates one batch and sends one alert per chat.
func (w *Watcher) handleFills(fills []model.Fill) {
	ev, ok := Aggregate(fills)
	if !ok {
		w.logger.Debug("user event without liquidations", "fills", len(fills))
		return
	}

	byCoin := make(map[string]float64, len(ev.Assets))
	for _, a := range ev.Assets {
		byCoin[a.Coin] += a.Notional
	}
	metrics.RecordLiquidation(string(ev.Direction), byCoin)
	w.events.Add(1)

	w.logger.Info("liquidation detected",
		"direction", ev.Direction,
		"assets", len(ev.Assets),
		"notional", ev.TotalNotional(),
	)

	a := alert.Alert{Kind: alert.KindLiquidation, Text: w.formatter.Liquidation(ev)}
	for _, chatID := range w.cfg.ChatIDs {
		if err := w.notifier.Notify(w.ctx, chatID, a); err != nil {
			w.logger.Warn("failed to queue liquidation alert",
				"chat_id", chatID,
				"error", err,
			)
		}
	}
}
