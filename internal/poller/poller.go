package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/liqwatch/internal/alert"
	"github.com/rickgao/liqwatch/internal/api"
	"github.com/rickgao/liqwatch/internal/metrics"
	"github.com/rickgao/liqwatch/internal/model"
	"github.com/rickgao/liqwatch/internal/risk"
)

// ErrSnapshotUnavailable is returned when a cycle cannot fetch market data.
var ErrSnapshotUnavailable = errors.New("market snapshot unavailable")

// Exchange provides market and account data.
type Exchange interface {
	FetchMarketSnapshot(ctx context.Context) (model.MarketSnapshot, error)
	GetAccountState(ctx context.Context, wallet string) (model.AccountState, error)
}

// WalletSource provides the wallets to evaluate and their subscribers.
type WalletSource interface {
	Snapshot() map[string][]int64
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Cycle interval (default: 600s)
	Concurrency int           // Max concurrent wallet evaluations (default: 32)
	Timeout     time.Duration // Per-wallet request timeout (default: 15s)
	RetryPause  time.Duration // Pause after a failed snapshot fetch (default: 60s)
	Threshold   float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    600 * time.Second,
		Concurrency: 32,
		Timeout:     15 * time.Second,
		RetryPause:  60 * time.Second,
		Threshold:   risk.DefaultThreshold,
	}
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Wallets   int
	Evaluated int
	Failed    int
	Alerted   int
	Err       error
}

// Poller periodically evaluates every registered wallet against a fresh
// market snapshot and forwards alerts to each wallet's subscribers.
type Poller struct {
	cfg       Config
	exchange  Exchange
	wallets   WalletSource
	evaluator *risk.Evaluator
	formatter *alert.Formatter
	notifier  alert.Notifier
	logger    *slog.Logger

	mu   sync.RWMutex
	last CycleResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, exchange Exchange, wallets WalletSource, formatter *alert.Formatter, notifier alert.Notifier, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if formatter == nil {
		formatter = alert.NewFormatter("")
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryPause <= 0 {
		cfg.RetryPause = def.RetryPause
	}

	return &Poller{
		cfg:       cfg,
		exchange:  exchange,
		wallets:   wallets,
		evaluator: risk.NewEvaluator(cfg.Threshold),
		formatter: formatter,
		notifier:  notifier,
		logger:    logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("risk poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
		"threshold", p.evaluator.Threshold,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("risk poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastCycle returns the result of the most recent completed cycle.
func (p *Poller) LastCycle() CycleResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollUntilDone()
	dropOverrun(ticker, p.logger)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollUntilDone()
			dropOverrun(ticker, p.logger)
		}
	}
}

// pollUntilDone runs cycles until one gets past the snapshot fetch, pausing
// between attempts.
func (p *Poller) pollUntilDone() {
	for {
		_, err := p.RunCycle(p.ctx)
		if !errors.Is(err, ErrSnapshotUnavailable) {
			return
		}

		p.logger.Info("retrying cycle after pause", "pause", p.cfg.RetryPause)
		select {
		case <-p.ctx.Done():
			return
		case <-time.After(p.cfg.RetryPause):
		}
	}
}

// dropOverrun discards a tick that fired while a cycle was running.
func dropOverrun(ticker *time.Ticker, logger *slog.Logger) {
	select {
	case <-ticker.C:
		logger.Warn("cycle overran interval, skipping tick")
	default:
	}
}

// RunCycle evaluates every wallet once. It blocks until all evaluations
// finish.
func (p *Poller) RunCycle(ctx context.Context) (CycleResult, error) {
	res := CycleResult{ID: uuid.NewString(), StartedAt: time.Now()}
	logger := p.logger.With("cycle", res.ID)

	wallets := p.wallets.Snapshot()
	res.Wallets = len(wallets)
	metrics.RegistryWallets.Set(float64(len(wallets)))

	if len(wallets) == 0 {
		logger.Debug("no wallets to poll")
		res.Duration = time.Since(res.StartedAt)
		metrics.RecordCycle(metrics.ResultSkipped, res.Duration)
		p.setLast(res)
		return res, nil
	}

	snap, err := p.exchange.FetchMarketSnapshot(ctx)
	if err != nil {
		res.Duration = time.Since(res.StartedAt)
		res.Err = fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
		metrics.RecordCycle(metrics.ResultError, res.Duration)
		logger.Error("failed to fetch market snapshot", "error", err)
		p.setLast(res)
		return res, res.Err
	}

	addrs := make([]string, 0, len(wallets))
	for addr := range wallets {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	var evaluated, failed, alerted atomic.Int64

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	for _, addr := range addrs {
		if ctx.Err() != nil {
			break
		}
		subs := wallets[addr]
		g.Go(func() error {
			sent, err := p.pollWallet(ctx, logger, addr, subs, snap)
			if err != nil {
				failed.Add(1)
				return nil
			}
			evaluated.Add(1)
			if sent {
				alerted.Add(1)
			}
			return nil
		})
	}

	_ = g.Wait()

	res.Evaluated = int(evaluated.Load())
	res.Failed = int(failed.Load())
	res.Alerted = int(alerted.Load())
	res.Duration = time.Since(res.StartedAt)
	metrics.RecordCycle(metrics.ResultOK, res.Duration)
	p.setLast(res)

	logger.Info("poll cycle complete",
		"wallets", res.Wallets,
		"evaluated", res.Evaluated,
		"failed", res.Failed,
		"alerted", res.Alerted,
		"assets", snap.Len(),
		"snapshot_age", res.StartedAt.Add(res.Duration).Sub(snap.FetchedAt()),
		"duration", res.Duration,
	)

	return res, nil
}

// pollWallet fetches and evaluates one wallet and forwards any alerts. It
// reports whether alerts were produced.
func (p *Poller) pollWallet(ctx context.Context, logger *slog.Logger, addr string, subs []int64, snap model.MarketSnapshot) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	state, err := p.exchange.GetAccountState(reqCtx, addr)
	cancel()
	if err != nil {
		metrics.RecordEvaluation(metrics.ResultError)
		logger.Warn("failed to evaluate wallet",
			"wallet", addr,
			"malformed", errors.Is(err, api.ErrMalformedResponse),
			"error", err,
		)
		return false, err
	}

	a := p.evaluator.Evaluate(addr, state, snap)
	metrics.RecordEvaluation(metrics.ResultOK)

	for _, s := range a.Skipped {
		logger.Warn("position skipped",
			"wallet", addr,
			"coin", s.Coin,
			"reason", s.Reason,
		)
	}

	alerts := p.formatter.RiskAlerts(a)
	if len(alerts) == 0 {
		return false, nil
	}

	logger.Info("wallet at risk",
		"wallet", addr,
		"margin_ratio", a.MarginRatio,
		"cross_alert", a.CrossAlert,
		"cross_positions", len(a.CrossAtRisk),
		"isolated_positions", len(a.IsolatedAtRisk),
		"subscribers", len(subs),
	)

	for _, sub := range subs {
		for _, al := range alerts {
			if err := p.notifier.Notify(ctx, sub, al); err != nil {
				logger.Warn("failed to queue alert",
					"wallet", addr,
					"subscriber", sub,
					"kind", al.Kind,
					"error", err,
				)
			}
		}
	}

	return true, nil
}

// EvaluateWallet fetches a wallet and a fresh snapshot and returns the
// assessment without sending anything.
func (p *Poller) EvaluateWallet(ctx context.Context, addr string) (model.RiskAssessment, error) {
	snap, err := p.exchange.FetchMarketSnapshot(ctx)
	if err != nil {
		return model.RiskAssessment{}, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	state, err := p.exchange.GetAccountState(reqCtx, addr)
	if err != nil {
		return model.RiskAssessment{}, err
	}
	return p.evaluator.Evaluate(addr, state, snap), nil
}

func (p *Poller) setLast(res CycleResult) {
	p.mu.Lock()
	p.last = res
	p.mu.Unlock()
}
