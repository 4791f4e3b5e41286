package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/liqwatch/internal/alert"
	"github.com/rickgao/liqwatch/internal/api"
	"github.com/rickgao/liqwatch/internal/bot"
	"github.com/rickgao/liqwatch/internal/config"
	"github.com/rickgao/liqwatch/internal/liquidation"
	"github.com/rickgao/liqwatch/internal/logging"
	"github.com/rickgao/liqwatch/internal/poller"
	"github.com/rickgao/liqwatch/internal/telegram"
	"github.com/rickgao/liqwatch/internal/version"
	"github.com/rickgao/liqwatch/internal/wallet"
)

func main() {
	configPath := flag.String("config", "configs/liqwatch.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load env file", "path", *envFile, "error", err)
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger, syncLogs, err := logging.New(cfg.Logging)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer syncLogs()
	slog.SetDefault(logger)

	logger.Info("starting liqwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("liqwatch exited with error", "error", err)
		_ = syncLogs()
		os.Exit(1)
	}

	logger.Info("liqwatch stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Wallet registry
	store := wallet.NewFileStore(cfg.Wallets.Path)
	registry := wallet.NewRegistry(store, logger.With("component", "wallets", "path", store.Path()))
	if err := registry.Load(); err != nil {
		return fmt.Errorf("load wallet registry %s: %w", store.Path(), err)
	}

	apiClient := api.NewClient(
		cfg.API.InfoURL,
		api.WithLogger(logger.With("component", "api")),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.Retries(), time.Second),
		api.WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst),
	)

	tg := telegram.NewClient(
		cfg.Telegram.Token,
		telegram.WithAPIURL(cfg.Telegram.APIURL),
		telegram.WithLogger(logger.With("component", "telegram")),
		telegram.WithSendRate(cfg.Telegram.SendsPerSecond),
	)

	formatter := alert.NewFormatter(cfg.API.ExplorerURL)
	outbox := alert.NewOutbox(tg, 0, logger.With("component", "outbox"))

	commands := bot.New(registry, apiClient, outbox, formatter, logger.With("component", "bot"))
	updates := telegram.NewUpdatePoller(tg, commands, cfg.Telegram.PollTimeout, logger.With("component", "updates"))

	riskPoller := poller.New(poller.Config{
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		Timeout:     cfg.Poller.Timeout,
		RetryPause:  cfg.Poller.RetryPause,
		Threshold:   cfg.Poller.Threshold,
	}, apiClient, registry, formatter, outbox, logger.With("component", "poller"))

	var watcher *liquidation.Watcher
	if cfg.Stream.IsEnabled() {
		watcher = liquidation.NewWatcher(liquidation.Config{
			URL:                cfg.API.WSURL,
			Address:            cfg.Stream.Address,
			ChatIDs:            cfg.Stream.ChatIDs,
			PingInterval:       cfg.Stream.PingInterval,
			WriteTimeout:       cfg.Stream.WriteTimeout,
			ReconnectBaseDelay: cfg.Stream.ReconnectBaseDelay,
			ReconnectMaxDelay:  cfg.Stream.ReconnectMaxDelay,
		}, formatter, outbox, logger.With("component", "stream"))
	}

	healthServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: newHandler(handlerDeps{
			poller:      riskPoller,
			stream:      streamStatus(watcher),
			outbox:      outbox,
			registry:    registry,
			streamGrace: 2 * cfg.Stream.ReconnectMaxDelay,
			metricsPath: cfg.Metrics.Path,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return outbox.Run(gctx)
	})

	g.Go(func() error {
		return updates.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := riskPoller.Start(gctx); err != nil {
		cancel()
		return fmt.Errorf("start poller: %w", err)
	}
	if watcher != nil {
		if err := watcher.Start(gctx); err != nil {
			cancel()
			return fmt.Errorf("start liquidation watcher: %w", err)
		}
	} else {
		logger.Info("liquidation stream disabled")
	}

	logger.Info("liqwatch running",
		"wallets", registry.Len(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	err := g.Wait()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := riskPoller.Stop(shutdownCtx); err != nil {
		logger.Warn("poller did not stop cleanly", "error", err)
	}
	if watcher != nil {
		if err := watcher.Stop(shutdownCtx); err != nil {
			logger.Warn("liquidation watcher did not stop cleanly", "error", err)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// streamStatus returns nil when the stream is disabled.
func streamStatus(w *liquidation.Watcher) StreamSource {
	if w == nil {
		return nil
	}
	return w
}
