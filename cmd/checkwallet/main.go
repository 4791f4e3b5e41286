// checkwallet evaluates one wallet against the current market and prints the
// alerts the poller would send, without sending anything.
// Usage: go run ./cmd/checkwallet --config configs/liqwatch.example.yaml 0xabc...
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/liqwatch/internal/alert"
	"github.com/rickgao/liqwatch/internal/api"
	"github.com/rickgao/liqwatch/internal/config"
	"github.com/rickgao/liqwatch/internal/poller"
	"github.com/rickgao/liqwatch/internal/wallet"
)

func main() {
	configPath := flag.String("config", "configs/liqwatch.example.yaml", "path to config file")
	threshold := flag.Float64("threshold", 0, "alert threshold override (0 uses config)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: checkwallet [flags] <wallet_address>")
		os.Exit(2)
	}

	addr, err := wallet.Normalize(flag.Arg(0))
	if err != nil {
		logger.Error("invalid wallet address", "address", flag.Arg(0), "error", err)
		os.Exit(2)
	}

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *threshold > 0 {
		cfg.Poller.Threshold = *threshold
	}

	client := api.NewClient(
		cfg.API.InfoURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.Retries(), time.Second),
	)

	formatter := alert.NewFormatter(cfg.API.ExplorerURL)
	p := poller.New(poller.Config{
		Timeout:   cfg.Poller.Timeout,
		Threshold: cfg.Poller.Threshold,
	}, client, nil, formatter, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := p.EvaluateWallet(ctx, addr)
	if err != nil {
		logger.Error("failed to evaluate wallet", "error", err)
		os.Exit(1)
	}

	fmt.Printf("wallet:          %s\n", a.Wallet)
	if a.CrossEvaluated {
		fmt.Printf("cross value:     %s\n", alert.Money(a.CrossAccountValue))
		fmt.Printf("maint. margin:   %s\n", alert.Money(a.CrossMaintenanceMarginUsed))
		fmt.Printf("margin ratio:    %s (alert: %t)\n", alert.Percent(a.MarginRatio), a.CrossAlert)
	} else {
		fmt.Println("cross:           no cross margin account value")
	}
	for _, s := range a.Skipped {
		fmt.Printf("skipped:         %s (%v)\n", s.Coin, s.Reason)
	}

	alerts := formatter.RiskAlerts(a)
	if len(alerts) == 0 {
		fmt.Println("\nno alerts")
		return
	}

	for _, al := range alerts {
		fmt.Printf("\n--- %s ---\n%s\n", al.Kind, al.Text)
	}
}
