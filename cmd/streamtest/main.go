// streamtest subscribes to an account's user events and prints decoded
// stream messages to the console.
// Usage: go run ./cmd/streamtest --config configs/liqwatch.example.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/liqwatch/internal/alert"
	"github.com/rickgao/liqwatch/internal/config"
	"github.com/rickgao/liqwatch/internal/connection"
	"github.com/rickgao/liqwatch/internal/liquidation"
	"github.com/rickgao/liqwatch/internal/router"
)

func main() {
	configPath := flag.String("config", "configs/liqwatch.example.yaml", "path to config file")
	address := flag.String("address", "", "account to watch (default: stream.address from config)")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *address == "" {
		*address = cfg.Stream.Address
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	clientCfg := connection.DefaultClientConfig()
	clientCfg.URL = cfg.API.WSURL
	clientCfg.PingInterval = cfg.Stream.PingInterval
	clientCfg.PingTimeout = 3 * cfg.Stream.PingInterval

	client := connection.NewClient(clientCfg, logger)
	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.Send(connection.SubscribeUserEvents(*address).Encode()); err != nil {
		logger.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}
	logger.Info("subscribed", "address", *address, "url", cfg.API.WSURL)

	rtr := router.New(logger)
	formatter := alert.NewFormatter(cfg.API.ExplorerURL)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := rtr.Stats()
				logger.Info("stats",
					"connected", client.IsConnected(),
					"received", stats.MessagesReceived,
					"routed", stats.MessagesRouted,
					"parse_errors", stats.ParseErrors,
					"unknown", stats.UnknownMessages,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown complete")
			return
		case err := <-client.Errors():
			logger.Error("connection lost", "error", err)
			return
		case raw := <-client.Messages():
			msg, err := rtr.Route(raw)
			if err != nil {
				fmt.Printf("[MALFORMED] %v\n", err)
				continue
			}
			printMessage(client, formatter, msg, *verbose)
		}
	}
}

func printMessage(client connection.Client, formatter *alert.Formatter, msg router.Message, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(msg, "", "  ")
		fmt.Printf("[%s] %s\n", msg.Kind, data)
	}

	switch msg.Kind {
	case router.KindPong:
		client.MarkAlive()
		fmt.Println("[PONG]")
	case router.KindSubscriptionResponse:
		fmt.Println("[SUBSCRIBED]")
	case router.KindError:
		fmt.Printf("[ERROR] %s\n", msg.Error)
	case router.KindUserEvent:
		for _, f := range msg.Fills {
			fmt.Printf("[FILL] coin=%s px=%g sz=%g dir=%q liquidation=%t\n",
				f.Coin, f.Price, f.Size, f.Dir, f.Liquidation != nil)
		}
		if ev, ok := liquidation.Aggregate(msg.Fills); ok {
			fmt.Printf("[LIQUIDATION]\n%s\n", formatter.Liquidation(ev))
		}
	default:
		fmt.Printf("[UNKNOWN] channel=%s\n", msg.Channel)
	}
}
