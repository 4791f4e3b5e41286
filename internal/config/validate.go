package config

import (
	"errors"
	"fmt"

	"github.com/rickgao/liqwatch/internal/wallet"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}

	if c.API.Retries() < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.RequestsPerSecond < 0 {
		return errors.New("api.requests_per_second must be >= 0")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}
	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}
	if c.Poller.Threshold <= 0 || c.Poller.Threshold > 1 {
		return fmt.Errorf("poller.threshold must be in (0, 1], got %v", c.Poller.Threshold)
	}

	if c.Stream.IsEnabled() {
		if err := wallet.ValidateAddress(c.Stream.Address); err != nil {
			return fmt.Errorf("stream.address: %w", err)
		}
		if c.Stream.ReconnectBaseDelay > c.Stream.ReconnectMaxDelay {
			return fmt.Errorf("stream.reconnect_base_delay (%v) cannot exceed reconnect_max_delay (%v)",
				c.Stream.ReconnectBaseDelay, c.Stream.ReconnectMaxDelay)
		}
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}
