package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInfoURL            = "https://api.hyperliquid.xyz/info"
	DefaultWSURL              = "wss://api.hyperliquid.xyz/ws"
	DefaultExplorerURL        = "https://app.hyperliquid.xyz/explorer/address/"
	DefaultAPITimeout         = 10 * time.Second
	DefaultMaxRetries         = 2
	DefaultRequestsPerSecond  = 20
	DefaultBurst              = 32
	DefaultTelegramURL        = "https://api.telegram.org"
	DefaultTelegramPoll       = 30 * time.Second
	DefaultSendsPerSecond     = 25
	DefaultPollInterval       = 600 * time.Second
	DefaultPollConcurrency    = 32
	DefaultPollTimeout        = 15 * time.Second
	DefaultRetryPause         = 60 * time.Second
	DefaultThreshold          = 0.70
	DefaultLiquidationVault   = "0x2e3d94f0562703b25c83308a05046ddaf9a8dd14"
	DefaultPingInterval       = 30 * time.Second
	DefaultReconnectBaseDelay = 5 * time.Second
	DefaultReconnectMaxDelay  = 300 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultWalletsPath        = "settings.json"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultLogOutput          = "stdout"
	DefaultLogMaxAgeDays      = 7
	DefaultLogMaxSizeMB       = 100
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

// applyDefaults fills every unset optional field.
func (c *Config) applyDefaults() {
	// API defaults
	if c.API.InfoURL == "" {
		c.API.InfoURL = DefaultInfoURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.ExplorerURL == "" {
		c.API.ExplorerURL = DefaultExplorerURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.API.MaxRetries = &retries
	}
	if c.API.RequestsPerSecond == 0 {
		c.API.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.API.Burst == 0 {
		c.API.Burst = DefaultBurst
	}

	// Telegram defaults
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = DefaultTelegramURL
	}
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = DefaultTelegramPoll
	}
	if c.Telegram.SendsPerSecond == 0 {
		c.Telegram.SendsPerSecond = DefaultSendsPerSecond
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}
	if c.Poller.RetryPause == 0 {
		c.Poller.RetryPause = DefaultRetryPause
	}
	if c.Poller.Threshold == 0 {
		c.Poller.Threshold = DefaultThreshold
	}

	// Stream defaults
	if c.Stream.Address == "" {
		c.Stream.Address = DefaultLiquidationVault
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}

	if c.Wallets.Path == "" {
		c.Wallets.Path = DefaultWalletsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = DefaultLogOutput
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
