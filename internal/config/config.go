package config

import "time"

// Config is the root configuration for a monitor instance.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Telegram TelegramConfig `yaml:"telegram"`
	Poller   PollerConfig   `yaml:"poller"`
	Stream   StreamConfig   `yaml:"stream"`
	Wallets  WalletsConfig  `yaml:"wallets"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// APIConfig holds exchange API settings.
type APIConfig struct {
	InfoURL           string        `yaml:"info_url"`
	WSURL             string        `yaml:"ws_url"`
	ExplorerURL       string        `yaml:"explorer_url"` // Prefix for wallet links in messages
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        *int          `yaml:"max_retries"` // Retries for per-wallet queries; 0 disables
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// Retries returns the configured retry count, or the default when unset.
func (a APIConfig) Retries() int {
	if a.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *a.MaxRetries
}

// TelegramConfig holds bot API settings.
type TelegramConfig struct {
	Token          string        `yaml:"token"`
	APIURL         string        `yaml:"api_url"`
	PollTimeout    time.Duration `yaml:"poll_timeout"` // getUpdates long-poll timeout
	SendsPerSecond float64       `yaml:"sends_per_second"`
}

// PollerConfig holds wallet risk polling settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	RetryPause  time.Duration `yaml:"retry_pause"`
	Threshold   float64       `yaml:"threshold"`
}

// StreamConfig holds liquidation stream settings.
type StreamConfig struct {
	Enabled            *bool         `yaml:"enabled"`
	Address            string        `yaml:"address"`  // Account whose fills are watched
	ChatIDs            []int64       `yaml:"chat_ids"` // Recipients of liquidation alerts
	PingInterval       time.Duration `yaml:"ping_interval"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
}

// IsEnabled reports whether the stream watcher should run.
func (s StreamConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// WalletsConfig holds wallet registry persistence settings.
type WalletsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "json" or "console"
	Output     string `yaml:"output"` // "stdout", "stderr" or a file path
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
}

// MetricsConfig holds Prometheus and health endpoint settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
