package config

import "time"

// Config is the root configuration of an Alor client.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Auth    AuthConfig    `yaml:"auth"`
	Market  MarketConfig  `yaml:"market"`
	Poller  PollerConfig  `yaml:"poller"`
	Stream  StreamConfig  `yaml:"stream"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds endpoint and transport settings.
type APIConfig struct {
	Dev          bool          `yaml:"dev"` // use the test environment endpoints
	OAuthURL     string        `yaml:"oauth_url"`
	RestURL      string        `yaml:"rest_url"`
	WSURL        string        `yaml:"ws_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   *int          `yaml:"max_retries"` // nil = default, 0 disables retrying
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// Retries returns the configured retry count, or DefaultMaxRetries when unset.
func (a APIConfig) Retries() int {
	if a.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *a.MaxRetries
}

// AuthConfig holds session settings.
type AuthConfig struct {
	RefreshToken string        `yaml:"refresh_token"`
	Username     string        `yaml:"username"` // taken from the token's sub claim when empty
	TokenTTL     time.Duration `yaml:"token_ttl"`
	RenewTimeout time.Duration `yaml:"renew_timeout"`
}

// MarketConfig holds order book fetch settings.
type MarketConfig struct {
	Exchange    string        `yaml:"exchange"`
	Depth       int           `yaml:"depth"`
	Symbols     []string      `yaml:"symbols"`
	Concurrency int           `yaml:"concurrency"` // 0 = unbounded
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// PollerConfig holds periodic fetch settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StreamConfig holds WebSocket settings.
type StreamConfig struct {
	Format       string        `yaml:"format"` // Simple, Slim or Heavy
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"` // max time without a pong
	BufferSize   int           `yaml:"buffer_size"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
