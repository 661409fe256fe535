package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultOAuthURL     = "https://oauth.alor.ru"
	DefaultRestURL      = "https://api.alor.ru"
	DefaultWSURL        = "wss://api.alor.ru/ws"
	DevOAuthURL         = "https://oauthdev.alor.ru"
	DevRestURL          = "https://apidev.alor.ru"
	DevWSURL            = "wss://apidev.alor.ru/ws"
	DefaultAPITimeout   = 30 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 200 * time.Millisecond
	DefaultTokenTTL     = 60 * time.Second
	DefaultRenewTimeout = 10 * time.Second
	DefaultExchange     = "MOEX"
	DefaultDepth        = 20
	DefaultCallTimeout  = 10 * time.Second
	DefaultPollInterval = 10 * time.Second
	DefaultPollTimeout  = 30 * time.Second
	DefaultStreamFormat = "Simple"
	DefaultPingInterval = 15 * time.Second
	DefaultPingTimeout  = 30 * time.Second
	DefaultBufferSize   = 1000
	DefaultMetricsPort  = 9090
	DefaultMetricsPath  = "/metrics"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	oauthURL, restURL, wsURL := DefaultOAuthURL, DefaultRestURL, DefaultWSURL
	if c.API.Dev {
		oauthURL, restURL, wsURL = DevOAuthURL, DevRestURL, DevWSURL
	}
	if c.API.OAuthURL == "" {
		c.API.OAuthURL = oauthURL
	}
	if c.API.RestURL == "" {
		c.API.RestURL = restURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = wsURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.API.MaxRetries = &retries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}

	// Auth defaults
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Auth.RenewTimeout == 0 {
		c.Auth.RenewTimeout = DefaultRenewTimeout
	}

	// Market defaults
	if c.Market.Exchange == "" {
		c.Market.Exchange = DefaultExchange
	}
	if c.Market.Depth == 0 {
		c.Market.Depth = DefaultDepth
	}
	if c.Market.CallTimeout == 0 {
		c.Market.CallTimeout = DefaultCallTimeout
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Stream defaults
	if c.Stream.Format == "" {
		c.Stream.Format = DefaultStreamFormat
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
