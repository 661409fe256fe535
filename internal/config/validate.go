package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Auth.RefreshToken == "" {
		return errors.New("auth.refresh_token is required (or set ALOR_REFRESH_TOKEN)")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}

	if err := validateURL("api.oauth_url", c.API.OAuthURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("api.rest_url", c.API.RestURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("api.ws_url", c.API.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if c.API.Retries() < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Market.Exchange == "" {
		return errors.New("market.exchange is required")
	}
	if c.Market.Depth < 1 {
		return fmt.Errorf("market.depth must be >= 1, got %d", c.Market.Depth)
	}
	if c.Market.Concurrency < 0 {
		return errors.New("market.concurrency must be >= 0")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be positive")
	}

	switch c.Stream.Format {
	case "Simple", "Slim", "Heavy":
	default:
		return fmt.Errorf("stream.format must be Simple, Slim or Heavy, got %q", c.Stream.Format)
	}
	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", field, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s scheme must be one of %v, got %q", field, schemes, u.Scheme)
}
