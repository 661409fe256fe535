package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// HeaderSource supplies the authenticated header set for one request.
// It is consulted on every attempt so a renewed token is picked up on retry.
type HeaderSource interface {
	Header(ctx context.Context) (http.Header, error)
}

// Client provides access to the Alor REST API.
type Client struct {
	baseURL    string
	auth       HeaderSource
	httpClient *http.Client
	logger     *slog.Logger
	validate   *validator.Validate

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. A nil auth sends unauthenticated
// requests.
func NewClient(baseURL string, auth HeaderSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		auth:    auth,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		maxRetries:   2,
		retryBackoff: 200 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration. max is the number of retries
// after the first attempt; 0 disables retrying.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
