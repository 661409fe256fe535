package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jpillora/backoff"

	"github.com/mechnotech/alor-api/internal/auth"
	"github.com/mechnotech/alor-api/internal/metrics"
	"github.com/mechnotech/alor-api/internal/version"
)

// APIError represents a non-success response from the Alor API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alor api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// TransportError means the request could not complete (dial, TLS, timeout, reset).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrEmptyBody is wrapped by DecodeError when the server answers with a JSON
// null where an object was expected.
var ErrEmptyBody = errors.New("empty response body")

// DecodeError means the response body was not the JSON we expected.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return "decode response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// request describes one REST call.
type request struct {
	endpoint string // metrics label
	method   string
	path     string
	query    url.Values
	header   http.Header // extra per-call headers
	payload  []byte      // JSON body, nil for none
}

// doRequest performs a single HTTP attempt.
func (c *Client) doRequest(ctx context.Context, r request) ([]byte, error) {
	fullURL := c.baseURL + r.path
	if len(r.query) > 0 {
		fullURL += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.payload != nil {
		body = bytes.NewReader(r.payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.auth != nil {
		h, err := c.auth.Header(ctx)
		if err != nil {
			return nil, fmt.Errorf("auth header: %w", err)
		}
		mergeHeader(req.Header, h)
	}
	mergeHeader(req.Header, r.header)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APIRequestDuration.WithLabelValues(r.endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(r.endpoint, "error").Inc()
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	metrics.APIRequestsTotal.WithLabelValues(r.endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	return respBody, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, r request) ([]byte, error) {
	var lastErr error

	maxWait := c.retryBackoff
	for i := 1; i < c.maxRetries; i++ {
		maxWait *= 2
	}
	b := &backoff.Backoff{
		Min:    c.retryBackoff,
		Max:    maxWait,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := b.Duration()
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", wait,
				"path", r.path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, err := c.doRequest(ctx, r)
		if err == nil {
			return body, nil
		}

		lastErr = err

		if !isRetryable(ctx, err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable reports whether err is transient: 5xx, 429 or a transport
// failure that was not caused by our own context.
func isRetryable(ctx context.Context, err error) bool {
	if errors.Is(err, auth.ErrAuth) || ctx.Err() != nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	var tErr *TransportError
	return errors.As(err, &tErr)
}

// do runs r with retries and decodes the JSON response into result.
// A nil result discards the body.
func (c *Client) do(ctx context.Context, r request, result any) error {
	body, err := c.doWithRetry(ctx, r)
	if err != nil {
		return err
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &DecodeError{Body: body, Err: err}
	}

	return nil
}

// get performs a GET request with retries.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, result any) error {
	return c.do(ctx, request{
		endpoint: endpoint,
		method:   http.MethodGet,
		path:     path,
		query:    query,
	}, result)
}

// send performs a request with a JSON body and extra headers.
func (c *Client) send(ctx context.Context, r request, payload any, result any) error {
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r.payload = data
	}
	return c.do(ctx, r, result)
}

func mergeHeader(dst, src http.Header) {
	for k, v := range src {
		dst[k] = append([]string(nil), v...)
	}
}
