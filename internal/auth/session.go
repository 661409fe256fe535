package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mechnotech/alor-api/internal/metrics"
	"github.com/mechnotech/alor-api/internal/version"
)

// Defaults for optional session settings.
const (
	DefaultTTL          = 60 * time.Second
	DefaultRenewTimeout = 10 * time.Second
)

// State is the lifecycle state of a Session.
type State int

const (
	StateUninitialized State = iota // no renewal attempted yet
	StateValid                      // token present and within TTL
	StateStale                      // token older than TTL, renewal pending on next use
	StateFailed                     // last renewal failed; retried on next use
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateValid:
		return "valid"
	case StateStale:
		return "stale"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// refreshResponse from POST /refresh
type refreshResponse struct {
	AccessToken string `json:"AccessToken"`
}

// Session owns the refresh token and the current access token.
// It is safe for concurrent use.
type Session struct {
	oauthURL     string
	refreshToken string
	ttl          time.Duration
	renewTimeout time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
	now          func() time.Time

	mu          sync.RWMutex
	accessToken string
	issuedAt    time.Time
	lastErr     error

	renewals singleflight.Group
}

// Option configures a Session.
type Option func(*Session)

// NewSession creates a session for the given OAuth base URL and refresh token.
// No network call is made until Initialize or the first Header.
func NewSession(oauthURL, refreshToken string, opts ...Option) *Session {
	s := &Session{
		oauthURL:     oauthURL,
		refreshToken: refreshToken,
		ttl:          DefaultTTL,
		renewTimeout: DefaultRenewTimeout,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithTTL sets how long an access token is trusted after issuance.
func WithTTL(d time.Duration) Option {
	return func(s *Session) {
		s.ttl = d
	}
}

// WithRenewTimeout bounds a single refresh exchange.
func WithRenewTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.renewTimeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Session) {
		s.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Initialize performs one synchronous renewal regardless of the current state.
// It always issues its own exchange, even while a routine renewal is in flight.
func (s *Session) Initialize(ctx context.Context) error {
	_, err := s.renew(ctx, true)
	return err
}

// Token returns a non-stale access token, renewing it first if needed.
// On renewal failure it returns an *AuthError and no token.
func (s *Session) Token(ctx context.Context) (string, error) {
	if tok, ok := s.fresh(); ok {
		return tok, nil
	}
	return s.renew(ctx, false)
}

// Header returns the standard authenticated header set with a non-stale token.
// The returned header is a new value the caller may extend.
func (s *Session) Header(ctx context.Context) (http.Header, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return BearerHeader(tok), nil
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.accessToken == "" && s.lastErr == nil:
		return StateUninitialized
	case s.lastErr != nil:
		return StateFailed
	case s.staleLocked(s.now()):
		return StateStale
	default:
		return StateValid
	}
}

// IssuedAt returns when the current token was received, zero if none.
func (s *Session) IssuedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.issuedAt
}

// fresh returns the cached token if it is within its TTL.
func (s *Session) fresh() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.staleLocked(s.now()) {
		return "", false
	}
	return s.accessToken, true
}

func (s *Session) staleLocked(now time.Time) bool {
	return s.accessToken == "" || now.Sub(s.issuedAt) > s.ttl
}

// renew runs at most one routine refresh exchange at a time. Concurrent
// callers share the in-flight exchange, and the token is re-checked inside the
// shared call so a caller that lost the race does not issue another token.
// Forced renewals share a separate key and never reuse a routine result.
func (s *Session) renew(ctx context.Context, force bool) (string, error) {
	key := "refresh"
	if force {
		key = "initialize"
	}

	ch := s.renewals.DoChan(key, func() (any, error) {
		if !force {
			if tok, ok := s.fresh(); ok {
				return tok, nil
			}
		}

		// The exchange is shared, so one caller giving up must not cancel it.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.renewTimeout)
		defer cancel()

		return s.exchange(rctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// exchange posts the refresh token and stores the issued access token.
// On failure the previous token is left untouched.
func (s *Session) exchange(ctx context.Context) (string, error) {
	start := time.Now()

	query := url.Values{}
	query.Set("token", s.refreshToken)
	fullURL := s.oauthURL + "/refresh?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, nil)
	if err != nil {
		return "", s.fail(&AuthError{Kind: KindTransport, Err: fmt.Errorf("create request: %w", err)})
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", s.fail(&AuthError{Kind: KindTransport, Err: fmt.Errorf("do request: %w", err)})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", s.fail(&AuthError{Kind: KindTransport, Err: fmt.Errorf("read response: %w", err)})
	}

	if resp.StatusCode != http.StatusOK {
		return "", s.fail(&AuthError{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Body:       body,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		})
	}

	var payload refreshResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", s.fail(&AuthError{Kind: KindDecode, Body: body, Err: err})
	}
	if payload.AccessToken == "" {
		return "", s.fail(&AuthError{Kind: KindDecode, Body: body, Err: errors.New("missing AccessToken field")})
	}

	// The staleness clock starts when the response arrives.
	issuedAt := s.now()

	s.mu.Lock()
	s.accessToken = payload.AccessToken
	s.issuedAt = issuedAt
	s.lastErr = nil
	s.mu.Unlock()

	metrics.TokenRenewals.WithLabelValues("ok").Inc()

	attrs := []any{"ttl", s.ttl, "duration", time.Since(start)}
	if exp, ok := tokenExpiry(payload.AccessToken); ok {
		attrs = append(attrs, "expires_at", exp)
	}
	s.logger.Debug("access token renewed", attrs...)

	return payload.AccessToken, nil
}

func (s *Session) fail(err *AuthError) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	metrics.TokenRenewals.WithLabelValues(err.Kind.String()).Inc()
	s.logger.Warn("access token renewal failed",
		"kind", err.Kind.String(),
		"status", err.StatusCode,
		"err", err.Err,
	)
	return err
}
