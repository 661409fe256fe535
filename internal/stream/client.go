package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mechnotech/alor-api/internal/metrics"
	"github.com/mechnotech/alor-api/internal/version"
)

// TokenSource supplies a valid access token. *auth.Session implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is a single WebSocket connection to the Alor stream endpoint.
type Client struct {
	cfg    ClientConfig
	tokens TokenSource
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	messages chan Message
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu            sync.RWMutex
	connected     bool
	closed        bool
	lastPongAt    time.Time
	subscriptions map[string]Request
}

// NewClient creates a new WebSocket client.
func NewClient(cfg ClientConfig, tokens TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultClientConfig().WriteTimeout
	}

	return &Client{
		cfg:           cfg,
		tokens:        tokens,
		logger:        logger,
		messages:      make(chan Message, cfg.BufferSize),
		errors:        make(chan error, 1),
		done:          make(chan struct{}),
		subscriptions: make(map[string]Request),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastPongAt = time.Now()
	c.mu.Unlock()

	// Server pings are answered by gorilla's default handler; our own pings
	// are tracked here.
	conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPongAt = time.Now()
		c.mu.Unlock()
		return nil
	})

	go c.readLoop()
	if c.cfg.PingInterval > 0 {
		go c.heartbeatLoop()
	}

	metrics.StreamConnected.Set(1)
	c.logger.Debug("websocket connected", "url", c.cfg.URL)

	return nil
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	// Signal goroutines to stop
	close(c.done)
	metrics.StreamConnected.Set(0)

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		return conn.Close()
	}

	return nil
}

// Subscribe sends req with a fresh token and returns the GUID that tags its
// data. A GUID set by the caller is kept.
func (c *Client) Subscribe(ctx context.Context, req Request) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("subscribe %s: %w", req.Opcode, err)
	}

	if req.GUID == "" {
		req.GUID = uuid.NewString()
	}
	if req.Format == "" {
		req.Format = c.cfg.Format
	}
	req.Token = token

	if err := c.sendJSON(req); err != nil {
		return "", fmt.Errorf("subscribe %s: %w", req.Opcode, err)
	}

	c.mu.Lock()
	c.subscriptions[req.GUID] = req
	c.mu.Unlock()

	c.logger.Debug("subscribed",
		"opcode", req.Opcode,
		"code", req.Code,
		"guid", req.GUID,
	)

	return req.GUID, nil
}

// Unsubscribe cancels the subscription tagged guid.
func (c *Client) Unsubscribe(ctx context.Context, guid string) error {
	c.mu.RLock()
	_, ok := c.subscriptions[guid]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unsubscribe %s: %w", guid, ErrUnknownSubscription)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", guid, err)
	}

	if err := c.sendJSON(unsubscribeRequest{Opcode: OpUnsubscribe, GUID: guid, Token: token}); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", guid, err)
	}

	c.mu.Lock()
	delete(c.subscriptions, guid)
	c.mu.Unlock()

	return nil
}

// Subscriptions returns the active subscriptions keyed by GUID.
func (c *Client) Subscriptions() map[string]Request {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Request, len(c.subscriptions))
	for k, v := range c.subscriptions {
		out[k] = v
	}
	return out
}

// Messages returns the messages channel.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// Errors returns the errors channel.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	c.mu.RLock()
	connected, conn := c.connected, c.conn
	c.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames from the WebSocket and sends them to the messages channel.
func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		metrics.StreamConnected.Set(0)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-c.done:
				return
			default:
				c.reportError(err)
				return
			}
		}

		msg, err := decodeMessage(data, receivedAt)
		if err != nil {
			c.logger.Warn("undecodable stream frame", "err", err, "size", len(data))
			continue
		}

		kind := "data"
		if msg.Response != nil {
			kind = "response"
			if !msg.Response.OK() {
				c.logger.Warn("stream command rejected",
					"guid", msg.Response.RequestGUID,
					"code", msg.Response.HTTPCode,
					"message", msg.Response.Message,
				)
			}
		}

		select {
		case c.messages <- msg:
			metrics.StreamMessages.WithLabelValues(kind).Inc()
		case <-c.done:
			return
		default:
			metrics.StreamMessages.WithLabelValues("dropped").Inc()
			c.logger.Warn("message buffer full, dropping message", "guid", msg.GUID)
		}
	}
}

// heartbeatLoop pings the server and reports a stale connection.
func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			deadline := time.Now().Add(c.cfg.WriteTimeout)
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline)
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("failed to send ping", "err", err)
			}

			c.mu.RLock()
			lastPong := c.lastPongAt
			c.mu.RUnlock()

			if c.cfg.PingTimeout > 0 && time.Since(lastPong) > c.cfg.PingTimeout {
				c.logger.Warn("no pong received, connection stale",
					"last_pong", lastPong,
					"timeout", c.cfg.PingTimeout,
				)
				c.reportError(ErrStaleConnection)
				return
			}
		}
	}
}

func (c *Client) reportError(err error) {
	select {
	case c.errors <- err:
	default:
	}
}

func decodeMessage(data []byte, receivedAt time.Time) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, err
	}

	msg := Message{ReceivedAt: receivedAt}
	if env.RequestGUID != "" {
		msg.GUID = env.RequestGUID
		msg.Response = &Response{
			RequestGUID: env.RequestGUID,
			HTTPCode:    env.HTTPCode,
			Message:     env.Message,
		}
		return msg, nil
	}

	msg.GUID = env.GUID
	msg.Data = env.Data
	return msg, nil
}
