package stream

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected        = errors.New("not connected")
	ErrStaleConnection     = errors.New("connection stale (no pong)")
	ErrAlreadyClosed       = errors.New("already closed")
	ErrUnknownSubscription = errors.New("unknown subscription")
)

// Subscription opcodes.
const (
	OpOrderBookGetAndSubscribe   = "OrderBookGetAndSubscribe"
	OpQuotesSubscribe            = "QuotesSubscribe"
	OpBarsGetAndSubscribe        = "BarsGetAndSubscribe"
	OpSummariesGetAndSubscribeV2 = "SummariesGetAndSubscribeV2"
	OpUnsubscribe                = "unsubscribe"
)

// Request is a subscription command sent to the server.
// GUID and Token are filled in by Client.Subscribe.
type Request struct {
	Opcode    string `json:"opcode"`
	Code      string `json:"code,omitempty"`
	Exchange  string `json:"exchange,omitempty"`
	Portfolio string `json:"portfolio,omitempty"`
	Depth     int    `json:"depth,omitempty"`
	Timeframe string `json:"tf,omitempty"`   // bars only: seconds or D, W, M
	From      int64  `json:"from,omitempty"` // bars only: unix seconds
	Format    string `json:"format,omitempty"`
	Delayed   bool   `json:"delayed"`
	GUID      string `json:"guid"`
	Token     string `json:"token"`
}

// OrderBookRequest subscribes to an order book.
func OrderBookRequest(exchange, code string, depth int) Request {
	return Request{Opcode: OpOrderBookGetAndSubscribe, Exchange: exchange, Code: code, Depth: depth}
}

// QuotesRequest subscribes to best quotes and last trade.
func QuotesRequest(exchange, code string) Request {
	return Request{Opcode: OpQuotesSubscribe, Exchange: exchange, Code: code}
}

// BarsRequest subscribes to candles of timeframe tf starting at from.
func BarsRequest(exchange, code, tf string, from time.Time) Request {
	return Request{Opcode: OpBarsGetAndSubscribe, Exchange: exchange, Code: code, Timeframe: tf, From: from.Unix()}
}

// SummariesRequest subscribes to a portfolio summary.
func SummariesRequest(exchange, portfolio string) Request {
	return Request{Opcode: OpSummariesGetAndSubscribeV2, Exchange: exchange, Portfolio: portfolio}
}

// unsubscribeRequest cancels the subscription tagged guid.
type unsubscribeRequest struct {
	Opcode string `json:"opcode"`
	GUID   string `json:"guid"`
	Token  string `json:"token"`
}

// Response acknowledges a command.
type Response struct {
	RequestGUID string `json:"requestGuid"`
	HTTPCode    int    `json:"httpCode"`
	Message     string `json:"message"`
}

// OK reports whether the command was accepted.
func (r Response) OK() bool {
	return r.HTTPCode == 200
}

// Message is one frame received from the server: either subscription data
// (GUID and Data set) or a command acknowledgement (Response set).
type Message struct {
	GUID       string
	Data       json.RawMessage
	Response   *Response
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// envelope is the union of data and acknowledgement frames.
type envelope struct {
	Data        json.RawMessage `json:"data"`
	GUID        string          `json:"guid"`
	RequestGUID string          `json:"requestGuid"`
	HTTPCode    int             `json:"httpCode"`
	Message     string          `json:"message"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g., wss://api.alor.ru/ws)
	Format       string        // Payload format for requests that leave it empty
	PingInterval time.Duration // How often to ping the server
	PingTimeout  time.Duration // Max time without pong before the connection is stale
	WriteTimeout time.Duration // Write deadline for sends and pings; 0 uses the default
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:          "wss://api.alor.ru/ws",
		Format:       "Simple",
		PingInterval: 15 * time.Second,
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}
