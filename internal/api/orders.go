package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mechnotech/alor-api/internal/model"
)

// RequestIDHeader carries the idempotency key of an order mutation. The
// broker executes each distinct value at most once and replays the prior
// response for duplicates, which makes retrying these requests safe.
const RequestIDHeader = "X-ALOR-REQID"

const ordersPath = "/commandapi/warptrans/TRADE/v2/client/orders"

// ErrInvalidPrice is returned for limit orders without a positive price.
var ErrInvalidPrice = errors.New("limit order price must be positive")

// OrderRequest describes a market or limit order.
type OrderRequest struct {
	Symbol    string          `validate:"required"`
	Side      model.Side      `validate:"required,oneof=buy sell"`
	Quantity  int64           `validate:"gt=0"`
	Price     decimal.Decimal `validate:"-"` // limit orders only
	Portfolio string          `validate:"required"`
	Exchange  string          `validate:"required"`
	Account   string

	// RequestID is the caller's idempotency key; a random one is generated
	// when empty.
	RequestID string
}

// CancelRequest identifies an order to cancel.
type CancelRequest struct {
	OrderID   string `validate:"required"`
	Exchange  string `validate:"required"`
	Portfolio string `validate:"required"`
	Account   string
	Stop      bool // true for stop orders
}

// PlaceMarketOrder submits an order executed at the market price.
func (c *Client) PlaceMarketOrder(ctx context.Context, o OrderRequest) (*OrderResponse, error) {
	return c.placeOrder(ctx, model.OrderMarket, o)
}

// PlaceLimitOrder submits an order at o.Price.
func (c *Client) PlaceLimitOrder(ctx context.Context, o OrderRequest) (*OrderResponse, error) {
	if !o.Price.IsPositive() {
		return nil, fmt.Errorf("place limit order: %w", ErrInvalidPrice)
	}
	return c.placeOrder(ctx, model.OrderLimit, o)
}

func (c *Client) placeOrder(ctx context.Context, typ model.OrderType, o OrderRequest) (*OrderResponse, error) {
	if err := c.validate.Struct(o); err != nil {
		return nil, fmt.Errorf("place %s order: invalid request: %w", typ, err)
	}

	reqID := o.RequestID
	if reqID == "" {
		reqID = uuid.NewString()
	}

	payload := orderPayload{
		Side:     string(o.Side),
		Type:     string(typ),
		Quantity: o.Quantity,
		Instrument: instrumentPayload{
			Symbol:   o.Symbol,
			Exchange: o.Exchange,
		},
		User: userPayload{
			Account:   o.Account,
			Portfolio: o.Portfolio,
		},
	}
	if typ == model.OrderLimit {
		payload.Price = json.Number(o.Price.String())
	}

	header := http.Header{}
	header.Set(RequestIDHeader, o.Portfolio+";"+reqID)

	var resp OrderResponse
	err := c.send(ctx, request{
		endpoint: "order_" + string(typ),
		method:   http.MethodPost,
		path:     ordersPath + "/actions/" + string(typ),
		header:   header,
	}, payload, &resp)
	if err != nil {
		return nil, fmt.Errorf("place %s order %s: %w", typ, o.Symbol, err)
	}

	resp.RequestID = reqID

	c.logger.Info("order placed",
		"type", typ,
		"symbol", o.Symbol,
		"side", o.Side,
		"quantity", o.Quantity,
		"order_number", resp.OrderNumber,
		"request_id", reqID,
	)

	return &resp, nil
}

// CancelOrder cancels a regular or stop order.
func (c *Client) CancelOrder(ctx context.Context, r CancelRequest) error {
	if err := c.validate.Struct(r); err != nil {
		return fmt.Errorf("cancel order: invalid request: %w", err)
	}

	query := url.Values{}
	query.Set("exchange", r.Exchange)
	query.Set("portfolio", r.Portfolio)
	if r.Account != "" {
		query.Set("account", r.Account)
	}
	query.Set("stop", strconv.FormatBool(r.Stop))
	query.Set("format", "Simple")

	// Stop orders live outside the command API prefix.
	path := ordersPath + "/" + url.PathEscape(r.OrderID)
	if r.Stop {
		path = "/warptrans/TRADE/v2/client/orders/" + url.PathEscape(r.OrderID)
	}

	err := c.send(ctx, request{
		endpoint: "order_cancel",
		method:   http.MethodDelete,
		path:     path,
		query:    query,
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", r.OrderID, err)
	}

	return nil
}
