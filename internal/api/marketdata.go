package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetOrderbook fetches the order book for one symbol. depth is passed to the
// server verbatim; the server applies its own limits.
func (c *Client) GetOrderbook(ctx context.Context, exchange, symbol string, depth int) (*OrderbookResponse, error) {
	query := url.Values{}
	query.Set("depth", strconv.Itoa(depth))

	path := "/md/v2/orderbooks/" + url.PathEscape(exchange) + "/" + url.PathEscape(symbol)

	var resp *OrderbookResponse
	if err := c.get(ctx, "orderbook", path, query, &resp); err != nil {
		return nil, fmt.Errorf("get orderbook %s: %w", symbol, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("get orderbook %s: %w", symbol, &DecodeError{Body: []byte("null"), Err: ErrEmptyBody})
	}

	return resp, nil
}

// GetSecurity fetches instrument details for one symbol.
func (c *Client) GetSecurity(ctx context.Context, exchange, symbol string) (*APISecurity, error) {
	path := "/md/v2/Securities/" + url.PathEscape(exchange) + "/" + url.PathEscape(symbol)

	var resp APISecurity
	if err := c.get(ctx, "security", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get security %s: %w", symbol, err)
	}
	return &resp, nil
}

// GetServerTime returns the exchange's current unix time in seconds.
// Unauthenticated requests get a time delayed by 15 minutes.
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	var ts int64
	if err := c.get(ctx, "time", "/md/v2/time", nil, &ts); err != nil {
		return 0, fmt.Errorf("get server time: %w", err)
	}
	return ts, nil
}
