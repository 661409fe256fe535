package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// GetPortfolios lists the portfolios of a user, keyed by market.
func (c *Client) GetPortfolios(ctx context.Context, username string) (PortfoliosResponse, error) {
	if username == "" {
		return nil, errors.New("get portfolios: username is required")
	}

	var resp PortfoliosResponse
	if err := c.get(ctx, "portfolios", "/client/v1.0/users/"+url.PathEscape(username)+"/portfolios", nil, &resp); err != nil {
		return nil, fmt.Errorf("get portfolios: %w", err)
	}
	return resp, nil
}

// GetPositions lists open positions in a portfolio.
func (c *Client) GetPositions(ctx context.Context, exchange, portfolio string) ([]APIPosition, error) {
	path := "/md/v2/Clients/" + url.PathEscape(exchange) + "/" + url.PathEscape(portfolio) + "/positions"

	var resp []APIPosition
	if err := c.get(ctx, "positions", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get positions %s: %w", portfolio, err)
	}
	return resp, nil
}

// GetSummary returns buying power and valuation of a portfolio.
func (c *Client) GetSummary(ctx context.Context, exchange, portfolio string) (*APISummary, error) {
	path := "/md/v2/clients/" + url.PathEscape(exchange) + "/" + url.PathEscape(portfolio) + "/summary"

	var resp APISummary
	if err := c.get(ctx, "summary", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get summary %s: %w", portfolio, err)
	}
	return &resp, nil
}
