package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// OrderbookResponse from GET /md/v2/orderbooks/{exchange}/{symbol}
type OrderbookResponse struct {
	Timestamp   int64           `json:"timestamp"`    // unix seconds
	MsTimestamp int64           `json:"ms_timestamp"` // unix milliseconds
	Bids        []APIPriceLevel `json:"bids"`         // best first
	Asks        []APIPriceLevel `json:"asks"`         // best first
	Existing    bool            `json:"existing"`
}

// APIPriceLevel is one price level as returned by the order book endpoint.
type APIPriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
}

// PortfoliosResponse from GET /client/v1.0/users/{username}/portfolios,
// keyed by market name.
type PortfoliosResponse map[string][]APIPortfolio

// APIPortfolio identifies a trading portfolio on one market.
type APIPortfolio struct {
	Portfolio string `json:"portfolio"`
	TKS       string `json:"tks"`
	Service   string `json:"service,omitempty"`
}

// APISecurity from GET /md/v2/Securities/{exchange}/{symbol}
type APISecurity struct {
	Symbol            string          `json:"symbol"`
	ShortName         string          `json:"shortname"`
	Description       string          `json:"description"`
	Exchange          string          `json:"exchange"`
	Type              string          `json:"type"`
	LotSize           decimal.Decimal `json:"lotsize"`
	FaceValue         decimal.Decimal `json:"facevalue"`
	CFICode           string          `json:"cfiCode"`
	Cancellation      string          `json:"cancellation"`
	MinStep           decimal.Decimal `json:"minstep"`
	PriceMax          decimal.Decimal `json:"priceMax"`
	PriceMin          decimal.Decimal `json:"priceMin"`
	Currency          string          `json:"currency"`
	Board             string          `json:"board"`
	PrimaryBoard      string          `json:"primary_board"`
	TradingStatus     int             `json:"tradingStatus"`
	TradingStatusInfo string          `json:"tradingStatusInfo"`
}

// APIPosition from GET /md/v2/Clients/{exchange}/{portfolio}/positions
type APIPosition struct {
	Symbol        string          `json:"symbol"`
	BrokerSymbol  string          `json:"brokerSymbol"`
	Exchange      string          `json:"exchange"`
	Portfolio     string          `json:"portfolio"`
	ShortName     string          `json:"shortName"`
	Volume        decimal.Decimal `json:"volume"`
	CurrentVolume decimal.Decimal `json:"currentVolume"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	QtyUnits      decimal.Decimal `json:"qtyUnits"`
	OpenUnits     decimal.Decimal `json:"openUnits"`
	LotSize       decimal.Decimal `json:"lotSize"`
	UnrealisedPL  decimal.Decimal `json:"unrealisedPl"`
	IsCurrency    bool            `json:"isCurrency"`
}

// APISummary from GET /md/v2/clients/{exchange}/{portfolio}/summary
type APISummary struct {
	BuyingPowerAtMorning      decimal.Decimal `json:"buyingPowerAtMorning"`
	BuyingPower               decimal.Decimal `json:"buyingPower"`
	Profit                    decimal.Decimal `json:"profit"`
	ProfitRate                decimal.Decimal `json:"profitRate"`
	PortfolioEvaluation       decimal.Decimal `json:"portfolioEvaluation"`
	PortfolioLiquidationValue decimal.Decimal `json:"portfolioLiquidationValue"`
	InitialMargin             decimal.Decimal `json:"initialMargin"`
	RiskBeforeForcedClosing   decimal.Decimal `json:"riskBeforeForcePositionClosing"`
	Commission                decimal.Decimal `json:"commission"`
}

// OrderResponse from the order placement endpoints.
type OrderResponse struct {
	Message     string `json:"message"`
	OrderNumber string `json:"orderNumber"`

	// RequestID is the idempotency key that was sent; resend it to replay.
	RequestID string `json:"-"`
}

// orderPayload is the request body of market and limit order placement.
type orderPayload struct {
	Side       string            `json:"side"`
	Type       string            `json:"type"`
	Quantity   int64             `json:"quantity"`
	Price      json.Number       `json:"price,omitempty"`
	Instrument instrumentPayload `json:"instrument"`
	User       userPayload       `json:"user"`
}

type instrumentPayload struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

type userPayload struct {
	Account   string `json:"account,omitempty"`
	Portfolio string `json:"portfolio"`
}
