package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Order Book Types
// -----------------------------------------------------------------------------

// PriceLevel represents a single price level in an order book.
type PriceLevel struct {
	Price  decimal.Decimal // Quoted price
	Volume int64           // Lots at this price
}

// OrderBookResult is the outcome of fetching one symbol's order book.
// A failed fetch has OK == false, empty sides and Err set.
type OrderBookResult struct {
	Symbol    string       // Instrument code (e.g., "SBER")
	Exchange  string       // Exchange code (e.g., "MOEX")
	Timestamp int64        // Exchange timestamp (unix seconds), 0 if not provided
	Bids      []PriceLevel // Best (highest) bid first
	Asks      []PriceLevel // Best (lowest) ask first
	OK        bool         // True if the book was fetched and decoded
	Err       error        // Cause of failure when OK is false
}

// FailedOrderBook builds the result recorded for a symbol whose fetch failed.
func FailedOrderBook(exchange, symbol string, err error) OrderBookResult {
	return OrderBookResult{
		Symbol:   symbol,
		Exchange: exchange,
		Bids:     []PriceLevel{},
		Asks:     []PriceLevel{},
		OK:       false,
		Err:      err,
	}
}

// Time returns the exchange timestamp as a time.Time, or the zero time if
// the server did not send one.
func (r OrderBookResult) Time() time.Time {
	if r.Timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(r.Timestamp, 0)
}

// BestBid returns the top bid level, if any.
func (r OrderBookResult) BestBid() (PriceLevel, bool) {
	if len(r.Bids) == 0 {
		return PriceLevel{}, false
	}
	return r.Bids[0], true
}

// BestAsk returns the top ask level, if any.
func (r OrderBookResult) BestAsk() (PriceLevel, bool) {
	if len(r.Asks) == 0 {
		return PriceLevel{}, false
	}
	return r.Asks[0], true
}

// Spread returns best ask minus best bid. ok is false when either side is empty.
func (r OrderBookResult) Spread() (spread decimal.Decimal, ok bool) {
	bid, hasBid := r.BestBid()
	ask, hasAsk := r.BestAsk()
	if !hasBid || !hasAsk {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// Depth returns the number of levels on the deeper side.
func (r OrderBookResult) Depth() int {
	if len(r.Asks) > len(r.Bids) {
		return len(r.Asks)
	}
	return len(r.Bids)
}

// -----------------------------------------------------------------------------
// Order Types
// -----------------------------------------------------------------------------

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType is the execution type of an order.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)
