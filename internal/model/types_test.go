package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func level(price string, volume int64) PriceLevel {
	return PriceLevel{Price: decimal.RequireFromString(price), Volume: volume}
}

func TestOrderBookResult(t *testing.T) {
	book := OrderBookResult{
		Symbol:    "SBER",
		Exchange:  "MOEX",
		Timestamp: 1705321845,
		Bids:      []PriceLevel{level("270.10", 15), level("270.05", 40)},
		Asks:      []PriceLevel{level("270.25", 7), level("270.30", 3), level("270.40", 1)},
		OK:        true,
	}

	t.Run("best levels", func(t *testing.T) {
		bid, ok := book.BestBid()
		if !ok || !bid.Price.Equal(decimal.RequireFromString("270.10")) {
			t.Errorf("BestBid() = %v, %v; want 270.10, true", bid.Price, ok)
		}
		ask, ok := book.BestAsk()
		if !ok || ask.Volume != 7 {
			t.Errorf("BestAsk().Volume = %d, %v; want 7, true", ask.Volume, ok)
		}
	})

	t.Run("spread", func(t *testing.T) {
		spread, ok := book.Spread()
		if !ok {
			t.Fatal("Spread() ok = false, want true")
		}
		if !spread.Equal(decimal.RequireFromString("0.15")) {
			t.Errorf("Spread() = %s, want 0.15", spread)
		}
	})

	t.Run("depth is deeper side", func(t *testing.T) {
		if got := book.Depth(); got != 3 {
			t.Errorf("Depth() = %d, want 3", got)
		}
	})

	t.Run("time from unix seconds", func(t *testing.T) {
		if got := book.Time(); !got.Equal(time.Unix(1705321845, 0)) {
			t.Errorf("Time() = %v", got)
		}
		if !(OrderBookResult{}).Time().IsZero() {
			t.Error("Time() for missing timestamp should be zero")
		}
	})
}

func TestFailedOrderBook(t *testing.T) {
	cause := errors.New("boom")
	r := FailedOrderBook("MOEX", "GAZP", cause)

	if r.OK {
		t.Error("OK = true, want false")
	}
	if r.Bids == nil || r.Asks == nil {
		t.Error("failed result sides should be empty, not nil")
	}
	if len(r.Bids) != 0 || len(r.Asks) != 0 {
		t.Errorf("sides = %d/%d levels, want 0/0", len(r.Bids), len(r.Asks))
	}
	if !errors.Is(r.Err, cause) {
		t.Errorf("Err = %v, want %v", r.Err, cause)
	}
	if _, ok := r.Spread(); ok {
		t.Error("Spread() ok = true for empty book")
	}
}
