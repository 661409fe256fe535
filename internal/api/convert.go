package api

import (
	"github.com/mechnotech/alor-api/internal/model"
)

// ToResult converts an OrderbookResponse to model.OrderBookResult.
// Level order is kept as sent (best first).
func (o *OrderbookResponse) ToResult(exchange, symbol string) model.OrderBookResult {
	return model.OrderBookResult{
		Symbol:    symbol,
		Exchange:  exchange,
		Timestamp: o.Timestamp,
		Bids:      toLevels(o.Bids),
		Asks:      toLevels(o.Asks),
		OK:        true,
	}
}

func toLevels(levels []APIPriceLevel) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, model.PriceLevel{
			Price:  l.Price,
			Volume: l.Volume,
		})
	}
	return out
}

// Portfolios flattens a PortfoliosResponse into the list of portfolio IDs.
func (p PortfoliosResponse) Portfolios() []string {
	var out []string
	for _, list := range p {
		for _, pf := range list {
			if pf.Portfolio != "" {
				out = append(out, pf.Portfolio)
			}
		}
	}
	return out
}
