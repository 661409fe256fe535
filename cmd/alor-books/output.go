package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/mechnotech/alor-api/internal/config"
	"github.com/mechnotech/alor-api/internal/model"
)

// applyFlags overrides config values with non-empty command line flags.
func applyFlags(cfg *config.Config, symbols, exchange string, depth int) {
	if symbols != "" {
		cfg.Market.Symbols = config.SplitList(symbols)
	}
	if exchange != "" {
		cfg.Market.Exchange = exchange
	}
	if depth > 0 {
		cfg.Market.Depth = depth
	}
}

// printBooks writes one line per symbol with its top of book, in the order
// of symbols.
func printBooks(w io.Writer, symbols []string, results map[string]model.OrderBookResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tTIME\tBID\tASK\tSPREAD\tDEPTH\tSTATUS")

	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		if seen[sym] {
			continue
		}
		seen[sym] = true

		r, ok := results[sym]
		if !ok {
			continue
		}
		if !r.OK {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\terror: %v\n", sym, r.Err)
			continue
		}

		ts := "-"
		if t := r.Time(); !t.IsZero() {
			ts = t.Format(time.TimeOnly)
		}
		bid, ask, spread := "-", "-", "-"
		if l, ok := r.BestBid(); ok {
			bid = fmt.Sprintf("%s x %d", l.Price, l.Volume)
		}
		if l, ok := r.BestAsk(); ok {
			ask = fmt.Sprintf("%s x %d", l.Price, l.Volume)
		}
		if s, ok := r.Spread(); ok {
			spread = s.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\tok\n", sym, ts, bid, ask, spread, r.Depth())
	}

	return tw.Flush()
}
