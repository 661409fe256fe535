package marketdata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mechnotech/alor-api/internal/api"
	"github.com/mechnotech/alor-api/internal/metrics"
	"github.com/mechnotech/alor-api/internal/model"
)

// ErrNoSource is returned when a Fetcher has no order book source.
var ErrNoSource = errors.New("no order book source configured")

// ErrEmptyResponse marks a source that returned neither a book nor an error.
var ErrEmptyResponse = errors.New("empty order book response")

// OrderbookSource fetches a single order book. *api.Client implements it.
type OrderbookSource interface {
	GetOrderbook(ctx context.Context, exchange, symbol string, depth int) (*api.OrderbookResponse, error)
}

// Fetcher retrieves order books for many symbols concurrently.
type Fetcher struct {
	source      OrderbookSource
	concurrency int           // 0 = one goroutine per symbol
	callTimeout time.Duration // 0 = no per-call limit
	logger      *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// NewFetcher creates a Fetcher backed by source.
func NewFetcher(source OrderbookSource, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		source: source,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithConcurrency caps the number of requests in flight. n <= 0 removes the cap.
func WithConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		f.concurrency = n
	}
}

// WithCallTimeout bounds each per-symbol request, retries included.
func WithCallTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.callTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// FetchOrderBooks fetches the order book of every symbol on exchange at the
// given depth. The result holds exactly one entry per distinct symbol; a
// symbol whose request failed maps to a result with OK == false. The error is
// non-nil only when the batch could not be started at all.
//
// Depth is forwarded to the server unchanged.
func (f *Fetcher) FetchOrderBooks(ctx context.Context, exchange string, depth int, symbols ...string) (map[string]model.OrderBookResult, error) {
	if f == nil || f.source == nil {
		return nil, ErrNoSource
	}

	unique := dedupe(symbols)
	results := make(map[string]model.OrderBookResult, len(unique))
	if len(unique) == 0 {
		return results, nil
	}

	start := time.Now()
	books := make([]model.OrderBookResult, len(unique))

	// A plain Group: no shared context, so one failure never cancels the rest.
	var g errgroup.Group
	if f.concurrency > 0 {
		g.SetLimit(f.concurrency)
	}
	for i, symbol := range unique {
		g.Go(func() error {
			books[i] = f.fetchOne(ctx, exchange, symbol, depth)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, b := range books {
		results[b.Symbol] = b
		if !b.OK {
			failed++
		}
	}

	elapsed := time.Since(start)
	metrics.OrderbookBatchDuration.Observe(elapsed.Seconds())

	f.logger.Debug("order book batch complete",
		"exchange", exchange,
		"symbols", len(unique),
		"failed", failed,
		"duration", elapsed,
	)

	return results, nil
}

// FetchOrderBook fetches a single symbol. It is FetchOrderBooks with a
// one-element set.
func (f *Fetcher) FetchOrderBook(ctx context.Context, exchange, symbol string, depth int) (model.OrderBookResult, error) {
	results, err := f.FetchOrderBooks(ctx, exchange, depth, symbol)
	if err != nil {
		return model.OrderBookResult{}, err
	}
	return results[symbol], nil
}

func (f *Fetcher) fetchOne(ctx context.Context, exchange, symbol string, depth int) model.OrderBookResult {
	if f.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.callTimeout)
		defer cancel()
	}

	ob, err := f.source.GetOrderbook(ctx, exchange, symbol, depth)
	if err == nil && ob == nil {
		err = ErrEmptyResponse
	}
	if err != nil {
		metrics.OrderbookFetches.WithLabelValues("error").Inc()
		f.logger.Warn("failed to fetch order book",
			"exchange", exchange,
			"symbol", symbol,
			"err", err,
		)
		return model.FailedOrderBook(exchange, symbol, err)
	}

	metrics.OrderbookFetches.WithLabelValues("ok").Inc()
	return ob.ToResult(exchange, symbol)
}

// dedupe drops repeated symbols, keeping first-seen order.
func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
