package marketdata

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mechnotech/alor-api/internal/model"
)

// BatchHandler receives the results of one poll cycle.
type BatchHandler interface {
	HandleBatch(results map[string]model.OrderBookResult) error
}

// BatchHandlerFunc is a function adapter for BatchHandler.
type BatchHandlerFunc func(map[string]model.OrderBookResult) error

func (f BatchHandlerFunc) HandleBatch(results map[string]model.OrderBookResult) error {
	return f(results)
}

// PollerConfig holds poller configuration.
type PollerConfig struct {
	Interval time.Duration // Poll interval (default: 10s)
	Timeout  time.Duration // Per-cycle timeout (default: 30s)
	Exchange string
	Depth    int
	Symbols  []string
}

// DefaultPollerConfig returns sensible defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval: 10 * time.Second,
		Timeout:  30 * time.Second,
		Exchange: "MOEX",
		Depth:    20,
	}
}

// Poller periodically fetches order books for a fixed symbol set.
type Poller struct {
	cfg     PollerConfig
	fetcher *Fetcher
	handler BatchHandler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a new Poller.
func NewPoller(cfg PollerConfig, fetcher *Fetcher, handler BatchHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("order book poller started",
		"interval", p.cfg.Interval,
		"exchange", p.cfg.Exchange,
		"symbols", len(p.cfg.Symbols),
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("order book poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollOnce()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

// pollOnce fetches one batch and hands it to the handler.
func (p *Poller) pollOnce() {
	if len(p.cfg.Symbols) == 0 {
		p.logger.Debug("no symbols to poll")
		return
	}

	ctx := p.ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(p.ctx, p.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := p.fetcher.FetchOrderBooks(ctx, p.cfg.Exchange, p.cfg.Depth, p.cfg.Symbols...)
	if err != nil {
		p.logger.Error("poll cycle failed", "err", err)
		return
	}

	// A cycle cut short by Stop is discarded.
	if p.ctx.Err() != nil {
		return
	}

	var fetched, failed int
	for _, r := range results {
		if r.OK {
			fetched++
		} else {
			failed++
		}
	}

	if p.handler != nil {
		if err := p.handler.HandleBatch(results); err != nil {
			p.logger.Warn("batch handler failed", "err", err)
		}
	}

	p.logger.Info("poll cycle complete",
		"symbols", len(results),
		"fetched", fetched,
		"errors", failed,
		"duration", time.Since(start),
	)
}
