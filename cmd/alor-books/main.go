package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mechnotech/alor-api/internal/api"
	"github.com/mechnotech/alor-api/internal/auth"
	"github.com/mechnotech/alor-api/internal/config"
	"github.com/mechnotech/alor-api/internal/marketdata"
	"github.com/mechnotech/alor-api/internal/metrics"
	"github.com/mechnotech/alor-api/internal/model"
	"github.com/mechnotech/alor-api/internal/stream"
	"github.com/mechnotech/alor-api/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	envFile := flag.String("env", ".env", "path to .env file (optional)")
	symbols := flag.String("symbols", "", "comma separated symbols, overrides config")
	exchange := flag.String("exchange", "", "exchange code, overrides config")
	depth := flag.Int("depth", 0, "order book depth, overrides config")
	watch := flag.Bool("watch", false, "poll order books until interrupted")
	streamMode := flag.Bool("stream", false, "subscribe to order book updates until interrupted")
	portfolios := flag.Bool("portfolios", false, "list the account's portfolios and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *symbols, *exchange, *depth)

	// Set up structured logging
	logger, err := cfg.Logging.NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting alor-books",
		"version", version.Version,
		"commit", version.Commit,
		"api_url", cfg.API.RestURL,
		"exchange", cfg.Market.Exchange,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := auth.NewSession(cfg.API.OAuthURL, cfg.Auth.RefreshToken,
		auth.WithTTL(cfg.Auth.TokenTTL),
		auth.WithRenewTimeout(cfg.Auth.RenewTimeout),
		auth.WithLogger(logger),
	)

	// Metrics and health server
	var healthServer *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			logger.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}

		healthServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           newHealthHandler(session, reg, cfg.Metrics.Path),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("starting health server", "port", cfg.Metrics.Port)
			if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	if err := run(ctx, cfg, session, logger, *watch, *streamMode, *portfolios); err != nil {
		logger.Error("alor-books failed", "error", err)
		shutdown(healthServer)
		os.Exit(1)
	}

	shutdown(healthServer)
}

func run(ctx context.Context, cfg *config.Config, session *auth.Session, logger *slog.Logger, watch, streamMode, portfolios bool) error {
	if err := session.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}

	username := cfg.Auth.Username
	if username == "" {
		sub, err := session.Subject()
		if err != nil {
			logger.Warn("username not configured and not present in token", "error", err)
		}
		username = sub
	}
	logger.Info("session ready", "username", username)

	client := api.NewClient(cfg.API.RestURL, session,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.Retries(), cfg.API.RetryBackoff),
	)

	if portfolios {
		resp, err := client.GetPortfolios(ctx, username)
		if err != nil {
			return err
		}
		for market, list := range resp {
			for _, p := range list {
				fmt.Printf("%s\t%s\t%s\n", market, p.Portfolio, p.TKS)
			}
		}
		return nil
	}

	if len(cfg.Market.Symbols) == 0 {
		return errors.New("no symbols: set market.symbols, ALOR_SYMBOLS or -symbols")
	}

	if streamMode {
		return runStream(ctx, cfg, session, logger)
	}

	fetcher := marketdata.NewFetcher(client,
		marketdata.WithConcurrency(cfg.Market.Concurrency),
		marketdata.WithCallTimeout(cfg.Market.CallTimeout),
		marketdata.WithLogger(logger),
	)

	if !watch {
		results, err := fetcher.FetchOrderBooks(ctx, cfg.Market.Exchange, cfg.Market.Depth, cfg.Market.Symbols...)
		if err != nil {
			return err
		}
		return printBooks(os.Stdout, cfg.Market.Symbols, results)
	}

	poller := marketdata.NewPoller(marketdata.PollerConfig{
		Interval: cfg.Poller.Interval,
		Timeout:  cfg.Poller.Timeout,
		Exchange: cfg.Market.Exchange,
		Depth:    cfg.Market.Depth,
		Symbols:  cfg.Market.Symbols,
	}, fetcher, marketdata.BatchHandlerFunc(func(results map[string]model.OrderBookResult) error {
		return printBooks(os.Stdout, cfg.Market.Symbols, results)
	}), logger)

	if err := poller.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return poller.Stop(stopCtx)
}

func runStream(ctx context.Context, cfg *config.Config, session *auth.Session, logger *slog.Logger) error {
	client := stream.NewClient(stream.ClientConfig{
		URL:          cfg.API.WSURL,
		Format:       cfg.Stream.Format,
		PingInterval: cfg.Stream.PingInterval,
		PingTimeout:  cfg.Stream.PingTimeout,
		WriteTimeout: 5 * time.Second,
		BufferSize:   cfg.Stream.BufferSize,
	}, session, logger)

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	codes := make(map[string]string, len(cfg.Market.Symbols))
	for _, sym := range cfg.Market.Symbols {
		guid, err := client.Subscribe(ctx, stream.OrderBookRequest(cfg.Market.Exchange, sym, cfg.Market.Depth))
		if err != nil {
			return err
		}
		codes[guid] = sym
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-client.Errors():
			return fmt.Errorf("stream: %w", err)
		case msg := <-client.Messages():
			if msg.Response != nil {
				continue
			}
			fmt.Printf("%s %s %s\n", msg.ReceivedAt.Format(time.TimeOnly), codes[msg.GUID], msg.Data)
		}
	}
}

func shutdown(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
