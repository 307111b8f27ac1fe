package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/analytics"
	"alpha_portfolios/internal/apperrors"
	"alpha_portfolios/internal/benchmark"
	"alpha_portfolios/internal/config"
	"alpha_portfolios/internal/decision"
	"alpha_portfolios/internal/events"
	"alpha_portfolios/internal/logger"
	"alpha_portfolios/internal/manager"
	"alpha_portfolios/internal/market"
	"alpha_portfolios/internal/market/alpaca"
	"alpha_portfolios/internal/models"
	"alpha_portfolios/internal/research"
	"alpha_portfolios/internal/storage"
)

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	closer  io.Closer
	bus     *events.Bus
	store   *storage.FileStore
	mgr     *manager.Manager
	history research.HistorySource
	prices  *alpaca.PriceCache
}

// newApp loads configuration and builds the manager with its collaborators.
// Portfolios are loaded from the store; the environment seed portfolio is
// added only when the store is empty.
func newApp(ctx context.Context, debug bool) (*app, error) {
	cfg := config.Load()
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log, closer := logger.New(logger.Config{
		Level:      level,
		Pretty:     cfg.LogPretty,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.MaxLogSizeMB,
		MaxBackups: cfg.MaxLogBackups,
	})
	logger.SetGlobalLogger(log)

	store, err := storage.NewFileStore(cfg.PortfoliosFile, cfg.StoreEncryptionKey, log)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("portfolio store: %w", err)
	}

	timeout := cfg.ExternalTimeout
	stooq := research.NewStooq(research.StooqBaseURL)
	history := research.FallbackHistory{research.YahooHistory{}, stooq}

	var news []research.NewsSource
	if cfg.FinnhubAPIKey != "" {
		news = append(news, research.NewFinnhubNews(research.FinnhubBaseURL, cfg.FinnhubAPIKey))
	}
	if cfg.NewsAPIKey != "" {
		news = append(news, research.NewNewsAPI(research.NewsAPIBaseURL, cfg.NewsAPIKey))
	}
	researcher := research.NewService(research.Options{
		Fundamentals: research.YahooFundamentals{},
		News:         news,
		History:      history,
		Timeout:      timeout,
		Logger:       log,
	})

	var decider decision.Service
	llm, err := decision.NewOpenAI(ctx, decision.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: timeout,
	})
	if err != nil {
		log.Warn().Err(err).Msg("No decision model available, every decision will be hold")
		decider = decision.Fixed(string(decision.Hold))
	} else {
		decider = llm
	}

	factory := alpaca.Factory(timeout)
	var prices *alpaca.PriceCache
	if cfg.StreamPrices {
		prices = alpaca.NewPriceCache(market.PriceFunc(unavailablePrice), timeout*6, log)
		factory = alpaca.CachedFactory(factory, prices)
	}

	bus := events.NewBus(log)
	mgr := manager.New(manager.Options{
		Store:         store,
		Factory:       factory,
		Research:      researcher,
		Decision:      decider,
		Trending:      research.NewYahooTrending(research.YahooBaseURL),
		TrendingLimit: cfg.TrendingLimit,
		Benchmark:     benchmark.NewTracker(stooq, cfg.BenchmarkSymbol, timeout, log),
		Diversifier:   analytics.NewAnalyzer(history, timeout, log),
		Sink:          bus,
		DefaultRisk:   cfg.DefaultRisk,
		Simulate:      cfg.Simulate,
		Concurrency:   cfg.CycleConcurrency,
		Logger:        log,
	})

	if mgr.Load() == 0 && cfg.HasSeedPortfolio() {
		def := models.PortfolioDefinition{
			Name:         "Default",
			StrategyType: "default",
			APIKey:       cfg.AlpacaAPIKey,
			SecretKey:    cfg.AlpacaSecretKey,
			BaseURL:      cfg.AlpacaBaseURL,
		}
		if _, err := mgr.AddPortfolio(def); err != nil {
			log.Warn().Err(err).Msg("Failed to add seed portfolio from environment")
		}
	}

	return &app{
		cfg:     cfg,
		log:     log,
		closer:  closer,
		bus:     bus,
		store:   store,
		mgr:     mgr,
		history: history,
		prices:  prices,
	}, nil
}

func (a *app) Close() {
	a.bus.Close()
	a.closer.Close()
}

// streamCredentials picks the account used for the shared price stream.
func (a *app) streamCredentials() (models.Credentials, bool) {
	portfolios := a.mgr.Portfolios()
	if len(portfolios) == 0 {
		return models.Credentials{}, false
	}
	return portfolios[0].Credentials(), true
}

func unavailablePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, fmt.Errorf("%s: %w", symbol, apperrors.ErrPriceUnavailable)
}
