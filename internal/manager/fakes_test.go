package manager

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/decision"
	"alpha_portfolios/internal/market"
	"alpha_portfolios/internal/models"
	"alpha_portfolios/internal/portfolio"
)

// fakeBroker is an in-memory account shared by broker and price oracle.
type fakeBroker struct {
	mu         sync.Mutex
	key        string
	cash       decimal.Decimal
	price      decimal.Decimal
	submitErr  error
	accountErr error
	log        *callLog
	submitted  []models.OrderRequest
}

func (f *fakeBroker) GetAccount(ctx context.Context) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return &models.Account{Cash: f.cash, PortfolioValue: f.cash}, nil
}

func (f *fakeBroker) SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.BrokerOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add(f.key + ":" + req.Symbol + ":" + string(req.Side))
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return &models.BrokerOrder{ID: "b-" + req.ClientOrderID, Symbol: req.Symbol, Qty: req.Qty, Side: req.Side, Status: "filled"}, nil
}

func (f *fakeBroker) ListOrders(ctx context.Context, status string) ([]models.BrokerOrder, error) {
	return nil, nil
}

func (f *fakeBroker) CloseAllPositions(ctx context.Context) error { return nil }

func (f *fakeBroker) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.price.IsPositive() {
		return decimal.Zero, errors.New("no price")
	}
	return f.price, nil
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(s string) {
	c.mu.Lock()
	c.calls = append(c.calls, s)
	c.mu.Unlock()
}

func (c *callLog) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// brokerSet builds one fakeBroker per API key.
type brokerSet struct {
	mu      sync.Mutex
	log     callLog
	brokers map[string]*fakeBroker
	price   decimal.Decimal
}

func newBrokerSet(price float64) *brokerSet {
	return &brokerSet{brokers: make(map[string]*fakeBroker), price: decimal.NewFromFloat(price)}
}

func (b *brokerSet) factory() market.BrokerFactory {
	return func(creds models.Credentials) (market.Broker, market.PriceOracle) {
		b.mu.Lock()
		defer b.mu.Unlock()
		fb := &fakeBroker{key: creds.APIKey, cash: decimal.NewFromInt(1000), price: b.price, log: &b.log}
		b.brokers[creds.APIKey] = fb
		return fb, fb
	}
}

func (b *brokerSet) get(key string) *fakeBroker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.brokers[key]
}

type countingResearch struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingResearch) Fetch(ctx context.Context, symbol string) models.Research {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[symbol]++
	return models.Research{Symbol: symbol, News: []models.NewsItem{}}
}

// scriptedDecision answers per symbol, defaulting to hold.
type scriptedDecision map[string]string

func (s scriptedDecision) Decide(ctx context.Context, req decision.Request) (decision.Decision, error) {
	if text, ok := s[req.Research.Symbol]; ok {
		return decision.Decision{Prompt: "prompt " + req.Research.Symbol, Text: text}, nil
	}
	return decision.Decision{Text: decision.NoDecision}, errors.New("timeout")
}

type memStore struct {
	mu    sync.Mutex
	defs  []models.PortfolioDefinition
	saves int
}

func (m *memStore) Load() []models.PortfolioDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PortfolioDefinition(nil), m.defs...)
}

func (m *memStore) Save(defs []models.PortfolioDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs = append([]models.PortfolioDefinition(nil), defs...)
	m.saves++
	return nil
}

type staticTrending struct {
	symbols []string
	err     error
	limit   int
}

func (s *staticTrending) Trending(ctx context.Context, limit int) ([]string, error) {
	s.limit = limit
	return s.symbols, s.err
}

func def(name, key string) models.PortfolioDefinition {
	return models.PortfolioDefinition{Name: name, StrategyType: "momentum", APIKey: key, SecretKey: "secret-" + key}
}

func testRisk() models.RiskConfig {
	return models.RiskConfig{StopLossPct: 0.05, TakeProfitPct: 0.10, MaxDrawdownPct: 0.10, TradePnLLimitPct: 0.05, RiskFraction: 0.02}
}

func newTestManager(brokers *brokerSet, dec decision.Service, store *memStore) *Manager {
	return New(Options{
		Store:       store,
		Factory:     brokers.factory(),
		Research:    &countingResearch{},
		Decision:    dec,
		DefaultRisk: testRisk(),
		Concurrency: 1,
		Logger:      zerolog.Nop(),
	})
}

func portfolioFilterAll() portfolio.HistoryFilter { return portfolio.HistoryFilter{} }
