package portfolio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/events"
	"alpha_portfolios/internal/models"
)

// spyBroker records calls and serves canned account, order and price data.
type spyBroker struct {
	mu sync.Mutex

	account    *models.Account
	accountErr error
	submitErr  error
	fillPrice  decimal.Decimal
	orders     []models.BrokerOrder
	ordersErr  error
	closeErr   error
	prices     map[string]decimal.Decimal

	submitted []models.OrderRequest
	closeAll  int
}

func newSpyBroker() *spyBroker {
	return &spyBroker{
		account: &models.Account{
			Cash:           decimal.NewFromInt(1000),
			PortfolioValue: decimal.NewFromInt(1000),
		},
		prices: make(map[string]decimal.Decimal),
	}
}

func (s *spyBroker) GetAccount(ctx context.Context) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	a := *s.account
	return &a, nil
}

func (s *spyBroker) SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.BrokerOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.submitted = append(s.submitted, req)
	return &models.BrokerOrder{
		ID:             "broker-" + req.ClientOrderID,
		ClientOrderID:  req.ClientOrderID,
		Symbol:         req.Symbol,
		Qty:            req.Qty,
		Side:           req.Side,
		Status:         "filled",
		FilledAvgPrice: s.fillPrice,
	}, nil
}

func (s *spyBroker) ListOrders(ctx context.Context, status string) ([]models.BrokerOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders, s.ordersErr
}

func (s *spyBroker) CloseAllPositions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeAll++
	return s.closeErr
}

func (s *spyBroker) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Zero, errors.New("no trade found for " + symbol)
	}
	return p, nil
}

func (s *spyBroker) setPrice(symbol string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = decimal.NewFromFloat(v)
}

func (s *spyBroker) sells() []models.OrderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OrderRequest
	for _, r := range s.submitted {
		if r.Side == models.Sell {
			out = append(out, r)
		}
	}
	return out
}

func defaultRisk() models.RiskConfig {
	return models.RiskConfig{
		StopLossPct:      0.05,
		TakeProfitPct:    0.10,
		MaxDrawdownPct:   0.10,
		TradePnLLimitPct: 0.05,
		RiskFraction:     0.02,
	}
}

func newTestPortfolio(b *spyBroker, simulate bool) (*Portfolio, *events.Recorder) {
	rec := &events.Recorder{}
	p, err := New(Options{
		Name:         "alpha",
		Credentials:  models.Credentials{APIKey: "key", SecretKey: "secret"},
		StrategyType: "momentum",
		Risk:         defaultRisk(),
		Simulate:     simulate,
		Logger:       zerolog.Nop(),
	}, b, b, rec)
	if err != nil {
		panic(err)
	}
	clock := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return p, rec
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }
