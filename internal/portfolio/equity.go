package portfolio

import (
	"context"

	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/benchmark"
	"alpha_portfolios/internal/models"
)

// RecordEquity appends an equity sample. Sample times never go backwards.
func (p *Portfolio) RecordEquity(value decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.now()
	if n := len(p.equity); n > 0 && t.Before(p.equity[n-1].Time) {
		t = p.equity[n-1].Time
	}
	p.equity = append(p.equity, models.CurvePoint{Time: t, Value: value})
}

// RefreshValue reads the account total value and records an equity sample.
// It reports false when the broker is unavailable.
func (p *Portfolio) RefreshValue(ctx context.Context) (decimal.Decimal, bool) {
	acct, err := p.broker.GetAccount(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("account unavailable, value not refreshed")
		return decimal.Zero, false
	}
	p.RecordEquity(acct.PortfolioValue)
	return acct.PortfolioValue, true
}

// RefreshOpenOrders caches the broker's open orders. A failure keeps the
// previous cache.
func (p *Portfolio) RefreshOpenOrders(ctx context.Context) []models.BrokerOrder {
	orders, err := p.broker.ListOrders(ctx, "open")
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.log.Warn().Err(err).Msg("open orders unavailable, keeping cached list")
	} else {
		p.openOrders = orders
	}
	out := make([]models.BrokerOrder, len(p.openOrders))
	copy(out, p.openOrders)
	return out
}

// EquityCurve returns a copy of the equity samples.
func (p *Portfolio) EquityCurve() []models.CurvePoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.CurvePoint, len(p.equity))
	copy(out, p.equity)
	return out
}

// NormalizedEquity returns the equity curve rescaled to start at 100.
func (p *Portfolio) NormalizedEquity() []models.CurvePoint {
	return benchmark.Normalize(p.EquityCurve())
}
