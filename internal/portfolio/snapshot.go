package portfolio

import (
	"context"

	"alpha_portfolios/internal/models"
)

// NotAvailable replaces figures the broker could not supply.
const NotAvailable = "N/A"

const recentHistory = 5

// Snapshot is the externally visible state of a portfolio.
type Snapshot struct {
	Name             string               `json:"name"`
	Strategy         string               `json:"strategy"`
	Simulated        bool                 `json:"simulated"`
	Cash             string               `json:"cash"`
	TotalValue       string               `json:"total_value"`
	Positions        []Position           `json:"positions"`
	History          []models.TradeRecord `json:"history"`
	OpenOrders       []models.BrokerOrder `json:"open_orders"`
	Allocation       []AllocationEntry    `json:"allocation"`
	EquityCurve      []models.CurvePoint  `json:"equity_curve"`
	NormalizedEquity []models.CurvePoint  `json:"normalized_equity"`
	Alerts           []string             `json:"alerts"`
	Thresholds       models.RiskConfig    `json:"thresholds"`
	Stats            Stats                `json:"stats"`
}

// Snapshot assembles the portfolio view. Broker failures degrade to
// placeholders instead of failing the snapshot.
func (p *Portfolio) Snapshot(ctx context.Context) Snapshot {
	s := Snapshot{
		Name:       p.name,
		Strategy:   p.Strategy(),
		Simulated:  p.simulate,
		Cash:       NotAvailable,
		TotalValue: NotAvailable,
	}
	acct, err := p.broker.GetAccount(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("account unavailable for snapshot")
		acct = nil
	} else {
		s.Cash = acct.Cash.StringFixed(2)
		s.TotalValue = acct.PortfolioValue.StringFixed(2)
	}

	s.Positions = p.Positions(ctx)
	s.History = p.RecentTrades(recentHistory)
	s.OpenOrders = p.RefreshOpenOrders(ctx)
	s.Allocation = p.allocation(ctx, acct)
	s.EquityCurve = p.EquityCurve()
	s.NormalizedEquity = p.NormalizedEquity()
	s.Alerts = p.Alerts()
	s.Thresholds = p.Thresholds()
	s.Stats = p.Stats()
	return s
}

// AccountSummary returns cash, total value and holdings as strings for
// prompts and status output.
func (p *Portfolio) AccountSummary(ctx context.Context) (cash, total string, holdings map[string]string) {
	cash, total = NotAvailable, NotAvailable
	if acct, err := p.broker.GetAccount(ctx); err == nil {
		cash = acct.Cash.StringFixed(2)
		total = acct.PortfolioValue.StringFixed(2)
	}
	holdings = make(map[string]string)
	for s, q := range p.Holdings() {
		holdings[s] = q.String()
	}
	return cash, total, holdings
}
