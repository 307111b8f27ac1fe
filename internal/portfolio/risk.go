package portfolio

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/models"
)

// RiskReport summarizes one risk evaluation.
type RiskReport struct {
	Seeded        bool            `json:"seeded"`
	HighWaterMark decimal.Decimal `json:"high_water_mark"`
	Drawdown      decimal.Decimal `json:"drawdown"`
	Alerts        []string        `json:"alerts"`
	ClosedAll     bool            `json:"closed_all"`
	Sold          []string        `json:"sold"`
}

// EvaluateRisk checks drawdown against the high-water mark and every held
// symbol against stop-loss and take-profit.
//
// The first call only seeds the baseline. A drawdown breach closes all
// positions; a stop-loss or take-profit hit sells the full held quantity.
// In simulate mode alerts are raised but no orders are sent. Symbols without
// a price are skipped.
func (p *Portfolio) EvaluateRisk(ctx context.Context, currentValue decimal.Decimal) RiskReport {
	p.tradeMu.Lock()
	defer p.tradeMu.Unlock()

	p.mu.Lock()
	if !p.baselineSet {
		p.baselineSet = true
		p.initialValue = currentValue
		p.hwm = currentValue
		p.mu.Unlock()
		p.log.Info().Str("value", currentValue.StringFixed(2)).Msg("risk baseline seeded")
		return RiskReport{Seeded: true, HighWaterMark: currentValue}
	}
	if currentValue.GreaterThan(p.hwm) {
		p.hwm = currentValue
	}
	hwm := p.hwm
	risk := p.risk
	p.mu.Unlock()

	report := RiskReport{HighWaterMark: hwm}
	if hwm.IsPositive() {
		report.Drawdown = hwm.Sub(currentValue).Div(hwm)
	}

	if risk.MaxDrawdownPct > 0 && report.Drawdown.GreaterThanOrEqual(decimal.NewFromFloat(risk.MaxDrawdownPct)) {
		msg := fmt.Sprintf("Max drawdown breached: %s%% from high-water mark %s (limit %.2f%%)",
			report.Drawdown.Mul(decimal.NewFromInt(100)).StringFixed(2), hwm.StringFixed(2), risk.MaxDrawdownPct*100)
		p.raiseAlert(msg)
		report.Alerts = append(report.Alerts, msg)
		if !p.simulate {
			report.ClosedAll = p.closeAllLocked(ctx)
		}
	}

	p.sweepLocked(ctx, risk, &report)
	return report
}

// CheckPositions runs the stop-loss and take-profit sweep alone. It serves
// cycles where the account value is unknown and drawdown cannot be judged.
func (p *Portfolio) CheckPositions(ctx context.Context) RiskReport {
	p.tradeMu.Lock()
	defer p.tradeMu.Unlock()

	p.mu.RLock()
	report := RiskReport{HighWaterMark: p.hwm}
	risk := p.risk
	p.mu.RUnlock()

	p.sweepLocked(ctx, risk, &report)
	return report
}

// sweepLocked sells held symbols that crossed stop-loss or take-profit.
// Requires tradeMu.
func (p *Portfolio) sweepLocked(ctx context.Context, risk models.RiskConfig, report *RiskReport) {
	for _, h := range p.sortedHoldings() {
		price, err := p.prices.LatestPrice(ctx, h.symbol)
		if err != nil || !price.IsPositive() {
			p.log.Debug().Err(err).Str("symbol", h.symbol).Msg("no price, risk check skipped")
			continue
		}
		if !h.avg.IsPositive() {
			p.seedCostBasis(h.symbol, price)
			continue
		}
		change := price.Sub(h.avg).Div(h.avg)

		var trigger, msg string
		switch {
		case risk.StopLossPct > 0 && change.LessThanOrEqual(decimal.NewFromFloat(-risk.StopLossPct)):
			trigger = models.TriggerStopLoss
			msg = fmt.Sprintf("Stop-loss triggered for %s: price %s vs avg cost %s (%s%%)",
				h.symbol, price.StringFixed(2), h.avg.StringFixed(2), change.Mul(decimal.NewFromInt(100)).StringFixed(2))
		case risk.TakeProfitPct > 0 && change.GreaterThanOrEqual(decimal.NewFromFloat(risk.TakeProfitPct)):
			trigger = models.TriggerTakeProfit
			msg = fmt.Sprintf("Take-profit triggered for %s: price %s vs avg cost %s (+%s%%)",
				h.symbol, price.StringFixed(2), h.avg.StringFixed(2), change.Mul(decimal.NewFromInt(100)).StringFixed(2))
		default:
			continue
		}

		p.raiseAlert(msg)
		report.Alerts = append(report.Alerts, msg)
		if p.simulate {
			continue
		}
		if _, err := p.placeLocked(ctx, h.symbol, h.qty, models.Sell, models.DecisionContext{Trigger: trigger}); err == nil {
			report.Sold = append(report.Sold, h.symbol)
		}
	}
}

// seedCostBasis fills in a missing average cost for a position bought
// without a known price.
func (p *Portfolio) seedCostBasis(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, held := p.holdings[symbol]; !held {
		return
	}
	if avg, ok := p.avgCost[symbol]; ok && avg.IsPositive() {
		return
	}
	p.avgCost[symbol] = price
	p.log.Info().Str("symbol", symbol).Str("price", price.StringFixed(2)).Msg("cost basis seeded from live price")
}

// closeAllLocked liquidates the account at the broker and mirrors the
// liquidation into local holdings. Requires tradeMu.
func (p *Portfolio) closeAllLocked(ctx context.Context) bool {
	if err := p.broker.CloseAllPositions(ctx); err != nil {
		p.log.Error().Err(err).Msg("close all positions failed")
		p.LogActivity(models.ActivityError, fmt.Sprintf("close all positions failed: %v", err))
		return false
	}
	for _, h := range p.sortedHoldings() {
		price, err := p.prices.LatestPrice(ctx, h.symbol)
		if err != nil || !price.IsPositive() {
			price = h.avg
		}
		p.record(ctx, Fill{
			Symbol:  h.symbol,
			Qty:     h.qty,
			Side:    models.Sell,
			Price:   price,
			Status:  "closed",
			Context: models.DecisionContext{Trigger: models.TriggerMaxDrawdown},
		})
	}
	return true
}

type holding struct {
	symbol string
	qty    decimal.Decimal
	avg    decimal.Decimal
}

func (p *Portfolio) sortedHoldings() []holding {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]holding, 0, len(p.holdings))
	for s, q := range p.holdings {
		out = append(out, holding{symbol: s, qty: q, avg: p.avgCost[s]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].symbol < out[j].symbol })
	return out
}
