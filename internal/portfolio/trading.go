package portfolio

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/apperrors"
	"alpha_portfolios/internal/models"
)

// Fill describes an executed order to be recorded.
type Fill struct {
	ID            string
	BrokerOrderID string
	Symbol        string
	Qty           decimal.Decimal
	Side          models.Side
	Price         decimal.Decimal
	Status        string
	Context       models.DecisionContext
}

// RecordFill records a fill with a generated id and a manual trigger.
// Quantities must be positive.
func (p *Portfolio) RecordFill(ctx context.Context, symbol string, qty decimal.Decimal, side models.Side, price decimal.Decimal) (models.TradeRecord, error) {
	if !qty.IsPositive() {
		return models.TradeRecord{}, fmt.Errorf("%s %s: %w", side, strings.ToUpper(symbol), apperrors.ErrInvalidQuantity)
	}
	return p.record(ctx, Fill{
		Symbol:  symbol,
		Qty:     qty,
		Side:    side,
		Price:   price,
		Status:  "filled",
		Context: models.DecisionContext{Trigger: models.TriggerManual},
	}), nil
}

// record applies a fill to holdings and cost basis and appends it to the
// order history.
//
// A buy updates the volume-weighted average cost. A sell realizes
// (price - avgCost) * qty and always closes the whole tracked position.
// A fill without a price leaves the cost basis alone and realizes nothing;
// the next risk evaluation seeds a missing cost basis from the live price.
func (p *Portfolio) record(ctx context.Context, f Fill) models.TradeRecord {
	symbol := strings.ToUpper(f.Symbol)
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	rec := &models.TradeRecord{
		ID:            f.ID,
		BrokerOrderID: f.BrokerOrderID,
		Symbol:        symbol,
		Side:          f.Side,
		Qty:           f.Qty,
		FillPrice:     f.Price,
		Status:        f.Status,
		SubmittedAt:   p.now(),
		Tags:          []string{},
		Context:       f.Context,
	}

	p.mu.Lock()
	switch f.Side {
	case models.Buy:
		oldQty := p.holdings[symbol]
		newQty := oldQty.Add(f.Qty)
		oldAvg, ok := p.avgCost[symbol]
		switch {
		case !f.Price.IsPositive():
		case ok && oldAvg.IsPositive():
			p.avgCost[symbol] = oldAvg.Mul(oldQty).Add(f.Price.Mul(f.Qty)).Div(newQty)
		default:
			p.avgCost[symbol] = f.Price
		}
		p.holdings[symbol] = newQty
	case models.Sell:
		if avg, ok := p.avgCost[symbol]; ok && f.Price.IsPositive() {
			pnl := f.Price.Sub(avg).Mul(f.Qty)
			rec.RealizedPnL = &pnl
		}
		delete(p.holdings, symbol)
		delete(p.avgCost, symbol)
	}
	p.history = append(p.history, rec)
	out := *rec
	entry := p.appendActivityLocked(models.ActivityTrade, describeTrade(out))
	limit := p.risk.TradePnLLimitPct
	p.mu.Unlock()

	p.publish(entry)
	p.checkTradePnL(ctx, out, limit)
	return out
}

// checkTradePnL raises an alert when one trade's realized PnL is too large
// relative to the account value. Skipped when the value is unknown.
func (p *Portfolio) checkTradePnL(ctx context.Context, rec models.TradeRecord, limit float64) {
	if rec.RealizedPnL == nil || limit <= 0 {
		return
	}
	acct, err := p.broker.GetAccount(ctx)
	if err != nil || !acct.PortfolioValue.IsPositive() {
		p.log.Debug().Err(err).Msg("account value unavailable, trade PnL check skipped")
		return
	}
	ratio := rec.RealizedPnL.Abs().Div(acct.PortfolioValue)
	if ratio.GreaterThanOrEqual(decimal.NewFromFloat(limit)) {
		p.raiseAlert(fmt.Sprintf("Trade PnL limit breached on %s: %s (%s%% of portfolio, limit %.2f%%)",
			rec.Symbol, rec.RealizedPnL.StringFixed(2), ratio.Mul(decimal.NewFromInt(100)).StringFixed(2), limit*100))
	}
}

func describeTrade(r models.TradeRecord) string {
	msg := fmt.Sprintf("%s %s %s @ %s", strings.ToUpper(string(r.Side)), r.Qty.String(), r.Symbol, r.FillPrice.StringFixed(2))
	if r.RealizedPnL != nil {
		msg += " pnl " + r.RealizedPnL.StringFixed(2)
	}
	if r.Context.Trigger != "" {
		msg += " [" + r.Context.Trigger + "]"
	}
	return msg
}

// PlaceOrder submits a market order and records the fill. A submission
// error is returned unchanged in meaning and leaves the state untouched.
func (p *Portfolio) PlaceOrder(ctx context.Context, symbol string, qty decimal.Decimal, side models.Side, dctx models.DecisionContext) (models.TradeRecord, error) {
	p.tradeMu.Lock()
	defer p.tradeMu.Unlock()
	return p.placeLocked(ctx, symbol, qty, side, dctx)
}

// Liquidate sells the full held quantity of symbol. It reports false when
// nothing is held.
func (p *Portfolio) Liquidate(ctx context.Context, symbol string, dctx models.DecisionContext) (models.TradeRecord, bool, error) {
	p.tradeMu.Lock()
	defer p.tradeMu.Unlock()

	p.mu.RLock()
	qty, held := p.holdings[strings.ToUpper(symbol)]
	p.mu.RUnlock()
	if !held {
		return models.TradeRecord{}, false, nil
	}
	rec, err := p.placeLocked(ctx, symbol, qty, models.Sell, dctx)
	return rec, true, err
}

// placeLocked requires tradeMu.
func (p *Portfolio) placeLocked(ctx context.Context, symbol string, qty decimal.Decimal, side models.Side, dctx models.DecisionContext) (models.TradeRecord, error) {
	symbol = strings.ToUpper(symbol)
	if !qty.IsPositive() {
		return models.TradeRecord{}, fmt.Errorf("%s %s: %w", side, symbol, apperrors.ErrInvalidQuantity)
	}

	id := uuid.NewString()
	order, err := p.broker.SubmitOrder(ctx, models.OrderRequest{
		Symbol:        symbol,
		Qty:           qty,
		Side:          side,
		ClientOrderID: id,
	})
	if err != nil {
		p.log.Error().Err(err).Str("symbol", symbol).Str("side", string(side)).Str("qty", qty.String()).Msg("order submission failed")
		p.LogActivity(models.ActivityError, fmt.Sprintf("order %s %s %s failed: %v", side, qty, symbol, err))
		return models.TradeRecord{}, fmt.Errorf("submit %s %s: %w", side, symbol, err)
	}

	price := decimal.Zero
	brokerID, status := "", "submitted"
	if order != nil {
		brokerID, status = order.ID, order.Status
		price = order.FilledAvgPrice
	}
	if !price.IsPositive() {
		if live, err := p.prices.LatestPrice(ctx, symbol); err == nil && live.IsPositive() {
			price = live
		} else {
			p.log.Warn().Err(err).Str("symbol", symbol).Msg("no fill price, recording without cost basis")
			price = decimal.Zero
		}
	}

	return p.record(ctx, Fill{
		ID:            id,
		BrokerOrderID: brokerID,
		Symbol:        symbol,
		Qty:           qty,
		Side:          side,
		Price:         price,
		Status:        status,
		Context:       dctx,
	}), nil
}
