package portfolio

import (
	"context"

	"github.com/shopspring/decimal"
)

// Allocate sizes a new position: floor(cash*riskFraction/price) to four
// decimal places. It returns zero for a non-positive price and never a
// negative quantity.
func Allocate(cash decimal.Decimal, riskFraction float64, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	qty := cash.Mul(decimal.NewFromFloat(riskFraction)).Div(price).RoundFloor(4)
	if qty.IsNegative() {
		return decimal.Zero
	}
	return qty
}

// Size returns the quantity to buy for symbol. Zero means do not trade.
func (p *Portfolio) Size(ctx context.Context, symbol string) decimal.Decimal {
	price, err := p.prices.LatestPrice(ctx, symbol)
	if err != nil {
		p.log.Debug().Err(err).Str("symbol", symbol).Msg("no price, not sizing")
		return decimal.Zero
	}
	cash := decimal.Zero
	if acct, err := p.broker.GetAccount(ctx); err != nil {
		p.log.Warn().Err(err).Msg("account unavailable, sizing with zero cash")
	} else {
		cash = acct.Cash
	}
	return Allocate(cash, p.Thresholds().RiskFraction, price)
}
