package research

import (
	"context"
	"fmt"

	"github.com/piquette/finance-go/equity"

	"alpha_portfolios/internal/models"
)

// YahooFundamentals reads equity quotes through finance-go.
type YahooFundamentals struct{}

func (YahooFundamentals) Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	type result struct {
		f   models.Fundamentals
		err error
	}
	// finance-go has no context support; abandon the call when ctx expires.
	ch := make(chan result, 1)
	go func() {
		q, err := equity.Get(symbol)
		if err != nil {
			ch <- result{err: fmt.Errorf("equity quote for %s: %w", symbol, err)}
			return
		}
		if q == nil {
			ch <- result{err: fmt.Errorf("no equity quote for %s", symbol)}
			return
		}
		ch <- result{f: models.Fundamentals{
			Name:             q.ShortName,
			Currency:         q.CurrencyID,
			Price:            q.RegularMarketPrice,
			MarketCap:        q.MarketCap,
			TrailingPE:       q.TrailingPE,
			EPS:              q.EpsTrailingTwelveMonths,
			FiftyTwoWeekHigh: q.FiftyTwoWeekHigh,
			FiftyTwoWeekLow:  q.FiftyTwoWeekLow,
		}}
	}()

	select {
	case <-ctx.Done():
		return models.Fundamentals{}, ctx.Err()
	case r := <-ch:
		return r.f, r.err
	}
}
