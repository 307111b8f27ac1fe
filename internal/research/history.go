package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"alpha_portfolios/internal/models"
)

// YahooHistory reads daily bars through finance-go's chart API.
type YahooHistory struct{}

func (YahooHistory) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	type result struct {
		points []models.PricePoint
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		iter := chart.Get(&chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		})
		var points []models.PricePoint
		for iter.Next() {
			bar := iter.Bar()
			c, _ := bar.Close.Float64()
			points = append(points, models.PricePoint{Time: time.Unix(int64(bar.Timestamp), 0).UTC(), Close: c})
		}
		if err := iter.Err(); err != nil {
			ch <- result{err: fmt.Errorf("chart for %s: %w", symbol, err)}
			return
		}
		ch <- result{points: points}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.points, r.err
	}
}

// FallbackHistory tries each source in order and returns the first
// non-empty series.
type FallbackHistory []HistorySource

func (f FallbackHistory) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	var errs []error
	for _, src := range f {
		points, err := src.DailyCloses(ctx, symbol, start, end)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(points) > 0 {
			return points, nil
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}
