package portfolio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpha_portfolios/internal/apperrors"
	"alpha_portfolios/internal/events"
	"alpha_portfolios/internal/models"
)

func TestNew_RequiresCredentials(t *testing.T) {
	b := newSpyBroker()
	for _, creds := range []models.Credentials{
		{APIKey: "", SecretKey: "s"},
		{APIKey: "k", SecretKey: ""},
		{},
	} {
		_, err := New(Options{Name: "x", Credentials: creds, Logger: zerolog.Nop()}, b, b, nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	}

	_, err := New(Options{Credentials: models.Credentials{APIKey: "k", SecretKey: "s"}}, b, b, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidName)
}

func TestRecordFill_WeightedAverageAndRealizedPnL(t *testing.T) {
	b := newSpyBroker()
	p, _ := newTestPortfolio(b, false)
	ctx := context.Background()

	p.RecordFill(ctx, "AAPL", d("2"), models.Buy, d("10"))
	p.RecordFill(ctx, "aapl", d("3"), models.Buy, d("20"))

	avg, ok := p.AvgCost("AAPL")
	require.True(t, ok)
	assert.True(t, avg.Equal(d("16")), "avg %s", avg)
	assert.True(t, p.Holdings()["AAPL"].Equal(d("5")))

	rec, err := p.RecordFill(ctx, "AAPL", d("5"), models.Sell, d("18"))
	require.NoError(t, err)
	require.NotNil(t, rec.RealizedPnL)
	assert.True(t, rec.RealizedPnL.Equal(d("10")), "pnl %s", rec.RealizedPnL)

	_, held := p.Holdings()["AAPL"]
	assert.False(t, held)
	_, ok = p.AvgCost("AAPL")
	assert.False(t, ok)
}

func TestRecordFill_SellClosesWholePosition(t *testing.T) {
	b := newSpyBroker()
	p, _ := newTestPortfolio(b, false)
	ctx := context.Background()

	p.RecordFill(ctx, "MSFT", d("4"), models.Buy, d("50"))
	rec, err := p.RecordFill(ctx, "MSFT", d("1"), models.Sell, d("55"))
	require.NoError(t, err)

	assert.True(t, rec.RealizedPnL.Equal(d("5")))
	assert.Empty(t, p.Holdings())
}

func TestRecordFill_SellOfUnheldSymbolHasNoPnL(t *testing.T) {
	b := newSpyBroker()
	p, rec := newTestPortfolio(b, false)

	tr, err := p.RecordFill(context.Background(), "TSLA", d("1"), models.Sell, d("200"))
	require.NoError(t, err)

	assert.Nil(t, tr.RealizedPnL)
	assert.Len(t, rec.OfType(models.ActivityTrade), 1)
	assert.Empty(t, p.Alerts())
}

func TestRecordFill_RejectsNonPositiveQuantity(t *testing.T) {
	b := newSpyBroker()
	p, rec := newTestPortfolio(b, false)
	ctx := context.Background()

	_, err := p.RecordFill(ctx, "AAPL", decimal.Zero, models.Buy, d("10"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
	_, err = p.RecordFill(ctx, "MSFT", d("-2"), models.Buy, d("10"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	assert.Empty(t, p.Holdings())
	assert.Empty(t, p.TradeHistory(HistoryFilter{}).Trades)
	assert.Empty(t, rec.OfType(models.ActivityTrade))
}

func TestRecordFill_TradePnLLimit(t *testing.T) {
	b := newSpyBroker()
	p, rec := newTestPortfolio(b, false)
	ctx := context.Background()

	p.RecordFill(ctx, "AAPL", d("1"), models.Buy, d("100"))
	p.RecordFill(ctx, "AAPL", d("1"), models.Sell, d("110"))
	assert.Empty(t, p.Alerts(), "1% of value is under the 5% limit")

	p.RecordFill(ctx, "AAPL", d("1"), models.Buy, d("100"))
	p.RecordFill(ctx, "AAPL", d("1"), models.Sell, d("50"))
	require.Len(t, p.Alerts(), 1)
	assert.Contains(t, p.Alerts()[0], "Trade PnL limit")
	assert.Len(t, rec.OfType(models.ActivityAlert), 1)

	b.accountErr = errors.New("broker down")
	p.RecordFill(ctx, "AAPL", d("1"), models.Buy, d("100"))
	p.RecordFill(ctx, "AAPL", d("1"), models.Sell, d("10"))
	assert.Len(t, p.Alerts(), 1, "check skipped when value unknown")
}

func TestPlaceOrder(t *testing.T) {
	b := newSpyBroker()
	b.fillPrice = d("12.5")
	p, _ := newTestPortfolio(b, false)
	ctx := context.Background()

	rec, err := p.PlaceOrder(ctx, "aapl", d("2"), models.Buy, models.DecisionContext{Trigger: models.TriggerDecision, Decision: "buy"})
	require.NoError(t, err)

	require.Len(t, b.submitted, 1)
	assert.Equal(t, "AAPL", b.submitted[0].Symbol)
	assert.Equal(t, rec.ID, b.submitted[0].ClientOrderID)
	assert.Equal(t, "broker-"+rec.ID, rec.BrokerOrderID)
	assert.True(t, rec.FillPrice.Equal(d("12.5")))
	assert.Equal(t, "buy", rec.Context.Decision)

	b.fillPrice = decimal.Zero
	b.setPrice("MSFT", 300)
	rec, err = p.PlaceOrder(ctx, "MSFT", d("1"), models.Buy, models.DecisionContext{})
	require.NoError(t, err)
	assert.True(t, rec.FillPrice.Equal(d("300")), "falls back to the live price")

	rec, err = p.PlaceOrder(ctx, "NOPX", d("1"), models.Buy, models.DecisionContext{})
	require.NoError(t, err)
	assert.True(t, rec.FillPrice.IsZero())
}

func TestPlaceOrder_UnpricedFillHasNoCostBasis(t *testing.T) {
	b := newSpyBroker()
	p, _ := newTestPortfolio(b, false)
	ctx := context.Background()

	_, err := p.PlaceOrder(ctx, "AAPL", d("2"), models.Buy, models.DecisionContext{})
	require.NoError(t, err)
	assert.True(t, p.Holdings()["AAPL"].Equal(d("2")))
	_, ok := p.AvgCost("AAPL")
	assert.False(t, ok, "no price, no cost basis")

	p.EvaluateRisk(ctx, d("1000"))
	b.setPrice("AAPL", 50)
	r := p.EvaluateRisk(ctx, d("1000"))
	assert.Empty(t, r.Alerts)
	avg, ok := p.AvgCost("AAPL")
	require.True(t, ok)
	assert.True(t, avg.Equal(d("50")), "seeded from the live price")

	b.setPrice("AAPL", 0)
	rec, err := p.PlaceOrder(ctx, "AAPL", d("2"), models.Sell, models.DecisionContext{})
	require.NoError(t, err)
	assert.Nil(t, rec.RealizedPnL, "unpriced sell realizes nothing")
	assert.Empty(t, p.Alerts())
}

func TestPlaceOrder_FailureLeavesStateUnchanged(t *testing.T) {
	b := newSpyBroker()
	b.submitErr = errors.New("insufficient buying power")
	p, rec := newTestPortfolio(b, false)

	_, err := p.PlaceOrder(context.Background(), "AAPL", d("1"), models.Buy, models.DecisionContext{})

	require.Error(t, err)
	assert.Empty(t, p.Holdings())
	assert.Empty(t, p.TradeHistory(HistoryFilter{}).Trades)
	assert.Len(t, rec.OfType(models.ActivityError), 1)
}

func TestPlaceOrder_RejectsNonPositiveQuantity(t *testing.T) {
	b := newSpyBroker()
	p, _ := newTestPortfolio(b, false)

	_, err := p.PlaceOrder(context.Background(), "AAPL", decimal.Zero, models.Buy, models.DecisionContext{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
	assert.Empty(t, b.submitted)
}

func TestLiquidate(t *testing.T) {
	b := newSpyBroker()
	b.setPrice("AAPL", 120)
	p, _ := newTestPortfolio(b, false)
	ctx := context.Background()

	_, held, err := p.Liquidate(ctx, "AAPL", models.DecisionContext{})
	require.NoError(t, err)
	assert.False(t, held)
	assert.Empty(t, b.submitted)

	p.RecordFill(ctx, "AAPL", d("3"), models.Buy, d("100"))
	rec, held, err := p.Liquidate(ctx, "aapl", models.DecisionContext{Trigger: models.TriggerDecision})
	require.NoError(t, err)
	assert.True(t, held)
	assert.True(t, rec.Qty.Equal(d("3")))
	assert.True(t, rec.RealizedPnL.Equal(d("60")))
}

func TestAllocate(t *testing.T) {
	cases := []struct {
		cash  string
		frac  float64
		price string
		want  string
	}{
		{"1000", 0.02, "50", "0.4"},
		{"1000", 0.02, "0", "0"},
		{"1000", 0.02, "-5", "0"},
		{"1000", 0.02, "3", "6.6666"},
		{"-1000", 0.02, "50", "0"},
		{"0", 0.02, "50", "0"},
	}
	for _, c := range cases {
		got := Allocate(d(c.cash), c.frac, d(c.price))
		assert.True(t, got.Equal(d(c.want)), "Allocate(%s, %v, %s) = %s, want %s", c.cash, c.frac, c.price, got, c.want)
	}
}

func TestSize(t *testing.T) {
	b := newSpyBroker()
	b.setPrice("AAPL", 50)
	b.setPrice("ZERO", 0)
	p, _ := newTestPortfolio(b, false)
	ctx := context.Background()

	assert.True(t, p.Size(ctx, "AAPL").Equal(d("0.4")))
	assert.True(t, p.Size(ctx, "ZERO").IsZero())
	assert.True(t, p.Size(ctx, "MISSING").IsZero())

	b.accountErr = errors.New("down")
	assert.True(t, p.Size(ctx, "AAPL").IsZero())
}

func TestEvaluateRisk_SeedsBaselineFirst(t *testing.T) {
	b := newSpyBroker()
	b.setPrice("AAPL", 50)
	p, _ := newTestPortfolio(b, false)
	ctx := context.Background()
	p.RecordFill(ctx, "AAPL", d("1"), models.Buy, d("100"))

	r := p.EvaluateRisk(ctx, d("1000"))

	assert.True(t, r.Seeded)
	hwm, ok := p.HighWaterMark()
	require.True(t, ok)
	assert.True(t, hwm.Equal(d("1000")))
	assert.Empty(t, p.Alerts(), "no checks on the seeding call")
	assert.Empty(t, b.submitted)
}

func TestEvaluateRisk_DrawdownClosesAll(t *testing.T) {
	b := newSpyBroker()
	b.setPrice("AAPL", 100)
	p, rec := newTestPortfolio(b, false)
	ctx := context.Background()
	p.RecordFill(ctx, "AAPL", d("2"), models.Buy, d("100"))

	p.EvaluateRisk(ctx, d("1000"))
	r := p.EvaluateRisk(ctx, d("1100"))
	assert.Empty(t, r.Alerts)
	hwm, _ := p.HighWaterMark()
	assert.True(t, hwm.Equal(d("1100")))

	r = p.EvaluateRisk(ctx, d("980"))

	require.Len(t, r.Alerts, 1)
	assert.Contains(t, r.Alerts[0], "Max drawdown")
	assert.True(t, r.ClosedAll)
	assert.Equal(t, 1, b.closeAll)
	assert.Empty(t, p.Holdings(), "local holdings mirror the liquidation")
	assert.Empty(t, b.sells(), "close-all does not send individual sells")

	hist := p.TradeHistory(HistoryFilter{Side: models.Sell})
	require.Len(t, hist.Trades, 1)
	assert.Equal(t, models.TriggerMaxDrawdown, hist.Trades[0].Context.Trigger)
	assert.True(t, hist.Trades[0].RealizedPnL.IsZero())
	assert.Len(t, rec.OfType(models.ActivityAlert), 1)
}

func TestEvaluateRisk_DrawdownSimulated(t *testing.T) {
	b := newSpyBroker()
	b.setPrice("AAPL", 100)
	p, _ := newTestPortfolio(b, true)
	ctx := context.Background()
	p.RecordFill(ctx, "AAPL", d("2"), models.Buy, d("100"))

	p.EvaluateRisk(ctx, d("1000"))
	r := p.EvaluateRisk(ctx, d("900"))

	assert.Len(t, r.Alerts, 1)
	assert.False(t, r.ClosedAll)
	assert.Equal(t, 0, b.closeAll)
	assert.Len(t, p.Holdings(), 1)
}

func TestEvaluateRisk_CloseAllFailureKeepsHoldings(t *testing.T) {
	b := newSpyBroker()
	b.closeErr = errors.New("market closed")
	p, _ := newTestPortfolio(b, false)
	ctx := context.Background()
	p.RecordFill(ctx, "AAPL", d("2"), models.Buy, d("100"))

	p.EvaluateRisk(ctx, d("1000"))
	r := p.EvaluateRisk(ctx, d("500"))

	assert.False(t, r.ClosedAll)
	assert.Equal(t, 1, b.closeAll)
	assert.Len(t, p.Holdings(), 1)
}

func TestEvaluateRisk_HighWaterMarkMonotonic(t *testing.T) {
	b := newSpyBroker()
	p, _ := newTestPortfolio(b, true)
	ctx := context.Background()

	last := decimal.Zero
	for _, v := range []string{"1000", "1050", "1020", "1200", "1190", "1000"} {
		p.EvaluateRisk(ctx, d(v))
		hwm, _ := p.HighWaterMark()
		assert.True(t, hwm.GreaterThanOrEqual(last))
		last = hwm
	}
	assert.True(t, last.Equal(d("1200")))
}

func TestEvaluateRisk_StopLoss(t *testing.T) {
	for _, tc := range []struct {
		price      float64
		wantAlerts int
	}{
		{94, 1},
		{96, 0},
		{95, 1},
	} {
		b := newSpyBroker()
		p, _ := newTestPortfolio(b, false)
		ctx := context.Background()
		p.RecordFill(ctx, "AAPL", d("3"), models.Buy, d("100"))
		p.EvaluateRisk(ctx, d("1000"))

		b.setPrice("AAPL", tc.price)
		r := p.EvaluateRisk(ctx, d("1000"))

		assert.Len(t, r.Alerts, tc.wantAlerts, "price %v", tc.price)
		sells := b.sells()
		assert.Len(t, sells, tc.wantAlerts, "price %v", tc.price)
		if tc.wantAlerts == 1 {
			assert.Contains(t, r.Alerts[0], "Stop-loss")
			assert.True(t, sells[0].Qty.Equal(d("3")))
			assert.Equal(t, []string{"AAPL"}, r.Sold)
			assert.Empty(t, p.Holdings())
		}
	}
}

func TestCheckPositions_WithoutAccountValue(t *testing.T) {
	b := newSpyBroker()
	p, _ := newTestPortfolio(b, false)
	ctx := context.Background()
	_, err := p.RecordFill(ctx, "AAPL", d("1"), models.Buy, d("100"))
	require.NoError(t, err)
	_, err = p.RecordFill(ctx, "MSFT", d("1"), models.Buy, d("100"))
	require.NoError(t, err)
	b.setPrice("AAPL", 80)
	b.setPrice("MSFT", 101)

	r := p.CheckPositions(ctx)

	assert.False(t, r.Seeded)
	assert.True(t, r.Drawdown.IsZero())
	assert.Equal(t, []string{"AAPL"}, r.Sold)
	_, baseline := p.HighWaterMark()
	assert.False(t, baseline, "baseline waits for a known value")
	assert.Contains(t, p.Holdings(), "MSFT")
}

func TestEvaluateRisk_TakeProfit(t *testing.T) {
	b := newSpyBroker()
	p, _ := newTestPortfolio(b, false)
	ctx := context.Background()
	p.RecordFill(ctx, "AAPL", d("1"), models.Buy, d("100"))
	p.RecordFill(ctx, "MSFT", d("1"), models.Buy, d("100"))
	p.EvaluateRisk(ctx, d("1000"))

	b.setPrice("AAPL", 111)
	// MSFT has no price and is skipped.
	r := p.EvaluateRisk(ctx, d("1000"))

	require.Len(t, r.Alerts, 1)
	assert.Contains(t, r.Alerts[0], "Take-profit")
	assert.Equal(t, []string{"AAPL"}, r.Sold)

	hist := p.TradeHistory(HistoryFilter{Symbol: "AAPL", Side: models.Sell})
	require.Len(t, hist.Trades, 1)
	assert.Equal(t, models.TriggerTakeProfit, hist.Trades[0].Context.Trigger)
	assert.True(t, hist.Trades[0].RealizedPnL.Equal(d("11")))
	assert.Contains(t, p.Holdings(), "MSFT")
}

func TestEvaluateRisk_StopLossSimulated(t *testing.T) {
	b := newSpyBroker()
	p, _ := newTestPortfolio(b, true)
	ctx := context.Background()
	p.RecordFill(ctx, "AAPL", d("1"), models.Buy, d("100"))
	p.EvaluateRisk(ctx, d("1000"))

	b.setPrice("AAPL", 80)
	r := p.EvaluateRisk(ctx, d("1000"))

	assert.Len(t, r.Alerts, 1)
	assert.Empty(t, b.submitted)
	assert.Contains(t, p.Holdings(), "AAPL")
}

func TestConcurrentOrdersAndRisk(t *testing.T) {
	b := newSpyBroker()
	b.setPrice("AAPL", 100)
	p, _ := newTestPortfolio(b, false)
	p.now = time.Now
	ctx := context.Background()
	p.EvaluateRisk(ctx, d("1000"))

	var wg sync.WaitGroup
	for n := 0; n < 20; n++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = p.PlaceOrder(ctx, "AAPL", d("1"), models.Buy, models.DecisionContext{})
		}()
		go func() {
			defer wg.Done()
			p.EvaluateRisk(ctx, d("1000"))
		}()
	}
	wg.Wait()

	assert.True(t, p.Holdings()["AAPL"].Equal(d("20")))
	assert.Equal(t, 20, p.TradeHistory(HistoryFilter{}).Buys)
}

var _ events.Sink = (*events.Recorder)(nil)
