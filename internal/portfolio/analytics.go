package portfolio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/apperrors"
	"alpha_portfolios/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Position is a held symbol marked to market.
type Position struct {
	Symbol        string          `json:"symbol"`
	Qty           decimal.Decimal `json:"qty"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	Price         decimal.Decimal `json:"price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPct decimal.Decimal `json:"unrealized_pct"`
}

// Positions marks every held symbol to market. Symbols without a live
// price or a positive average cost are omitted.
func (p *Portfolio) Positions(ctx context.Context) []Position {
	out := []Position{}
	for _, h := range p.sortedHoldings() {
		if !h.avg.IsPositive() {
			continue
		}
		price, err := p.prices.LatestPrice(ctx, h.symbol)
		if err != nil || !price.IsPositive() {
			continue
		}
		out = append(out, Position{
			Symbol:        h.symbol,
			Qty:           h.qty,
			AvgCost:       h.avg,
			Price:         price,
			MarketValue:   price.Mul(h.qty),
			UnrealizedPnL: price.Sub(h.avg).Mul(h.qty),
			UnrealizedPct: price.Sub(h.avg).Div(h.avg).Mul(hundred),
		})
	}
	return out
}

// AllocationEntry is one slice of the allocation breakdown.
type AllocationEntry struct {
	Symbol  string          `json:"symbol"`
	Value   decimal.Decimal `json:"value"`
	Percent decimal.Decimal `json:"percent"`
}

// CashSymbol labels the cash slice of an allocation.
const CashSymbol = "CASH"

// Allocation returns the percentage breakdown of total value across held
// symbols and cash, largest first.
func (p *Portfolio) Allocation(ctx context.Context) []AllocationEntry {
	acct, err := p.broker.GetAccount(ctx)
	if err != nil {
		acct = nil
	}
	return p.allocation(ctx, acct)
}

// allocation uses the account total value when known, otherwise the sum of
// priced holdings and cash.
func (p *Portfolio) allocation(ctx context.Context, acct *models.Account) []AllocationEntry {
	var entries []AllocationEntry
	sum := decimal.Zero
	for _, h := range p.sortedHoldings() {
		price, err := p.prices.LatestPrice(ctx, h.symbol)
		if err != nil || !price.IsPositive() {
			continue
		}
		v := price.Mul(h.qty)
		sum = sum.Add(v)
		entries = append(entries, AllocationEntry{Symbol: h.symbol, Value: v})
	}

	cash := decimal.Zero
	total := decimal.Zero
	if acct != nil {
		cash = acct.Cash
		total = acct.PortfolioValue
	}
	entries = append(entries, AllocationEntry{Symbol: CashSymbol, Value: cash})
	if !total.IsPositive() {
		total = sum.Add(cash)
	}
	if !total.IsPositive() {
		return []AllocationEntry{}
	}

	for i := range entries {
		entries[i].Percent = entries[i].Value.Div(total).Mul(hundred).Round(2)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Percent.GreaterThan(entries[j].Percent)
	})
	return entries
}

// HistoryFilter narrows TradeHistory. Empty fields match everything.
type HistoryFilter struct {
	Symbol string
	Side   models.Side
}

// HistoryResult is a filtered order history with side counts.
type HistoryResult struct {
	Trades []models.TradeRecord `json:"trades"`
	Buys   int                  `json:"buys"`
	Sells  int                  `json:"sells"`
}

func (p *Portfolio) TradeHistory(f HistoryFilter) HistoryResult {
	sym := strings.ToUpper(strings.TrimSpace(f.Symbol))
	side := models.Side(strings.ToLower(string(f.Side)))

	p.mu.RLock()
	defer p.mu.RUnlock()
	res := HistoryResult{Trades: []models.TradeRecord{}}
	for _, r := range p.history {
		if sym != "" && r.Symbol != sym {
			continue
		}
		if side != "" && r.Side != side {
			continue
		}
		res.Trades = append(res.Trades, copyRecord(r))
		switch r.Side {
		case models.Buy:
			res.Buys++
		case models.Sell:
			res.Sells++
		}
	}
	return res
}

// RecentTrades returns the last n records, oldest first.
func (p *Portfolio) RecentTrades(n int) []models.TradeRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	start := max(len(p.history)-n, 0)
	out := make([]models.TradeRecord, 0, len(p.history)-start)
	for _, r := range p.history[start:] {
		out = append(out, copyRecord(r))
	}
	return out
}

// Activity returns activity entries of the given type, or all when typ is
// empty.
func (p *Portfolio) Activity(typ models.ActivityType) []models.ActivityEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := []models.ActivityEntry{}
	for _, e := range p.activity {
		if typ == "" || e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// PeriodPnL is realized PnL summed over one period.
type PeriodPnL struct {
	Period string          `json:"period"`
	PnL    decimal.Decimal `json:"pnl"`
}

// Aggregation periods accepted by PnLByPeriod.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// PnLByPeriod sums realized PnL per day (2006-01-02), ISO week (2006-W01)
// or month (2006-01), in chronological order.
func (p *Portfolio) PnLByPeriod(period string) ([]PeriodPnL, error) {
	var key func(time.Time) string
	switch strings.ToLower(period) {
	case PeriodDay:
		key = func(t time.Time) string { return t.Format("2006-01-02") }
	case PeriodWeek:
		key = func(t time.Time) string {
			y, w := t.ISOWeek()
			return fmt.Sprintf("%d-W%02d", y, w)
		}
	case PeriodMonth:
		key = func(t time.Time) string { return t.Format("2006-01") }
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownPeriod, period)
	}

	p.mu.RLock()
	sums := make(map[string]decimal.Decimal)
	for _, r := range p.history {
		if r.RealizedPnL == nil {
			continue
		}
		k := key(r.SubmittedAt)
		sums[k] = sums[k].Add(*r.RealizedPnL)
	}
	p.mu.RUnlock()

	out := make([]PeriodPnL, 0, len(sums))
	for k, v := range sums {
		out = append(out, PeriodPnL{Period: k, PnL: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

// Stats are simple performance figures.
type Stats struct {
	Profit      decimal.Decimal `json:"profit"`
	WinRate     decimal.Decimal `json:"win_rate"`
	Trades      int             `json:"trades"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// Stats reports profit as last minus first equity sample and win rate as
// the percentage of sells with positive realized PnL.
func (p *Portfolio) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var s Stats
	if n := len(p.equity); n > 0 {
		s.Profit = p.equity[n-1].Value.Sub(p.equity[0].Value)
	}
	sells, wins := 0, 0
	for _, r := range p.history {
		if r.Side != models.Sell {
			continue
		}
		sells++
		if r.RealizedPnL != nil {
			s.RealizedPnL = s.RealizedPnL.Add(*r.RealizedPnL)
			if r.RealizedPnL.IsPositive() {
				wins++
			}
		}
	}
	s.Trades = len(p.history)
	if sells > 0 {
		s.WinRate = decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(sells))).Mul(hundred).Round(2)
	}
	return s
}

// Trade returns the record with the given id.
func (p *Portfolio) Trade(id string) (models.TradeRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if r := p.findLocked(id); r != nil {
		return copyRecord(r), nil
	}
	return models.TradeRecord{}, fmt.Errorf("%s: %w", id, apperrors.ErrTradeNotFound)
}

// SetNotes replaces the notes of a trade.
func (p *Portfolio) SetNotes(id, notes string) (models.TradeRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.findLocked(id)
	if r == nil {
		return models.TradeRecord{}, fmt.Errorf("%s: %w", id, apperrors.ErrTradeNotFound)
	}
	r.Notes = notes
	return copyRecord(r), nil
}

// SetTags replaces the tags of a trade. Tags are trimmed and empty ones
// dropped.
func (p *Portfolio) SetTags(id string, tags []string) (models.TradeRecord, error) {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.findLocked(id)
	if r == nil {
		return models.TradeRecord{}, fmt.Errorf("%s: %w", id, apperrors.ErrTradeNotFound)
	}
	r.Tags = clean
	return copyRecord(r), nil
}

func (p *Portfolio) findLocked(id string) *models.TradeRecord {
	for _, r := range p.history {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func copyRecord(r *models.TradeRecord) models.TradeRecord {
	out := *r
	out.Tags = append([]string{}, r.Tags...)
	if r.RealizedPnL != nil {
		pnl := *r.RealizedPnL
		out.RealizedPnL = &pnl
	}
	if r.Context.Metadata != nil {
		md := make(map[string]string, len(r.Context.Metadata))
		for k, v := range r.Context.Metadata {
			md[k] = v
		}
		out.Context.Metadata = md
	}
	return out
}
