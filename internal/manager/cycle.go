package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"alpha_portfolios/internal/decision"
	"alpha_portfolios/internal/models"
	"alpha_portfolios/internal/portfolio"
)

// AutoSymbols selects trending symbols instead of an explicit list.
const AutoSymbols = "auto"

// PairOutcome is the result of one (portfolio, symbol) step.
type PairOutcome struct {
	Portfolio string                `json:"portfolio"`
	Symbol    string                `json:"symbol"`
	Decision  string                `json:"decision"`
	Action    decision.Action       `json:"action"`
	Trade     *models.TradeRecord   `json:"trade,omitempty"`
	Error     string                `json:"error,omitempty"`
	Risk      *portfolio.RiskReport `json:"risk,omitempty"`
}

// CycleReport summarizes one trading cycle.
type CycleReport struct {
	ID       string        `json:"id"`
	BuyOnly  bool          `json:"buy_only"`
	Symbols  []string      `json:"symbols"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Outcomes []PairOutcome `json:"outcomes"`
}

// ResolveSymbols normalizes the target list. An empty list or "auto"
// fetches trending symbols; a trending failure yields no symbols.
func (m *Manager) ResolveSymbols(ctx context.Context, symbols []string) []string {
	seen := make(map[string]bool)
	var out []string
	auto := len(symbols) == 0
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if strings.EqualFold(s, AutoSymbols) {
			auto = true
			continue
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if !auto || len(out) > 0 {
		return out
	}
	if m.trending == nil {
		m.log.Warn().Msg("auto symbols requested but no trending source configured")
		return nil
	}
	trending, err := m.trending.Trending(ctx, m.trendingLimit)
	if err != nil {
		m.log.Warn().Err(err).Msg("trending symbols unavailable, cycle has no symbols")
		return nil
	}
	return trending
}

// Step runs one full trading cycle over symbols.
func (m *Manager) Step(ctx context.Context, symbols []string) CycleReport {
	return m.runCycle(ctx, symbols, false)
}

// ScanBuys runs a cycle that only acts on buy decisions.
func (m *Manager) ScanBuys(ctx context.Context, symbols []string) CycleReport {
	return m.runCycle(ctx, symbols, true)
}

// runCycle refreshes the benchmark concurrently, then walks symbols in
// order. All portfolios finish a symbol before the next one starts; within
// a symbol portfolios run in parallel up to the concurrency limit. Failures
// are recorded per pair and never abort the cycle.
func (m *Manager) runCycle(ctx context.Context, symbols []string, buyOnly bool) CycleReport {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	report := CycleReport{ID: uuid.NewString(), BuyOnly: buyOnly, Started: time.Now(), Outcomes: []PairOutcome{}}
	log := m.log.With().Str("cycle", report.ID).Logger()

	var bench errgroup.Group
	if m.bench != nil {
		bench.Go(func() error {
			m.bench.Update(ctx)
			return nil
		})
	}

	report.Symbols = m.ResolveSymbols(ctx, symbols)
	portfolios := m.Portfolios()
	log.Info().Strs("symbols", report.Symbols).Int("portfolios", len(portfolios)).Bool("buy_only", buyOnly).Msg("cycle started")

	for _, sym := range report.Symbols {
		res := m.research.Fetch(ctx, sym)

		outcomes := make([]PairOutcome, len(portfolios))
		var g errgroup.Group
		g.SetLimit(m.concurrency)
		for i, p := range portfolios {
			i, p := i, p
			g.Go(func() error {
				outcomes[i] = m.runPair(ctx, p, res, report.ID, buyOnly)
				return nil
			})
		}
		_ = g.Wait()
		report.Outcomes = append(report.Outcomes, outcomes...)
	}

	_ = bench.Wait()
	report.Finished = time.Now()
	log.Info().Int("pairs", len(report.Outcomes)).Dur("took", report.Finished.Sub(report.Started)).Msg("cycle finished")
	return report
}

// runPair is research, decide, execute, risk-check for one portfolio and
// one symbol, in that order.
func (m *Manager) runPair(ctx context.Context, p *portfolio.Portfolio, res models.Research, cycleID string, buyOnly bool) PairOutcome {
	sym := res.Symbol
	out := PairOutcome{Portfolio: p.Name(), Symbol: sym}
	plog := m.log.With().Str("portfolio", p.Name()).Str("symbol", sym).Logger()

	p.LogActivity(models.ActivityResearch, summarizeResearch(res))

	cash, total, holdings := p.AccountSummary(ctx)
	strategy := p.Strategy()
	d, err := m.decision.Decide(ctx, decision.Request{
		Account:        decision.Account{Portfolio: p.Name(), Cash: cash, TotalValue: total, Holdings: holdings},
		Strategy:       strategy,
		Research:       res,
		PromptTemplate: p.PromptTemplate(),
	})
	if d.Prompt != "" {
		p.LogActivity(models.ActivityPrompt, d.Prompt)
	}
	if err != nil {
		plog.Warn().Err(err).Msg("decision unavailable")
		out.Error = err.Error()
	}
	p.LogActivity(models.ActivityDecision, fmt.Sprintf("%s: %s", sym, d.Text))
	out.Decision = d.Text
	out.Action = decision.Classify(d.Text)

	dctx := models.DecisionContext{
		Trigger:  models.TriggerDecision,
		Strategy: strategy,
		Decision: d.Text,
		Metadata: map[string]string{
			"cycle":     cycleID,
			"sentiment": fmt.Sprintf("%.3f", res.Sentiment),
		},
	}

	switch out.Action {
	case decision.Buy:
		if qty := p.Size(ctx, sym); qty.IsPositive() {
			rec, err := p.PlaceOrder(ctx, sym, qty, models.Buy, dctx)
			if err != nil {
				out.Error = err.Error()
			} else {
				out.Trade = &rec
			}
		} else {
			plog.Info().Msg("buy decision sized to zero, no order")
		}
	case decision.Sell:
		if buyOnly {
			break
		}
		rec, held, err := p.Liquidate(ctx, sym, dctx)
		switch {
		case err != nil:
			out.Error = err.Error()
		case held:
			out.Trade = &rec
		}
	}

	var r portfolio.RiskReport
	if value, ok := p.RefreshValue(ctx); ok {
		r = p.EvaluateRisk(ctx, value)
	} else {
		r = p.CheckPositions(ctx)
	}
	out.Risk = &r
	return out
}

func summarizeResearch(r models.Research) string {
	parts := []string{fmt.Sprintf("%s: sentiment %.2f, %d headlines", r.Symbol, r.Sentiment, len(r.News))}
	if r.Fundamentals.Error != "" {
		parts = append(parts, "fundamentals unavailable")
	} else if r.Fundamentals.Price > 0 {
		parts = append(parts, fmt.Sprintf("price %.2f", r.Fundamentals.Price))
	}
	if r.Technicals.Available {
		parts = append(parts, fmt.Sprintf("RSI %.1f", r.Technicals.RSI14))
	}
	return strings.Join(parts, ", ")
}
