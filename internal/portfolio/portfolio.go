// Package portfolio holds the per-account trading state: holdings, cost
// basis, order history, equity curve and risk alerts, together with the risk
// engine that guards it.
package portfolio

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/apperrors"
	"alpha_portfolios/internal/events"
	"alpha_portfolios/internal/market"
	"alpha_portfolios/internal/models"
)

// Options configures a new Portfolio.
type Options struct {
	Name         string
	Credentials  models.Credentials
	StrategyType string
	CustomPrompt string
	Risk         models.RiskConfig
	// Simulate raises risk alerts without sending protective orders.
	Simulate bool
	Logger   zerolog.Logger
}

// Portfolio is one brokerage account under management.
//
// State is guarded by mu. tradeMu serializes compound operations (order
// placement and risk evaluation) so a fill never interleaves with a risk
// sweep on the same account.
type Portfolio struct {
	name     string
	creds    models.Credentials
	broker   market.Broker
	prices   market.PriceOracle
	sink     events.Sink
	log      zerolog.Logger
	simulate bool
	now      func() time.Time

	tradeMu sync.Mutex

	mu           sync.RWMutex
	strategy     string
	prompt       string
	risk         models.RiskConfig
	holdings     map[string]decimal.Decimal
	avgCost      map[string]decimal.Decimal
	history      []*models.TradeRecord
	equity       []models.CurvePoint
	alerts       []string
	activity     []models.ActivityEntry
	openOrders   []models.BrokerOrder
	baselineSet  bool
	initialValue decimal.Decimal
	hwm          decimal.Decimal
}

// New creates a portfolio. Both credential keys are required.
func New(opts Options, broker market.Broker, prices market.PriceOracle, sink events.Sink) (*Portfolio, error) {
	if !opts.Credentials.Valid() {
		return nil, apperrors.ErrInvalidCredentials
	}
	if opts.Name == "" {
		return nil, apperrors.ErrInvalidName
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Portfolio{
		name:     opts.Name,
		creds:    opts.Credentials,
		broker:   broker,
		prices:   prices,
		sink:     sink,
		log:      opts.Logger.With().Str("portfolio", opts.Name).Logger(),
		simulate: opts.Simulate,
		now:      time.Now,
		strategy: opts.StrategyType,
		prompt:   opts.CustomPrompt,
		risk:     opts.Risk,
		holdings: make(map[string]decimal.Decimal),
		avgCost:  make(map[string]decimal.Decimal),
	}, nil
}

func (p *Portfolio) Name() string { return p.name }

func (p *Portfolio) Credentials() models.Credentials { return p.creds }

func (p *Portfolio) Simulated() bool { return p.simulate }

func (p *Portfolio) Strategy() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.strategy
}

func (p *Portfolio) PromptTemplate() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prompt
}

// Thresholds returns the current risk configuration.
func (p *Portfolio) Thresholds() models.RiskConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.risk
}

// Definition returns the persisted form of the portfolio.
func (p *Portfolio) Definition() models.PortfolioDefinition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	risk := p.risk
	return models.PortfolioDefinition{
		Name:         p.name,
		StrategyType: p.strategy,
		CustomPrompt: p.prompt,
		APIKey:       p.creds.APIKey,
		SecretKey:    p.creds.SecretKey,
		BaseURL:      p.creds.BaseURL,
		Risk:         &risk,
	}
}

// Holdings returns a copy of the held quantities.
func (p *Portfolio) Holdings() map[string]decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(p.holdings))
	for s, q := range p.holdings {
		out[s] = q
	}
	return out
}

// AvgCost returns the average entry price of a held symbol.
func (p *Portfolio) AvgCost(symbol string) (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.avgCost[symbol]
	return c, ok
}

// HighWaterMark returns the drawdown baseline, false before the first
// risk evaluation.
func (p *Portfolio) HighWaterMark() (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hwm, p.baselineSet
}

// Alerts returns a copy of the risk alerts.
func (p *Portfolio) Alerts() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.alerts))
	copy(out, p.alerts)
	return out
}

// Update replaces configuration fields. Nil fields are left unchanged.
type Update struct {
	StrategyType *string
	CustomPrompt *string
	Risk         *models.RiskConfig
}

// Configure applies u. Template validation is the caller's job.
func (p *Portfolio) Configure(u Update) {
	p.mu.Lock()
	if u.StrategyType != nil {
		p.strategy = *u.StrategyType
	}
	if u.CustomPrompt != nil {
		p.prompt = *u.CustomPrompt
	}
	if u.Risk != nil {
		p.risk = *u.Risk
	}
	strategy, risk := p.strategy, p.risk
	p.mu.Unlock()

	p.LogActivity(models.ActivityConfig, fmt.Sprintf(
		"config updated: strategy=%s stop_loss=%.4f take_profit=%.4f max_drawdown=%.4f trade_pnl_limit=%.4f risk_fraction=%.4f",
		strategy, risk.StopLossPct, risk.TakeProfitPct, risk.MaxDrawdownPct, risk.TradePnLLimitPct, risk.RiskFraction))
}

// LogActivity appends to the activity log and publishes the entry.
func (p *Portfolio) LogActivity(typ models.ActivityType, msg string) {
	p.mu.Lock()
	entry := p.appendActivityLocked(typ, msg)
	p.mu.Unlock()
	p.publish(entry)
}

func (p *Portfolio) appendActivityLocked(typ models.ActivityType, msg string) models.ActivityEntry {
	entry := models.ActivityEntry{Time: p.now(), Type: typ, Message: msg}
	p.activity = append(p.activity, entry)
	return entry
}

// raiseAlert appends a risk alert and the matching activity entry.
func (p *Portfolio) raiseAlert(msg string) {
	p.mu.Lock()
	p.alerts = append(p.alerts, msg)
	entry := p.appendActivityLocked(models.ActivityAlert, msg)
	p.mu.Unlock()

	p.log.Warn().Msg(msg)
	p.publish(entry)
}

func (p *Portfolio) publish(e models.ActivityEntry) {
	p.sink.Publish(events.Event{Portfolio: p.name, Time: e.Time, Type: e.Type, Message: e.Message})
}
