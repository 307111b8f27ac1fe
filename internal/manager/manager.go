// Package manager owns the collection of portfolios and drives the trading
// cycle across them.
package manager

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/analytics"
	"alpha_portfolios/internal/apperrors"
	"alpha_portfolios/internal/benchmark"
	"alpha_portfolios/internal/decision"
	"alpha_portfolios/internal/events"
	"alpha_portfolios/internal/market"
	"alpha_portfolios/internal/models"
	"alpha_portfolios/internal/portfolio"
	"alpha_portfolios/internal/research"
	"alpha_portfolios/internal/storage"
)

// Diversifier reports diversification metrics for a set of holdings.
type Diversifier interface {
	Analyze(ctx context.Context, holdings map[string]decimal.Decimal) analytics.Report
}

// Options wires a Manager. Benchmark, Trending and Diversifier are optional.
type Options struct {
	Store         storage.Store
	Factory       market.BrokerFactory
	Research      research.Fetcher
	Decision      decision.Service
	Trending      research.TrendingSource
	TrendingLimit int
	Benchmark     *benchmark.Tracker
	Diversifier   Diversifier
	Sink          events.Sink
	DefaultRisk   models.RiskConfig
	Simulate      bool
	Concurrency   int
	Logger        zerolog.Logger
}

// Manager is the portfolio collection plus the orchestration loop.
type Manager struct {
	store         storage.Store
	factory       market.BrokerFactory
	research      research.Fetcher
	decision      decision.Service
	trending      research.TrendingSource
	trendingLimit int
	bench         *benchmark.Tracker
	diversifier   Diversifier
	sink          events.Sink
	defaultRisk   models.RiskConfig
	simulate      bool
	concurrency   int
	baseLog       zerolog.Logger
	log           zerolog.Logger

	// cycleMu allows one trading cycle at a time.
	cycleMu sync.Mutex

	mu         sync.RWMutex
	portfolios []*portfolio.Portfolio
}

func New(opts Options) *Manager {
	sink := opts.Sink
	if sink == nil {
		sink = events.Discard
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Manager{
		store:         opts.Store,
		factory:       opts.Factory,
		research:      opts.Research,
		decision:      opts.Decision,
		trending:      opts.Trending,
		trendingLimit: opts.TrendingLimit,
		bench:         opts.Benchmark,
		diversifier:   opts.Diversifier,
		sink:          sink,
		defaultRisk:   opts.DefaultRisk,
		simulate:      opts.Simulate,
		concurrency:   concurrency,
		baseLog:       opts.Logger,
		log:           opts.Logger.With().Str("component", "manager").Logger(),
	}
}

// Load adds every stored definition. Invalid definitions are skipped.
func (m *Manager) Load() int {
	if m.store == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	loaded := 0
	for _, def := range m.store.Load() {
		if _, err := m.addLocked(def); err != nil {
			m.log.Warn().Err(err).Str("portfolio", def.Name).Msg("skipping stored portfolio")
			continue
		}
		loaded++
	}
	m.log.Info().Int("portfolios", loaded).Msg("portfolios loaded")
	return loaded
}

// AddPortfolio validates def, creates the portfolio and persists the
// collection. On a validation error nothing changes.
func (m *Manager) AddPortfolio(def models.PortfolioDefinition) (*portfolio.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.addLocked(def)
	if err != nil {
		return nil, err
	}
	m.persistLocked()
	m.log.Info().Str("portfolio", p.Name()).Str("strategy", p.Strategy()).Msg("portfolio added")
	return p, nil
}

func (m *Manager) addLocked(def models.PortfolioDefinition) (*portfolio.Portfolio, error) {
	def.Name = strings.TrimSpace(def.Name)
	creds := def.Credentials()
	if !creds.Valid() {
		return nil, apperrors.ErrInvalidCredentials
	}
	if def.Name == "" {
		return nil, apperrors.ErrInvalidName
	}
	for _, p := range m.portfolios {
		if strings.EqualFold(p.Name(), def.Name) {
			return nil, fmt.Errorf("%q: %w", def.Name, apperrors.ErrDuplicateName)
		}
		if c := p.Credentials(); c.APIKey == creds.APIKey && c.SecretKey == creds.SecretKey {
			return nil, fmt.Errorf("%q shares credentials with %q: %w", def.Name, p.Name(), apperrors.ErrDuplicateCredentials)
		}
	}
	if err := decision.ValidateTemplate(def.CustomPrompt); err != nil {
		return nil, err
	}
	risk := m.defaultRisk
	if def.Risk != nil {
		if err := validateRisk(*def.Risk); err != nil {
			return nil, err
		}
		risk = *def.Risk
	}
	if def.StrategyType == "" {
		def.StrategyType = "default"
	}

	broker, prices := m.factory(creds)
	p, err := portfolio.New(portfolio.Options{
		Name:         def.Name,
		Credentials:  creds,
		StrategyType: def.StrategyType,
		CustomPrompt: def.CustomPrompt,
		Risk:         risk,
		Simulate:     m.simulate,
		Logger:       m.baseLog,
	}, broker, prices, m.sink)
	if err != nil {
		return nil, err
	}
	m.portfolios = append(m.portfolios, p)
	return p, nil
}

func validateRisk(r models.RiskConfig) error {
	for name, v := range map[string]float64{
		"stop_loss_pct":       r.StopLossPct,
		"take_profit_pct":     r.TakeProfitPct,
		"max_drawdown_pct":    r.MaxDrawdownPct,
		"trade_pnl_limit_pct": r.TradePnLLimitPct,
		"risk_fraction":       r.RiskFraction,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s=%v must be within [0, 1]: %w", name, v, apperrors.ErrInvalidThreshold)
		}
	}
	return nil
}

// RemovePortfolio drops a portfolio by name and persists the collection.
func (m *Manager) RemovePortfolio(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.portfolios {
		if strings.EqualFold(p.Name(), name) {
			m.portfolios = append(m.portfolios[:i], m.portfolios[i+1:]...)
			m.persistLocked()
			m.log.Info().Str("portfolio", p.Name()).Msg("portfolio removed")
			return nil
		}
	}
	return fmt.Errorf("%q: %w", name, apperrors.ErrPortfolioNotFound)
}

// ConfigUpdate changes a portfolio's strategy, prompt or thresholds.
// Nil fields are left unchanged.
type ConfigUpdate struct {
	StrategyType *string     `json:"strategy_type,omitempty"`
	CustomPrompt *string     `json:"custom_prompt,omitempty"`
	Risk         *RiskUpdate `json:"risk,omitempty"`
}

// RiskUpdate names the thresholds to change. Omitted thresholds keep their
// current value.
type RiskUpdate struct {
	StopLossPct      *float64 `json:"stop_loss_pct,omitempty"`
	TakeProfitPct    *float64 `json:"take_profit_pct,omitempty"`
	MaxDrawdownPct   *float64 `json:"max_drawdown_pct,omitempty"`
	TradePnLLimitPct *float64 `json:"trade_pnl_limit_pct,omitempty"`
	RiskFraction     *float64 `json:"risk_fraction,omitempty"`
}

// Apply returns r with the named thresholds replaced.
func (u RiskUpdate) Apply(r models.RiskConfig) models.RiskConfig {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&r.StopLossPct, u.StopLossPct)
	set(&r.TakeProfitPct, u.TakeProfitPct)
	set(&r.MaxDrawdownPct, u.MaxDrawdownPct)
	set(&r.TradePnLLimitPct, u.TradePnLLimitPct)
	set(&r.RiskFraction, u.RiskFraction)
	return r
}

// UpdateConfig validates and applies u, then persists the collection.
func (m *Manager) UpdateConfig(name string, u ConfigUpdate) error {
	if u.CustomPrompt != nil {
		if err := decision.ValidateTemplate(*u.CustomPrompt); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.getLocked(name)
	if err != nil {
		return err
	}
	var risk *models.RiskConfig
	if u.Risk != nil {
		merged := u.Risk.Apply(p.Thresholds())
		if err := validateRisk(merged); err != nil {
			return err
		}
		risk = &merged
	}
	p.Configure(portfolio.Update{StrategyType: u.StrategyType, CustomPrompt: u.CustomPrompt, Risk: risk})
	m.persistLocked()
	return nil
}

// persistLocked rewrites every definition. A failed write is logged; the
// in-memory change stands.
func (m *Manager) persistLocked() {
	if m.store == nil {
		return
	}
	defs := make([]models.PortfolioDefinition, 0, len(m.portfolios))
	for _, p := range m.portfolios {
		defs = append(defs, p.Definition())
	}
	if err := m.store.Save(defs); err != nil {
		m.log.Error().Err(err).Msg("failed to persist portfolios")
	}
}

// Get returns a portfolio by name (case-insensitive).
func (m *Manager) Get(name string) (*portfolio.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(name)
}

func (m *Manager) getLocked(name string) (*portfolio.Portfolio, error) {
	for _, p := range m.portfolios {
		if strings.EqualFold(p.Name(), name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, apperrors.ErrPortfolioNotFound)
}

// Portfolios returns the collection in insertion order.
func (m *Manager) Portfolios() []*portfolio.Portfolio {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*portfolio.Portfolio, len(m.portfolios))
	copy(out, m.portfolios)
	return out
}

// Len returns the number of managed portfolios.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.portfolios)
}

// FindTrade searches every portfolio for a trade id.
func (m *Manager) FindTrade(id string) (*portfolio.Portfolio, models.TradeRecord, error) {
	for _, p := range m.Portfolios() {
		if rec, err := p.Trade(id); err == nil {
			return p, rec, nil
		}
	}
	return nil, models.TradeRecord{}, fmt.Errorf("%s: %w", id, apperrors.ErrTradeNotFound)
}

// SetTradeNotes replaces the notes of a trade in any portfolio.
func (m *Manager) SetTradeNotes(id, notes string) (models.TradeRecord, error) {
	p, _, err := m.FindTrade(id)
	if err != nil {
		return models.TradeRecord{}, err
	}
	return p.SetNotes(id, notes)
}

// SetTradeTags replaces the tags of a trade in any portfolio.
func (m *Manager) SetTradeTags(id string, tags []string) (models.TradeRecord, error) {
	p, _, err := m.FindTrade(id)
	if err != nil {
		return models.TradeRecord{}, err
	}
	return p.SetTags(id, tags)
}
