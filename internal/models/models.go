package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one entry of a portfolio's order history.
//
// Everything except Notes and Tags is immutable once appended. RealizedPnL is
// set only on sells of a tracked position and stays attached permanently.
type TradeRecord struct {
	ID            string           `json:"id"`
	BrokerOrderID string           `json:"broker_order_id,omitempty"`
	Symbol        string           `json:"symbol"`
	Side          Side             `json:"side"`
	Qty           decimal.Decimal  `json:"qty"`
	FillPrice     decimal.Decimal  `json:"fill_price"`
	RealizedPnL   *decimal.Decimal `json:"realized_pnl,omitempty"`
	Status        string           `json:"status"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	Notes         string           `json:"notes"`
	Tags          []string         `json:"tags"`
	Context       DecisionContext  `json:"context"`
}

// DecisionContext is the audit trail of what produced an order.
// Metadata is the only free-form part of a trade record.
type DecisionContext struct {
	Trigger  string            `json:"trigger"` // decision, stop_loss, take_profit, max_drawdown, manual
	Strategy string            `json:"strategy,omitempty"`
	Decision string            `json:"decision,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Trade triggers.
const (
	TriggerDecision    = "decision"
	TriggerStopLoss    = "stop_loss"
	TriggerTakeProfit  = "take_profit"
	TriggerMaxDrawdown = "max_drawdown"
	TriggerManual      = "manual"
)

// ActivityType classifies activity log entries.
type ActivityType string

const (
	ActivityResearch ActivityType = "research"
	ActivityPrompt   ActivityType = "prompt"
	ActivityDecision ActivityType = "decision"
	ActivityTrade    ActivityType = "trade"
	ActivityAlert    ActivityType = "alert"
	ActivityConfig   ActivityType = "config"
	ActivityError    ActivityType = "error"
)

// ActivityEntry is one line of a portfolio's activity log.
type ActivityEntry struct {
	Time    time.Time    `json:"time"`
	Type    ActivityType `json:"type"`
	Message string       `json:"message"`
}

// RiskConfig holds the per-portfolio thresholds, all expressed as fractions
// (0.05 means 5%).
type RiskConfig struct {
	StopLossPct      float64 `json:"stop_loss_pct"`
	TakeProfitPct    float64 `json:"take_profit_pct"`
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`
	TradePnLLimitPct float64 `json:"trade_pnl_limit_pct"`
	RiskFraction     float64 `json:"risk_fraction"`
}

// PortfolioDefinition is the persisted form of a portfolio.
type PortfolioDefinition struct {
	Name         string      `json:"name"`
	StrategyType string      `json:"strategy_type"`
	CustomPrompt string      `json:"custom_prompt"`
	APIKey       string      `json:"api_key"`
	SecretKey    string      `json:"secret_key"`
	BaseURL      string      `json:"base_url"`
	Risk         *RiskConfig `json:"risk,omitempty"`
}

// Credentials extracts the broker credentials of the definition.
func (d PortfolioDefinition) Credentials() Credentials {
	return Credentials{APIKey: d.APIKey, SecretKey: d.SecretKey, BaseURL: d.BaseURL}
}
