package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Credentials identify one brokerage account. They are opaque to the core
// beyond being handed to the broker factory.
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
}

// Valid reports whether both keys are present.
func (c Credentials) Valid() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

// Account represents the broker-side account state.
type Account struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	Currency       string          `json:"currency"`
	Cash           decimal.Decimal `json:"cash"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Equity         decimal.Decimal `json:"equity"`
	BuyingPower    decimal.Decimal `json:"buying_power"`
}

// OrderRequest is a market order to be submitted to a broker.
type OrderRequest struct {
	Symbol        string
	Qty           decimal.Decimal
	Side          Side
	ClientOrderID string
}

// BrokerOrder represents an order as reported by the broker.
type BrokerOrder struct {
	ID             string          `json:"id"`
	ClientOrderID  string          `json:"client_order_id"`
	Symbol         string          `json:"symbol"`
	Qty            decimal.Decimal `json:"qty"`
	FilledQty      decimal.Decimal `json:"filled_qty"`
	Side           Side            `json:"side"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	FilledAvgPrice decimal.Decimal `json:"filled_avg_price"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	FilledAt       *time.Time      `json:"filled_at,omitempty"`
}

// CurvePoint is one sample of a value time series (equity or benchmark).
type CurvePoint struct {
	Time  time.Time       `json:"time"`
	Value decimal.Decimal `json:"value"`
}

// PricePoint is one daily close.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Close float64   `json:"close"`
}
