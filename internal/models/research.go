package models

import "time"

// Research is the combined research bundle for one symbol.
type Research struct {
	Symbol       string       `json:"symbol"`
	Fundamentals Fundamentals `json:"fundamentals"`
	News         []NewsItem   `json:"news"`
	Sentiment    float64      `json:"sentiment"`
	Technicals   Technicals   `json:"technicals"`
	FetchedAt    time.Time    `json:"fetched_at"`
}

// Fundamentals is a compact quote/fundamentals view. Error is set instead of
// failing the whole research fetch.
type Fundamentals struct {
	Name             string  `json:"name,omitempty"`
	Currency         string  `json:"currency,omitempty"`
	Price            float64 `json:"price,omitempty"`
	MarketCap        int64   `json:"market_cap,omitempty"`
	TrailingPE       float64 `json:"trailing_pe,omitempty"`
	EPS              float64 `json:"eps,omitempty"`
	FiftyTwoWeekHigh float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  float64 `json:"fifty_two_week_low,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// NewsItem is a single headline.
type NewsItem struct {
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Technicals are indicator values computed from daily closes.
type Technicals struct {
	Available bool    `json:"available"`
	RSI14     float64 `json:"rsi_14,omitempty"`
	SMA20     float64 `json:"sma_20,omitempty"`
	SMA50     float64 `json:"sma_50,omitempty"`
	LastClose float64 `json:"last_close,omitempty"`
}
