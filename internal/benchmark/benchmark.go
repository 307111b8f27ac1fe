// Package benchmark tracks a reference index so portfolio equity can be
// compared on a common base-100 scale.
package benchmark

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/models"
)

// Source returns the latest benchmark sample.
type Source interface {
	Latest(ctx context.Context, symbol string) (models.CurvePoint, error)
}

// Tracker appends periodic benchmark samples.
//
// A sample is kept only when its timestamp is newer than the last one.
// Daily sources such as Stooq stamp quotes with the trading date, so the
// curve holds at most one point per trading day even when equity is sampled
// every cycle.
type Tracker struct {
	source  Source
	symbol  string
	timeout time.Duration
	log     zerolog.Logger

	mu    sync.RWMutex
	curve []models.CurvePoint
}

func NewTracker(source Source, symbol string, timeout time.Duration, log zerolog.Logger) *Tracker {
	return &Tracker{
		source:  source,
		symbol:  symbol,
		timeout: timeout,
		log:     log.With().Str("component", "benchmark").Str("symbol", symbol).Logger(),
	}
}

func (t *Tracker) Symbol() string { return t.symbol }

// Update appends one sample. Fetch failures and samples that do not
// advance in time are skipped; gaps in the benchmark are tolerated.
func (t *Tracker) Update(ctx context.Context) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	pt, err := t.source.Latest(ctx, t.symbol)
	if err != nil {
		t.log.Debug().Err(err).Msg("benchmark sample skipped")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.curve); n > 0 && !pt.Time.After(t.curve[n-1].Time) {
		t.log.Debug().Time("sample", pt.Time).Msg("benchmark sample not newer than last, skipped")
		return
	}
	t.curve = append(t.curve, pt)
}

// Curve returns a copy of the raw samples.
func (t *Tracker) Curve() []models.CurvePoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.CurvePoint, len(t.curve))
	copy(out, t.curve)
	return out
}

// Normalized returns the curve rescaled to start at 100.
func (t *Tracker) Normalized() []models.CurvePoint {
	return Normalize(t.Curve())
}

var hundred = decimal.NewFromInt(100)

// Normalize rescales every value by 100/first. A first value of exactly
// zero is replaced by one.
func Normalize(curve []models.CurvePoint) []models.CurvePoint {
	if len(curve) == 0 {
		return []models.CurvePoint{}
	}
	start := curve[0].Value
	if start.IsZero() {
		start = decimal.NewFromInt(1)
	}
	out := make([]models.CurvePoint, len(curve))
	for i, c := range curve {
		out[i] = models.CurvePoint{Time: c.Time, Value: c.Value.Mul(hundred).Div(start)}
	}
	return out
}
