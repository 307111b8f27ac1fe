// Package analytics computes cross-holding diversification metrics.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"alpha_portfolios/internal/models"
	"alpha_portfolios/internal/research"
)

const (
	defaultLookbackDays = 90
	lowScoreThreshold   = 0.5
)

var concentrationLimit = decimal.NewFromFloat(0.5)

// Report is the diversification view of one portfolio.
type Report struct {
	Matrix   map[string]map[string]float64 `json:"matrix"`
	Score    float64                       `json:"score"`
	Warnings []string                      `json:"warnings"`
}

// Analyzer correlates daily returns of held symbols.
type Analyzer struct {
	history research.HistorySource
	days    int
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

func NewAnalyzer(history research.HistorySource, timeout time.Duration, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		history: history,
		days:    defaultLookbackDays,
		timeout: timeout,
		log:     log.With().Str("component", "diversification").Logger(),
		now:     time.Now,
	}
}

// Analyze builds the report for the given holdings. History failures drop
// the symbol from the matrix.
func (a *Analyzer) Analyze(ctx context.Context, holdings map[string]decimal.Decimal) Report {
	symbols := make([]string, 0, len(holdings))
	for s := range holdings {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	end := a.now()
	start := end.AddDate(0, 0, -a.days)
	series := make(map[string][]models.PricePoint, len(symbols))
	for _, sym := range symbols {
		pts, err := a.fetch(ctx, sym, start, end)
		if err != nil {
			a.log.Warn().Err(err).Str("symbol", sym).Msg("history unavailable")
			continue
		}
		if len(pts) > 0 {
			series[sym] = pts
		}
	}

	matrix := CorrelationMatrix(series)
	score := Score(matrix)
	return Report{
		Matrix:   roundMatrix(matrix),
		Score:    math.Round(score*100) / 100,
		Warnings: Warnings(score, holdings),
	}
}

func (a *Analyzer) fetch(ctx context.Context, sym string, start, end time.Time) ([]models.PricePoint, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.history.DailyCloses(ctx, sym, start, end)
}

// CorrelationMatrix returns pairwise Pearson correlations of daily returns
// over the dates every series has in common. Pairs with an undefined
// correlation are left out. It returns nil when fewer than two common
// dates exist.
func CorrelationMatrix(series map[string][]models.PricePoint) map[string]map[string]float64 {
	if len(series) == 0 {
		return nil
	}
	symbols := make([]string, 0, len(series))
	for s := range series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	closes := make(map[string]map[string]float64, len(series))
	counts := make(map[string]int)
	for _, s := range symbols {
		byDay := make(map[string]float64, len(series[s]))
		for _, p := range series[s] {
			byDay[p.Time.Format("2006-01-02")] = p.Close
		}
		closes[s] = byDay
		for day := range byDay {
			counts[day]++
		}
	}
	var days []string
	for day, n := range counts {
		if n == len(symbols) {
			days = append(days, day)
		}
	}
	sort.Strings(days)
	if len(days) < 2 {
		return nil
	}

	returns := make(map[string][]float64, len(symbols))
	for _, s := range symbols {
		r := make([]float64, 0, len(days)-1)
		for i := 1; i < len(days); i++ {
			prev := closes[s][days[i-1]]
			if prev == 0 {
				r = append(r, 0)
				continue
			}
			r = append(r, closes[s][days[i]]/prev-1)
		}
		returns[s] = r
	}

	matrix := make(map[string]map[string]float64, len(symbols))
	for _, s := range symbols {
		matrix[s] = make(map[string]float64, len(symbols))
	}
	for i, si := range symbols {
		for _, sj := range symbols[i:] {
			c := stat.Correlation(returns[si], returns[sj], nil)
			if math.IsNaN(c) {
				continue
			}
			c = math.Max(-1, math.Min(1, c))
			matrix[si][sj] = c
			matrix[sj][si] = c
		}
	}
	return matrix
}

// Score is 1 minus the mean absolute off-diagonal correlation, floored at
// zero. No matrix scores 0; a matrix without off-diagonal values scores 1.
func Score(matrix map[string]map[string]float64) float64 {
	if len(matrix) == 0 {
		return 0
	}
	var sum float64
	var n int
	for si, row := range matrix {
		for sj, c := range row {
			if si == sj {
				continue
			}
			sum += math.Abs(c)
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return math.Max(0, 1-sum/float64(n))
}

// Warnings flags a low score and a single symbol holding more than half of
// the total quantity.
func Warnings(score float64, holdings map[string]decimal.Decimal) []string {
	warnings := []string{}
	if len(holdings) == 0 {
		return warnings
	}
	if score < lowScoreThreshold {
		warnings = append(warnings, "Low diversification")
	}

	symbols := make([]string, 0, len(holdings))
	total := decimal.Zero
	for s, q := range holdings {
		symbols = append(symbols, s)
		total = total.Add(q)
	}
	if !total.IsPositive() {
		return warnings
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		if holdings[s].Div(total).GreaterThan(concentrationLimit) {
			warnings = append(warnings, fmt.Sprintf("Concentration risk: %s", s))
			break
		}
	}
	return warnings
}

func roundMatrix(m map[string]map[string]float64) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(m))
	for si, row := range m {
		r := make(map[string]float64, len(row))
		for sj, c := range row {
			r[sj] = math.Round(c*100) / 100
		}
		out[si] = r
	}
	return out
}
