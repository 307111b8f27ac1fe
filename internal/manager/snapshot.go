package manager

import (
	"context"

	"golang.org/x/sync/errgroup"

	"alpha_portfolios/internal/analytics"
	"alpha_portfolios/internal/models"
	"alpha_portfolios/internal/portfolio"
)

// View is a portfolio snapshot plus the shared benchmark and the
// diversification report.
type View struct {
	portfolio.Snapshot
	Benchmark       []models.CurvePoint `json:"benchmark"`
	Diversification analytics.Report    `json:"diversification"`
}

// Snapshot returns the view of one portfolio.
func (m *Manager) Snapshot(ctx context.Context, name string) (View, error) {
	p, err := m.Get(name)
	if err != nil {
		return View{}, err
	}
	return m.view(ctx, p, m.BenchmarkCurve()), nil
}

// Snapshots returns the view of every portfolio. Each portfolio degrades
// independently.
func (m *Manager) Snapshots(ctx context.Context) []View {
	portfolios := m.Portfolios()
	bench := m.BenchmarkCurve()
	views := make([]View, len(portfolios))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, p := range portfolios {
		i, p := i, p
		g.Go(func() error {
			views[i] = m.view(ctx, p, bench)
			return nil
		})
	}
	_ = g.Wait()
	return views
}

func (m *Manager) view(ctx context.Context, p *portfolio.Portfolio, bench []models.CurvePoint) View {
	v := View{
		Snapshot:        p.Snapshot(ctx),
		Benchmark:       bench,
		Diversification: analytics.Report{Matrix: map[string]map[string]float64{}, Warnings: []string{}},
	}
	if m.diversifier != nil {
		v.Diversification = m.diversifier.Analyze(ctx, p.Holdings())
	}
	return v
}

// BenchmarkCurve returns the normalized benchmark curve.
func (m *Manager) BenchmarkCurve() []models.CurvePoint {
	if m.bench == nil {
		return []models.CurvePoint{}
	}
	return m.bench.Normalized()
}

// RefreshBenchmark appends one benchmark sample outside of a cycle.
func (m *Manager) RefreshBenchmark(ctx context.Context) {
	if m.bench != nil {
		m.bench.Update(ctx)
	}
}
