package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"alpha_portfolios/internal/decision"
	"alpha_portfolios/internal/manager"
	"alpha_portfolios/internal/portfolio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Width(14)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func renderView(v manager.View) string {
	var b strings.Builder
	mode := ""
	if v.Simulated {
		mode = warnStyle.Render(" SIMULATED")
	}
	b.WriteString(titleStyle.Render(v.Name) + mutedStyle.Render(v.Strategy) + mode + "\n")
	b.WriteString(row("Cash", v.Cash) + "\n")
	b.WriteString(row("Total value", v.TotalValue) + "\n")
	b.WriteString(row("Profit", v.Stats.Profit.StringFixed(2)) + "\n")
	b.WriteString(row("Win rate", v.Stats.WinRate.StringFixed(1)+"%") + "\n")
	b.WriteString(row("Diversity", fmt.Sprintf("%.2f", v.Diversification.Score)) + "\n")

	if len(v.Positions) > 0 {
		b.WriteString("\n")
		for _, p := range v.Positions {
			pnl := p.UnrealizedPnL.StringFixed(2)
			if p.UnrealizedPnL.IsNegative() {
				pnl = errorStyle.Render(pnl)
			} else {
				pnl = okStyle.Render(pnl)
			}
			b.WriteString(fmt.Sprintf("  %-6s %10s @ %-10s %s\n", p.Symbol, p.Qty.String(), p.AvgCost.StringFixed(2), pnl))
		}
	}
	for _, w := range v.Diversification.Warnings {
		b.WriteString(warnStyle.Render("! "+w) + "\n")
	}
	for _, a := range v.Alerts {
		b.WriteString(errorStyle.Render("! "+a) + "\n")
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderCycle(r manager.CycleReport) string {
	var b strings.Builder
	kind := "Cycle"
	if r.BuyOnly {
		kind = "Buy scan"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", kind, r.ID[:8])) +
		mutedStyle.Render(fmt.Sprintf("%s, %d pairs", r.Finished.Sub(r.Started).Round(time.Millisecond), len(r.Outcomes))) + "\n")
	if len(r.Symbols) == 0 {
		b.WriteString(mutedStyle.Render("no symbols to trade"))
		return boxStyle.Render(b.String())
	}
	for _, o := range r.Outcomes {
		action := mutedStyle.Render(string(o.Action))
		switch o.Action {
		case decision.Buy:
			action = okStyle.Render("buy")
		case decision.Sell:
			action = warnStyle.Render("sell")
		}
		line := fmt.Sprintf("  %-12s %-6s %s", o.Portfolio, o.Symbol, action)
		if o.Trade != nil {
			line += fmt.Sprintf(" %s @ %s", o.Trade.Qty, o.Trade.FillPrice.StringFixed(2))
		}
		if o.Error != "" {
			line += " " + errorStyle.Render(o.Error)
		}
		b.WriteString(line + "\n")
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderDefinitions(portfolios []*portfolio.Portfolio) string {
	if len(portfolios) == 0 {
		return mutedStyle.Render("No portfolios configured.")
	}
	var b strings.Builder
	for _, p := range portfolios {
		t := p.Thresholds()
		b.WriteString(fmt.Sprintf("%s %s  key %s  SL %.0f%% TP %.0f%% DD %.0f%% risk %.1f%%\n",
			titleStyle.Render(p.Name()), mutedStyle.Render(p.Strategy()), maskKey(p.Credentials().APIKey),
			t.StopLossPct*100, t.TakeProfitPct*100, t.MaxDrawdownPct*100, t.RiskFraction*100))
	}
	return strings.TrimRight(b.String(), "\n")
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + strings.Repeat("*", len(key)-4)
}
