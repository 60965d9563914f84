// Package reporter renders Backtest Driver and Parameter Optimizer
// results as console tables using github.com/jedib0t/go-pretty/v6.
package reporter

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"gridengine/internal/backtest"
	"gridengine/internal/optimizer"
)

// PrintBacktestReport renders one Backtest Driver result as a table.
func PrintBacktestReport(pair string, start, end time.Time, result backtest.BacktestResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Backtest report: %s", pair))
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Period", fmt.Sprintf("%s -> %s", start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"))},
		{"Total return", fmt.Sprintf("%.2f%%", result.TotalReturn*100)},
		{"Sharpe ratio", fmt.Sprintf("%.3f", result.SharpeRatio)},
		{"Max drawdown", fmt.Sprintf("%.2f%%", result.MaxDrawdown*100)},
		{"Volatility (ann.)", fmt.Sprintf("%.2f%%", result.Volatility*100)},
		{"Trade count", result.TradeCount},
		{"Win rate", fmt.Sprintf("%.2f%%", result.WinRate*100)},
		{"Fees paid", fmt.Sprintf("%.4f", result.FeesPaid)},
	})
	t.Render()
}

// PrintOptimizationReport renders the top N ranked optimization
// results as a table.
func PrintOptimizationReport(results []optimizer.OptimizationResult, top int) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Parameter optimization results")
	t.AppendHeader(table.Row{"Rank", "Levels", "Spacing", "Timeframe", "Risk mode", "Score", "Return", "Sharpe", "Drawdown", "Trades"})

	n := len(results)
	if top > 0 && top < n {
		n = top
	}
	for i := 0; i < n; i++ {
		r := results[i]
		t.AppendRow(table.Row{
			r.Rank, r.Parameters.GridLevels, fmt.Sprintf("%.4f", r.Parameters.GridSpacing),
			r.Parameters.TimeframeMinutes, int(r.Parameters.RiskSizing), fmt.Sprintf("%.4f", r.Score),
			fmt.Sprintf("%.2f%%", r.Metrics.TotalReturn*100), fmt.Sprintf("%.3f", r.Metrics.SharpeRatio),
			fmt.Sprintf("%.2f%%", r.Metrics.MaxDrawdown*100), r.Metrics.TradeCount,
		})
	}
	t.Render()
}
