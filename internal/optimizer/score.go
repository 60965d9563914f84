package optimizer

import (
	"math"

	"gridengine/internal/backtest"
)

// compositeWeights are the weights for the composite objective:
// return, Sharpe, drawdown (inverted), trade frequency.
const (
	weightReturn    = 0.4
	weightSharpe    = 0.3
	weightDrawdown  = 0.2
	weightTradeFreq = 0.1
)

// scoreBatch computes each result's composite score via min-max
// normalization across the given batch. A degenerate candidate (zero
// trades, or a non-finite metric) scores zero but is retained in the
// output so callers can still see it evaluated.
func scoreBatch(results []backtest.BacktestResult) []float64 {
	n := len(results)
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}

	returns := make([]float64, n)
	sharpes := make([]float64, n)
	invDrawdowns := make([]float64, n)
	tradeFreqs := make([]float64, n)
	degenerate := make([]bool, n)

	for i, r := range results {
		if r.TradeCount == 0 || !finite(r.TotalReturn) || !finite(r.SharpeRatio) || !finite(r.MaxDrawdown) {
			degenerate[i] = true
			continue
		}
		returns[i] = r.TotalReturn
		sharpes[i] = r.SharpeRatio
		invDrawdowns[i] = -r.MaxDrawdown
		tradeFreqs[i] = float64(r.TradeCount)
	}

	normReturn := minMaxNorm(returns, degenerate)
	normSharpe := minMaxNorm(sharpes, degenerate)
	normDrawdown := minMaxNorm(invDrawdowns, degenerate)
	normFreq := minMaxNorm(tradeFreqs, degenerate)

	for i := range results {
		if degenerate[i] {
			scores[i] = 0
			continue
		}
		scores[i] = weightReturn*normReturn[i] +
			weightSharpe*normSharpe[i] +
			weightDrawdown*normDrawdown[i] +
			weightTradeFreq*normFreq[i]
	}
	return scores
}

// minMaxNorm normalizes xs to [0,1], ignoring indices marked skip. If
// every non-skipped value is equal, they all normalize to 0.5 rather
// than dividing by zero.
func minMaxNorm(xs []float64, skip []bool) []float64 {
	out := make([]float64, len(xs))
	min, max := math.Inf(1), math.Inf(-1)
	any := false
	for i, x := range xs {
		if skip[i] {
			continue
		}
		any = true
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	if !any {
		return out
	}
	span := max - min
	for i, x := range xs {
		if skip[i] {
			continue
		}
		if span == 0 {
			out[i] = 0.5
			continue
		}
		out[i] = (x - min) / span
	}
	return out
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// rankResults sorts results by descending score in place and assigns
// Rank starting at 1.
func rankResults(results []OptimizationResult) {
	// simple insertion sort: candidate counts are small (search-space
	// bounded, population-bounded), no need for sort.Slice's overhead
	// of an interface-based comparator on a hot path that isn't hot.
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && results[j-1].Score < results[j].Score {
			results[j-1], results[j] = results[j], results[j-1]
			j--
		}
	}
	for i := range results {
		results[i].Rank = i + 1
	}
}
