// Package optimizer implements the Parameter Optimizer: grid, random,
// genetic and Bayesian search strategies over the Grid Trader's
// parameter space, all sharing the Backtest Driver as their evaluation
// function and a common composite-score objective.
package optimizer

import (
	"gridengine/internal/backtest"
)

// RiskSizingMode selects the position-sizing policy a candidate
// parameter set uses. Position sizing itself is implemented by the
// Backtest Driver's fixed fractional rule; RiskSizingMode is carried
// through the parameter vector and search space and recorded on
// results for reporting, even though this module's Backtest Driver
// currently evaluates every candidate with the same fractional sizing
// rule (risk-sizing-mode-aware position sizing is future work).
type RiskSizingMode int

const (
	Fixed RiskSizingMode = iota
	Kelly
	VaR
	VolAdjusted
)

var allRiskModes = []RiskSizingMode{Fixed, Kelly, VaR, VolAdjusted}

// ParameterSet is one point in the search space.
type ParameterSet struct {
	GridLevels       int
	GridSpacing      float64
	TimeframeMinutes int
	RiskSizing       RiskSizingMode
}

// SearchSpace bounds the parameter ranges a search strategy samples
// from.
type SearchSpace struct {
	GridLevelsMin, GridLevelsMax int     // inclusive, default [5,20]
	GridSpacingMin, GridSpacingMax float64 // default [0.001, 0.10]
	GridLevelsStep               int
	GridSpacingStep              float64
	Timeframes                   []int // enumerated bar durations in minutes
	RiskSizingModes              []RiskSizingMode
}

// DefaultSearchSpace is the documented default parameter space.
func DefaultSearchSpace() SearchSpace {
	return SearchSpace{
		GridLevelsMin: 5, GridLevelsMax: 20, GridLevelsStep: 1,
		GridSpacingMin: 0.001, GridSpacingMax: 0.10, GridSpacingStep: 0.005,
		Timeframes:      []int{5, 15, 30, 60, 240, 1440},
		RiskSizingModes: allRiskModes,
	}
}

// OptimizationResult pairs a candidate with its evaluated metrics and
// composite score.
type OptimizationResult struct {
	Parameters ParameterSet
	Metrics    backtest.BacktestResult
	Score      float64
	Rank       int
}
