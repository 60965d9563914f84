// Package marketstate implements the Market State Analyzer: a
// SMA(10)/SMA(50) trend classifier feeding a Laplace-smoothed 3x3
// transition-count matrix used to derive a confidence score. It also
// exposes a richer, non-hot-path technical-indicator snapshot and a
// Markov next-state prediction, both enrichments that no other package
// in this module calls; Grid Trader signal generation never uses them.
package marketstate

import (
	"math"

	"gridengine/internal/tradingerr"
	"gridengine/internal/tradingtypes"
)

const (
	shortWindow = 10
	longWindow  = 50
	smoothingAlpha = 1.0
)

// prior is the uniform-ish prior transition matrix used before any
// transitions have been observed for a given "from" state, indexed by
// tradingtypes.MarketState (Ranging=0, TrendingUp=1, TrendingDown=2).
var prior = [3][3]float64{
	tradingtypes.Ranging: {tradingtypes.Ranging: 0.5, tradingtypes.TrendingUp: 0.25, tradingtypes.TrendingDown: 0.25},
	tradingtypes.TrendingUp: {tradingtypes.Ranging: 0.2, tradingtypes.TrendingUp: 0.6, tradingtypes.TrendingDown: 0.2},
	tradingtypes.TrendingDown: {tradingtypes.Ranging: 0.2, tradingtypes.TrendingUp: 0.2, tradingtypes.TrendingDown: 0.6},
}

// Analyzer classifies a rolling price window and tracks a transition
// matrix across classifications. It is not safe for concurrent use;
// each Grid Trader owns a private Analyzer, consistent with the
// engine's single-writer-per-pair discipline.
type Analyzer struct {
	tau    float64
	window []float64

	counts     [3][3]float64
	rowTotal   [3]float64

	haveLast  bool
	lastState tradingtypes.MarketState
}

// NewAnalyzer returns an Analyzer using the default trend threshold.
func NewAnalyzer() *Analyzer {
	return NewAnalyzerWithThreshold(tradingtypes.TrendThresholdDefault)
}

// NewAnalyzerWithThreshold returns an Analyzer using a custom tau.
func NewAnalyzerWithThreshold(tau float64) *Analyzer {
	return &Analyzer{tau: tau}
}

// Observe appends a price to the rolling window, classifies the current
// market state, and updates the transition matrix. It never panics on
// flat or zero prices (both classify as Ranging); it returns
// InvalidInput on NaN or infinite prices, leaving the window unchanged.
func (a *Analyzer) Observe(price float64) (tradingtypes.MarketState, float64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return tradingtypes.Ranging, 0, tradingerr.New(tradingerr.InvalidInput, "price is NaN or infinite")
	}

	a.window = append(a.window, price)
	if len(a.window) > longWindow {
		a.window = a.window[len(a.window)-longWindow:]
	}

	if len(a.window) < longWindow {
		return tradingtypes.Ranging, 0, nil
	}

	state := a.classify()

	var confidence float64
	if a.haveLast {
		confidence = a.transitionProb(a.lastState, state)
		a.recordTransition(a.lastState, state)
	}
	a.lastState = state
	a.haveLast = true

	return state, confidence, nil
}

// CurrentState returns the most recent classification without consuming
// a new price. It fails with InsufficientData if Observe has never been
// called with a full window.
func (a *Analyzer) CurrentState() (tradingtypes.MarketState, float64, error) {
	if len(a.window) == 0 {
		return tradingtypes.Ranging, 0, tradingerr.New(tradingerr.InsufficientData, "no prices observed")
	}
	if !a.haveLast {
		return tradingtypes.Ranging, 0, nil
	}
	return a.lastState, 0, nil
}

func (a *Analyzer) classify() tradingtypes.MarketState {
	short := sma(a.window, shortWindow)
	long := sma(a.window, longWindow)

	switch {
	case short > long*(1+a.tau):
		return tradingtypes.TrendingUp
	case short < long*(1-a.tau):
		return tradingtypes.TrendingDown
	default:
		return tradingtypes.Ranging
	}
}

func sma(window []float64, n int) float64 {
	if n > len(window) {
		n = len(window)
	}
	slice := window[len(window)-n:]
	sum := 0.0
	for _, p := range slice {
		sum += p
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func idx(s tradingtypes.MarketState) int { return int(s) }

func (a *Analyzer) recordTransition(from, to tradingtypes.MarketState) {
	a.counts[idx(from)][idx(to)]++
	a.rowTotal[idx(from)]++
}

// transitionProb returns p(to | from), Laplace-smoothed once any
// transition has been recorded for `from`, falling back to the prior
// otherwise.
func (a *Analyzer) transitionProb(from, to tradingtypes.MarketState) float64 {
	total := a.rowTotal[idx(from)]
	if total == 0 {
		return prior[idx(from)][idx(to)]
	}
	count := a.counts[idx(from)][idx(to)]
	return (count + smoothingAlpha) / (total + smoothingAlpha*3)
}

// PredictNext returns the most likely next market state and the full
// probability distribution given the current state, using the same
// smoothed transition matrix Observe maintains. It is an enrichment
// that signal generation never uses.
func (a *Analyzer) PredictNext() (tradingtypes.MarketState, map[tradingtypes.MarketState]float64, error) {
	if !a.haveLast {
		return tradingtypes.Ranging, nil, tradingerr.New(tradingerr.InsufficientData, "no classification yet")
	}

	states := []tradingtypes.MarketState{tradingtypes.Ranging, tradingtypes.TrendingUp, tradingtypes.TrendingDown}
	probs := make(map[tradingtypes.MarketState]float64, 3)
	best := states[0]
	bestP := -1.0
	for _, s := range states {
		p := a.transitionProb(a.lastState, s)
		probs[s] = p
		if p > bestP {
			bestP = p
			best = s
		}
	}
	return best, probs, nil
}

// Confidence returns the Shannon-entropy-derived overall certainty of
// the current state's transition row, normalized to [0,1]. This is a
// supplemental confidence measure distinct from the per-Observe
// previous-state-conditioned confidence Observe returns; it summarizes
// how peaked the row distribution is regardless of what the previous
// state happened to be.
func (a *Analyzer) Confidence() float64 {
	if !a.haveLast {
		return 0
	}
	states := []tradingtypes.MarketState{tradingtypes.Ranging, tradingtypes.TrendingUp, tradingtypes.TrendingDown}
	entropy := 0.0
	for _, s := range states {
		p := a.transitionProb(a.lastState, s)
		if p > 0 {
			entropy -= p * math.Log(p)
		}
	}
	maxEntropy := math.Log(3)
	return 1 - entropy/maxEntropy
}
