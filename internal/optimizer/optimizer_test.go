package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridengine/internal/backtest"
	"gridengine/internal/tradingtypes"
)

func choppyPrices(bars int) []tradingtypes.PricePoint {
	start := time.Now()
	points := make([]tradingtypes.PricePoint, bars)
	price := 100.0
	for i := range points {
		if i%2 == 0 {
			price *= 1.02
		} else {
			price *= 0.98
		}
		points[i] = tradingtypes.PricePoint{Timestamp: start.Add(time.Duration(i) * time.Minute), Price: price}
	}
	return points
}

func testOptimizer() *Optimizer {
	return &Optimizer{
		Prices: choppyPrices(300),
		BaseCfg: tradingtypes.GridConfig{
			Pair:      "BTCUSDT",
			BasePrice: 100,
			Capital:   10000,
		},
		Cost:    backtest.CostModel{Seed: 7},
		Workers: 2,
	}
}

func smallSpace() SearchSpace {
	return SearchSpace{
		GridLevelsMin: 5, GridLevelsMax: 10, GridLevelsStep: 5,
		GridSpacingMin: 0.005, GridSpacingMax: 0.02, GridSpacingStep: 0.015,
		Timeframes:      []int{60},
		RiskSizingModes: []RiskSizingMode{Fixed},
	}
}

func TestGridSearchEnumeratesFullCartesianProduct(t *testing.T) {
	space := smallSpace()
	// 2 level values x 2 spacing values x 1 timeframe x 1 risk mode
	results := testOptimizer().GridSearch(space)
	assert.Len(t, results, 4)
}

func TestGridSearchResultsAreRankedDescendingByScore(t *testing.T) {
	results := testOptimizer().GridSearch(smallSpace())
	require.NotEmpty(t, results)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		assert.Equal(t, i, results[i-1].Rank)
	}
}

func TestRandomSearchIsReproducibleForTheSameSeed(t *testing.T) {
	opt := testOptimizer()
	a := opt.RandomSearch(DefaultSearchSpace(), 10, 42)
	b := opt.RandomSearch(DefaultSearchSpace(), 10, 42)
	assert.Equal(t, a, b)
}

func TestRandomSearchDiffersAcrossSeeds(t *testing.T) {
	opt := testOptimizer()
	a := opt.RandomSearch(DefaultSearchSpace(), 10, 1)
	b := opt.RandomSearch(DefaultSearchSpace(), 10, 2)
	assert.NotEqual(t, a, b)
}

func TestRandomSearchStaysWithinBounds(t *testing.T) {
	space := SearchSpace{
		GridLevelsMin: 5, GridLevelsMax: 8,
		GridSpacingMin: 0.01, GridSpacingMax: 0.02,
		Timeframes:      []int{15, 60},
		RiskSizingModes: []RiskSizingMode{Fixed, Kelly},
	}
	results := testOptimizer().RandomSearch(space, 50, 3)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Parameters.GridLevels, space.GridLevelsMin)
		assert.LessOrEqual(t, r.Parameters.GridLevels, space.GridLevelsMax)
		assert.GreaterOrEqual(t, r.Parameters.GridSpacing, space.GridSpacingMin)
		assert.LessOrEqual(t, r.Parameters.GridSpacing, space.GridSpacingMax)
		assert.Contains(t, space.Timeframes, r.Parameters.TimeframeMinutes)
	}
}

func TestScoreBatchNormalizesToUnitRange(t *testing.T) {
	metrics := []backtest.BacktestResult{
		{TotalReturn: 0.1, SharpeRatio: 1.0, MaxDrawdown: 0.1, TradeCount: 5},
		{TotalReturn: 0.5, SharpeRatio: 2.0, MaxDrawdown: 0.05, TradeCount: 20},
	}
	scores := scoreBatch(metrics)
	require.Len(t, scores, 2)
	assert.Greater(t, scores[1], scores[0], "the strictly better candidate on every dimension must score higher")
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestScoreBatchZerosOutDegenerateCandidates(t *testing.T) {
	metrics := []backtest.BacktestResult{
		{TotalReturn: 0.1, SharpeRatio: 1.0, MaxDrawdown: 0.1, TradeCount: 0}, // no trades: degenerate
		{TotalReturn: 0.2, SharpeRatio: 1.5, MaxDrawdown: 0.08, TradeCount: 10},
	}
	scores := scoreBatch(metrics)
	assert.Zero(t, scores[0])
	assert.Greater(t, scores[1], 0.0)
}

func TestScoreBatchHandlesAllEqualCandidates(t *testing.T) {
	metrics := []backtest.BacktestResult{
		{TotalReturn: 0.1, SharpeRatio: 1.0, MaxDrawdown: 0.1, TradeCount: 5},
		{TotalReturn: 0.1, SharpeRatio: 1.0, MaxDrawdown: 0.1, TradeCount: 5},
	}
	scores := scoreBatch(metrics)
	assert.InDelta(t, scores[0], scores[1], 1e-9)
}

func TestRankResultsAssignsOneIndexedDescendingRanks(t *testing.T) {
	results := []OptimizationResult{
		{Score: 0.3},
		{Score: 0.9},
		{Score: 0.1},
	}
	rankResults(results)
	assert.Equal(t, 0.9, results[0].Score)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 0.3, results[1].Score)
	assert.Equal(t, 2, results[1].Rank)
	assert.Equal(t, 0.1, results[2].Score)
	assert.Equal(t, 3, results[2].Rank)
}
