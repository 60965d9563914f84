package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneticAlgorithmReturnsOnePopulationWorthOfResults(t *testing.T) {
	results := testOptimizer().GeneticAlgorithm(smallSpace(), 8, 5, 11)
	assert.Len(t, results, 8)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestGeneticAlgorithmIsReproducibleForTheSameSeed(t *testing.T) {
	opt := testOptimizer()
	a := opt.GeneticAlgorithm(smallSpace(), 8, 5, 5)
	b := opt.GeneticAlgorithm(smallSpace(), 8, 5, 5)
	assert.Equal(t, a, b)
}

func TestGeneticAlgorithmRespectsMinimumPopulation(t *testing.T) {
	results := testOptimizer().GeneticAlgorithm(smallSpace(), 1, 3, 1)
	assert.Len(t, results, 2, "population size must be clamped to at least 2")
}

func TestGeneticAlgorithmStopsOnStall(t *testing.T) {
	// A huge generation budget must still terminate promptly once the
	// best score stalls, not run the full count.
	results := testOptimizer().GeneticAlgorithm(smallSpace(), 6, 1000, 3)
	require.NotEmpty(t, results)
}

func TestStalledDetectsNegligibleImprovement(t *testing.T) {
	history := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	assert.True(t, stalled(history))
}

func TestStalledIsFalseBeforeEnoughHistory(t *testing.T) {
	assert.False(t, stalled([]float64{0.1, 0.9}))
}

func TestStalledIsFalseOnOngoingImprovement(t *testing.T) {
	history := []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2}
	assert.False(t, stalled(history))
}

func TestBayesianOptimizationReturnsRequestedIterationCount(t *testing.T) {
	results := testOptimizer().BayesianOptimization(smallSpace(), 12, 9)
	assert.Len(t, results, 12)
}

func TestBayesianOptimizationIsReproducibleForTheSameSeed(t *testing.T) {
	opt := testOptimizer()
	a := opt.BayesianOptimization(smallSpace(), 11, 21)
	b := opt.BayesianOptimization(smallSpace(), 11, 21)
	assert.Equal(t, a, b)
}

func TestBayesianOptimizationClampsInitialSamplesToIterations(t *testing.T) {
	results := testOptimizer().BayesianOptimization(smallSpace(), 3, 1)
	assert.Len(t, results, 3, "fewer iterations than the initial sample budget must not over-sample")
}

func TestExpectedImprovementIsZeroForDegenerateVariance(t *testing.T) {
	assert.Zero(t, expectedImprovement(0.5, 0, 0.4))
}

func TestExpectedImprovementRewardsHigherMeanAboveBest(t *testing.T) {
	low := expectedImprovement(0.3, 1, 0.5)
	high := expectedImprovement(0.9, 1, 0.5)
	assert.Greater(t, high, low)
}
