package optimizer

import "math/rand"

// RandomSearch draws iterations candidates uniformly from the search
// space using a seeded RNG (reproducible for a given seed) and
// evaluates them as one batch.
func (o *Optimizer) RandomSearch(space SearchSpace, iterations int, seed int64) []OptimizationResult {
	rng := rand.New(rand.NewSource(seed))
	candidates := make([]ParameterSet, iterations)
	for i := range candidates {
		candidates[i] = sampleUniform(space, rng)
	}
	metrics := o.evaluateBatch(candidates)
	return buildResults(candidates, metrics)
}

func sampleUniform(space SearchSpace, rng *rand.Rand) ParameterSet {
	levels := space.GridLevelsMin
	if space.GridLevelsMax > space.GridLevelsMin {
		levels += rng.Intn(space.GridLevelsMax - space.GridLevelsMin + 1)
	}
	spacing := space.GridSpacingMin + rng.Float64()*(space.GridSpacingMax-space.GridSpacingMin)

	timeframes := space.Timeframes
	if len(timeframes) == 0 {
		timeframes = []int{60}
	}
	tf := timeframes[rng.Intn(len(timeframes))]

	riskModes := space.RiskSizingModes
	if len(riskModes) == 0 {
		riskModes = []RiskSizingMode{Fixed}
	}
	rm := riskModes[rng.Intn(len(riskModes))]

	return ParameterSet{GridLevels: levels, GridSpacing: spacing, TimeframeMinutes: tf, RiskSizing: rm}
}
