package optimizer

// GridSearch enumerates the full cartesian product of the search space
// (bounded by each dimension's step) and evaluates every candidate,
// scoring them together as one batch.
func (o *Optimizer) GridSearch(space SearchSpace) []OptimizationResult {
	candidates := enumerateGrid(space)
	metrics := o.evaluateBatch(candidates)
	return buildResults(candidates, metrics)
}

func enumerateGrid(space SearchSpace) []ParameterSet {
	levelsStep := space.GridLevelsStep
	if levelsStep <= 0 {
		levelsStep = 1
	}
	spacingStep := space.GridSpacingStep
	if spacingStep <= 0 {
		spacingStep = 0.005
	}
	timeframes := space.Timeframes
	if len(timeframes) == 0 {
		timeframes = []int{60}
	}
	riskModes := space.RiskSizingModes
	if len(riskModes) == 0 {
		riskModes = []RiskSizingMode{Fixed}
	}

	var candidates []ParameterSet
	for levels := space.GridLevelsMin; levels <= space.GridLevelsMax; levels += levelsStep {
		for spacing := space.GridSpacingMin; spacing <= space.GridSpacingMax+1e-12; spacing += spacingStep {
			for _, tf := range timeframes {
				for _, rm := range riskModes {
					candidates = append(candidates, ParameterSet{
						GridLevels:       levels,
						GridSpacing:      spacing,
						TimeframeMinutes: tf,
						RiskSizing:       rm,
					})
				}
			}
		}
	}
	return candidates
}
