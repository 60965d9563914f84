package optimizer

import (
	"runtime"
	"sync"

	"gridengine/internal/backtest"
	"gridengine/internal/tradingtypes"
)

// Optimizer binds a price series, base grid configuration and cost
// model so every search strategy evaluates candidates against an
// identical Backtest Driver run.
type Optimizer struct {
	Prices  []tradingtypes.PricePoint
	BaseCfg tradingtypes.GridConfig
	Cost    backtest.CostModel
	Workers int // 0 means runtime.NumCPU()
}

func (o *Optimizer) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// evaluate maps one candidate parameter set onto a grid configuration
// and runs the Backtest Driver against the bound price series and cost
// model.
func (o *Optimizer) evaluate(ps ParameterSet) (backtest.BacktestResult, error) {
	cfg := o.BaseCfg
	cfg.LevelCount = ps.GridLevels
	cfg.BaseSpacing = ps.GridSpacing
	return backtest.Run(o.Prices, cfg, o.Cost)
}

// evaluateBatch runs evaluate concurrently across a worker pool sized
// to the CPU count, preserving input order in the output slice.
func (o *Optimizer) evaluateBatch(candidates []ParameterSet) []backtest.BacktestResult {
	n := len(candidates)
	results := make([]backtest.BacktestResult, n)

	workers := o.workers()
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i, c := range candidates {
			r, err := o.evaluate(c)
			if err != nil {
				continue
			}
			results[i] = r
		}
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				r, err := o.evaluate(candidates[idx])
				if err != nil {
					continue
				}
				results[idx] = r
			}
		}()
	}
	for i := range candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func buildResults(candidates []ParameterSet, metrics []backtest.BacktestResult) []OptimizationResult {
	scores := scoreBatch(metrics)
	results := make([]OptimizationResult, len(candidates))
	for i, c := range candidates {
		results[i] = OptimizationResult{Parameters: c, Metrics: metrics[i], Score: scores[i]}
	}
	rankResults(results)
	return results
}
