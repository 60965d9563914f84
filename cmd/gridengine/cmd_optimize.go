package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"gridengine/internal/backtest"
	"gridengine/internal/optimizer"
	"gridengine/internal/reporter"
)

func cmdOptimize(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gridengine optimize all|pair ...")
		return exitUsageError
	}
	switch args[0] {
	case "all":
		return cmdOptimizeAll(args[1:])
	case "pair":
		return cmdOptimizePair(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown optimize sub-command: %s\n", args[0])
		return exitUsageError
	}
}

// runSearch dispatches to the named search strategy, falling back to
// grid search for an unrecognized name.
func runSearch(opt *optimizer.Optimizer, name string, iterations int, seed int64) []optimizer.OptimizationResult {
	space := optimizer.DefaultSearchSpace()
	switch name {
	case "random":
		return opt.RandomSearch(space, iterations, seed)
	case "genetic":
		population := iterations / 5
		if population < 10 {
			population = 10
		}
		return opt.GeneticAlgorithm(space, population, 20, seed)
	case "bayesian":
		return opt.BayesianOptimization(space, iterations, seed)
	default:
		return opt.GridSearch(space)
	}
}

// cmdOptimizeAll runs one search strategy across every configured pair
// (or the first --limit of them) and saves each pair's best candidate
// as a strategy.
func cmdOptimizeAll(args []string) int {
	fs := flag.NewFlagSet("optimize all", flag.ContinueOnError)
	configPath := fs.String("config", "config.json", "path to the config file")
	limit := fs.Int("limit", 0, "limit to the first N configured pairs (0 = all)")
	iterations := fs.Int("iterations", 50, "candidate iterations for random/genetic/bayesian search")
	strategyName := fs.String("strategy", "grid", "search strategy: grid, random, genetic or bayesian")
	days := fs.Int("days", 90, "trailing days of 1-minute klines to use")
	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitGenericError
	}
	if len(cfg.Pairs) == 0 {
		fmt.Fprintln(os.Stderr, "no pairs configured; add at least one to config.json first")
		return exitPreflightFailed
	}

	pairs := cfg.Pairs
	if *limit > 0 && *limit < len(pairs) {
		pairs = pairs[:*limit]
	}

	db, err := openStrategyDB(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		return exitGenericError
	}
	defer db.Close()

	var anySucceeded bool
	for _, pairCfg := range pairs {
		series, err := loadOrDownloadSeries(pairCfg.Pair, *days)
		if err != nil || len(series) == 0 {
			zapLogger().Warn("skipping pair: could not load price data", zap.String("pair", pairCfg.Pair), zap.Error(err))
			continue
		}

		opt := &optimizer.Optimizer{Prices: series, BaseCfg: pairCfg.GridConfigFor(), Cost: backtest.CostModel{Seed: 7, Slippage: cfg.Slippage}}
		results := runSearch(opt, *strategyName, *iterations, 1)
		if len(results) == 0 {
			continue
		}

		fmt.Printf("\n=== %s ===\n", pairCfg.Pair)
		reporter.PrintOptimizationReport(results, 10)

		best := results[0]
		gridCfg := pairCfg.GridConfigFor()
		gridCfg.LevelCount = best.Parameters.GridLevels
		gridCfg.BaseSpacing = best.Parameters.GridSpacing
		if _, err := saveStrategyArtifacts(db, gridCfg, riskSizingModeName(best.Parameters.RiskSizing), best.Metrics, best.Score, *strategyName, *iterations); err != nil {
			fmt.Fprintln(os.Stderr, "save strategy:", err)
			continue
		}
		anySucceeded = true
	}

	if !anySucceeded {
		fmt.Fprintln(os.Stderr, "no pair could be optimized (no price data available)")
		return exitGenericError
	}
	return exitSuccess
}

// cmdOptimizePair optimizes a single pair, either with one search
// strategy (the default) or, with --comprehensive, all four combined
// and re-ranked together.
func cmdOptimizePair(args []string) int {
	fs := flag.NewFlagSet("optimize pair", flag.ContinueOnError)
	configPath := fs.String("config", "config.json", "path to the config file")
	iterations := fs.Int("iterations", 100, "candidate iterations per search strategy")
	comprehensive := fs.Bool("comprehensive", false, "run grid, random, genetic and Bayesian search and merge the results")
	days := fs.Int("days", 90, "trailing days of 1-minute klines to use")
	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}
	pair, ok := firstPositional(fs.Args())
	if !ok {
		fmt.Fprintln(os.Stderr, "usage: gridengine optimize pair <PAIR> [--iterations I] [--comprehensive]")
		return exitUsageError
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitGenericError
	}

	series, err := loadOrDownloadSeries(pair, *days)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load price data:", err)
		return exitGenericError
	}
	if len(series) == 0 {
		fmt.Fprintln(os.Stderr, "price series is empty")
		return exitPreflightFailed
	}

	pairCfg := findPairConfig(cfg, pair, series[0].Price)
	opt := &optimizer.Optimizer{Prices: series, BaseCfg: pairCfg.GridConfigFor(), Cost: backtest.CostModel{Seed: 7, Slippage: cfg.Slippage}}
	space := optimizer.DefaultSearchSpace()

	var results []optimizer.OptimizationResult
	label := "random"
	if *comprehensive {
		label = "comprehensive"
		population := *iterations / 5
		if population < 10 {
			population = 10
		}
		results = append(results, opt.GridSearch(space)...)
		results = append(results, opt.RandomSearch(space, *iterations, 1)...)
		results = append(results, opt.GeneticAlgorithm(space, population, 20, 2)...)
		results = append(results, opt.BayesianOptimization(space, *iterations, 3)...)
		reRank(results)
	} else {
		results = opt.RandomSearch(space, *iterations, 1)
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "optimization produced no candidates")
		return exitGenericError
	}

	reporter.PrintOptimizationReport(results, 10)

	best := results[0]
	gridCfg := pairCfg.GridConfigFor()
	gridCfg.LevelCount = best.Parameters.GridLevels
	gridCfg.BaseSpacing = best.Parameters.GridSpacing

	db, err := openStrategyDB(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		return exitGenericError
	}
	defer db.Close()
	if _, err := saveStrategyArtifacts(db, gridCfg, riskSizingModeName(best.Parameters.RiskSizing), best.Metrics, best.Score, label, *iterations); err != nil {
		fmt.Fprintln(os.Stderr, "save strategy:", err)
		return exitGenericError
	}
	return exitSuccess
}

// reRank re-sorts a merged batch of results (each already scored
// within its own search strategy's batch normalization) by Score
// descending and reassigns 1-indexed ranks, since comprehensive mode
// treats cross-strategy Score as directly comparable.
func reRank(results []optimizer.OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	for i := range results {
		results[i].Rank = i + 1
	}
}
