package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gridengine/internal/config"
	"gridengine/internal/exchange"
	"gridengine/internal/liveengine"
	"gridengine/internal/persistence"
	"gridengine/internal/risk"
	"gridengine/internal/simulator"
)

func cmdTrade(args []string) int {
	if len(args) == 0 || args[0] != "start" {
		fmt.Fprintln(os.Stderr, "usage: gridengine trade start [--dry-run] [--simulate] [--capital X] [--pairs P1,P2] [--hours H | --minutes M]")
		return exitUsageError
	}
	return cmdTradeStart(args[1:])
}

func cmdTradeStart(args []string) int {
	fs := flag.NewFlagSet("trade start", flag.ContinueOnError)
	configPath := fs.String("config", "config.json", "path to the config file")
	dryRun := fs.Bool("dry-run", false, "route orders to a local paper exchange fed by the real market feed")
	simulate := fs.Bool("simulate", false, "run entirely offline, replaying cached historical data through a paper exchange")
	capital := fs.Float64("capital", 0, "override the configured total capital")
	pairsFlag := fs.String("pairs", "", "comma-separated subset of configured pairs to trade (default: all configured pairs)")
	hours := fs.Int("hours", 0, "stop after this many hours")
	minutes := fs.Int("minutes", 0, "stop after this many minutes (ignored if --hours is set)")
	days := fs.Int("days", 30, "trailing days of historical data to replay in --simulate mode")
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

	selected := selectPairs(cfg, *pairsFlag)
	if len(selected) == 0 {
		fmt.Fprintln(os.Stderr, "none of the requested pairs are configured")
		return exitPreflightFailed
	}
	if !*dryRun && !*simulate {
		if cfg.Exchange.APIKey == "" || cfg.Exchange.SecretKey == "" {
			fmt.Fprintln(os.Stderr, "BINANCE_API_KEY and BINANCE_SECRET_KEY must be set for live trading (use --dry-run or --simulate otherwise)")
			return exitPreflightFailed
		}
	}

	totalCapital := cfg.TotalCapital
	if *capital > 0 {
		totalCapital = *capital
	}

	stateRepo, err := persistence.NewBadgerRepository(cfg.BadgerDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open state store:", err)
		return exitGenericError
	}
	defer stateRepo.Close()

	riskController := risk.New(cfg.Risk)
	engine := liveengine.New(riskController, totalCapital, zapLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closers []func() error
	for _, pairCfg := range selected {
		executor, source, closer, err := buildPairAdapter(cfg, pairCfg, *dryRun, *simulate, *days)
		if err != nil {
			fmt.Fprintf(os.Stderr, "set up %s: %v\n", pairCfg.Pair, err)
			return exitGenericError
		}
		closers = append(closers, closer)

		gridCfg := pairCfg.GridConfigFor()
		state, err := stateRepo.LoadState(pairCfg.Pair)
		if err != nil {
			zapLogger().Warn("could not load persisted state, starting fresh", zap.String("pair", pairCfg.Pair), zap.Error(err))
			state = nil
		}
		engine.RestorePair(gridCfg, state, executor)
		go engine.RunFeed(ctx, pairCfg.Pair, source)
	}
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	engine.StartDay()
	dayTicker := time.NewTicker(24 * time.Hour)
	defer dayTicker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	switch {
	case *hours > 0:
		deadline = time.After(time.Duration(*hours) * time.Hour)
	case *minutes > 0:
		deadline = time.After(time.Duration(*minutes) * time.Minute)
	}

	haltCheck := time.NewTicker(2 * time.Second)
	defer haltCheck.Stop()

runLoop:
	for {
		select {
		case <-quit:
			zapLogger().Info("received shutdown signal")
			break runLoop
		case <-deadline:
			zapLogger().Info("trading duration elapsed")
			break runLoop
		case <-dayTicker.C:
			engine.StartDay()
		case <-haltCheck.C:
			if engine.IsHalted() {
				zapLogger().Error("risk controller halted trading")
				break runLoop
			}
		}
	}

	cancel()
	engine.Stop()

	for _, pair := range engine.Pairs() {
		if state, ok := engine.PairState(pair); ok {
			if err := stateRepo.SaveState(state); err != nil {
				zapLogger().Error("failed to persist pair state", zap.String("pair", pair), zap.Error(err))
			}
		}
	}

	if engine.IsHalted() {
		return exitRiskHalt
	}
	return exitSuccess
}

// selectPairs intersects cfg.Pairs with a comma-separated --pairs
// filter, or returns every configured pair if the filter is empty.
func selectPairs(cfg *config.Config, filter string) []config.PairConfig {
	if filter == "" {
		return cfg.Pairs
	}
	wanted := make(map[string]bool)
	for _, p := range strings.Split(filter, ",") {
		wanted[strings.TrimSpace(p)] = true
	}
	var out []config.PairConfig
	for _, p := range cfg.Pairs {
		if wanted[p.Pair] {
			out = append(out, p)
		}
	}
	return out
}

// buildPairAdapter constructs the OrderExecutor and PriceSource for
// one pair according to the requested trading mode, plus a cleanup
// closer.
func buildPairAdapter(cfg *config.Config, pairCfg config.PairConfig, dryRun, simulate bool, historyDays int) (liveengine.OrderExecutor, liveengine.PriceSource, func() error, error) {
	switch {
	case simulate:
		series, err := loadOrDownloadSeries(pairCfg.Pair, historyDays)
		if err != nil || len(series) == 0 {
			return nil, nil, nil, fmt.Errorf("load historical data: %w", err)
		}
		matchEngine := simulator.NewMatchingEngine(7, cfg.Slippage)
		paper := exchange.NewPaperExchange(pairCfg.Pair, matchEngine)
		feed := exchange.NewPriceSeriesFeed(pairCfg.Pair, series, matchEngine, 0, 10*time.Millisecond)
		return paper, feed, paper.Close, nil

	case dryRun:
		matchEngine := simulator.NewMatchingEngine(7, cfg.Slippage)
		paper := exchange.NewPaperExchange(pairCfg.Pair, matchEngine)
		live, err := exchange.NewBookTickerFeed(cfg.Exchange.WSBaseURL, pairCfg.Pair)
		if err != nil {
			return nil, nil, nil, err
		}
		feed := newBookSeedingFeed(live, pairCfg.Pair, matchEngine)
		return paper, feed, live.Close, nil

	default:
		liveExch, err := exchange.NewLiveExchange(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.BaseURL, cfg.Exchange.WSBaseURL, zapLogger())
		if err != nil {
			return nil, nil, nil, err
		}
		feed, err := exchange.NewBookTickerFeed(cfg.Exchange.WSBaseURL, pairCfg.Pair)
		if err != nil {
			liveExch.Close()
			return nil, nil, nil, err
		}
		return liveExch, feed, liveExch.Close, nil
	}
}
