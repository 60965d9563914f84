package main

import (
	"gridengine/internal/config"
	"gridengine/internal/risk"
	"gridengine/internal/simulator"
)

// defaultConfig is the configuration `init` writes for a fresh
// workspace: no pairs (no verb adds pairs to the config file; they are
// entered by editing it), the Risk Controller's documented default
// limits, and a console-logging default.
func defaultConfig() *config.Config {
	return &config.Config{
		Pairs: []config.PairConfig{},
		Risk: risk.Limits{
			MaxTotalExposureFraction: 0.60,
			MaxDrawdownFraction:      0.15,
			MaxDailyLossFraction:     0.05,
		},
		Slippage: simulator.SlippageModel{Kind: simulator.SlippageFixed, FixedBps: 5},
		Exchange: config.ExchangeConfig{
			BaseURL:   "https://fapi.binance.com",
			WSBaseURL: "wss://fstream.binance.com",
		},
		Log: config.LogConfig{
			Level:  "info",
			Output: "console",
		},
		BadgerDir:    "data/state.badger",
		SQLitePath:   "data/gridengine.db",
		TotalCapital: 10000,
	}
}

// defaultPairConfig builds a full PairConfig (10 levels, 0.01 spacing,
// and the same MaxPositionFraction/EmergencyExitThreshold defaults
// gridtrader.New applies), so a minimal `optimize`/`backtest`
// invocation against an unconfigured pair still runs.
func defaultPairConfig(pair string, basePrice, capital float64) config.PairConfig {
	return config.PairConfig{
		Pair:                   pair,
		BasePrice:              basePrice,
		LevelCount:             10,
		BaseSpacing:            0.01,
		Capital:                capital,
		MaxPositionFraction:    0.30,
		EmergencyExitThreshold: 0.20,
	}
}
