// Command gridengine is the CLI entrypoint for the grid trading
// engine: it dispatches to the init, optimize, backtest, trade and
// strategy verbs, wiring together configuration, persistence, the
// Backtest Driver, the Parameter Optimizer and the Live Engine. The
// verb/sub-verb dispatch uses a flag.NewFlagSet-per-mode pattern, with
// a small verb table in place of a single live/backtest switch.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"gridengine/internal/config"
	"gridengine/internal/logger"
)

// Exit codes, per the CLI surface's documented contract.
const (
	exitSuccess         = 0
	exitGenericError    = 1
	exitUsageError      = 2
	exitPreflightFailed = 3
	exitRiskHalt        = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitUsageError
	}

	verb, rest := args[0], args[1:]
	switch verb {
	case "init":
		return cmdInit(rest)
	case "optimize":
		return cmdOptimize(rest)
	case "backtest":
		return cmdBacktest(rest)
	case "trade":
		return cmdTrade(rest)
	case "strategy":
		return cmdStrategy(rest)
	case "-h", "--help", "help":
		printUsage()
		return exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", verb)
		printUsage()
		return exitUsageError
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `gridengine <command> [flags]

Commands:
  init                                  create config.json and an empty database
  optimize all [--limit N] [--iterations I] [--strategy S]
  optimize pair <PAIR> [--iterations I] [--comprehensive]
  backtest demo <PAIR>
  backtest run <PAIR> --levels L --spacing S
  trade start [--dry-run] [--simulate] [--capital X] [--pairs P1,P2] [--hours H | --minutes M]
  strategy list|show|export [PAIR]

Global flags accepted by most commands:
  --config PATH   path to the JSON config file (default config.json)`)
}

// loadConfig opens the named config file and initializes the process
// logger from it, so every verb starts from the same
// load-then-init-logger sequence.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	logger.Init(cfg.Log)
	return cfg, nil
}

func zapLogger() *zap.Logger {
	return logger.L()
}
