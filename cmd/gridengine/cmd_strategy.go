package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"gridengine/internal/storage"
)

func cmdStrategy(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gridengine strategy list|show|export [PAIR]")
		return exitUsageError
	}
	switch args[0] {
	case "list":
		return cmdStrategyList(args[1:])
	case "show":
		return cmdStrategyShow(args[1:])
	case "export":
		return cmdStrategyExport(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown strategy sub-command: %s\n", args[0])
		return exitUsageError
	}
}

func cmdStrategyList(args []string) int {
	fs := flag.NewFlagSet("strategy list", flag.ContinueOnError)
	configPath := fs.String("config", "config.json", "path to the config file")
	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitGenericError
	}
	db, err := openStrategyDB(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		return exitGenericError
	}
	defer db.Close()

	records, err := storage.ListStrategies(db)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list strategies:", err)
		return exitGenericError
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Saved strategies")
	t.AppendHeader(table.Row{"ID", "Pair", "Levels", "Spacing", "Base price", "Capital", "Risk mode", "Created"})
	for _, r := range records {
		t.AppendRow(table.Row{r.ID, r.Pair, r.GridLevels, fmt.Sprintf("%.4f", r.GridSpacing),
			fmt.Sprintf("%.2f", r.BasePrice), fmt.Sprintf("%.2f", r.Capital), r.RiskSizingMode,
			r.CreatedAt.Format("2006-01-02 15:04")})
	}
	t.Render()
	return exitSuccess
}

func cmdStrategyShow(args []string) int {
	fs := flag.NewFlagSet("strategy show", flag.ContinueOnError)
	configPath := fs.String("config", "config.json", "path to the config file")
	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}
	pair, ok := firstPositional(fs.Args())
	if !ok {
		fmt.Fprintln(os.Stderr, "usage: gridengine strategy show <PAIR>")
		return exitUsageError
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitGenericError
	}
	db, err := openStrategyDB(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		return exitGenericError
	}
	defer db.Close()

	rec, err := latestStrategyForPair(db, pair)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load strategy:", err)
		return exitGenericError
	}
	if rec == nil {
		fmt.Fprintf(os.Stderr, "no strategy recorded for pair %s\n", pair)
		return exitPreflightFailed
	}

	sf, err := buildStrategyFile(db, rec)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build strategy file:", err)
		return exitGenericError
	}
	out, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode strategy file:", err)
		return exitGenericError
	}
	fmt.Println(string(out))
	return exitSuccess
}

func cmdStrategyExport(args []string) int {
	fs := flag.NewFlagSet("strategy export", flag.ContinueOnError)
	configPath := fs.String("config", "config.json", "path to the config file")
	out := fs.String("out", "", "output path (default <PAIR>-strategy.json)")
	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}
	pair, ok := firstPositional(fs.Args())
	if !ok {
		fmt.Fprintln(os.Stderr, "usage: gridengine strategy export <PAIR> [--out PATH]")
		return exitUsageError
	}
	if *out == "" {
		*out = pair + "-strategy.json"
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitGenericError
	}
	db, err := openStrategyDB(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		return exitGenericError
	}
	defer db.Close()

	rec, err := latestStrategyForPair(db, pair)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load strategy:", err)
		return exitGenericError
	}
	if rec == nil {
		fmt.Fprintf(os.Stderr, "no strategy recorded for pair %s\n", pair)
		return exitPreflightFailed
	}

	sf, err := buildStrategyFile(db, rec)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build strategy file:", err)
		return exitGenericError
	}
	file, err := os.Create(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create output file:", err)
		return exitGenericError
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	writeErr := enc.Encode(sf)
	file.Close()
	if writeErr != nil {
		fmt.Fprintln(os.Stderr, "write output file:", writeErr)
		return exitGenericError
	}

	fmt.Printf("exported strategy for %s to %s\n", pair, *out)
	return exitSuccess
}
