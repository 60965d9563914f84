package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gridengine/internal/persistence"
	"gridengine/internal/storage"
)

// cmdInit creates a default config.json and an empty strategy/trade
// database. It refuses to run against a workspace that already has a
// config file, per the CLI contract's exit-2 case.
func cmdInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	configPath := fs.String("config", "config.json", "path to write the config file")
	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}

	if _, err := os.Stat(*configPath); err == nil {
		fmt.Fprintf(os.Stderr, "%s already exists; refusing to overwrite an existing workspace\n", *configPath)
		return exitUsageError
	}

	cfg := defaultConfig()

	if dir := filepath.Dir(*configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "create config directory: %v\n", err)
			return exitGenericError
		}
	}
	file, err := os.Create(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create config file: %v\n", err)
		return exitGenericError
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	writeErr := enc.Encode(cfg)
	file.Close()
	if writeErr != nil {
		fmt.Fprintf(os.Stderr, "write config file: %v\n", writeErr)
		return exitGenericError
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "create data directory: %v\n", err)
		return exitGenericError
	}
	db, err := storage.InitDB(cfg.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialize database: %v\n", err)
		return exitGenericError
	}
	db.Close()

	repo, err := persistence.NewBadgerRepository(cfg.BadgerDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialize state store: %v\n", err)
		return exitGenericError
	}
	repo.Close()

	fmt.Printf("initialized workspace: %s, %s, %s\n", *configPath, cfg.SQLitePath, cfg.BadgerDir)
	return exitSuccess
}
