package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCmdStrategyReturnsUsageErrorWithNoSubcommand(t *testing.T) {
	assert.Equal(t, exitUsageError, cmdStrategy(nil))
}

func TestCmdStrategyReturnsUsageErrorForUnknownSubcommand(t *testing.T) {
	assert.Equal(t, exitUsageError, cmdStrategy([]string{"bogus"}))
}

func TestCmdStrategyListSucceedsOnAnEmptyWorkspace(t *testing.T) {
	initWorkspace(t)
	assert.Equal(t, exitSuccess, cmdStrategyList(nil))
}

func TestCmdStrategyShowFailsPreflightForAnUnknownPair(t *testing.T) {
	initWorkspace(t)
	assert.Equal(t, exitPreflightFailed, cmdStrategyShow([]string{"BTCUSDT"}))
}

func TestCmdStrategyShowPrintsSavedStrategyAfterABacktest(t *testing.T) {
	initWorkspace(t)
	dataPath := writeSyntheticKlineCSV(t, 200)
	require.Equal(t, exitSuccess, cmdBacktestRun([]string{"BTCUSDT", "--levels", "10", "--spacing", "0.01", "--data", dataPath}))

	assert.Equal(t, exitSuccess, cmdStrategyShow([]string{"BTCUSDT"}))
}

func TestCmdStrategyExportWritesAJSONFile(t *testing.T) {
	initWorkspace(t)
	dataPath := writeSyntheticKlineCSV(t, 200)
	require.Equal(t, exitSuccess, cmdBacktestRun([]string{"BTCUSDT", "--levels", "10", "--spacing", "0.01", "--data", dataPath}))

	outPath := filepath.Join(t.TempDir(), "out.json")
	assert.Equal(t, exitSuccess, cmdStrategyExport([]string{"BTCUSDT", "--out", outPath}))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var sf strategyFile
	require.NoError(t, json.Unmarshal(data, &sf))
	assert.Equal(t, "BTCUSDT", sf.TradingPair)
}

func TestCmdStrategyExportFailsPreflightForAnUnknownPair(t *testing.T) {
	initWorkspace(t)
	assert.Equal(t, exitPreflightFailed, cmdStrategyExport([]string{"ETHUSDT"}))
}

func TestCmdStrategyExportRequiresAPositionalPair(t *testing.T) {
	initWorkspace(t)
	assert.Equal(t, exitUsageError, cmdStrategyExport(nil))
}
