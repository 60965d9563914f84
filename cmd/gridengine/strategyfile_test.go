package main

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridengine/internal/backtest"
	"gridengine/internal/storage"
	"gridengine/internal/tradingtypes"
)

func openTestStrategyDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.InitDB(filepath.Join(t.TempDir(), "gridengine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testGridConfig() tradingtypes.GridConfig {
	return tradingtypes.GridConfig{Pair: "BTCUSDT", BasePrice: 100, LevelCount: 10, BaseSpacing: 0.01, Capital: 10000, MaxPositionFraction: 0.3, EmergencyExitThreshold: 0.2}
}

func TestSaveStrategyArtifactsPersistsAllThreeRecords(t *testing.T) {
	db := openTestStrategyDB(t)
	result := backtest.BacktestResult{TotalReturn: 0.12, SharpeRatio: 1.5, MaxDrawdown: 0.05, TradeCount: 8}

	id, err := saveStrategyArtifacts(db, testGridConfig(), "fixed", result, 0.75, "grid", 40)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := storage.GetStrategy(db, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "BTCUSDT", rec.Pair)

	results, err := storage.ListBacktestResults(db, id)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.12, results[0].Result.TotalReturn)

	meta, err := loadOptimizationMetadata(db, id)
	require.NoError(t, err)
	assert.Equal(t, "grid", meta.Strategy)
	assert.Equal(t, 40, meta.Iterations)
	assert.Equal(t, 0.75, meta.Score)
}

func TestLoadOptimizationMetadataReturnsZeroValueWhenNoneRecorded(t *testing.T) {
	db := openTestStrategyDB(t)
	meta, err := loadOptimizationMetadata(db, "nonexistent-strategy")
	require.NoError(t, err)
	assert.Equal(t, "", meta.Strategy)
	assert.Zero(t, meta.Iterations)
}

func TestLatestStrategyForPairReturnsNilWhenNoneExists(t *testing.T) {
	db := openTestStrategyDB(t)
	rec, err := latestStrategyForPair(db, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLatestStrategyForPairFiltersByPair(t *testing.T) {
	db := openTestStrategyDB(t)
	_, err := saveStrategyArtifacts(db, testGridConfig(), "fixed", backtest.BacktestResult{}, 0.1, "manual", 1)
	require.NoError(t, err)

	other := testGridConfig()
	other.Pair = "ETHUSDT"
	_, err = saveStrategyArtifacts(db, other, "fixed", backtest.BacktestResult{}, 0.1, "manual", 1)
	require.NoError(t, err)

	rec, err := latestStrategyForPair(db, "ETHUSDT")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "ETHUSDT", rec.Pair)
}

func TestBuildStrategyFileAssemblesFromRecordedArtifacts(t *testing.T) {
	db := openTestStrategyDB(t)
	result := backtest.BacktestResult{TotalReturn: 0.2, SharpeRatio: 1.8, MaxDrawdown: 0.08, TradeCount: 15}
	id, err := saveStrategyArtifacts(db, testGridConfig(), "fixed", result, 0.9, "bayesian", 25)
	require.NoError(t, err)

	rec, err := storage.GetStrategy(db, id)
	require.NoError(t, err)

	sf, err := buildStrategyFile(db, rec)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", sf.TradingPair)
	assert.Equal(t, "bayesian", sf.OptimizationMetadata.Strategy)
	assert.Equal(t, 25, sf.OptimizationMetadata.Iterations)
	assert.Equal(t, 0.2, sf.Performance.Return)
	assert.Equal(t, 15, sf.Performance.TradeCount)
}

func TestBuildStrategyFileFailsWithoutABacktestResult(t *testing.T) {
	db := openTestStrategyDB(t)
	require.NoError(t, storage.SaveStrategy(db, "strat_bare", testGridConfig(), "fixed", time.Now()))

	rec, err := storage.GetStrategy(db, "strat_bare")
	require.NoError(t, err)

	_, err = buildStrategyFile(db, rec)
	assert.Error(t, err)
}
