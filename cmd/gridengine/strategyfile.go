package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gridengine/internal/backtest"
	"gridengine/internal/ids"
	"gridengine/internal/storage"
	"gridengine/internal/tradingtypes"
)

// optimizationMetadata is recorded as an execution_history row
// alongside every saved strategy, so `strategy export` can reconstruct
// the "optimization_metadata" object the Strategy file format requires
// without widening the strategies table.
type optimizationMetadata struct {
	Strategy   string    `json:"strategy"`
	Iterations int       `json:"iterations"`
	Score      float64   `json:"score"`
	Timestamp  time.Time `json:"timestamp"`
}

// strategyFile mirrors the persisted Strategy file JSON shape.
type strategyFile struct {
	TradingPair         string  `json:"trading_pair"`
	GridLevels          int     `json:"grid_levels"`
	GridSpacing         float64 `json:"grid_spacing"`
	BasePrice           float64 `json:"base_price"`
	Capital             float64 `json:"capital"`
	MaxPositionFraction float64 `json:"max_position_fraction"`
	OptimizationMetadata struct {
		Strategy   string    `json:"strategy"`
		Iterations int       `json:"iterations"`
		Score      float64   `json:"score"`
		Timestamp  time.Time `json:"timestamp"`
	} `json:"optimization_metadata"`
	Performance struct {
		Return     float64 `json:"return"`
		Sharpe     float64 `json:"sharpe"`
		Drawdown   float64 `json:"drawdown"`
		TradeCount int     `json:"trade_count"`
	} `json:"performance"`
}

// saveStrategyArtifacts persists a strategy, its backtest result and
// its optimization/backtest provenance as one unit. strategyName is
// the search strategy that produced it ("grid", "random", "genetic",
// "bayesian", or "manual" for a plain `backtest run`).
func saveStrategyArtifacts(db *sql.DB, cfg tradingtypes.GridConfig, riskSizingMode string, result backtest.BacktestResult, score float64, strategyName string, iterations int) (string, error) {
	now := time.Now()
	strategyID := ids.New("strat")
	if err := storage.SaveStrategy(db, strategyID, cfg, riskSizingMode, now); err != nil {
		return "", err
	}
	if err := storage.SaveBacktestResult(db, ids.New("bt"), strategyID, result, now); err != nil {
		return "", err
	}

	meta := optimizationMetadata{Strategy: strategyName, Iterations: iterations, Score: score, Timestamp: now}
	detail, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	if err := storage.RecordExecutionEvent(db, ids.New("evt"), strategyID, "optimization_metadata", string(detail), now); err != nil {
		return "", err
	}
	return strategyID, nil
}

// loadOptimizationMetadata fetches the most recent optimization_metadata
// event recorded for a strategy, or a zero-value metadata record if
// none was ever recorded (e.g. a strategy created before this CLI
// existed).
func loadOptimizationMetadata(db *sql.DB, strategyID string) (optimizationMetadata, error) {
	row := db.QueryRow(`
		SELECT detail FROM execution_history
		WHERE strategy_id = ? AND event_type = 'optimization_metadata'
		ORDER BY timestamp DESC LIMIT 1`, strategyID)

	var detail string
	if err := row.Scan(&detail); err != nil {
		if err == sql.ErrNoRows {
			return optimizationMetadata{}, nil
		}
		return optimizationMetadata{}, err
	}
	var meta optimizationMetadata
	if err := json.Unmarshal([]byte(detail), &meta); err != nil {
		return optimizationMetadata{}, err
	}
	return meta, nil
}

// latestStrategyForPair returns the most recently saved strategy for
// pair, or (nil, nil) if none exists.
func latestStrategyForPair(db *sql.DB, pair string) (*storage.StrategyRecord, error) {
	all, err := storage.ListStrategies(db)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Pair == pair {
			return &all[i], nil
		}
	}
	return nil, nil
}

// buildStrategyFile assembles the exportable Strategy file for one
// strategy record, using its most recent backtest result and recorded
// optimization metadata.
func buildStrategyFile(db *sql.DB, rec *storage.StrategyRecord) (*strategyFile, error) {
	results, err := storage.ListBacktestResults(db, rec.ID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("strategy %s has no recorded backtest result", rec.ID)
	}
	meta, err := loadOptimizationMetadata(db, rec.ID)
	if err != nil {
		return nil, err
	}

	sf := &strategyFile{
		TradingPair:         rec.Pair,
		GridLevels:          rec.GridLevels,
		GridSpacing:         rec.GridSpacing,
		BasePrice:           rec.BasePrice,
		Capital:             rec.Capital,
		MaxPositionFraction: rec.MaxPositionFraction,
	}
	sf.OptimizationMetadata.Strategy = meta.Strategy
	sf.OptimizationMetadata.Iterations = meta.Iterations
	sf.OptimizationMetadata.Score = meta.Score
	sf.OptimizationMetadata.Timestamp = meta.Timestamp

	best := results[0].Result
	sf.Performance.Return = best.TotalReturn
	sf.Performance.Sharpe = best.SharpeRatio
	sf.Performance.Drawdown = best.MaxDrawdown
	sf.Performance.TradeCount = best.TradeCount
	return sf, nil
}
