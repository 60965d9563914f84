// Package storage persists strategies, trades, execution history and
// backtest results to SQLite, using a four-table schema shared across
// every pair and every backtest run.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"gridengine/internal/backtest"
	"gridengine/internal/tradingtypes"
)

// InitDB opens (or creates) the SQLite database at dataSourceName and
// ensures its schema exists.
func InitDB(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return db, nil
}

func createTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS strategies (
			id TEXT PRIMARY KEY,
			pair TEXT NOT NULL,
			grid_levels INTEGER NOT NULL,
			grid_spacing REAL NOT NULL,
			base_price REAL NOT NULL,
			capital REAL NOT NULL,
			max_position_fraction REAL NOT NULL,
			emergency_exit_threshold REAL NOT NULL,
			risk_sizing_mode TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			strategy_id TEXT NOT NULL REFERENCES strategies(id),
			pair TEXT NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			quantity REAL NOT NULL,
			fee REAL NOT NULL,
			slippage REAL NOT NULL,
			timestamp INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS execution_history (
			id TEXT PRIMARY KEY,
			strategy_id TEXT NOT NULL REFERENCES strategies(id),
			event_type TEXT NOT NULL,
			detail TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_results (
			id TEXT PRIMARY KEY,
			strategy_id TEXT NOT NULL REFERENCES strategies(id),
			total_return REAL NOT NULL,
			sharpe_ratio REAL NOT NULL,
			max_drawdown REAL NOT NULL,
			trade_count INTEGER NOT NULL,
			win_rate REAL NOT NULL,
			volatility REAL NOT NULL,
			fees_paid REAL NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_strategies_pair ON strategies(pair);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_pair_timestamp ON trades(pair, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_strategy_timestamp ON trades(strategy_id, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_execution_history_strategy_timestamp ON execution_history(strategy_id, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_results_strategy_created ON backtest_results(strategy_id, created_at);`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveStrategy inserts or replaces a strategy record.
func SaveStrategy(db *sql.DB, id string, cfg tradingtypes.GridConfig, riskSizingMode string, createdAt time.Time) error {
	_, err := db.Exec(`
		INSERT INTO strategies (id, pair, grid_levels, grid_spacing, base_price, capital, max_position_fraction, emergency_exit_threshold, risk_sizing_mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pair = excluded.pair, grid_levels = excluded.grid_levels, grid_spacing = excluded.grid_spacing,
			base_price = excluded.base_price, capital = excluded.capital, max_position_fraction = excluded.max_position_fraction,
			emergency_exit_threshold = excluded.emergency_exit_threshold, risk_sizing_mode = excluded.risk_sizing_mode`,
		id, cfg.Pair, cfg.LevelCount, cfg.BaseSpacing, cfg.BasePrice, cfg.Capital, cfg.MaxPositionFraction, cfg.EmergencyExitThreshold,
		riskSizingMode, createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save strategy %s: %w", id, err)
	}
	return nil
}

// StrategyRecord is one row of the strategies table.
type StrategyRecord struct {
	ID                     string
	Pair                   string
	GridLevels             int
	GridSpacing            float64
	BasePrice              float64
	Capital                float64
	MaxPositionFraction    float64
	EmergencyExitThreshold float64
	RiskSizingMode         string
	CreatedAt              time.Time
}

// ListStrategies returns every saved strategy, newest first.
func ListStrategies(db *sql.DB) ([]StrategyRecord, error) {
	rows, err := db.Query(`
		SELECT id, pair, grid_levels, grid_spacing, base_price, capital, max_position_fraction, emergency_exit_threshold, risk_sizing_mode, created_at
		FROM strategies ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StrategyRecord
	for rows.Next() {
		var r StrategyRecord
		var createdAtMs int64
		if err := rows.Scan(&r.ID, &r.Pair, &r.GridLevels, &r.GridSpacing, &r.BasePrice, &r.Capital,
			&r.MaxPositionFraction, &r.EmergencyExitThreshold, &r.RiskSizingMode, &createdAtMs); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(createdAtMs)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetStrategy fetches one strategy by ID, or (nil, nil) if absent.
func GetStrategy(db *sql.DB, id string) (*StrategyRecord, error) {
	row := db.QueryRow(`
		SELECT id, pair, grid_levels, grid_spacing, base_price, capital, max_position_fraction, emergency_exit_threshold, risk_sizing_mode, created_at
		FROM strategies WHERE id = ?`, id)

	var r StrategyRecord
	var createdAtMs int64
	err := row.Scan(&r.ID, &r.Pair, &r.GridLevels, &r.GridSpacing, &r.BasePrice, &r.Capital,
		&r.MaxPositionFraction, &r.EmergencyExitThreshold, &r.RiskSizingMode, &createdAtMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.UnixMilli(createdAtMs)
	return &r, nil
}

// RecordTrade inserts one fill into the trades table.
func RecordTrade(db *sql.DB, id, strategyID, pair string, side tradingtypes.Side, price, quantity, fee, slippage float64, ts time.Time) error {
	_, err := db.Exec(`
		INSERT INTO trades (id, strategy_id, pair, side, price, quantity, fee, slippage, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, strategyID, pair, sideLabel(side), price, quantity, fee, slippage, ts.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record trade %s: %w", id, err)
	}
	return nil
}

func sideLabel(side tradingtypes.Side) string {
	if side == tradingtypes.Buy {
		return "BUY"
	}
	return "SELL"
}

// RecordExecutionEvent appends one audit-trail entry (a signal, a
// denial, a halt, a fill) to the execution_history table.
func RecordExecutionEvent(db *sql.DB, id, strategyID, eventType, detail string, ts time.Time) error {
	_, err := db.Exec(`
		INSERT INTO execution_history (id, strategy_id, event_type, detail, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		id, strategyID, eventType, detail, ts.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record execution event %s: %w", id, err)
	}
	return nil
}

// SaveBacktestResult persists one Backtest Driver run's summary metrics.
func SaveBacktestResult(db *sql.DB, id, strategyID string, result backtest.BacktestResult, ts time.Time) error {
	_, err := db.Exec(`
		INSERT INTO backtest_results (id, strategy_id, total_return, sharpe_ratio, max_drawdown, trade_count, win_rate, volatility, fees_paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, strategyID, result.TotalReturn, result.SharpeRatio, result.MaxDrawdown, result.TradeCount,
		result.WinRate, result.Volatility, result.FeesPaid, ts.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save backtest result %s: %w", id, err)
	}
	return nil
}

// BacktestResultRecord is one row of the backtest_results table.
type BacktestResultRecord struct {
	ID         string
	StrategyID string
	Result     backtest.BacktestResult
	CreatedAt  time.Time
}

// ListBacktestResults returns every backtest result for a strategy,
// newest first.
func ListBacktestResults(db *sql.DB, strategyID string) ([]BacktestResultRecord, error) {
	rows, err := db.Query(`
		SELECT id, strategy_id, total_return, sharpe_ratio, max_drawdown, trade_count, win_rate, volatility, fees_paid, created_at
		FROM backtest_results WHERE strategy_id = ? ORDER BY created_at DESC`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BacktestResultRecord
	for rows.Next() {
		var r BacktestResultRecord
		var createdAtMs int64
		if err := rows.Scan(&r.ID, &r.StrategyID, &r.Result.TotalReturn, &r.Result.SharpeRatio,
			&r.Result.MaxDrawdown, &r.Result.TradeCount, &r.Result.WinRate, &r.Result.Volatility,
			&r.Result.FeesPaid, &createdAtMs); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(createdAtMs)
		out = append(out, r)
	}
	return out, rows.Err()
}
