// Package backtest implements the Backtest Driver: it streams a
// historical price series through the Market State Analyzer and Grid
// Trader, routes every non-None signal as a Market order through the
// Market Simulator, applies fills back to the trader, and records a
// vectorized equity curve and summary metrics.
package backtest

import (
	"math"

	"gridengine/internal/gridtrader"
	"gridengine/internal/simulator"
	"gridengine/internal/tradingtypes"
)

// annualizationBars is the assumed number of bars per year used to
// annualize Sharpe ratio and volatility. No bar frequency is pinned
// elsewhere, so 252 (trading-day convention) is documented here rather
// than silently assumed.
const annualizationBars = 252

// CostModel bundles the Market Simulator's deterministic seed and
// slippage configuration for one backtest run.
type CostModel struct {
	Seed          int64
	Slippage      simulator.SlippageModel
	SyntheticSpreadFraction float64 // synthetic full bid-ask spread (half on each side) used to derive a one-level book from each price tick; default 0.0002
}

// BacktestResult is the Backtest Driver's reported outcome.
type BacktestResult struct {
	TotalReturn float64
	SharpeRatio float64
	MaxDrawdown float64
	TradeCount  int
	WinRate     float64
	Volatility  float64
	FeesPaid    float64
	EquityCurve []float64
}

// defaultBuyFractionOfCash and defaultSellFractionOfInventory are the
// Backtest Driver's fixed order-sizing defaults.
const (
	defaultBuyFractionOfCash        = 0.10
	defaultSellFractionOfInventory  = 0.10
)

// Run drives one backtest of a Grid Trader against a price series. The
// analyzer and signal generator are evaluated once per bar with no
// per-bar allocation beyond the fixed-size equity curve.
func Run(prices []tradingtypes.PricePoint, cfg tradingtypes.GridConfig, cost CostModel) (BacktestResult, error) {
	if cost.SyntheticSpreadFraction == 0 {
		cost.SyntheticSpreadFraction = 0.0002
	}

	trader := gridtrader.New(cfg)
	engine := simulator.NewMatchingEngine(cost.Seed, cost.Slippage)

	equityCurve := make([]float64, 0, len(prices))
	var feesPaid float64
	var wins, sells int

	for i, pt := range prices {
		sig, err := trader.UpdateWithPrice(pt.Price, pt.Timestamp)
		if err != nil {
			continue // invalid price: state unchanged, skip this bar
		}

		if !sig.IsNone() && sig.Kind != tradingtypes.SignalHalt {
			half := cost.SyntheticSpreadFraction / 2
			engine.InitializeOrderBook(cfg.Pair, tradingtypes.OrderBookSnapshot{
				Pair: cfg.Pair,
				Bids: []tradingtypes.OrderBookLevel{{Price: pt.Price * (1 - half), Size: 1e9}},
				Asks: []tradingtypes.OrderBookLevel{{Price: pt.Price * (1 + half), Size: 1e9}},
			})

			pos := trader.GetPositionSummary()
			order := tradingtypes.Order{
				ID:              orderID(i),
				Pair:            cfg.Pair,
				Type:            tradingtypes.Market,
				SubmitTimestamp: pt.Timestamp,
			}
			if sig.Kind == tradingtypes.SignalBuy {
				order.Side = tradingtypes.Buy
				order.Quantity = (pos.Cash * defaultBuyFractionOfCash) / pt.Price
			} else {
				order.Side = tradingtypes.Sell
				if sig.Quantity > 0 {
					order.Quantity = sig.Quantity // emergency liquidation: drain inventory, not a fixed fraction
				} else {
					order.Quantity = pos.Inventory * defaultSellFractionOfInventory
				}
			}

			if order.Quantity > 0 {
				avgEntryBeforeFill := pos.AvgEntryPrice
				fill, err := engine.ExecuteOrder(order)
				if err == nil && fill.FilledQuantity > 0 {
					if applyErr := trader.ApplyFill(order.Side, fill.AveragePrice, fill.FilledQuantity, fill.Fee); applyErr == nil {
						feesPaid += fill.Fee
						if order.Side == tradingtypes.Sell {
							sells++
							if fill.AveragePrice > avgEntryBeforeFill {
								wins++
							}
						}
					}
				}
			}
		}

		pos := trader.GetPositionSummary()
		equityCurve = append(equityCurve, pos.Cash+pos.Inventory*pt.Price)
	}

	return summarize(equityCurve, trader.GetPositionSummary(), feesPaid, wins, sells), nil
}

func orderID(i int) string {
	return "bt-" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func summarize(equity []float64, pos tradingtypes.PositionState, feesPaid float64, wins, sells int) BacktestResult {
	if len(equity) == 0 {
		return BacktestResult{}
	}

	initial := equity[0]
	final := equity[len(equity)-1]
	totalReturn := 0.0
	if initial > 0 {
		totalReturn = (final - initial) / initial
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, (equity[i]-equity[i-1])/equity[i-1])
	}

	mean, std := meanStd(returns)
	sharpe := 0.0
	if std > 0 {
		sharpe = (mean / std) * math.Sqrt(annualizationBars)
	}
	volatility := std * math.Sqrt(annualizationBars)

	winRate := 0.0
	if sells > 0 {
		winRate = float64(wins) / float64(sells)
	}

	return BacktestResult{
		TotalReturn: totalReturn,
		SharpeRatio: sharpe,
		MaxDrawdown: maxDrawdown(equity),
		TradeCount:  int(pos.TradeCount),
		WinRate:     winRate,
		Volatility:  volatility,
		FeesPaid:    feesPaid,
		EquityCurve: equity,
	}
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}

// maxDrawdown is the peak-tracking max drawdown over an equity curve.
func maxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (peak - e) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
