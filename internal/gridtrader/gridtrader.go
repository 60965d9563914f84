// Package gridtrader implements the per-pair Grid Trader state machine:
// level construction and regime-adjusted rebuilds, buy/sell crossing
// detection with duplicate suppression, position-limit enforcement,
// emergency-exit handling, and fill application.
package gridtrader

import (
	"math"
	"time"

	"gridengine/internal/marketstate"
	"gridengine/internal/tradingerr"
	"gridengine/internal/tradingtypes"
)

// GridTrader owns one pair's grid levels, position state, and phase. It
// is mutated only by UpdateWithPrice and ApplyFill, matching the data
// model's documented lifecycle; all other components hold it by value
// snapshot via GetPositionSummary.
type GridTrader struct {
	cfg      tradingtypes.GridConfig
	analyzer *marketstate.Analyzer

	position tradingtypes.PositionState
	phase    tradingtypes.TraderPhase

	buyLevels  []tradingtypes.GridLevel // descending, closest-to-center first
	sellLevels []tradingtypes.GridLevel // ascending, closest-to-center first

	activeSpacing float64 // regime-adjusted fraction currently in effect
	center        float64 // price levels were last built around

	recentLevels []float64 // bounded history of fired level prices, cap RecentSignalWindow
}

// New constructs a GridTrader for one pair. Capital is deposited as
// starting cash; inventory begins at zero.
func New(cfg tradingtypes.GridConfig) *GridTrader {
	if cfg.MaxPositionFraction == 0 {
		cfg.MaxPositionFraction = tradingtypes.DefaultMaxPositionFraction
	}
	if cfg.EmergencyExitThreshold == 0 {
		cfg.EmergencyExitThreshold = tradingtypes.DefaultEmergencyExitThreshold
	}
	return &GridTrader{
		cfg:      cfg,
		analyzer: marketstate.NewAnalyzer(),
		position: tradingtypes.PositionState{Cash: cfg.Capital},
		phase:    tradingtypes.PhaseIdle,
	}
}

// Phase reports the trader's current state-machine phase.
func (g *GridTrader) Phase() tradingtypes.TraderPhase { return g.phase }

// TradeSize is the fixed per-level trade notional (in quote currency):
// capital divided evenly across all buy and sell levels.
func (g *GridTrader) TradeSize() float64 {
	return g.cfg.Capital / float64(g.cfg.LevelCount*2)
}

func invalidPrice(price float64) bool {
	return math.IsNaN(price) || math.IsInf(price, 0) || price <= 0
}

// UpdateWithPrice feeds one price observation through the trader and
// returns the resulting Signal. On invalid price it returns InvalidInput
// and leaves all state unchanged (transactional).
func (g *GridTrader) UpdateWithPrice(price float64, ts time.Time) (tradingtypes.Signal, error) {
	if invalidPrice(price) {
		return tradingtypes.NoSignal(), tradingerr.New(tradingerr.InvalidInput, "price must be a positive finite number")
	}

	if g.phase == tradingtypes.PhaseIdle {
		g.initialize(price)
		return tradingtypes.NoSignal(), nil
	}

	if g.phase == tradingtypes.PhaseHalted {
		g.analyzer.Observe(price)
		g.position.LastPrice = price
		return tradingtypes.NoSignal(), nil
	}

	// While Liquidating, keep emitting a full-inventory sell every tick
	// until a fill (or a string of partial fills) drains inventory to
	// zero, which is what moves the trader on to Halted.
	if g.phase == tradingtypes.PhaseLiquidating {
		g.analyzer.Observe(price)
		g.position.LastPrice = price
		if g.position.Inventory > 0 {
			return tradingtypes.LiquidateSignal(price, g.position.Inventory), nil
		}
		return tradingtypes.NoSignal(), nil
	}

	last := g.position.LastPrice
	state, _, _ := g.analyzer.Observe(price)

	if last != 0 && math.Abs(price-last)/last < tradingtypes.AntiNoiseThreshold {
		g.position.LastPrice = price
		return tradingtypes.NoSignal(), nil
	}

	spacing := g.regimeSpacing(state)
	if spacing != g.activeSpacing {
		g.rebuildLevels(last, spacing)
	}

	sig := g.detectAndEnforce(last, price)

	if emergency, newSig := g.checkEmergencyExit(price); emergency {
		sig = newSig
	}

	if !sig.IsNone() {
		g.recordFired(signalLevel(sig))
	}

	g.position.LastPrice = price
	return sig, nil
}

func signalLevel(sig tradingtypes.Signal) float64 {
	return sig.Price
}

func (g *GridTrader) initialize(price float64) {
	g.analyzer.Observe(price)
	g.position.LastPrice = price
	g.phase = tradingtypes.PhaseActive
	g.rebuildLevels(price, g.cfg.BaseSpacing*1.2) // Ranging default until the analyzer warms up
}

func (g *GridTrader) regimeSpacing(state tradingtypes.MarketState) float64 {
	switch state {
	case tradingtypes.TrendingUp, tradingtypes.TrendingDown:
		return g.cfg.BaseSpacing * 0.7
	default:
		return g.cfg.BaseSpacing * 1.2
	}
}

func (g *GridTrader) rebuildLevels(center, spacingFraction float64) {
	n := g.cfg.LevelCount
	g.buyLevels = make([]tradingtypes.GridLevel, n)
	g.sellLevels = make([]tradingtypes.GridLevel, n)
	for i := 1; i <= n; i++ {
		g.buyLevels[i-1] = tradingtypes.GridLevel{Price: center * (1 - spacingFraction*float64(i)), Side: tradingtypes.Buy}
		g.sellLevels[i-1] = tradingtypes.GridLevel{Price: center * (1 + spacingFraction*float64(i)), Side: tradingtypes.Sell}
	}
	g.activeSpacing = spacingFraction
	g.center = center
}

// detectAndEnforce finds the highest crossed buy level or lowest crossed
// sell level that hasn't fired recently, then applies position-limit
// suppression.
func (g *GridTrader) detectAndEnforce(last, price float64) tradingtypes.Signal {
	for _, lvl := range g.buyLevels {
		if last > lvl.Price && lvl.Price >= price && !g.firedRecently(lvl.Price) {
			if g.suppressBuy(price) {
				return tradingtypes.NoSignal()
			}
			return tradingtypes.BuySignal(lvl.Price)
		}
	}
	for _, lvl := range g.sellLevels {
		if last < lvl.Price && lvl.Price <= price && !g.firedRecently(lvl.Price) {
			if g.position.Inventory <= 0 {
				return tradingtypes.NoSignal()
			}
			return tradingtypes.SellSignal(lvl.Price)
		}
	}
	return tradingtypes.NoSignal()
}

func (g *GridTrader) suppressBuy(price float64) bool {
	if g.cfg.Capital <= 0 {
		return true
	}
	exposureFraction := g.position.Inventory * price / g.cfg.Capital
	if exposureFraction >= g.cfg.MaxPositionFraction {
		return true
	}
	if g.position.Cash < g.TradeSize() {
		return true
	}
	return false
}

// checkEmergencyExit implements the upper/lower emergency bounds. It
// returns (true, signal) when the bound is breached, overriding
// whatever the normal crossing logic produced.
func (g *GridTrader) checkEmergencyExit(price float64) (bool, tradingtypes.Signal) {
	e := g.cfg.EmergencyExitThreshold
	if len(g.sellLevels) > 0 {
		maxSell := g.sellLevels[len(g.sellLevels)-1].Price
		if price > maxSell*(1+e) && g.position.Inventory > 0 {
			g.phase = tradingtypes.PhaseLiquidating
			return true, tradingtypes.LiquidateSignal(price, g.position.Inventory)
		}
	}
	if len(g.buyLevels) > 0 {
		minBuy := g.buyLevels[len(g.buyLevels)-1].Price
		if price < minBuy*(1-e) {
			g.phase = tradingtypes.PhaseHalted
			return true, tradingtypes.HaltSignal()
		}
	}
	return false, tradingtypes.NoSignal()
}

func (g *GridTrader) firedRecently(level float64) bool {
	for _, l := range g.recentLevels {
		if l == level {
			return true
		}
	}
	return false
}

func (g *GridTrader) recordFired(level float64) {
	g.recentLevels = append(g.recentLevels, level)
	if len(g.recentLevels) > tradingtypes.RecentSignalWindow {
		g.recentLevels = g.recentLevels[len(g.recentLevels)-tradingtypes.RecentSignalWindow:]
	}
}

// ApplyFill updates cash, inventory, avg_entry_price and realized PnL
// for a completed fill. It fails with OversoldInventory if a sell would
// drive inventory negative, and with InsufficientFunds if a buy would
// drive cash negative; in both cases state is unchanged.
func (g *GridTrader) ApplyFill(side tradingtypes.Side, price, quantity, fee float64) error {
	if quantity <= 0 {
		return tradingerr.New(tradingerr.InvalidInput, "fill quantity must be positive")
	}

	switch side {
	case tradingtypes.Buy:
		cost := quantity*price + fee
		if cost > g.position.Cash {
			return tradingerr.New(tradingerr.InsufficientFunds, "fill cost exceeds available cash")
		}
		newInventory := g.position.Inventory + quantity
		g.position.AvgEntryPrice = (g.position.AvgEntryPrice*g.position.Inventory + price*quantity) / newInventory
		g.position.Inventory = newInventory
		g.position.Cash -= cost
		g.position.TradeCount++

	case tradingtypes.Sell:
		if quantity > g.position.Inventory {
			return tradingerr.New(tradingerr.OversoldInventory, "sell quantity exceeds inventory")
		}
		proceeds := quantity*price - fee
		g.position.RealizedPnL += quantity*(price-g.position.AvgEntryPrice) - fee
		g.position.Cash += proceeds
		g.position.Inventory -= quantity
		if g.position.Inventory == 0 {
			g.position.AvgEntryPrice = 0
			if g.phase == tradingtypes.PhaseLiquidating {
				g.phase = tradingtypes.PhaseHalted
			}
		}
		g.position.TradeCount++
	}
	return nil
}

// ReArm rebuilds grid levels around a new center price and returns a
// Halted trader to Active. It is an explicit operator action; the
// engine never re-arms itself.
func (g *GridTrader) ReArm(price float64) error {
	if invalidPrice(price) {
		return tradingerr.New(tradingerr.InvalidInput, "re-arm price must be a positive finite number")
	}
	g.rebuildLevels(price, g.cfg.BaseSpacing*1.2)
	g.position.LastPrice = price
	g.phase = tradingtypes.PhaseActive
	return nil
}

// GetPositionSummary returns a read-only snapshot of the trader's
// position state. Like every other GridTrader method, it must only be
// called from the goroutine that owns this trader; callers that need
// to publish state for other goroutines to read should snapshot via
// FullState and hand the copy across a lock or channel instead of
// letting a second goroutine call back into the trader.
func (g *GridTrader) GetPositionSummary() tradingtypes.PositionState {
	return g.position
}

// FullState returns phase, position, active spacing and center in a
// single call, so a caller publishing a consistent cross-goroutine
// snapshot doesn't have to make several separate calls that could
// otherwise observe an in-progress mutation as torn reads.
func (g *GridTrader) FullState() (tradingtypes.TraderPhase, tradingtypes.PositionState, float64, float64) {
	return g.phase, g.position, g.activeSpacing, g.center
}

// BuyLevels and SellLevels return copies of the current grid ladder,
// for reporting and testing.
func (g *GridTrader) BuyLevels() []tradingtypes.GridLevel {
	out := make([]tradingtypes.GridLevel, len(g.buyLevels))
	copy(out, g.buyLevels)
	return out
}

func (g *GridTrader) SellLevels() []tradingtypes.GridLevel {
	out := make([]tradingtypes.GridLevel, len(g.sellLevels))
	copy(out, g.sellLevels)
	return out
}

// Pair returns the trader's pair identifier.
func (g *GridTrader) Pair() string { return g.cfg.Pair }

// ActiveSpacing and Center expose the ladder's current regime-adjusted
// spacing and build center, for persistence snapshots and reporting.
func (g *GridTrader) ActiveSpacing() float64 { return g.activeSpacing }
func (g *GridTrader) Center() float64        { return g.center }

// Restore reconstructs a GridTrader's mutable state from a persisted
// snapshot, then rebuilds its ladder around center at the saved
// spacing. It does not replay the analyzer's transition-matrix
// history, which is acceptable: the analyzer treats a short warm-up
// window as Ranging (its documented cold-start behavior) rather than
// failing.
func Restore(cfg tradingtypes.GridConfig, phase tradingtypes.TraderPhase, position tradingtypes.PositionState, activeSpacing, center float64) *GridTrader {
	g := New(cfg)
	g.phase = phase
	g.position = position
	if center > 0 && activeSpacing > 0 {
		g.rebuildLevels(center, activeSpacing)
	}
	return g
}
