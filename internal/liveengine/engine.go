// Package liveengine implements the Live Engine: it wires a price feed
// per trading pair to its own Grid Trader through a single-writer actor,
// gates every signal through a shared Portfolio Risk Controller, and
// routes authorized orders to an exchange adapter or the paper-trading
// simulator.
package liveengine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gridengine/internal/gridtrader"
	"gridengine/internal/ids"
	"gridengine/internal/persistence"
	"gridengine/internal/risk"
	"gridengine/internal/tradingtypes"
)

// Engine owns every pair's actor and the shared risk controller. Each
// actor is the sole writer of its own Grid Trader; the risk controller
// is the one piece of cross-pair shared state, and is only ever
// touched through its own internal mutex.
type Engine struct {
	mu     sync.RWMutex
	actors map[string]*PairActor
	risk   *risk.Controller
	logger *zap.Logger

	totalCapital float64
	seedCounter  int64
}

// New constructs an Engine bound to a shared risk controller and the
// portfolio's total allocated capital (used as the risk controller's
// exposure-fraction denominator).
func New(riskController *risk.Controller, totalCapital float64, logger *zap.Logger) *Engine {
	return &Engine{
		actors:       make(map[string]*PairActor),
		risk:         riskController,
		logger:       logger,
		totalCapital: totalCapital,
	}
}

// AddPair registers a new pair with a freshly constructed Grid Trader,
// starts its actor goroutine, and returns it so the caller can begin
// pumping a feed into it.
func (e *Engine) AddPair(cfg tradingtypes.GridConfig, executor OrderExecutor) *PairActor {
	return e.RestorePair(cfg, nil, executor)
}

// RestorePair registers a pair like AddPair but, when state is
// non-nil, rebuilds its Grid Trader from previously persisted runtime
// state instead of starting fresh, so the Live Engine can resume a
// session across restarts.
func (e *Engine) RestorePair(cfg tradingtypes.GridConfig, state *persistence.PairRuntimeState, executor OrderExecutor) *PairActor {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seedCounter++
	var trader *gridtrader.GridTrader
	if state != nil {
		trader = gridtrader.Restore(cfg, state.Phase, state.Position, state.ActiveSpacing, state.Center)
	} else {
		trader = gridtrader.New(cfg)
	}
	actor := newPairActor(cfg.Pair, trader, executor, e, e.logger, e.seedCounter)
	e.actors[cfg.Pair] = actor
	go actor.run()
	return actor
}

// PairState returns the live runtime state of pair for persistence, or
// (nil, false) if no actor is registered for it.
func (e *Engine) PairState(pair string) (persistence.PairRuntimeState, bool) {
	e.mu.RLock()
	actor, ok := e.actors[pair]
	e.mu.RUnlock()
	if !ok {
		return persistence.PairRuntimeState{}, false
	}
	return actor.RuntimeState(), true
}

// Pairs returns the pairs currently registered with the engine.
func (e *Engine) Pairs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.actors))
	for pair := range e.actors {
		out = append(out, pair)
	}
	return out
}

// RunFeed starts pumping source into pair's actor until ctx is
// cancelled, the actor is stopped, or the feed quiesces.
func (e *Engine) RunFeed(ctx context.Context, pair string, source PriceSource) {
	e.mu.RLock()
	actor, ok := e.actors[pair]
	e.mu.RUnlock()
	if !ok {
		return
	}
	actor.pumpFeed(ctx, source)
}

// Stop halts every pair actor and waits for its event loop to drain.
func (e *Engine) Stop() {
	e.mu.Lock()
	actors := make([]*PairActor, 0, len(e.actors))
	for _, a := range e.actors {
		actors = append(actors, a)
	}
	e.mu.Unlock()

	for _, a := range actors {
		a.stopAndWait()
	}
}

// StartDay forwards to the risk controller, resetting the daily loss
// baseline at the top of each trading day.
func (e *Engine) StartDay() {
	e.risk.StartDay(e.equity())
}

// IsHalted reports whether the shared risk controller has tripped.
func (e *Engine) IsHalted() bool {
	return e.risk.IsHalted()
}

func (e *Engine) authorize(signal tradingtypes.Signal, requestingPair string) tradingtypes.AuthResult {
	states := e.traderStates()
	return e.risk.Authorize(signal, states, e.totalCapital, e.equity())
}

func (e *Engine) traderStates() []risk.TraderState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	states := make([]risk.TraderState, 0, len(e.actors))
	for _, a := range e.actors {
		pair, inventory, mark := a.Snapshot()
		states = append(states, risk.TraderState{Pair: pair, Inventory: inventory, MarkPrice: mark})
	}
	return states
}

func (e *Engine) equity() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var total float64
	for _, a := range e.actors {
		total += a.Equity()
	}
	return total
}

func (e *Engine) nextOrderID() string {
	return ids.New("ord")
}
