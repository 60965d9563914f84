package liveengine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"gridengine/internal/gridtrader"
	"gridengine/internal/persistence"
	"gridengine/internal/tradingerr"
	"gridengine/internal/tradingtypes"
)

// OrderExecutor is anything that can execute an order and report a
// Fill: a simulator.MatchingEngine in paper mode, or a live exchange
// adapter. Both satisfy this identical signature.
type OrderExecutor interface {
	ExecuteOrder(order tradingtypes.Order) (tradingtypes.Fill, error)
}

// PriceSource yields the next price tick for a pair, blocking until one
// is available or ctx is cancelled.
type PriceSource interface {
	NextPrice(ctx context.Context) (price float64, ts time.Time, err error)
}

// FeedEvent is a normalized price tick handed to a PairActor's event
// loop.
type FeedEvent struct {
	Price     float64
	Timestamp time.Time
}

// pairSnapshot is a point-in-time, immutable copy of a GridTrader's
// state, published by the actor goroutine that owns it and read by
// any other goroutine (the engine's cross-pair risk/equity aggregation,
// persistence). Copying it out under stateMu, rather than reaching
// back into the trader itself, keeps GridTrader's single-writer
// discipline intact.
type pairSnapshot struct {
	phase         tradingtypes.TraderPhase
	position      tradingtypes.PositionState
	activeSpacing float64
	center        float64
}

// PairActor owns exactly one Grid Trader and processes its feed
// serially from a single goroutine: one single-writer event loop per
// pair rather than one shared across the whole engine.
type PairActor struct {
	pair     string
	trader   *gridtrader.GridTrader
	executor OrderExecutor
	engine   *Engine
	logger   *zap.Logger

	events chan FeedEvent
	stop   chan struct{}
	done   chan struct{}

	rng                     *rand.Rand
	consecutiveFeedFailures int
	quiesced                bool

	stateMu  sync.Mutex
	snapshot pairSnapshot
}

func newPairActor(pair string, trader *gridtrader.GridTrader, executor OrderExecutor, engine *Engine, logger *zap.Logger, seed int64) *PairActor {
	a := &PairActor{
		pair:     pair,
		trader:   trader,
		executor: executor,
		engine:   engine,
		logger:   logger,
		events:   make(chan FeedEvent, 256),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		rng:      rand.New(rand.NewSource(seed)),
	}
	if trader != nil {
		a.publishState() // seed the snapshot before the event loop starts
	}
	return a
}

// publishState copies the trader's current state into snapshot under
// stateMu. Only the actor's own event-loop goroutine ever calls this,
// so the read of a.trader below never races with a.trader's own
// single-writer mutations.
func (a *PairActor) publishState() {
	phase, position, activeSpacing, center := a.trader.FullState()
	a.stateMu.Lock()
	a.snapshot = pairSnapshot{phase: phase, position: position, activeSpacing: activeSpacing, center: center}
	a.stateMu.Unlock()
}

// Snapshot reports the actor's current risk-relevant state, safe to
// call from any goroutine.
func (a *PairActor) Snapshot() (pair string, inventory, markPrice float64) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.pair, a.snapshot.position.Inventory, a.snapshot.position.LastPrice
}

// Equity reports this pair's contribution to portfolio equity, safe
// to call from any goroutine.
func (a *PairActor) Equity() float64 {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.snapshot.position.Cash + a.snapshot.position.Inventory*a.snapshot.position.LastPrice
}

// RuntimeState snapshots the actor's Grid Trader for persistence, safe
// to call from any goroutine.
func (a *PairActor) RuntimeState() persistence.PairRuntimeState {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return persistence.PairRuntimeState{
		Pair:          a.pair,
		Phase:         a.snapshot.phase,
		Position:      a.snapshot.position,
		ActiveSpacing: a.snapshot.activeSpacing,
		Center:        a.snapshot.center,
	}
}

func (a *PairActor) run() {
	defer close(a.done)
	for {
		select {
		case <-a.stop:
			return
		case ev := <-a.events:
			a.handle(ev)
		}
	}
}

func (a *PairActor) stopAndWait() {
	close(a.stop)
	<-a.done
}

func (a *PairActor) handle(ev FeedEvent) {
	defer a.publishState() // every exit path below may have mutated the trader
	sig, err := a.trader.UpdateWithPrice(ev.Price, ev.Timestamp)
	if err != nil {
		a.logger.Warn("invalid price tick ignored", zap.String("pair", a.pair), zap.Error(err))
		return
	}
	if sig.IsNone() || sig.Kind == tradingtypes.SignalHalt {
		return
	}

	result := a.engine.authorize(sig, a.pair)
	switch result.Decision {
	case tradingtypes.Deny:
		a.logger.Info("signal denied by risk controller", zap.String("pair", a.pair), zap.String("reason", result.Reason))
		return
	case tradingtypes.Halt:
		a.logger.Error("trading halted by risk controller", zap.String("pair", a.pair), zap.String("reason", result.Reason))
		return
	}

	pos := a.trader.GetPositionSummary()
	order := tradingtypes.Order{
		ID:              a.engine.nextOrderID(),
		Pair:            a.pair,
		Type:            tradingtypes.Market,
		SubmitTimestamp: ev.Timestamp,
	}
	if sig.Kind == tradingtypes.SignalBuy {
		order.Side = tradingtypes.Buy
		order.Quantity = a.trader.TradeSize() / ev.Price
	} else {
		order.Side = tradingtypes.Sell
		if sig.Quantity > 0 {
			order.Quantity = sig.Quantity // emergency liquidation: drain inventory, not the fixed trade size
		} else {
			order.Quantity = a.trader.TradeSize() / ev.Price
			if order.Quantity > pos.Inventory {
				order.Quantity = pos.Inventory
			}
		}
	}
	if order.Quantity <= 0 {
		return
	}

	fill, err := a.executeWithRetry(order)
	if err != nil {
		a.logger.Error("order execution failed", zap.String("pair", a.pair), zap.Error(err))
		return
	}
	if fill.FilledQuantity == 0 {
		return
	}
	if err := a.trader.ApplyFill(order.Side, fill.AveragePrice, fill.FilledQuantity, fill.Fee); err != nil {
		a.logger.Error("fill rejected by trader", zap.String("pair", a.pair), zap.Error(err))
	}
}

// executeWithRetry retries a retriable exchange error up to
// exchangeRetryMax times with a short exponential backoff; a fatal
// error returns immediately.
func (a *PairActor) executeWithRetry(order tradingtypes.Order) (tradingtypes.Fill, error) {
	backoff := exchangeRetryBase
	var lastErr error
	for attempt := 0; attempt <= exchangeRetryMax; attempt++ {
		fill, err := a.executor.ExecuteOrder(order)
		if err == nil {
			return fill, nil
		}
		lastErr = err
		if !tradingerr.Retriable(err) {
			return tradingtypes.Fill{}, err
		}
		if attempt == exchangeRetryMax {
			break
		}
		time.Sleep(jitter(backoff, a.rng))
		backoff = nextBackoff(backoff, exchangeRetryCap)
	}
	return tradingtypes.Fill{}, lastErr
}

// pumpFeed pulls prices from source and dispatches them to the actor's
// event loop, applying the feed retry/backoff/quiesce policy on error.
func (a *PairActor) pumpFeed(ctx context.Context, source PriceSource) {
	backoff := feedBackoffBase
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		default:
		}

		price, ts, err := source.NextPrice(ctx)
		if err != nil {
			a.consecutiveFeedFailures++
			if a.consecutiveFeedFailures >= feedQuiesceThreshold {
				a.quiesced = true
				a.logger.Error("feed quiesced after repeated failures", zap.String("pair", a.pair), zap.Int("failures", a.consecutiveFeedFailures))
				return
			}
			wait := jitter(backoff, a.rng)
			a.logger.Warn("feed error, backing off", zap.String("pair", a.pair), zap.Duration("wait", wait), zap.Error(err))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			case <-a.stop:
				return
			}
			backoff = nextBackoff(backoff, feedBackoffCap)
			continue
		}

		a.consecutiveFeedFailures = 0
		backoff = feedBackoffBase
		select {
		case a.events <- FeedEvent{Price: price, Timestamp: ts}:
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		}
	}
}

// Quiesced reports whether the feed pump gave up after repeated
// failures.
func (a *PairActor) Quiesced() bool {
	return a.quiesced
}
