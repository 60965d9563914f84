// Package tradingtypes holds the value types shared across the engine's
// components: price points, grid configuration, signals, orders, fills
// and position state. None of these types own behavior beyond simple
// invariant helpers; the state machines that mutate them live in
// internal/gridtrader, internal/simulator and internal/risk.
package tradingtypes

import "time"

// MarketState is the Market State Analyzer's classification of recent
// price action.
type MarketState int

const (
	Ranging MarketState = iota
	TrendingUp
	TrendingDown
)

func (s MarketState) String() string {
	switch s {
	case TrendingUp:
		return "TrendingUp"
	case TrendingDown:
		return "TrendingDown"
	default:
		return "Ranging"
	}
}

// Side is the direction of an order or grid level.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// OrderType enumerates the two order types this engine supports.
// Order types beyond market and limit are a non-goal.
type OrderType int

const (
	Market OrderType = iota
	Limit
)

func (t OrderType) String() string {
	if t == Market {
		return "Market"
	}
	return "Limit"
}

// SignalKind tags the variant of a Signal.
type SignalKind int

const (
	SignalNone SignalKind = iota
	SignalBuy
	SignalSell
	SignalHalt
)

// Signal is the tagged-variant {Buy(level_price), Sell(level_price), None}
// emitted by the Grid Trader, extended with a Halt variant for the
// downward emergency-exit path (see gridtrader package).
type Signal struct {
	Kind     SignalKind
	Price    float64 // level price for Buy/Sell; 0 for None/Halt
	Quantity float64 // mandatory fill quantity; 0 means the consumer applies its own sizing
}

func NoSignal() Signal               { return Signal{Kind: SignalNone} }
func BuySignal(price float64) Signal { return Signal{Kind: SignalBuy, Price: price} }
func SellSignal(price float64) Signal { return Signal{Kind: SignalSell, Price: price} }
func HaltSignal() Signal { return Signal{Kind: SignalHalt} }

// LiquidateSignal is a Sell signal that must be filled for exactly
// quantity, overriding whatever fractional sizing a consumer would
// otherwise apply. Used by the upward emergency-exit path, which must
// drain all inventory rather than sell a fixed fraction of it.
func LiquidateSignal(price, quantity float64) Signal {
	return Signal{Kind: SignalSell, Price: price, Quantity: quantity}
}

func (s Signal) IsNone() bool { return s.Kind == SignalNone }

// PricePoint is one tick from the price feed or a historical series.
type PricePoint struct {
	Timestamp time.Time
	Price     float64
	Volume    float64 // optional, 0 if unknown
}

// GridConfig is the immutable-after-construction configuration of a
// single pair's Grid Trader.
type GridConfig struct {
	Pair               string
	BasePrice          float64 // P0 > 0
	LevelCount         int     // N in [1,50]
	BaseSpacing        float64 // s in (0, 0.5], fraction of P0
	Capital            float64 // C0 > 0
	MaxPositionFraction float64 // f_max in (0,1], default 0.30
	EmergencyExitThreshold float64 // e in (0,1], default 0.20
}

// DefaultMaxPositionFraction and DefaultEmergencyExitThreshold are the
// documented defaults.
const (
	DefaultMaxPositionFraction    = 0.30
	DefaultEmergencyExitThreshold = 0.20
	AntiNoiseThreshold            = 0.001 // 0.1% minimum relative price delta
	TrendThresholdDefault         = 0.005 // tau
	RecentSignalWindow            = 4
)

// GridLevel is one derived buy or sell rung of the ladder.
type GridLevel struct {
	Price     float64
	Side      Side
	FiredSeq  int64 // sequence number of the last time this level fired a signal, 0 if never
}

// PositionState is the Grid Trader's mutable per-pair position.
type PositionState struct {
	Cash          float64
	Inventory     float64
	AvgEntryPrice float64
	RealizedPnL   float64
	TradeCount    int64
	LastPrice     float64
}

// Order is a request to the Market Simulator or exchange adapter.
type Order struct {
	ID              string
	Pair            string
	Side            Side
	Type            OrderType
	LimitPrice      float64 // only meaningful when Type == Limit
	Quantity        float64
	SubmitTimestamp time.Time
}

// Fill is the result of executing an Order.
type Fill struct {
	OrderID           string
	FilledQuantity    float64
	AveragePrice      float64
	Fee               float64
	Slippage          float64
	LatencyMs         float64
	RemainingQuantity float64
	IsMaker           bool
}

// OrderBookLevel is one price/size rung of a book side.
type OrderBookLevel struct {
	Price float64
	Size  float64
}

// OrderBookSnapshot is the two-sided, price-ordered view of a pair's book.
type OrderBookSnapshot struct {
	Pair      string
	Bids      []OrderBookLevel // descending by price
	Asks      []OrderBookLevel // ascending by price
	Timestamp time.Time
}

// FeedUpdateSide distinguishes which side of the book an incremental
// update applies to.
type FeedUpdateSide int

const (
	FeedBid FeedUpdateSide = iota
	FeedAsk
)

// FeedUpdate is one incremental order-book delta. A NewSize of zero
// removes the level.
type FeedUpdate struct {
	Side    FeedUpdateSide
	Price   float64
	NewSize float64
}

// TraderPhase is the Grid Trader's state-machine phase.
type TraderPhase int

const (
	PhaseIdle TraderPhase = iota
	PhaseActive
	PhaseLiquidating
	PhaseHalted
)

func (p TraderPhase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseActive:
		return "Active"
	case PhaseLiquidating:
		return "Liquidating"
	case PhaseHalted:
		return "Halted"
	default:
		return "Unknown"
	}
}

// AuthDecision is the Portfolio Risk Controller's tagged-variant result.
type AuthDecision int

const (
	Allow AuthDecision = iota
	Deny
	Halt
)

func (d AuthDecision) String() string {
	switch d {
	case Allow:
		return "Allow"
	case Deny:
		return "Deny"
	case Halt:
		return "Halt"
	default:
		return "Unknown"
	}
}

// AuthResult is the full response from authorize(), carrying a reason
// when the decision is Deny or Halt.
type AuthResult struct {
	Decision AuthDecision
	Reason   string
}
