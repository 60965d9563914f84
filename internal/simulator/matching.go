package simulator

import (
	"math"
	"math/rand"

	"gridengine/internal/tradingerr"
	"gridengine/internal/tradingtypes"
)

// SlippageKind selects the cost model used to derive slippage from
// filled notional.
type SlippageKind int

const (
	SlippageFixed SlippageKind = iota
	SlippageSquareRoot
	SlippageLinear
	SlippageRealistic
)

// MarketImpact is the explicit market-impact component of the slippage
// model: a field rather than an implicit scalar. When Enabled, it adds
// an independent noise term scaled by NoiseStdDev to whichever base
// slippage model is active.
type MarketImpact struct {
	Enabled     bool
	NoiseStdDev float64 // fraction of notional, e.g. 0.0005
}

// SlippageModel configures how ExecuteOrder derives slippage cost from
// a fill's notional and book-walk execution price.
type SlippageModel struct {
	Kind        SlippageKind
	FixedBps    float64 // used by SlippageFixed
	Coefficient float64 // used by SlippageSquareRoot / SlippageLinear
	Impact      MarketImpact
}

const (
	MakerFeeRate = 0.0016
	TakerFeeRate = 0.0026
)

// MatchingEngine owns a set of per-pair order books and executes orders
// against them with deterministic, seeded latency and slippage.
type MatchingEngine struct {
	books    map[string]*LocalOrderBook
	slippage SlippageModel
	rng      *rand.Rand
}

// NewMatchingEngine returns an engine seeded for reproducible fills;
// the same seed, price series and order sequence always produce
// byte-identical fills.
func NewMatchingEngine(seed int64, slippage SlippageModel) *MatchingEngine {
	return &MatchingEngine{
		books:    make(map[string]*LocalOrderBook),
		slippage: slippage,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// InitializeOrderBook replaces the book for a pair atomically.
func (m *MatchingEngine) InitializeOrderBook(pair string, snapshot tradingtypes.OrderBookSnapshot) {
	book, ok := m.books[pair]
	if !ok {
		book = newOrderBook(pair)
		m.books[pair] = book
	}
	book.InitializeSnapshot(snapshot)
}

// ApplyFeedUpdate applies an incremental book delta for a pair.
func (m *MatchingEngine) ApplyFeedUpdate(pair string, update tradingtypes.FeedUpdate) error {
	book, ok := m.books[pair]
	if !ok {
		return tradingerr.New(tradingerr.InvalidInput, "unknown pair: "+pair)
	}
	book.ApplyUpdate(update)
	return nil
}

func (m *MatchingEngine) drawLatencyMs() float64 {
	return 50 + m.rng.Float64()*150 // U[50,200]
}

// ExecuteOrder applies the order against the pair's book, consuming
// liquidity and returning a Fill. Market orders walk the full opposite
// side; limit orders stop consuming once price exceeds the limit.
func (m *MatchingEngine) ExecuteOrder(order tradingtypes.Order) (tradingtypes.Fill, error) {
	if order.Quantity <= 0 || math.IsNaN(order.Quantity) {
		return tradingtypes.Fill{}, tradingerr.New(tradingerr.InvalidInput, "order quantity must be positive")
	}
	if order.Type == tradingtypes.Limit && (order.LimitPrice <= 0 || math.IsNaN(order.LimitPrice)) {
		return tradingtypes.Fill{}, tradingerr.New(tradingerr.InvalidInput, "limit order requires a positive price")
	}

	book, ok := m.books[order.Pair]
	if !ok {
		return tradingtypes.Fill{}, tradingerr.New(tradingerr.InvalidInput, "unknown pair: "+order.Pair)
	}

	latency := m.drawLatencyMs()

	var opposite *[]tradingtypes.OrderBookLevel
	var limitOK func(price float64) bool

	if order.Side == tradingtypes.Buy {
		opposite = &book.asks
		if order.Type == tradingtypes.Limit {
			limitOK = func(p float64) bool { return p <= order.LimitPrice }
		}
	} else {
		opposite = &book.bids
		if order.Type == tradingtypes.Limit {
			limitOK = func(p float64) bool { return p >= order.LimitPrice }
		}
	}

	if len(*opposite) == 0 {
		return tradingtypes.Fill{}, errEmptyBook
	}

	mid, haveMid := book.MidPrice()

	newLevels, res := consume(*opposite, order.Quantity, limitOK)
	*opposite = newLevels

	remaining := order.Quantity - res.filledQty
	if res.filledQty == 0 {
		return tradingtypes.Fill{
			OrderID:           order.ID,
			FilledQuantity:    0,
			RemainingQuantity: order.Quantity,
		}, nil
	}

	fee := TakerFeeRate * res.notional
	slip := m.computeSlippage(res.notional, res.vwap, mid, haveMid, res.filledQty)

	return tradingtypes.Fill{
		OrderID:           order.ID,
		FilledQuantity:    res.filledQty,
		AveragePrice:      res.vwap,
		Fee:               fee,
		Slippage:          slip,
		LatencyMs:         latency,
		RemainingQuantity: remaining,
		IsMaker:           false, // ExecuteOrder always represents the crossing (aggressive) side
	}, nil
}

func (m *MatchingEngine) computeSlippage(notional, vwap, mid float64, haveMid bool, filledQty float64) float64 {
	var base float64
	switch m.slippage.Kind {
	case SlippageFixed:
		base = notional * m.slippage.FixedBps / 10000
	case SlippageSquareRoot:
		base = m.slippage.Coefficient * math.Sqrt(notional)
	case SlippageLinear:
		base = m.slippage.Coefficient * notional
	case SlippageRealistic:
		if haveMid {
			base = math.Abs(vwap-mid) * filledQty
		}
	}
	if m.slippage.Impact.Enabled {
		base += math.Abs(m.rng.NormFloat64()) * m.slippage.Impact.NoiseStdDev * notional
	}
	return base
}

// Book exposes the underlying order book for a pair, for reporting and
// tests. It returns nil if the pair has no book.
func (m *MatchingEngine) Book(pair string) *LocalOrderBook {
	return m.books[pair]
}
