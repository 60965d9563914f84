package exchange

import (
	"context"
	"time"

	"gridengine/internal/simulator"
	"gridengine/internal/tradingerr"
	"gridengine/internal/tradingtypes"
)

// PaperExchange adapts the in-process Market Simulator to the Exchange
// interface for dry-run/paper trading: orders execute against a local
// order book instead of a real venue, with the same slippage, fee and
// latency model the Backtest Driver uses.
type PaperExchange struct {
	pair   string
	engine *simulator.MatchingEngine
}

// NewPaperExchange wraps an already-configured matching engine for one
// pair. The caller is responsible for keeping the engine's book
// current via ApplyFeedUpdate/InitializeOrderBook.
func NewPaperExchange(pair string, engine *simulator.MatchingEngine) *PaperExchange {
	return &PaperExchange{pair: pair, engine: engine}
}

func (p *PaperExchange) GetPrice(pair string) (float64, error) {
	book := p.engine.Book(pair)
	if book == nil {
		return 0, tradingerr.New(tradingerr.InvalidInput, "no book initialized for pair: "+pair)
	}
	mid, ok := book.MidPrice()
	if !ok {
		return 0, tradingerr.New(tradingerr.EmptyBook, "book has no two-sided liquidity")
	}
	return mid, nil
}

func (p *PaperExchange) GetOrderBookSnapshot(pair string) (tradingtypes.OrderBookSnapshot, error) {
	book := p.engine.Book(pair)
	if book == nil {
		return tradingtypes.OrderBookSnapshot{}, tradingerr.New(tradingerr.InvalidInput, "no book initialized for pair: "+pair)
	}
	bid, _ := book.BestBid()
	ask, _ := book.BestAsk()
	return tradingtypes.OrderBookSnapshot{
		Pair:      pair,
		Bids:      []tradingtypes.OrderBookLevel{bid},
		Asks:      []tradingtypes.OrderBookLevel{ask},
		Timestamp: time.Now(),
	}, nil
}

func (p *PaperExchange) ExecuteOrder(order tradingtypes.Order) (tradingtypes.Fill, error) {
	return p.engine.ExecuteOrder(order)
}

func (p *PaperExchange) Close() error { return nil }

// PriceSeriesFeed replays a pre-loaded price series as a PriceSource,
// for the offline `--simulate` mode, driving a PaperExchange's book from
// downloaded klines instead of a live feed. Each call to NextPrice
// also pushes a synthetic one-level book into engine, matching the
// Backtest Driver's synthetic-spread approach.
type PriceSeriesFeed struct {
	pair          string
	prices        []tradingtypes.PricePoint
	idx           int
	engine        *simulator.MatchingEngine
	spreadFraction float64
	pace          time.Duration // 0 replays as fast as possible
}

// NewPriceSeriesFeed returns a feed that seeds engine's book from
// prices as it replays them. pace, if nonzero, sleeps between ticks to
// simulate real-time arrival.
func NewPriceSeriesFeed(pair string, prices []tradingtypes.PricePoint, engine *simulator.MatchingEngine, spreadFraction float64, pace time.Duration) *PriceSeriesFeed {
	if spreadFraction == 0 {
		spreadFraction = 0.0002
	}
	return &PriceSeriesFeed{pair: pair, prices: prices, engine: engine, spreadFraction: spreadFraction, pace: pace}
}

func (f *PriceSeriesFeed) NextPrice(ctx context.Context) (float64, time.Time, error) {
	if f.idx >= len(f.prices) {
		return 0, time.Time{}, tradingerr.New(tradingerr.InsufficientData, "price series exhausted")
	}
	pt := f.prices[f.idx]
	f.idx++

	half := f.spreadFraction / 2
	f.engine.InitializeOrderBook(f.pair, tradingtypes.OrderBookSnapshot{
		Pair: f.pair,
		Bids: []tradingtypes.OrderBookLevel{{Price: pt.Price * (1 - half), Size: 1e9}},
		Asks: []tradingtypes.OrderBookLevel{{Price: pt.Price * (1 + half), Size: 1e9}},
	})

	if f.pace > 0 {
		select {
		case <-time.After(f.pace):
		case <-ctx.Done():
			return 0, time.Time{}, ctx.Err()
		}
	}
	return pt.Price, pt.Timestamp, nil
}
