// Package simulator implements the Market Simulator: a local,
// price-time-priority order book plus a matching engine that produces
// Fills with deterministic seeded latency, configurable slippage, and
// maker/taker fees.
package simulator

import (
	"sort"

	"gridengine/internal/tradingerr"
	"gridengine/internal/tradingtypes"
)

// LocalOrderBook holds one pair's two-sided, price-sorted book. Bids are
// kept descending (best bid first); asks ascending (best ask first).
// It is owned exclusively by a MatchingEngine, which serializes all
// mutations.
type LocalOrderBook struct {
	pair string
	bids []tradingtypes.OrderBookLevel
	asks []tradingtypes.OrderBookLevel
}

func newOrderBook(pair string) *LocalOrderBook {
	return &LocalOrderBook{pair: pair}
}

// InitializeSnapshot replaces the book atomically.
func (b *LocalOrderBook) InitializeSnapshot(snapshot tradingtypes.OrderBookSnapshot) {
	b.bids = append([]tradingtypes.OrderBookLevel(nil), snapshot.Bids...)
	b.asks = append([]tradingtypes.OrderBookLevel(nil), snapshot.Asks...)
	sort.Slice(b.bids, func(i, j int) bool { return b.bids[i].Price > b.bids[j].Price })
	sort.Slice(b.asks, func(i, j int) bool { return b.asks[i].Price < b.asks[j].Price })
}

// ApplyUpdate applies one incremental bid/ask delta, removing the level
// when NewSize is zero.
func (b *LocalOrderBook) ApplyUpdate(update tradingtypes.FeedUpdate) {
	if update.Side == tradingtypes.FeedBid {
		b.bids = upsertLevel(b.bids, update.Price, update.NewSize, true)
	} else {
		b.asks = upsertLevel(b.asks, update.Price, update.NewSize, false)
	}
}

func upsertLevel(levels []tradingtypes.OrderBookLevel, price, size float64, descending bool) []tradingtypes.OrderBookLevel {
	less := func(i int) bool {
		if descending {
			return levels[i].Price < price
		}
		return levels[i].Price > price
	}
	idx := sort.Search(len(levels), func(i int) bool {
		if levels[i].Price == price {
			return true
		}
		return less(i)
	})

	if idx < len(levels) && levels[idx].Price == price {
		if size == 0 {
			return append(levels[:idx], levels[idx+1:]...)
		}
		levels[idx].Size = size
		return levels
	}
	if size == 0 {
		return levels
	}
	levels = append(levels, tradingtypes.OrderBookLevel{})
	copy(levels[idx+1:], levels[idx:])
	levels[idx] = tradingtypes.OrderBookLevel{Price: price, Size: size}
	return levels
}

// BestBid and BestAsk return the top-of-book level, if any.
func (b *LocalOrderBook) BestBid() (tradingtypes.OrderBookLevel, bool) {
	if len(b.bids) == 0 {
		return tradingtypes.OrderBookLevel{}, false
	}
	return b.bids[0], true
}

func (b *LocalOrderBook) BestAsk() (tradingtypes.OrderBookLevel, bool) {
	if len(b.asks) == 0 {
		return tradingtypes.OrderBookLevel{}, false
	}
	return b.asks[0], true
}

// MidPrice returns (bestBid+bestAsk)/2, or false if either side is empty.
func (b *LocalOrderBook) MidPrice() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

// walkResult is the outcome of consuming book levels to fill a quantity.
type walkResult struct {
	filledQty  float64
	notional   float64
	vwap       float64
	limitPrice float64 // the last touched level's price, used for limit cutoff checks
	touched    int      // number of levels touched (for mutation)
}

// walk consumes levels (ascending for asks, as-ordered for bids) up to
// qty, optionally stopping once the level price exceeds limitPrice
// (limitOK == nil means no limit, i.e. a market order).
func walk(levels []tradingtypes.OrderBookLevel, qty float64, limitOK func(price float64) bool) walkResult {
	var res walkResult
	remaining := qty
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		if limitOK != nil && !limitOK(lvl.Price) {
			break
		}
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		res.notional += take * lvl.Price
		res.filledQty += take
		res.limitPrice = lvl.Price
		res.touched++
		remaining -= take
	}
	if res.filledQty > 0 {
		res.vwap = res.notional / res.filledQty
	}
	return res
}

// consume mutates levels by removing res.touched-1 fully-consumed levels
// and reducing the size of the partially consumed (or fully consumed)
// final touched level.
func consume(levels []tradingtypes.OrderBookLevel, qty float64, limitOK func(price float64) bool) ([]tradingtypes.OrderBookLevel, walkResult) {
	res := walk(levels, qty, limitOK)
	remaining := res.filledQty
	i := 0
	for i < len(levels) && i < res.touched {
		take := levels[i].Size
		if take > remaining {
			take = remaining
		}
		levels[i].Size -= take
		remaining -= take
		if levels[i].Size <= 0 {
			i++
		} else {
			break
		}
	}
	return levels[i:], res
}

// VWAPBuy and VWAPSell report the volume-weighted average price to fill
// qty against asks/bids respectively, without mutating the book. They
// return ok=false if the book cannot satisfy the quantity at all (i.e.
// has zero matching liquidity).
func (b *LocalOrderBook) VWAPBuy(qty float64) (float64, float64, bool) {
	res := walk(b.asks, qty, nil)
	return res.vwap, res.filledQty, res.filledQty > 0
}

func (b *LocalOrderBook) VWAPSell(qty float64) (float64, float64, bool) {
	res := walk(b.bids, qty, nil)
	return res.vwap, res.filledQty, res.filledQty > 0
}

var errEmptyBook = tradingerr.New(tradingerr.EmptyBook, "no opposing liquidity")
