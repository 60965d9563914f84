package simulator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridengine/internal/tradingerr"
	"gridengine/internal/tradingtypes"
)

func seedBook(m *MatchingEngine, pair string) {
	m.InitializeOrderBook(pair, tradingtypes.OrderBookSnapshot{
		Pair: pair,
		Bids: []tradingtypes.OrderBookLevel{{Price: 99.5, Size: 1}, {Price: 99, Size: 2}},
		Asks: []tradingtypes.OrderBookLevel{{Price: 100.5, Size: 1}, {Price: 101, Size: 2}},
	})
}

func TestExecuteOrderRejectsNonPositiveQuantity(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	seedBook(m, "BTCUSDT")
	_, err := m.ExecuteOrder(tradingtypes.Order{Pair: "BTCUSDT", Side: tradingtypes.Buy, Type: tradingtypes.Market, Quantity: 0})
	require.Error(t, err)
	var te *tradingerr.TradingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tradingerr.InvalidInput, te.Kind)
}

func TestExecuteOrderRejectsUnknownPair(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	_, err := m.ExecuteOrder(tradingtypes.Order{Pair: "ETHUSDT", Side: tradingtypes.Buy, Type: tradingtypes.Market, Quantity: 1})
	require.Error(t, err)
	var te *tradingerr.TradingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tradingerr.InvalidInput, te.Kind)
}

func TestExecuteOrderReturnsEmptyBookWhenNoOpposingLiquidity(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	m.InitializeOrderBook("BTCUSDT", tradingtypes.OrderBookSnapshot{Pair: "BTCUSDT"})
	_, err := m.ExecuteOrder(tradingtypes.Order{Pair: "BTCUSDT", Side: tradingtypes.Buy, Type: tradingtypes.Market, Quantity: 1})
	require.Error(t, err)
	var te *tradingerr.TradingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tradingerr.EmptyBook, te.Kind)
}

func TestMarketBuyWalksAsksInPriceOrder(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	seedBook(m, "BTCUSDT")

	fill, err := m.ExecuteOrder(tradingtypes.Order{Pair: "BTCUSDT", Side: tradingtypes.Buy, Type: tradingtypes.Market, Quantity: 1.5})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, fill.FilledQuantity, 1e-9)
	// 1 unit at 100.5, 0.5 units at 101 -> vwap = (100.5 + 50.5) / 1.5
	assert.InDelta(t, (100.5+0.5*101)/1.5, fill.AveragePrice, 1e-9)
	assert.False(t, fill.IsMaker)
	assert.Zero(t, fill.RemainingQuantity)
}

func TestMarketOrderPartiallyFillsWhenBookIsThin(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	seedBook(m, "BTCUSDT")

	fill, err := m.ExecuteOrder(tradingtypes.Order{Pair: "BTCUSDT", Side: tradingtypes.Buy, Type: tradingtypes.Market, Quantity: 10})
	require.NoError(t, err)
	assert.InDelta(t, 3, fill.FilledQuantity, 1e-9) // total ask liquidity is 1+2
	assert.InDelta(t, 7, fill.RemainingQuantity, 1e-9)
}

func TestLimitOrderStopsAtLimitPrice(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	seedBook(m, "BTCUSDT")

	fill, err := m.ExecuteOrder(tradingtypes.Order{Pair: "BTCUSDT", Side: tradingtypes.Buy, Type: tradingtypes.Limit, LimitPrice: 100.5, Quantity: 5})
	require.NoError(t, err)
	assert.InDelta(t, 1, fill.FilledQuantity, 1e-9, "only the 100.5 level satisfies the limit price")
	assert.InDelta(t, 4, fill.RemainingQuantity, 1e-9)
}

func TestLimitOrderRejectsNonPositivePrice(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	seedBook(m, "BTCUSDT")
	_, err := m.ExecuteOrder(tradingtypes.Order{Pair: "BTCUSDT", Side: tradingtypes.Buy, Type: tradingtypes.Limit, LimitPrice: 0, Quantity: 1})
	require.Error(t, err)
	var te *tradingerr.TradingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tradingerr.InvalidInput, te.Kind)
}

func TestExecuteOrderConsumesBookState(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	seedBook(m, "BTCUSDT")

	_, err := m.ExecuteOrder(tradingtypes.Order{Pair: "BTCUSDT", Side: tradingtypes.Buy, Type: tradingtypes.Market, Quantity: 1})
	require.NoError(t, err)

	book := m.Book("BTCUSDT")
	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.InDelta(t, 101, ask.Price, 1e-9, "the fully consumed 100.5 level must be removed")
}

func TestSellConsumesBidsDescending(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	seedBook(m, "BTCUSDT")

	fill, err := m.ExecuteOrder(tradingtypes.Order{Pair: "BTCUSDT", Side: tradingtypes.Sell, Type: tradingtypes.Market, Quantity: 2})
	require.NoError(t, err)
	assert.InDelta(t, 2, fill.FilledQuantity, 1e-9)
	// 1 unit at 99.5, 1 unit at 99 -> vwap = 99.25
	assert.InDelta(t, 99.25, fill.AveragePrice, 1e-9)
}

func TestFixedSlippageIsProportionalToNotional(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{Kind: SlippageFixed, FixedBps: 10})
	seedBook(m, "BTCUSDT")

	fill, err := m.ExecuteOrder(tradingtypes.Order{Pair: "BTCUSDT", Side: tradingtypes.Buy, Type: tradingtypes.Market, Quantity: 1})
	require.NoError(t, err)
	expectedSlip := 100.5 * 10 / 10000
	assert.InDelta(t, expectedSlip, fill.Slippage, 1e-9)
}

func TestTakerFeeIsChargedOnFilledNotional(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	seedBook(m, "BTCUSDT")

	fill, err := m.ExecuteOrder(tradingtypes.Order{Pair: "BTCUSDT", Side: tradingtypes.Buy, Type: tradingtypes.Market, Quantity: 1})
	require.NoError(t, err)
	assert.InDelta(t, 100.5*TakerFeeRate, fill.Fee, 1e-9)
}

func TestDeterministicFillsForSameSeedAndInputs(t *testing.T) {
	build := func() tradingtypes.Fill {
		m := NewMatchingEngine(42, SlippageModel{Kind: SlippageRealistic, Impact: MarketImpact{Enabled: true, NoiseStdDev: 0.0005}})
		seedBook(m, "BTCUSDT")
		fill, err := m.ExecuteOrder(tradingtypes.Order{Pair: "BTCUSDT", Side: tradingtypes.Buy, Type: tradingtypes.Market, Quantity: 1.5})
		require.NoError(t, err)
		return fill
	}
	a := build()
	b := build()
	assert.Equal(t, a, b, "identical seed, book and order must produce byte-identical fills")
}

func TestApplyFeedUpdateOnUnknownPairFails(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	err := m.ApplyFeedUpdate("BTCUSDT", tradingtypes.FeedUpdate{Side: tradingtypes.FeedBid, Price: 100, NewSize: 1})
	require.Error(t, err)
}

func TestApplyFeedUpdateInsertsAndRemovesLevels(t *testing.T) {
	m := NewMatchingEngine(1, SlippageModel{})
	seedBook(m, "BTCUSDT")

	require.NoError(t, m.ApplyFeedUpdate("BTCUSDT", tradingtypes.FeedUpdate{Side: tradingtypes.FeedAsk, Price: 100.2, NewSize: 3}))
	ask, ok := m.Book("BTCUSDT").BestAsk()
	require.True(t, ok)
	assert.InDelta(t, 100.2, ask.Price, 1e-9, "a new best ask must be inserted price-ordered")

	require.NoError(t, m.ApplyFeedUpdate("BTCUSDT", tradingtypes.FeedUpdate{Side: tradingtypes.FeedAsk, Price: 100.2, NewSize: 0}))
	ask, ok = m.Book("BTCUSDT").BestAsk()
	require.True(t, ok)
	assert.InDelta(t, 100.5, ask.Price, 1e-9, "a zero-size update must remove the level")
}
