package gridtrader

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridengine/internal/tradingerr"
	"gridengine/internal/tradingtypes"
)

func testConfig() tradingtypes.GridConfig {
	return tradingtypes.GridConfig{
		Pair:        "BTCUSDT",
		BasePrice:   100,
		LevelCount:  5,
		BaseSpacing: 0.01,
		Capital:     10000,
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionFraction = 0
	cfg.EmergencyExitThreshold = 0
	g := New(cfg)

	assert.Equal(t, tradingtypes.DefaultMaxPositionFraction, g.cfg.MaxPositionFraction)
	assert.Equal(t, tradingtypes.DefaultEmergencyExitThreshold, g.cfg.EmergencyExitThreshold)
	assert.Equal(t, tradingtypes.PhaseIdle, g.Phase())
	assert.Equal(t, cfg.Capital, g.GetPositionSummary().Cash)
}

func TestUpdateWithPriceRejectsInvalidInput(t *testing.T) {
	g := New(testConfig())
	before := g.GetPositionSummary()

	for _, price := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		sig, err := g.UpdateWithPrice(price, time.Now())
		require.Error(t, err)
		assert.True(t, sig.IsNone())
		var te *tradingerr.TradingError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, tradingerr.InvalidInput, te.Kind)
	}
	assert.Equal(t, before, g.GetPositionSummary(), "state must be unchanged on invalid input")
}

func TestFirstPriceInitializesWithoutSignal(t *testing.T) {
	g := New(testConfig())
	sig, err := g.UpdateWithPrice(100, time.Now())
	require.NoError(t, err)
	assert.True(t, sig.IsNone())
	assert.Equal(t, tradingtypes.PhaseActive, g.Phase())
	assert.NotZero(t, g.ActiveSpacing())
	assert.Len(t, g.BuyLevels(), 5)
	assert.Len(t, g.SellLevels(), 5)
}

func TestAntiNoiseThresholdSuppressesSignal(t *testing.T) {
	g := New(testConfig())
	now := time.Now()
	_, err := g.UpdateWithPrice(100, now)
	require.NoError(t, err)

	// A move smaller than the anti-noise threshold must not fire,
	// even if it technically crosses a level boundary.
	tiny := 100 * (1 + tradingtypes.AntiNoiseThreshold/2)
	sig, err := g.UpdateWithPrice(tiny, now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, sig.IsNone())
}

func TestBuySignalFiresOnDownwardCross(t *testing.T) {
	g := New(testConfig())
	now := time.Now()
	_, err := g.UpdateWithPrice(100, now)
	require.NoError(t, err)

	buyLevel := g.BuyLevels()[0].Price
	sig, err := g.UpdateWithPrice(buyLevel-0.01, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, tradingtypes.SignalBuy, sig.Kind)
	assert.InDelta(t, buyLevel, sig.Price, 1e-9)
}

func TestSameLevelDoesNotFireTwiceInARow(t *testing.T) {
	g := New(testConfig())
	now := time.Now()
	_, err := g.UpdateWithPrice(100, now)
	require.NoError(t, err)

	buyLevel := g.BuyLevels()[0].Price
	sig, err := g.UpdateWithPrice(buyLevel-0.01, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, tradingtypes.SignalBuy, sig.Kind)

	// Oscillate back above and below the same level; duplicate
	// suppression must keep it from firing again.
	_, err = g.UpdateWithPrice(100, now.Add(2*time.Minute))
	require.NoError(t, err)
	sig, err = g.UpdateWithPrice(buyLevel-0.01, now.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, sig.IsNone())
}

func TestSellSignalRequiresInventory(t *testing.T) {
	g := New(testConfig())
	now := time.Now()
	_, err := g.UpdateWithPrice(100, now)
	require.NoError(t, err)

	sellLevel := g.SellLevels()[0].Price
	sig, err := g.UpdateWithPrice(sellLevel+0.01, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, sig.IsNone(), "with zero inventory a sell signal must not fire")
}

func TestMaxPositionFractionSuppressesBuy(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionFraction = 0.01 // effectively zero headroom
	g := New(cfg)
	now := time.Now()
	_, err := g.UpdateWithPrice(100, now)
	require.NoError(t, err)

	// Give the trader inventory first, directly via ApplyFill, so
	// suppressBuy's exposure check has something to trip on.
	require.NoError(t, g.ApplyFill(tradingtypes.Buy, 100, 50, 0))

	buyLevel := g.BuyLevels()[0].Price
	sig, err := g.UpdateWithPrice(buyLevel-0.01, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, sig.IsNone(), "exposure at max_position_fraction must suppress further buys")
}

func TestEmergencyExitUpwardLiquidates(t *testing.T) {
	cfg := testConfig()
	cfg.EmergencyExitThreshold = 0.05
	g := New(cfg)
	now := time.Now()
	_, err := g.UpdateWithPrice(100, now)
	require.NoError(t, err)
	require.NoError(t, g.ApplyFill(tradingtypes.Buy, 100, 1, 0))

	maxSell := g.SellLevels()[len(g.SellLevels())-1].Price
	spike := maxSell * 1.2
	sig, err := g.UpdateWithPrice(spike, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, tradingtypes.SignalSell, sig.Kind)
	assert.Equal(t, 1.0, sig.Quantity, "the emergency sell must size to the trader's full inventory")
	assert.Equal(t, tradingtypes.PhaseLiquidating, g.Phase())

	require.NoError(t, g.ApplyFill(tradingtypes.Sell, sig.Price, sig.Quantity, 0))
	assert.Zero(t, g.GetPositionSummary().Inventory)
	assert.Equal(t, tradingtypes.PhaseHalted, g.Phase(), "draining inventory to zero must move Liquidating to Halted")
}

func TestLiquidatingKeepsEmittingSellsUntilInventoryIsDrained(t *testing.T) {
	cfg := testConfig()
	cfg.EmergencyExitThreshold = 0.05
	g := New(cfg)
	now := time.Now()
	_, err := g.UpdateWithPrice(100, now)
	require.NoError(t, err)
	require.NoError(t, g.ApplyFill(tradingtypes.Buy, 100, 3, 0))

	maxSell := g.SellLevels()[len(g.SellLevels())-1].Price
	spike := maxSell * 1.2
	sig, err := g.UpdateWithPrice(spike, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, tradingtypes.PhaseLiquidating, g.Phase())

	// Only a third of inventory fills on this tick: the trader must stay
	// in Liquidating and keep demanding a full-inventory sell, not fall
	// silent like a single-shot signal would.
	require.NoError(t, g.ApplyFill(tradingtypes.Sell, sig.Price, 1, 0))
	assert.Equal(t, tradingtypes.PhaseLiquidating, g.Phase())

	sig, err = g.UpdateWithPrice(spike, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, tradingtypes.SignalSell, sig.Kind)
	assert.Equal(t, 2.0, sig.Quantity, "remaining inventory, not a fixed fraction, must be demanded on every subsequent tick")

	require.NoError(t, g.ApplyFill(tradingtypes.Sell, sig.Price, sig.Quantity, 0))
	assert.Zero(t, g.GetPositionSummary().Inventory)
	assert.Equal(t, tradingtypes.PhaseHalted, g.Phase())
}

func TestEmergencyExitDownwardHalts(t *testing.T) {
	cfg := testConfig()
	cfg.EmergencyExitThreshold = 0.05
	g := New(cfg)
	now := time.Now()
	_, err := g.UpdateWithPrice(100, now)
	require.NoError(t, err)

	minBuy := g.BuyLevels()[len(g.BuyLevels())-1].Price
	crash := minBuy * 0.5
	sig, err := g.UpdateWithPrice(crash, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, tradingtypes.SignalHalt, sig.Kind)
	assert.Equal(t, tradingtypes.PhaseHalted, g.Phase())

	// Once halted, further prices must not emit signals or mutate phase.
	sig, err = g.UpdateWithPrice(100, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, sig.IsNone())
	assert.Equal(t, tradingtypes.PhaseHalted, g.Phase())
}

func TestApplyFillBuyUpdatesAverageEntryPrice(t *testing.T) {
	g := New(testConfig())
	require.NoError(t, g.ApplyFill(tradingtypes.Buy, 100, 1, 0.1))
	require.NoError(t, g.ApplyFill(tradingtypes.Buy, 110, 1, 0.1))

	pos := g.GetPositionSummary()
	assert.Equal(t, 2.0, pos.Inventory)
	assert.InDelta(t, 105, pos.AvgEntryPrice, 1e-9)
	assert.InDelta(t, 10000-100-0.1-110-0.1, pos.Cash, 1e-9)
	assert.EqualValues(t, 2, pos.TradeCount)
}

func TestApplyFillSellUpdatesRealizedPnL(t *testing.T) {
	g := New(testConfig())
	require.NoError(t, g.ApplyFill(tradingtypes.Buy, 100, 2, 0))
	require.NoError(t, g.ApplyFill(tradingtypes.Sell, 110, 1, 0.1))

	pos := g.GetPositionSummary()
	assert.Equal(t, 1.0, pos.Inventory)
	assert.InDelta(t, 10-0.1, pos.RealizedPnL, 1e-9)
}

func TestApplyFillRejectsOversell(t *testing.T) {
	g := New(testConfig())
	require.NoError(t, g.ApplyFill(tradingtypes.Buy, 100, 1, 0))

	before := g.GetPositionSummary()
	err := g.ApplyFill(tradingtypes.Sell, 100, 2, 0)
	require.Error(t, err)
	var te *tradingerr.TradingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tradingerr.OversoldInventory, te.Kind)
	assert.Equal(t, before, g.GetPositionSummary(), "a rejected fill must not mutate state")
}

func TestApplyFillRejectsInsufficientFunds(t *testing.T) {
	cfg := testConfig()
	cfg.Capital = 50
	g := New(cfg)

	err := g.ApplyFill(tradingtypes.Buy, 100, 1, 0)
	require.Error(t, err)
	var te *tradingerr.TradingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tradingerr.InsufficientFunds, te.Kind)
}

func TestApplyFillRejectsNonPositiveQuantity(t *testing.T) {
	g := New(testConfig())
	err := g.ApplyFill(tradingtypes.Buy, 100, 0, 0)
	require.Error(t, err)
	var te *tradingerr.TradingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tradingerr.InvalidInput, te.Kind)
}

func TestReArmReturnsFromHaltedToActive(t *testing.T) {
	cfg := testConfig()
	cfg.EmergencyExitThreshold = 0.05
	g := New(cfg)
	now := time.Now()
	_, err := g.UpdateWithPrice(100, now)
	require.NoError(t, err)
	minBuy := g.BuyLevels()[len(g.BuyLevels())-1].Price
	_, err = g.UpdateWithPrice(minBuy*0.5, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, tradingtypes.PhaseHalted, g.Phase())

	require.NoError(t, g.ReArm(80))
	assert.Equal(t, tradingtypes.PhaseActive, g.Phase())
	assert.Equal(t, 80.0, g.Center())
}

func TestRestoreRebuildsLaddersAroundPersistedCenter(t *testing.T) {
	cfg := testConfig()
	position := tradingtypes.PositionState{Cash: 5000, Inventory: 2, AvgEntryPrice: 90}

	g := Restore(cfg, tradingtypes.PhaseActive, position, 0.02, 95)

	assert.Equal(t, tradingtypes.PhaseActive, g.Phase())
	assert.Equal(t, position, g.GetPositionSummary())
	assert.Equal(t, 95.0, g.Center())
	assert.Equal(t, 0.02, g.ActiveSpacing())
	assert.Len(t, g.BuyLevels(), cfg.LevelCount)
}

func TestRestoreWithZeroCenterLeavesLaddersEmpty(t *testing.T) {
	g := Restore(testConfig(), tradingtypes.PhaseIdle, tradingtypes.PositionState{}, 0, 0)
	assert.Empty(t, g.BuyLevels())
	assert.Equal(t, tradingtypes.PhaseIdle, g.Phase())
}

func TestTradeSizeDividesCapitalAcrossLevels(t *testing.T) {
	cfg := testConfig()
	g := New(cfg)
	assert.InDelta(t, cfg.Capital/float64(cfg.LevelCount*2), g.TradeSize(), 1e-9)
}
