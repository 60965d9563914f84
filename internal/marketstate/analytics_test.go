package marketstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func flatPrices(n int, price float64) []float64 {
	p := make([]float64, n)
	for i := range p {
		p[i] = price
	}
	return p
}

func TestSnapshotReturnsZeroValueForEmptyInput(t *testing.T) {
	assert.Equal(t, TechnicalSnapshot{}, Snapshot(nil, nil))
}

func TestSnapshotOnFlatPricesHasRSIOneHundredAndZeroBands(t *testing.T) {
	s := Snapshot(flatPrices(30, 100), nil)
	assert.Equal(t, 100.0, s.RSI14, "no losses on a flat series gives an RSI of 100 (zero average loss)")
	assert.InDelta(t, 100.0, s.EMA12, 1e-9)
	assert.InDelta(t, 0.0, s.BollingerUpper-s.BollingerLower, 1e-9)
	assert.Equal(t, VolLow, s.Volatility, "zero realized volatility on a flat series classifies as Low")
}

func TestRSIIsOneHundredWithNoLosses(t *testing.T) {
	prices := make([]float64, 15)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	assert.Equal(t, 100.0, rsi(prices, 14))
}

func TestRSIIsZeroWithNoGains(t *testing.T) {
	prices := make([]float64, 15)
	for i := range prices {
		prices[i] = 100 - float64(i)
	}
	assert.Equal(t, 0.0, rsi(prices, 14))
}

func TestEMAWeightsRecentPricesMoreThanSMA(t *testing.T) {
	prices := []float64{100, 100, 100, 100, 100, 200}
	e := ema(prices, 5)
	s := sma(prices[len(prices)-5:], 5)
	assert.Greater(t, e, s, "a late spike should move the EMA above the equivalent SMA")
}

func TestBollingerBandsWidenWithVolatility(t *testing.T) {
	tight := []float64{100, 100.1, 99.9, 100.05, 99.95}
	wide := []float64{100, 120, 80, 130, 70}
	_, tUpper, tLower := bollinger(tight, 5, 2)
	_, wUpper, wLower := bollinger(wide, 5, 2)
	assert.Greater(t, wUpper-wLower, tUpper-tLower)
}

func TestVWAPFallsBackToSMAWithoutVolumes(t *testing.T) {
	prices := []float64{100, 102, 104}
	assert.Equal(t, sma(prices, len(prices)), vwap(prices, nil))
}

func TestVWAPWeightsHighVolumePrices(t *testing.T) {
	prices := []float64{100, 200}
	volumes := []float64{1, 99}
	v := vwap(prices, volumes)
	assert.Greater(t, v, 150.0, "the heavily-traded price should dominate VWAP")
}

func TestMomentumIsZeroWithInsufficientHistory(t *testing.T) {
	assert.Zero(t, momentum([]float64{1, 2, 3}, 10))
}

func TestMomentumComputesPriceDeltaOverThePeriod(t *testing.T) {
	prices := []float64{100, 101, 102, 103, 104, 110}
	assert.Equal(t, 10.0, momentum(prices, 5))
}

func TestVolatilityRegimeClassifiesFlatSeriesAsLow(t *testing.T) {
	assert.Equal(t, VolLow, volatilityRegime(flatPrices(25, 100)))
}

func TestVolatilityRegimeClassifiesLargeSwingsAsExtreme(t *testing.T) {
	prices := make([]float64, 25)
	price := 100.0
	for i := range prices {
		if i%2 == 0 {
			price *= 1.2
		} else {
			price *= 0.8
		}
		prices[i] = price
	}
	assert.Equal(t, VolExtreme, volatilityRegime(prices))
}

func TestVolatilityRegimeStringer(t *testing.T) {
	assert.Equal(t, "Low", VolLow.String())
	assert.Equal(t, "Normal", VolNormal.String())
	assert.Equal(t, "High", VolHigh.String())
	assert.Equal(t, "Extreme", VolExtreme.String())
}
