package marketstate

import "math"

// VolatilityRegime classifies recent realized volatility. This is a
// reporting-only enrichment; it never feeds grid spacing decisions,
// which follow the regime rule in internal/gridtrader exclusively.
type VolatilityRegime int

const (
	VolLow VolatilityRegime = iota
	VolNormal
	VolHigh
	VolExtreme
)

func (v VolatilityRegime) String() string {
	switch v {
	case VolLow:
		return "Low"
	case VolHigh:
		return "High"
	case VolExtreme:
		return "Extreme"
	default:
		return "Normal"
	}
}

// TechnicalSnapshot is a richer indicator bundle than the hot-path
// classifier uses. It is computed on demand by Snapshot; no other
// package in this module calls Snapshot.
type TechnicalSnapshot struct {
	RSI14           float64
	EMA12           float64
	EMA26           float64
	BollingerUpper  float64
	BollingerLower  float64
	BollingerMiddle float64
	VWAP            float64
	Momentum10      float64
	Volatility      VolatilityRegime
}

// Snapshot computes the enrichment indicators over a price window
// (oldest first) and optional parallel volumes (same length, may be
// nil). With fewer prices than an indicator's period, EMA, RSI and
// Bollinger shrink that period to the available history; Momentum10 is
// zero when there are 10 or fewer prices.
func Snapshot(prices []float64, volumes []float64) TechnicalSnapshot {
	var s TechnicalSnapshot
	if len(prices) == 0 {
		return s
	}

	s.RSI14 = rsi(prices, 14)
	s.EMA12 = ema(prices, 12)
	s.EMA26 = ema(prices, 26)
	s.BollingerMiddle, s.BollingerUpper, s.BollingerLower = bollinger(prices, 20, 2.0)
	s.VWAP = vwap(prices, volumes)
	s.Momentum10 = momentum(prices, 10)
	s.Volatility = volatilityRegime(prices)
	return s
}

func ema(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if period > len(prices) {
		period = len(prices)
	}
	k := 2.0 / float64(period+1)
	start := len(prices) - period
	e := prices[start]
	for _, p := range prices[start+1:] {
		e = p*k + e*(1-k)
	}
	return e
}

func rsi(prices []float64, period int) float64 {
	if len(prices) < 2 {
		return 50
	}
	if period >= len(prices) {
		period = len(prices) - 1
	}
	start := len(prices) - period - 1
	gains, losses := 0.0, 0.0
	for i := start + 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses += -delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func bollinger(prices []float64, period int, numStd float64) (mid, upper, lower float64) {
	if period > len(prices) {
		period = len(prices)
	}
	if period == 0 {
		return 0, 0, 0
	}
	window := prices[len(prices)-period:]
	mid = sma(window, period)
	variance := 0.0
	for _, p := range window {
		d := p - mid
		variance += d * d
	}
	variance /= float64(period)
	std := math.Sqrt(variance)
	return mid, mid + numStd*std, mid - numStd*std
}

func vwap(prices []float64, volumes []float64) float64 {
	if len(volumes) != len(prices) || len(prices) == 0 {
		return sma(prices, len(prices))
	}
	var pv, v float64
	for i, p := range prices {
		pv += p * volumes[i]
		v += volumes[i]
	}
	if v == 0 {
		return sma(prices, len(prices))
	}
	return pv / v
}

func momentum(prices []float64, period int) float64 {
	if len(prices) <= period {
		return 0
	}
	return prices[len(prices)-1] - prices[len(prices)-1-period]
}

func volatilityRegime(prices []float64) VolatilityRegime {
	n := 20
	if n > len(prices) {
		n = len(prices)
	}
	if n < 2 {
		return VolNormal
	}
	window := prices[len(prices)-n:]
	returns := make([]float64, 0, n-1)
	for i := 1; i < len(window); i++ {
		if window[i-1] == 0 {
			continue
		}
		returns = append(returns, (window[i]-window[i-1])/window[i-1])
	}
	if len(returns) == 0 {
		return VolNormal
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)

	switch {
	case std < 0.003:
		return VolLow
	case std < 0.01:
		return VolNormal
	case std < 0.03:
		return VolHigh
	default:
		return VolExtreme
	}
}
