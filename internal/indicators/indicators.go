// Package indicators provides the pure technical indicator math used by
// the regime classifier and the pattern detectors. All functions are
// deterministic and side-effect-free; short inputs produce neutral
// defaults instead of errors.
package indicators

import "math"

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateSMA calculates Simple Moving Average over the last period values
func CalculateSMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}

	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}

	return sum / float64(period)
}

// CalculateEMA calculates Exponential Moving Average seeded with the SMA
// of the first period values
func CalculateEMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}

	ema := CalculateSMA(prices[:period], period)
	multiplier := 2.0 / float64(period+1)

	for i := period; i < len(prices); i++ {
		ema = (prices[i] * multiplier) + (ema * (1 - multiplier))
	}

	return ema
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// CalculateRSI calculates the Relative Strength Index over the last
// period price changes. Returns the neutral value 50 when the series is
// too short to hold period+1 points.
func CalculateRSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50.0 // Neutral RSI
	}

	gains := 0.0
	losses := 0.0

	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDResult holds MACD indicator values
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// CalculateMACD calculates the MACD line, its signal line, and the
// histogram. The signal line is a true EMA of the MACD series rebuilt
// over the window, not a scaled approximation.
func CalculateMACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if len(prices) < slowPeriod+signalPeriod {
		return &MACDResult{}
	}

	macdSeries := make([]float64, 0, len(prices)-slowPeriod+1)
	for i := slowPeriod; i <= len(prices); i++ {
		window := prices[:i]
		macdSeries = append(macdSeries, CalculateEMA(window, fastPeriod)-CalculateEMA(window, slowPeriod))
	}

	macdLine := macdSeries[len(macdSeries)-1]
	signalLine := CalculateEMA(macdSeries, signalPeriod)

	return &MACDResult{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: macdLine - signalLine,
	}
}

// ============================================================================
// STOCHASTIC OSCILLATOR
// ============================================================================

// CalculateStochastic calculates the %K value of the stochastic
// oscillator over the last period bars. Returns 50 on a degenerate
// (flat or too short) window.
func CalculateStochastic(highs, lows, closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period || len(highs) < period || len(lows) < period {
		return 50.0
	}

	hi := highs[len(highs)-period]
	lo := lows[len(lows)-period]
	for i := len(highs) - period + 1; i < len(highs); i++ {
		if highs[i] > hi {
			hi = highs[i]
		}
	}
	for i := len(lows) - period + 1; i < len(lows); i++ {
		if lows[i] < lo {
			lo = lows[i]
		}
	}

	if hi == lo {
		return 50.0
	}

	return (closes[len(closes)-1] - lo) / (hi - lo) * 100
}

// ============================================================================
// VOLATILITY
// ============================================================================

// CalculateStdDev calculates the population standard deviation
func CalculateStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}

// BollingerBandsResult holds Bollinger Bands values
type BollingerBandsResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateBollingerBands calculates Bollinger Bands over the last
// period values using the given standard deviation multiplier
func CalculateBollingerBands(prices []float64, period int, stdDevMult float64) *BollingerBandsResult {
	if period <= 0 || len(prices) < period {
		return &BollingerBandsResult{}
	}

	middle := CalculateSMA(prices, period)
	stdDev := CalculateStdDev(prices[len(prices)-period:])

	return &BollingerBandsResult{
		Upper:  middle + stdDevMult*stdDev,
		Middle: middle,
		Lower:  middle - stdDevMult*stdDev,
	}
}

// ============================================================================
// VOLUME
// ============================================================================

// CalculateAverageVolume calculates the mean volume over the last period
// entries, or over the whole series when it is shorter than period.
func CalculateAverageVolume(volumes []float64, period int) float64 {
	if len(volumes) == 0 || period <= 0 {
		return 0
	}

	start := 0
	if len(volumes) > period {
		start = len(volumes) - period
	}

	sum := 0.0
	for i := start; i < len(volumes); i++ {
		sum += volumes[i]
	}

	return sum / float64(len(volumes)-start)
}
