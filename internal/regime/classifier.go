// Package regime labels the coarse market state from recent bars.
package regime

import (
	"market-pattern-engine/internal/indicators"
	"market-pattern-engine/internal/market"
)

// DefaultLookback is the minimum bar count required for a trend call.
const DefaultLookback = 50

const (
	trendThreshold      = 0.05
	volatilityThreshold = 0.02
	volatilityWindow    = 20
)

// Classifier assigns a market regime to a bar window.
type Classifier struct {
	lookback int
}

// NewClassifier creates a classifier requiring lookback bars before it
// makes any call other than sideways.
func NewClassifier(lookback int) *Classifier {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Classifier{lookback: lookback}
}

// Classify returns the regime label for the window. Fewer bars than the
// lookback always yields sideways.
func (c *Classifier) Classify(bars []market.Bar) market.Regime {
	if len(bars) < c.lookback {
		return market.RegimeSideways
	}

	closes := market.Closes(bars)
	sma10 := indicators.CalculateSMA(closes, 10)
	sma50 := indicators.CalculateSMA(closes, 50)
	if sma50 == 0 {
		return market.RegimeSideways
	}

	trendStrength := (sma10 - sma50) / sma50
	if trendStrength < 0 {
		trendStrength = -trendStrength
	}

	if trendStrength > trendThreshold {
		if sma10 > sma50 {
			return market.RegimeBullish
		}
		return market.RegimeBearish
	}

	if Volatility(bars) > volatilityThreshold {
		return market.RegimeVolatile
	}

	return market.RegimeSideways
}

// Snapshot classifies the window and records the volatility and volume
// context alongside the label.
func (c *Classifier) Snapshot(bars []market.Bar) market.RegimeSnapshot {
	snap := market.RegimeSnapshot{
		Regime:     c.Classify(bars),
		Volatility: Volatility(bars),
	}
	if len(bars) > 0 {
		last := bars[len(bars)-1]
		snap.Volume = last.Volume
		snap.Timestamp = last.Timestamp
	}
	return snap
}

// Volatility returns the coefficient of variation of the last 20 closes,
// or 0 when the window is shorter than that.
func Volatility(bars []market.Bar) float64 {
	if len(bars) < volatilityWindow {
		return 0
	}

	closes := market.Closes(bars[len(bars)-volatilityWindow:])
	mean := 0.0
	for _, c := range closes {
		mean += c
	}
	mean /= float64(len(closes))
	if mean == 0 {
		return 0
	}

	return indicators.CalculateStdDev(closes) / mean
}
