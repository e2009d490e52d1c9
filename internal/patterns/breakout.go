package patterns

import (
	"market-pattern-engine/internal/indicators"
	"market-pattern-engine/internal/market"
)

const defaultBreakoutLookback = 15

// RangeBreakoutDetector finds volume-confirmed escapes from a trailing
// consolidation range.
type RangeBreakoutDetector struct {
	lookback int
}

// NewRangeBreakoutDetector creates a breakout detector with the given
// trailing window, defaulting to 15 bars.
func NewRangeBreakoutDetector(lookback int) *RangeBreakoutDetector {
	if lookback <= 0 {
		lookback = defaultBreakoutLookback
	}
	return &RangeBreakoutDetector{lookback: lookback}
}

func (d *RangeBreakoutDetector) Name() string                   { return "range-breakout" }
func (d *RangeBreakoutDetector) PatternType() PatternType       { return RangeBreakout }
func (d *RangeBreakoutDetector) MinBars() int                   { return d.lookback + 1 }
func (d *RangeBreakoutDetector) Timeframes() []market.Timeframe { return nil }

// Detect confirms a breakout when the current bar escapes the trailing
// high/low on more than twice the trailing average volume.
func (d *RangeBreakoutDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	current := bars[len(bars)-1]
	window := bars[len(bars)-1-d.lookback : len(bars)-1]

	trailingHigh := window[0].High
	trailingLow := window[0].Low
	for _, b := range window {
		trailingHigh = max(trailingHigh, b.High)
		trailingLow = min(trailingLow, b.Low)
	}

	avgVolume := indicators.CalculateAverageVolume(market.Volumes(window), d.lookback)
	if avgVolume == 0 {
		return nil
	}

	volumeRatio := current.Volume / avgVolume
	if volumeRatio <= 2.0 {
		return nil
	}

	rangeSize := trailingHigh - trailingLow
	confidence := (clamp(rangeSize/100, 0, 1) + clamp(volumeRatio/3, 0, 1)) / 2

	var out []PatternCandidate
	switch {
	case current.High > trailingHigh:
		out = append(out, PatternCandidate{
			PatternType: RangeBreakout,
			Direction:   DirectionBullish,
			Confidence:  confidence,
			EntryPrice:  current.Close,
			TargetPrice: trailingHigh + rangeSize,
			StopLoss:    trailingHigh - 0.2*rangeSize,
			Timeframe:   tf,
			Timestamp:   current.Timestamp,
		})
	case current.Low < trailingLow:
		out = append(out, PatternCandidate{
			PatternType: RangeBreakout,
			Direction:   DirectionBearish,
			Confidence:  confidence,
			EntryPrice:  current.Close,
			TargetPrice: trailingLow - rangeSize,
			StopLoss:    trailingLow + 0.2*rangeSize,
			Timeframe:   tf,
			Timestamp:   current.Timestamp,
		})
	}
	return out
}
