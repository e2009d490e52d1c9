package patterns

import (
	"market-pattern-engine/internal/indicators"
	"market-pattern-engine/internal/market"
)

// Scalping detectors work short horizons and only make sense on fast
// charts, so the whole family is gated to 1m/5m.

func scalpingTimeframes() []market.Timeframe {
	return []market.Timeframe{market.TF1m, market.TF5m}
}

// QuickReversalDetector finds a two-bar push followed by a
// volume-confirmed reversal bar.
type QuickReversalDetector struct{}

// NewQuickReversalDetector creates a quick reversal scalp detector.
func NewQuickReversalDetector() *QuickReversalDetector { return &QuickReversalDetector{} }

func (d *QuickReversalDetector) Name() string                   { return "quick-reversal" }
func (d *QuickReversalDetector) PatternType() PatternType       { return QuickReversal }
func (d *QuickReversalDetector) MinBars() int                   { return 5 }
func (d *QuickReversalDetector) Timeframes() []market.Timeframe { return scalpingTimeframes() }

// Detect checks the last three bars for two pushes one way and a
// higher-volume bar snapping back the other way.
func (d *QuickReversalDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	b1 := bars[len(bars)-3]
	b2 := bars[len(bars)-2]
	b3 := bars[len(bars)-1]

	avgVolume := indicators.CalculateAverageVolume(market.Volumes(bars[len(bars)-5:]), 5)
	if avgVolume == 0 {
		return nil
	}
	volumeRatio := b3.Volume / avgVolume
	if volumeRatio < 1.5 {
		return nil
	}

	confidence := clamp(0.5+(volumeRatio-1.5)*0.2, 0, 1)

	// Two down bars then an up bar
	if !b1.IsBullish() && !b2.IsBullish() && b3.IsBullish() {
		pushSize := b1.Open - b2.Close
		return []PatternCandidate{{
			PatternType: QuickReversal,
			Direction:   DirectionBullish,
			Confidence:  confidence,
			EntryPrice:  b3.Close,
			TargetPrice: b3.Close + pushSize*0.5,
			StopLoss:    b3.Low,
			Timeframe:   tf,
			Timestamp:   b3.Timestamp,
		}}
	}

	// Two up bars then a down bar
	if b1.IsBullish() && b2.IsBullish() && !b3.IsBullish() {
		pushSize := b2.Close - b1.Open
		return []PatternCandidate{{
			PatternType: QuickReversal,
			Direction:   DirectionBearish,
			Confidence:  confidence,
			EntryPrice:  b3.Close,
			TargetPrice: b3.Close - pushSize*0.5,
			StopLoss:    b3.High,
			Timeframe:   tf,
			Timestamp:   b3.Timestamp,
		}}
	}

	return nil
}

// MomentumScalpDetector rides a short burst of one-sided closes backed
// by growing volume.
type MomentumScalpDetector struct{}

// NewMomentumScalpDetector creates a momentum scalp detector.
func NewMomentumScalpDetector() *MomentumScalpDetector { return &MomentumScalpDetector{} }

func (d *MomentumScalpDetector) Name() string                   { return "momentum-scalp" }
func (d *MomentumScalpDetector) PatternType() PatternType       { return MomentumScalp }
func (d *MomentumScalpDetector) MinBars() int                   { return 6 }
func (d *MomentumScalpDetector) Timeframes() []market.Timeframe { return scalpingTimeframes() }

// Detect fires on five strictly one-sided closes with volume expansion.
func (d *MomentumScalpDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	run := bars[len(bars)-5:]
	rising := true
	falling := true
	for i := 1; i < len(run); i++ {
		if run[i].Close <= run[i-1].Close {
			rising = false
		}
		if run[i].Close >= run[i-1].Close {
			falling = false
		}
	}
	if !rising && !falling {
		return nil
	}
	if run[len(run)-1].Volume <= run[0].Volume {
		return nil
	}
	if run[0].Close == 0 {
		return nil
	}

	last := run[len(run)-1]
	burst := (last.Close - run[0].Close) / run[0].Close
	confidence := clamp(0.45+abs(burst)*20, 0, 1)

	dir := DirectionBullish
	target := last.Close * (1 + abs(burst)/2)
	stop := last.Close * (1 - abs(burst)/2)
	if falling {
		dir = DirectionBearish
		target = last.Close * (1 - abs(burst)/2)
		stop = last.Close * (1 + abs(burst)/2)
	}

	return []PatternCandidate{{
		PatternType: MomentumScalp,
		Direction:   dir,
		Confidence:  confidence,
		EntryPrice:  last.Close,
		TargetPrice: target,
		StopLoss:    stop,
		Timeframe:   tf,
		Timestamp:   last.Timestamp,
	}}
}

// RangeScalpDetector fades the edges of a tight short-term range back
// toward its midpoint.
type RangeScalpDetector struct{}

// NewRangeScalpDetector creates a range scalp detector.
func NewRangeScalpDetector() *RangeScalpDetector { return &RangeScalpDetector{} }

func (d *RangeScalpDetector) Name() string                   { return "range-scalp" }
func (d *RangeScalpDetector) PatternType() PatternType       { return RangeScalp }
func (d *RangeScalpDetector) MinBars() int                   { return 10 }
func (d *RangeScalpDetector) Timeframes() []market.Timeframe { return scalpingTimeframes() }

// Detect fires when the last 10 bars form a sub-1% range and price sits
// in the outer fifth of it.
func (d *RangeScalpDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	window := bars[len(bars)-10:]
	hi := window[0].High
	lo := window[0].Low
	for _, b := range window {
		hi = max(hi, b.High)
		lo = min(lo, b.Low)
	}

	mid := (hi + lo) / 2
	if mid == 0 {
		return nil
	}
	rangeSize := hi - lo
	rangePct := rangeSize / mid
	if rangeSize == 0 || rangePct >= 0.01 {
		return nil
	}

	last := window[len(window)-1]
	position := (last.Close - lo) / rangeSize
	confidence := clamp(0.4+(0.01-rangePct)*20, 0, 1)

	if position <= 0.2 {
		return []PatternCandidate{{
			PatternType: RangeScalp,
			Direction:   DirectionBullish,
			Confidence:  confidence,
			EntryPrice:  last.Close,
			TargetPrice: mid,
			StopLoss:    lo - 0.2*rangeSize,
			Timeframe:   tf,
			Timestamp:   last.Timestamp,
		}}
	}

	if position >= 0.8 {
		return []PatternCandidate{{
			PatternType: RangeScalp,
			Direction:   DirectionBearish,
			Confidence:  confidence,
			EntryPrice:  last.Close,
			TargetPrice: mid,
			StopLoss:    hi + 0.2*rangeSize,
			Timeframe:   tf,
			Timestamp:   last.Timestamp,
		}}
	}

	return nil
}
