package patterns

import (
	"market-pattern-engine/internal/market"
)

const (
	defaultReversalLookback = 20
	defaultPeakNeighbors    = 5
	doubleExtremeTolerance  = 0.01
	doublePatternConfidence = 0.75
)

// ============================================================================
// DOUBLE TOP / DOUBLE BOTTOM
// ============================================================================

// DoubleTopDetector finds two matched swing highs with a measured-move
// target through the neckline.
type DoubleTopDetector struct {
	lookback  int
	neighbors int
}

// NewDoubleTopDetector creates a double top detector. lookback defaults
// to 20 bars, neighbors to the 5-bar swing domination distance.
func NewDoubleTopDetector(lookback, neighbors int) *DoubleTopDetector {
	if lookback <= 0 {
		lookback = defaultReversalLookback
	}
	if neighbors <= 0 {
		neighbors = defaultPeakNeighbors
	}
	return &DoubleTopDetector{lookback: lookback, neighbors: neighbors}
}

func (d *DoubleTopDetector) Name() string                   { return "double-top" }
func (d *DoubleTopDetector) PatternType() PatternType       { return DoubleTop }
func (d *DoubleTopDetector) MinBars() int                   { return d.lookback }
func (d *DoubleTopDetector) Timeframes() []market.Timeframe { return nil }

// Detect accepts the two most recent swing highs whose prices differ by
// less than 1% of their average.
func (d *DoubleTopDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	window := bars[len(bars)-d.lookback:]
	peaks := swingHighs(window, d.neighbors)
	if len(peaks) < 2 {
		return nil
	}

	p1 := peaks[len(peaks)-2]
	p2 := peaks[len(peaks)-1]
	price1 := window[p1].High
	price2 := window[p2].High
	extremum := (price1 + price2) / 2
	if extremum == 0 || abs(price1-price2)/extremum >= doubleExtremeTolerance {
		return nil
	}

	// Neckline: lowest close between the two tops
	neckline := window[p1].Close
	for i := p1; i <= p2; i++ {
		neckline = min(neckline, window[i].Close)
	}

	last := window[len(window)-1]
	return []PatternCandidate{{
		PatternType: DoubleTop,
		Direction:   DirectionBearish,
		Confidence:  doublePatternConfidence,
		EntryPrice:  last.Close,
		TargetPrice: neckline - (extremum - neckline),
		StopLoss:    extremum,
		Timeframe:   tf,
		Timestamp:   last.Timestamp,
	}}
}

// DoubleBottomDetector finds two matched swing lows with a measured-move
// target through the neckline.
type DoubleBottomDetector struct {
	lookback  int
	neighbors int
}

// NewDoubleBottomDetector creates a double bottom detector with the same
// defaults as the double top detector.
func NewDoubleBottomDetector(lookback, neighbors int) *DoubleBottomDetector {
	if lookback <= 0 {
		lookback = defaultReversalLookback
	}
	if neighbors <= 0 {
		neighbors = defaultPeakNeighbors
	}
	return &DoubleBottomDetector{lookback: lookback, neighbors: neighbors}
}

func (d *DoubleBottomDetector) Name() string                   { return "double-bottom" }
func (d *DoubleBottomDetector) PatternType() PatternType       { return DoubleBottom }
func (d *DoubleBottomDetector) MinBars() int                   { return d.lookback }
func (d *DoubleBottomDetector) Timeframes() []market.Timeframe { return nil }

// Detect accepts the two most recent swing lows whose prices differ by
// less than 1% of their average.
func (d *DoubleBottomDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	window := bars[len(bars)-d.lookback:]
	troughs := swingLows(window, d.neighbors)
	if len(troughs) < 2 {
		return nil
	}

	t1 := troughs[len(troughs)-2]
	t2 := troughs[len(troughs)-1]
	price1 := window[t1].Low
	price2 := window[t2].Low
	extremum := (price1 + price2) / 2
	if extremum == 0 || abs(price1-price2)/extremum >= doubleExtremeTolerance {
		return nil
	}

	// Neckline: highest close between the two bottoms
	neckline := window[t1].Close
	for i := t1; i <= t2; i++ {
		neckline = max(neckline, window[i].Close)
	}

	last := window[len(window)-1]
	return []PatternCandidate{{
		PatternType: DoubleBottom,
		Direction:   DirectionBullish,
		Confidence:  doublePatternConfidence,
		EntryPrice:  last.Close,
		TargetPrice: neckline + (neckline - extremum),
		StopLoss:    extremum,
		Timeframe:   tf,
		Timestamp:   last.Timestamp,
	}}
}

// swingHighs returns indices whose high strictly dominates the highs of
// neighbors bars on each side.
func swingHighs(bars []market.Bar, neighbors int) []int {
	var out []int
	for i := neighbors; i < len(bars)-neighbors; i++ {
		dominates := true
		for j := i - neighbors; j <= i+neighbors; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				dominates = false
				break
			}
		}
		if dominates {
			out = append(out, i)
		}
	}
	return out
}

// swingLows returns indices whose low strictly dominates the lows of
// neighbors bars on each side.
func swingLows(bars []market.Bar, neighbors int) []int {
	var out []int
	for i := neighbors; i < len(bars)-neighbors; i++ {
		dominates := true
		for j := i - neighbors; j <= i+neighbors; j++ {
			if j == i {
				continue
			}
			if bars[j].Low <= bars[i].Low {
				dominates = false
				break
			}
		}
		if dominates {
			out = append(out, i)
		}
	}
	return out
}

// ============================================================================
// CANDLESTICK REVERSALS
// ============================================================================

// EngulfingDetector finds two-candle engulfing reversals.
type EngulfingDetector struct{}

// NewEngulfingDetector creates an engulfing pattern detector.
func NewEngulfingDetector() *EngulfingDetector { return &EngulfingDetector{} }

func (d *EngulfingDetector) Name() string                   { return "engulfing" }
func (d *EngulfingDetector) PatternType() PatternType       { return Engulfing }
func (d *EngulfingDetector) MinBars() int                   { return 2 }
func (d *EngulfingDetector) Timeframes() []market.Timeframe { return nil }

// Detect checks the last two bars for a bullish or bearish engulfing.
func (d *EngulfingDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	c1 := bars[len(bars)-2]
	c2 := bars[len(bars)-1]

	confidence := 0.6
	// A dominant second body strengthens the signal
	if c2.Body() > c1.Body()*2 {
		confidence += 0.1
	}

	if isBullishEngulfing(c1, c2) {
		return []PatternCandidate{{
			PatternType: Engulfing,
			Direction:   DirectionBullish,
			Confidence:  confidence,
			EntryPrice:  c2.Close,
			TargetPrice: c2.Close + 2*c2.Body(),
			StopLoss:    c2.Low,
			Timeframe:   tf,
			Timestamp:   c2.Timestamp,
		}}
	}

	if isBearishEngulfing(c1, c2) {
		return []PatternCandidate{{
			PatternType: Engulfing,
			Direction:   DirectionBearish,
			Confidence:  confidence,
			EntryPrice:  c2.Close,
			TargetPrice: c2.Close - 2*c2.Body(),
			StopLoss:    c2.High,
			Timeframe:   tf,
			Timestamp:   c2.Timestamp,
		}}
	}

	return nil
}

// isBullishEngulfing checks for a bearish candle whose body is fully
// engulfed by the following bullish candle.
func isBullishEngulfing(c1, c2 market.Bar) bool {
	if c1.Close >= c1.Open {
		return false
	}
	if c2.Close <= c2.Open {
		return false
	}
	// C2 body must completely engulf C1 body
	return c2.Open <= c1.Close && c2.Close >= c1.Open
}

// isBearishEngulfing checks for a bullish candle whose body is fully
// engulfed by the following bearish candle.
func isBearishEngulfing(c1, c2 market.Bar) bool {
	if c1.Close <= c1.Open {
		return false
	}
	if c2.Close >= c2.Open {
		return false
	}
	return c2.Open >= c1.Close && c2.Close <= c1.Open
}

// HammerDetector finds a long-lower-wick bar after a down candle.
type HammerDetector struct{}

// NewHammerDetector creates a hammer pattern detector.
func NewHammerDetector() *HammerDetector { return &HammerDetector{} }

func (d *HammerDetector) Name() string                   { return "hammer" }
func (d *HammerDetector) PatternType() PatternType       { return Hammer }
func (d *HammerDetector) MinBars() int                   { return 2 }
func (d *HammerDetector) Timeframes() []market.Timeframe { return nil }

// Detect checks the last bar for a hammer following a bearish bar.
func (d *HammerDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	prev := bars[len(bars)-2]
	candle := bars[len(bars)-1]
	if !isHammer(candle, prev) {
		return nil
	}

	return []PatternCandidate{{
		PatternType: Hammer,
		Direction:   DirectionBullish,
		Confidence:  0.65,
		EntryPrice:  candle.Close,
		TargetPrice: candle.Close + candle.Range(),
		StopLoss:    candle.Low,
		Timeframe:   tf,
		Timestamp:   candle.Timestamp,
	}}
}

// isHammer checks for a long lower wick, a small upper wick, and a
// preceding down candle.
func isHammer(candle, prev market.Bar) bool {
	body := candle.Body()
	upperWick := candle.High - max(candle.Open, candle.Close)
	lowerWick := min(candle.Open, candle.Close) - candle.Low

	if lowerWick < body*2 {
		return false
	}
	if upperWick > body*0.3 {
		return false
	}
	// Should appear after a down move
	return prev.Close < prev.Open
}

// ShootingStarDetector finds a long-upper-wick bar after an up candle.
type ShootingStarDetector struct{}

// NewShootingStarDetector creates a shooting star pattern detector.
func NewShootingStarDetector() *ShootingStarDetector { return &ShootingStarDetector{} }

func (d *ShootingStarDetector) Name() string                   { return "shooting-star" }
func (d *ShootingStarDetector) PatternType() PatternType       { return ShootingStar }
func (d *ShootingStarDetector) MinBars() int                   { return 2 }
func (d *ShootingStarDetector) Timeframes() []market.Timeframe { return nil }

// Detect checks the last bar for a shooting star following a bullish bar.
func (d *ShootingStarDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	prev := bars[len(bars)-2]
	candle := bars[len(bars)-1]
	if !isShootingStar(candle, prev) {
		return nil
	}

	return []PatternCandidate{{
		PatternType: ShootingStar,
		Direction:   DirectionBearish,
		Confidence:  0.65,
		EntryPrice:  candle.Close,
		TargetPrice: candle.Close - candle.Range(),
		StopLoss:    candle.High,
		Timeframe:   tf,
		Timestamp:   candle.Timestamp,
	}}
}

// isShootingStar checks for a long upper wick, a small lower wick, and a
// preceding up candle.
func isShootingStar(candle, prev market.Bar) bool {
	body := candle.Body()
	upperWick := candle.High - max(candle.Open, candle.Close)
	lowerWick := min(candle.Open, candle.Close) - candle.Low

	if upperWick < body*2 {
		return false
	}
	if lowerWick > body*0.3 {
		return false
	}
	return prev.Close > prev.Open
}
