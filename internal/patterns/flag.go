package patterns

import "market-pattern-engine/internal/market"

const (
	flagPoleBars          = 10
	flagConsolidationBars = 5
)

// FlagDetector finds a strong directional pole followed by a shallow
// counter-slope consolidation that breaks out in the pole's direction.
type FlagDetector struct{}

// NewFlagDetector creates a flag continuation detector.
func NewFlagDetector() *FlagDetector { return &FlagDetector{} }

func (d *FlagDetector) Name() string                   { return "flag" }
func (d *FlagDetector) PatternType() PatternType       { return Flag }
func (d *FlagDetector) MinBars() int                   { return flagPoleBars + flagConsolidationBars }
func (d *FlagDetector) Timeframes() []market.Timeframe { return nil }

// Detect evaluates the last 15 bars as pole plus flag and requires the
// final bar to close through the flag boundary.
func (d *FlagDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	pole := bars[len(bars)-d.MinBars() : len(bars)-flagConsolidationBars]
	flag := bars[len(bars)-flagConsolidationBars:]
	last := flag[len(flag)-1]

	if c, ok := d.bullishFlag(pole, flag, last, tf); ok {
		return []PatternCandidate{c}
	}
	if c, ok := d.bearishFlag(pole, flag, last, tf); ok {
		return []PatternCandidate{c}
	}
	return nil
}

func (d *FlagDetector) bullishFlag(pole, flag []market.Bar, last market.Bar, tf market.Timeframe) (PatternCandidate, bool) {
	poleHeight := pole[len(pole)-1].Close - pole[0].Open
	if poleHeight <= 0 {
		return PatternCandidate{}, false
	}

	// Pole should be strong (most candles bullish)
	bullishCount := 0
	for _, b := range pole {
		if b.IsBullish() {
			bullishCount++
		}
	}
	if float64(bullishCount)/float64(len(pole)) < 0.6 {
		return PatternCandidate{}, false
	}

	// Consolidation slopes down or sideways and stays shallow
	flagHigh := flag[0].High
	flagLow := flag[len(flag)-1].Low
	if flagLow > flagHigh {
		return PatternCandidate{}, false
	}
	if flagHigh-flagLow > poleHeight*0.5 {
		return PatternCandidate{}, false
	}

	// Breakout bar through the flag top
	if last.Close <= flagHigh {
		return PatternCandidate{}, false
	}

	confidence := clamp(0.6+float64(bullishCount)/float64(len(pole))*0.2, 0, 1)
	return PatternCandidate{
		PatternType: Flag,
		Direction:   DirectionBullish,
		Confidence:  confidence,
		EntryPrice:  last.Close,
		TargetPrice: flagHigh + poleHeight,
		StopLoss:    flagLow,
		Timeframe:   tf,
		Timestamp:   last.Timestamp,
	}, true
}

func (d *FlagDetector) bearishFlag(pole, flag []market.Bar, last market.Bar, tf market.Timeframe) (PatternCandidate, bool) {
	poleHeight := pole[0].Open - pole[len(pole)-1].Close
	if poleHeight <= 0 {
		return PatternCandidate{}, false
	}

	bearishCount := 0
	for _, b := range pole {
		if !b.IsBullish() {
			bearishCount++
		}
	}
	if float64(bearishCount)/float64(len(pole)) < 0.6 {
		return PatternCandidate{}, false
	}

	flagLow := flag[0].Low
	flagHigh := flag[len(flag)-1].High
	if flagHigh < flagLow {
		return PatternCandidate{}, false
	}
	if flagHigh-flagLow > poleHeight*0.5 {
		return PatternCandidate{}, false
	}

	if last.Close >= flagLow {
		return PatternCandidate{}, false
	}

	confidence := clamp(0.6+float64(bearishCount)/float64(len(pole))*0.2, 0, 1)
	return PatternCandidate{
		PatternType: Flag,
		Direction:   DirectionBearish,
		Confidence:  confidence,
		EntryPrice:  last.Close,
		TargetPrice: flagLow - poleHeight,
		StopLoss:    flagHigh,
		Timeframe:   tf,
		Timestamp:   last.Timestamp,
	}, true
}
