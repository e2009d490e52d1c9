package patterns

import (
	"market-pattern-engine/internal/indicators"
	"market-pattern-engine/internal/market"
)

const (
	rsiPeriod        = 14
	oversoldLevel    = 30.0
	overboughtLevel  = 70.0
	macdFlipConf     = 0.55
	momentumSDWindow = 20
)

// MomentumDetector finds oversold/overbought conditions on RSI and
// Stochastic plus MACD histogram sign flips.
type MomentumDetector struct {
	period int
}

// NewMomentumDetector creates a momentum detector, defaulting to the
// standard 14-bar oscillator period.
func NewMomentumDetector(period int) *MomentumDetector {
	if period <= 0 {
		period = rsiPeriod
	}
	return &MomentumDetector{period: period}
}

func (d *MomentumDetector) Name() string                   { return "momentum" }
func (d *MomentumDetector) PatternType() PatternType       { return Momentum }
func (d *MomentumDetector) MinBars() int                   { return d.period + 1 }
func (d *MomentumDetector) Timeframes() []market.Timeframe { return nil }

// Detect emits one candidate per firing oscillator rule. RSI and
// Stochastic share the 30/70 extremes; MACD contributes on a histogram
// sign flip.
func (d *MomentumDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	closes := market.Closes(bars)
	highs := market.Highs(bars)
	lows := market.Lows(bars)
	last := bars[len(bars)-1]

	sdWindow := closes
	if len(sdWindow) > momentumSDWindow {
		sdWindow = sdWindow[len(sdWindow)-momentumSDWindow:]
	}
	sd := indicators.CalculateStdDev(sdWindow)

	var out []PatternCandidate

	emit := func(dir Direction, confidence float64) {
		c := PatternCandidate{
			PatternType: Momentum,
			Direction:   dir,
			Confidence:  clamp(confidence, 0, 1),
			EntryPrice:  last.Close,
			Timeframe:   tf,
			Timestamp:   last.Timestamp,
		}
		if dir == DirectionBullish {
			c.TargetPrice = last.Close + 2*sd
			c.StopLoss = last.Close - sd
		} else {
			c.TargetPrice = last.Close - 2*sd
			c.StopLoss = last.Close + sd
		}
		out = append(out, c)
	}

	rsi := indicators.CalculateRSI(closes, d.period)
	if rsi < oversoldLevel {
		emit(DirectionBullish, (oversoldLevel-rsi)/30.0)
	} else if rsi > overboughtLevel {
		emit(DirectionBearish, (rsi-overboughtLevel)/30.0)
	}

	stoch := indicators.CalculateStochastic(highs, lows, closes, d.period)
	if stoch < oversoldLevel {
		emit(DirectionBullish, (oversoldLevel-stoch)/30.0)
	} else if stoch > overboughtLevel {
		emit(DirectionBearish, (stoch-overboughtLevel)/30.0)
	}

	// MACD: histogram crossing zero marks a momentum shift
	current := indicators.CalculateMACD(closes, 12, 26, 9)
	previous := indicators.CalculateMACD(closes[:len(closes)-1], 12, 26, 9)
	if previous.Histogram <= 0 && current.Histogram > 0 {
		emit(DirectionBullish, macdFlipConf)
	} else if previous.Histogram >= 0 && current.Histogram < 0 {
		emit(DirectionBearish, macdFlipConf)
	}

	return out
}
