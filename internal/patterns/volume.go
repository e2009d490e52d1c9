package patterns

import (
	"market-pattern-engine/internal/indicators"
	"market-pattern-engine/internal/market"
)

const (
	defaultVolumeLookback = 20
	highVolumeRatio       = 2.0
	dryUpRatio            = 0.7
	accumulationShare     = 0.65
)

// VolumeBreakoutDetector finds price pushes confirmed by a volume spike
// above twice the trailing average.
type VolumeBreakoutDetector struct {
	lookback int
}

// NewVolumeBreakoutDetector creates a volume breakout detector over the
// given window, defaulting to 20 bars.
func NewVolumeBreakoutDetector(lookback int) *VolumeBreakoutDetector {
	if lookback <= 0 {
		lookback = defaultVolumeLookback
	}
	return &VolumeBreakoutDetector{lookback: lookback}
}

func (d *VolumeBreakoutDetector) Name() string                   { return "volume-breakout" }
func (d *VolumeBreakoutDetector) PatternType() PatternType       { return VolumeBreakout }
func (d *VolumeBreakoutDetector) MinBars() int                   { return d.lookback + 1 }
func (d *VolumeBreakoutDetector) Timeframes() []market.Timeframe { return nil }

// Detect fires when the current bar moves on more than twice the
// trailing average volume.
func (d *VolumeBreakoutDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	current := bars[len(bars)-1]
	prev := bars[len(bars)-2]
	window := bars[len(bars)-1-d.lookback : len(bars)-1]

	avgVolume := indicators.CalculateAverageVolume(market.Volumes(window), d.lookback)
	if avgVolume == 0 || prev.Close == 0 {
		return nil
	}

	volumeRatio := current.Volume / avgVolume
	if volumeRatio <= highVolumeRatio {
		return nil
	}

	lastReturn := (current.Close - prev.Close) / prev.Close
	if lastReturn == 0 {
		return nil
	}

	confidence := clamp(volumeRatio/3, 0, 1)*0.7 + clamp(abs(lastReturn)*50, 0, 1)*0.3

	dir := DirectionBullish
	target := current.Close * (1 + 2*abs(lastReturn))
	stop := current.Close * (1 - abs(lastReturn))
	if lastReturn < 0 {
		dir = DirectionBearish
		target = current.Close * (1 - 2*abs(lastReturn))
		stop = current.Close * (1 + abs(lastReturn))
	}

	return []PatternCandidate{{
		PatternType: VolumeBreakout,
		Direction:   dir,
		Confidence:  clamp(confidence, 0, 1),
		EntryPrice:  current.Close,
		TargetPrice: target,
		StopLoss:    stop,
		Timeframe:   tf,
		Timestamp:   current.Timestamp,
	}}
}

// VolumeDivergenceDetector compares the price trend against the volume
// trend across the two halves of the window.
type VolumeDivergenceDetector struct {
	lookback int
}

// NewVolumeDivergenceDetector creates a divergence detector over the
// given window, defaulting to 20 bars.
func NewVolumeDivergenceDetector(lookback int) *VolumeDivergenceDetector {
	if lookback <= 0 {
		lookback = defaultVolumeLookback
	}
	return &VolumeDivergenceDetector{lookback: lookback}
}

func (d *VolumeDivergenceDetector) Name() string                   { return "volume-divergence" }
func (d *VolumeDivergenceDetector) PatternType() PatternType       { return VolumeDivergence }
func (d *VolumeDivergenceDetector) MinBars() int                   { return d.lookback }
func (d *VolumeDivergenceDetector) Timeframes() []market.Timeframe { return nil }

// Detect fires when volume dries up under a moving price: a fading rally
// is bearish, fading selling pressure is bullish.
func (d *VolumeDivergenceDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	window := bars[len(bars)-d.lookback:]
	half := len(window) / 2
	firstCloses := market.Closes(window[:half])
	secondCloses := market.Closes(window[half:])
	firstVol := indicators.CalculateAverageVolume(market.Volumes(window[:half]), half)
	secondVol := indicators.CalculateAverageVolume(market.Volumes(window[half:]), len(window)-half)

	firstMean := indicators.CalculateSMA(firstCloses, len(firstCloses))
	secondMean := indicators.CalculateSMA(secondCloses, len(secondCloses))
	if firstMean == 0 || firstVol == 0 {
		return nil
	}

	priceTrend := (secondMean - firstMean) / firstMean
	volumeRatio := secondVol / firstVol
	if volumeRatio >= dryUpRatio {
		return nil
	}
	// Need a real price move to diverge from
	if abs(priceTrend) < 0.005 {
		return nil
	}

	last := window[len(window)-1]
	sd := indicators.CalculateStdDev(market.Closes(window))
	confidence := clamp(1-volumeRatio, 0, 1)

	dir := DirectionBearish
	target := last.Close - 2*sd
	stop := last.Close + sd
	if priceTrend < 0 {
		// Selling is exhausting itself
		dir = DirectionBullish
		target = last.Close + 2*sd
		stop = last.Close - sd
	}

	return []PatternCandidate{{
		PatternType: VolumeDivergence,
		Direction:   dir,
		Confidence:  confidence,
		EntryPrice:  last.Close,
		TargetPrice: target,
		StopLoss:    stop,
		Timeframe:   tf,
		Timestamp:   last.Timestamp,
	}}
}

// AccumulationDetector measures the share of volume on up candles.
type AccumulationDetector struct {
	lookback int
}

// NewAccumulationDetector creates an accumulation/distribution detector
// over the given window, defaulting to 20 bars.
func NewAccumulationDetector(lookback int) *AccumulationDetector {
	if lookback <= 0 {
		lookback = defaultVolumeLookback
	}
	return &AccumulationDetector{lookback: lookback}
}

func (d *AccumulationDetector) Name() string                   { return "accumulation" }
func (d *AccumulationDetector) PatternType() PatternType       { return Accumulation }
func (d *AccumulationDetector) MinBars() int                   { return d.lookback }
func (d *AccumulationDetector) Timeframes() []market.Timeframe { return nil }

// Detect fires when up-candle volume dominates (accumulation) or
// down-candle volume dominates (distribution).
func (d *AccumulationDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	if len(bars) < d.MinBars() {
		return nil
	}

	window := bars[len(bars)-d.lookback:]
	upVolume := 0.0
	downVolume := 0.0
	for _, b := range window {
		if b.Close > b.Open {
			upVolume += b.Volume
		} else {
			downVolume += b.Volume
		}
	}

	total := upVolume + downVolume
	if total == 0 {
		return nil
	}

	buyPressure := upVolume / total
	last := window[len(window)-1]
	sd := indicators.CalculateStdDev(market.Closes(window))

	if buyPressure > accumulationShare {
		return []PatternCandidate{{
			PatternType: Accumulation,
			Direction:   DirectionBullish,
			Confidence:  clamp(buyPressure, 0, 1),
			EntryPrice:  last.Close,
			TargetPrice: last.Close + 2*sd,
			StopLoss:    last.Close - sd,
			Timeframe:   tf,
			Timestamp:   last.Timestamp,
		}}
	}

	if buyPressure < 1-accumulationShare {
		return []PatternCandidate{{
			PatternType: Accumulation,
			Direction:   DirectionBearish,
			Confidence:  clamp(1-buyPressure, 0, 1),
			EntryPrice:  last.Close,
			TargetPrice: last.Close - 2*sd,
			StopLoss:    last.Close + sd,
			Timeframe:   tf,
			Timestamp:   last.Timestamp,
		}}
	}

	return nil
}
