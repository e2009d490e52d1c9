package adaptive

import (
	"math"

	"market-pattern-engine/internal/indicators"
	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/patterns"
	"market-pattern-engine/internal/regime"
)

// FeatureCount is the width of the candidate feature vector.
const FeatureCount = 8

const (
	featureRSIPeriod     = 14
	featureMomentumBars  = 10
	featureVolumeWindow  = 20
	sampleSizeSaturation = 100.0
	neutralVolumeRatio   = 1.0
)

// ExtractFeatures builds the fixed-width feature vector the scorer is
// trained on: detector confidence, tier score, oscillator signal
// strength, volatility, short momentum, volume ratio, last return, and
// a saturating sample-size term.
func ExtractFeatures(c patterns.PatternCandidate, bars []market.Bar, sampleCount int) []float64 {
	features := make([]float64, FeatureCount)
	features[0] = c.Confidence
	features[1] = patterns.TierScore(c.StrengthTier)
	features[5] = neutralVolumeRatio
	features[7] = math.Min(1, float64(sampleCount)/sampleSizeSaturation)

	if len(bars) < 2 {
		return features
	}

	closes := market.Closes(bars)
	last := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	rsi := indicators.CalculateRSI(closes, featureRSIPeriod)
	features[2] = math.Abs(rsi-50) / 50

	features[3] = regime.Volatility(bars)

	if len(closes) > featureMomentumBars {
		ref := closes[len(closes)-1-featureMomentumBars]
		if ref != 0 {
			features[4] = (last.Close - ref) / ref
		}
	}

	avgVolume := indicators.CalculateAverageVolume(market.Volumes(bars[:len(bars)-1]), featureVolumeWindow)
	if avgVolume > 0 {
		features[5] = last.Volume / avgVolume
	}

	if prev.Close != 0 {
		features[6] = (last.Close - prev.Close) / prev.Close
	}

	return features
}
