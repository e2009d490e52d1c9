package patterns

import "market-pattern-engine/internal/market"

// The options-heuristic detectors need dealer positioning data that the
// bar feed cannot supply, so they are registered as not yet available.
// Keeping them in the registry makes the gap visible instead of reading
// as "no pattern found".

// GammaSqueezeDetector is a price/volume proxy for dealer gamma squeezes.
type GammaSqueezeDetector struct{}

// NewGammaSqueezeDetector creates the gamma squeeze placeholder.
func NewGammaSqueezeDetector() *GammaSqueezeDetector { return &GammaSqueezeDetector{} }

func (d *GammaSqueezeDetector) Name() string                   { return "gamma-squeeze" }
func (d *GammaSqueezeDetector) PatternType() PatternType       { return GammaSqueeze }
func (d *GammaSqueezeDetector) MinBars() int                   { return 20 }
func (d *GammaSqueezeDetector) Timeframes() []market.Timeframe { return nil }

func (d *GammaSqueezeDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	return nil
}

// IVCrushDetector is a volatility-collapse proxy around known events.
type IVCrushDetector struct{}

// NewIVCrushDetector creates the IV crush placeholder.
func NewIVCrushDetector() *IVCrushDetector { return &IVCrushDetector{} }

func (d *IVCrushDetector) Name() string                   { return "iv-crush" }
func (d *IVCrushDetector) PatternType() PatternType       { return IVCrush }
func (d *IVCrushDetector) MinBars() int                   { return 20 }
func (d *IVCrushDetector) Timeframes() []market.Timeframe { return nil }

func (d *IVCrushDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	return nil
}

// PinRiskDetector is a strike-magnet proxy near expiry.
type PinRiskDetector struct{}

// NewPinRiskDetector creates the pin risk placeholder.
func NewPinRiskDetector() *PinRiskDetector { return &PinRiskDetector{} }

func (d *PinRiskDetector) Name() string                   { return "pin-risk" }
func (d *PinRiskDetector) PatternType() PatternType       { return PinRisk }
func (d *PinRiskDetector) MinBars() int                   { return 20 }
func (d *PinRiskDetector) Timeframes() []market.Timeframe { return nil }

func (d *PinRiskDetector) Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate {
	return nil
}
