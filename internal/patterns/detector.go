// Package patterns implements the technical pattern detectors. Every
// detector is pure and stateless: it consumes a bar window plus the
// timeframe it was taken from and returns zero or more candidates.
// Detectors are registered in a Registry so the analyzer can run all
// applicable ones without knowing the families.
package patterns

import (
	"time"

	"market-pattern-engine/internal/market"
)

// PatternType identifies a detector signal family.
type PatternType string

const (
	RangeBreakout    PatternType = "range_breakout"
	Flag             PatternType = "flag"
	DoubleTop        PatternType = "double_top"
	DoubleBottom     PatternType = "double_bottom"
	Momentum         PatternType = "momentum"
	VolumeBreakout   PatternType = "volume_breakout"
	VolumeDivergence PatternType = "volume_divergence"
	Accumulation     PatternType = "accumulation"
	Engulfing        PatternType = "engulfing"
	Hammer           PatternType = "hammer"
	ShootingStar     PatternType = "shooting_star"
	QuickReversal    PatternType = "quick_reversal"
	MomentumScalp    PatternType = "momentum_scalp"
	RangeScalp       PatternType = "range_scalp"
	GammaSqueeze     PatternType = "gamma_squeeze"
	IVCrush          PatternType = "iv_crush"
	PinRisk          PatternType = "pin_risk"
)

// Direction is the trade direction implied by a candidate.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// StrengthTier buckets candidate quality for urgency scoring.
type StrengthTier string

const (
	TierWeak       StrengthTier = "weak"
	TierModerate   StrengthTier = "moderate"
	TierStrong     StrengthTier = "strong"
	TierVeryStrong StrengthTier = "very_strong"
)

// TierScore maps a strength tier to its numeric score.
func TierScore(tier StrengthTier) float64 {
	switch tier {
	case TierVeryStrong:
		return 1.0
	case TierStrong:
		return 0.8
	case TierModerate:
		return 0.6
	default:
		return 0.4
	}
}

// TierForConfidence buckets a confidence value into a strength tier.
func TierForConfidence(confidence float64) StrengthTier {
	switch {
	case confidence >= 0.85:
		return TierVeryStrong
	case confidence >= 0.70:
		return TierStrong
	case confidence >= 0.55:
		return TierModerate
	default:
		return TierWeak
	}
}

// PatternCandidate is a detected technical signal with direction,
// confidence, and trade levels. Candidates are transient: they live for
// one analysis pass unless promoted to an alert or a recorded outcome.
type PatternCandidate struct {
	PatternType         PatternType      `json:"pattern_type"`
	Direction           Direction        `json:"direction"`
	Confidence          float64          `json:"confidence"`
	EntryPrice          float64          `json:"entry_price"`
	TargetPrice         float64          `json:"target_price"`
	StopLoss            float64          `json:"stop_loss"`
	Timeframe           market.Timeframe `json:"timeframe"`
	StrengthTier        StrengthTier     `json:"strength_tier"`
	SuccessRateEstimate float64          `json:"success_rate_estimate"`
	Timestamp           time.Time        `json:"timestamp"`
	Features            []float64        `json:"features,omitempty"`
}

// Detector is the uniform contract every pattern family implements.
// Detect must be pure and deterministic, and must return an empty
// result when the window holds fewer than MinBars bars.
type Detector interface {
	Name() string
	PatternType() PatternType
	MinBars() int
	// Timeframes returns the timeframes the detector applies to;
	// nil means all timeframes.
	Timeframes() []market.Timeframe
	Detect(bars []market.Bar, tf market.Timeframe) []PatternCandidate
}

// Status tags a registration so unimplemented detectors stay
// distinguishable from detectors that found nothing.
type Status string

const (
	StatusAvailable       Status = "available"
	StatusNotYetAvailable Status = "not yet available"
)

// Registration pairs a detector with its availability status.
type Registration struct {
	Detector Detector
	Status   Status
}

// Registry holds the detector registrations in a fixed order.
type Registry struct {
	regs []Registration
}

// NewRegistry creates an empty detector registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a detector with the given availability status.
func (r *Registry) Register(d Detector, status Status) {
	r.regs = append(r.regs, Registration{Detector: d, Status: status})
}

// All returns every registration in registration order.
func (r *Registry) All() []Registration {
	out := make([]Registration, len(r.regs))
	copy(out, r.regs)
	return out
}

// Available returns the detectors that are ready to run.
func (r *Registry) Available() []Detector {
	var out []Detector
	for _, reg := range r.regs {
		if reg.Status == StatusAvailable {
			out = append(out, reg.Detector)
		}
	}
	return out
}

// ApplicableTo returns the available detectors that accept the timeframe.
func (r *Registry) ApplicableTo(tf market.Timeframe) []Detector {
	var out []Detector
	for _, reg := range r.regs {
		if reg.Status != StatusAvailable {
			continue
		}
		if !timeframeAllowed(reg.Detector, tf) {
			continue
		}
		out = append(out, reg.Detector)
	}
	return out
}

// DefaultRegistry builds the standard detector set. The scalping family
// is gated to intraday timeframes by the detectors themselves; the
// options-heuristic detectors are registered as not yet available.
func DefaultRegistry(peakTroughMinDistance int) *Registry {
	r := NewRegistry()
	r.Register(NewRangeBreakoutDetector(0), StatusAvailable)
	r.Register(NewFlagDetector(), StatusAvailable)
	r.Register(NewDoubleTopDetector(0, peakTroughMinDistance), StatusAvailable)
	r.Register(NewDoubleBottomDetector(0, peakTroughMinDistance), StatusAvailable)
	r.Register(NewMomentumDetector(0), StatusAvailable)
	r.Register(NewVolumeBreakoutDetector(0), StatusAvailable)
	r.Register(NewVolumeDivergenceDetector(0), StatusAvailable)
	r.Register(NewAccumulationDetector(0), StatusAvailable)
	r.Register(NewEngulfingDetector(), StatusAvailable)
	r.Register(NewHammerDetector(), StatusAvailable)
	r.Register(NewShootingStarDetector(), StatusAvailable)
	r.Register(NewQuickReversalDetector(), StatusAvailable)
	r.Register(NewMomentumScalpDetector(), StatusAvailable)
	r.Register(NewRangeScalpDetector(), StatusAvailable)
	r.Register(NewGammaSqueezeDetector(), StatusNotYetAvailable)
	r.Register(NewIVCrushDetector(), StatusNotYetAvailable)
	r.Register(NewPinRiskDetector(), StatusNotYetAvailable)
	return r
}

func timeframeAllowed(d Detector, tf market.Timeframe) bool {
	allowed := d.Timeframes()
	if allowed == nil {
		return true
	}
	for _, a := range allowed {
		if a == tf {
			return true
		}
	}
	return false
}

// Helper functions
func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
