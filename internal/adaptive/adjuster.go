package adaptive

import (
	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/patterns"
)

const (
	scorerWeight      = 0.1
	successRateWeight = 0.2
	successRateWindow = 10
)

// History supplies the learned state the adjuster consults. The outcome
// store implements it.
type History interface {
	SuccessRateInRegime(pt patterns.PatternType, rg market.Regime, window int) float64
	PredictFor(pt patterns.PatternType, features []float64) float64
}

// Adjuster blends detector confidence with learned feedback.
type Adjuster struct {
	history History
}

// NewAdjuster creates an adjuster backed by the given history.
func NewAdjuster(history History) *Adjuster {
	return &Adjuster{history: history}
}

// Adjust combines the candidate's base confidence with the scorer delta
// and the recent success rate under the current regime:
//
//	combined = base + 0.1*(prediction-0.5) + (successRate-0.5)*0.2
//
// clamped to [0, 1]. With no history both correction terms vanish and
// the base confidence passes through unchanged.
func (a *Adjuster) Adjust(c patterns.PatternCandidate, rg market.Regime) float64 {
	if a == nil || a.history == nil {
		return clamp01(c.Confidence)
	}

	mlDelta := a.history.PredictFor(c.PatternType, c.Features) - 0.5
	rate := a.history.SuccessRateInRegime(c.PatternType, rg, successRateWindow)

	return clamp01(c.Confidence + scorerWeight*mlDelta + (rate-0.5)*successRateWeight)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
