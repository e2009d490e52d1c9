// Package alerts turns adjusted candidates and confluence clusters into
// threshold-gated, urgency-ranked alerts.
package alerts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"market-pattern-engine/internal/confluence"
	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/patterns"
)

// DefaultBaseThreshold is the confidence floor an alert must clear when
// no adaptive threshold has been learned yet.
const DefaultBaseThreshold = 0.7

// Urgency buckets alert priority.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// urgencyRank orders urgency tiers for sorting.
func urgencyRank(u Urgency) int {
	switch u {
	case UrgencyCritical:
		return 3
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 1
	default:
		return 0
	}
}

// Alert is one actionable signal raised for the caller.
type Alert struct {
	ID           string                    `json:"id"`
	Symbol       string                    `json:"symbol"`
	Candidate    patterns.PatternCandidate `json:"candidate"`
	Timeframes   []market.Timeframe        `json:"timeframes,omitempty"`
	Confidence   float64                   `json:"confidence"`
	Urgency      Urgency                   `json:"urgency"`
	UrgencyScore float64                   `json:"urgency_score"`
	Threshold    float64                   `json:"threshold"`
	Regime       market.Regime             `json:"regime"`
	Confluence   bool                      `json:"confluence"`
	Message      string                    `json:"message"`
	CreatedAt    time.Time                 `json:"created_at"`
}

// ThresholdSource supplies learned per-pattern alert thresholds. The
// outcome store implements it.
type ThresholdSource interface {
	Threshold(pt patterns.PatternType) (float64, bool)
}

// Generator gates candidates against thresholds and ranks the output.
type Generator struct {
	baseThreshold float64
	thresholds    ThresholdSource
}

// NewGenerator creates a generator with the given base threshold.
// Non-positive values fall back to the default 0.7.
func NewGenerator(baseThreshold float64, thresholds ThresholdSource) *Generator {
	if baseThreshold <= 0 {
		baseThreshold = DefaultBaseThreshold
	}
	return &Generator{baseThreshold: baseThreshold, thresholds: thresholds}
}

// Generate emits alerts for every candidate and cluster whose confidence
// clears its effective threshold, sorted by urgency tier descending with
// confidence as the tiebreak.
func (g *Generator) Generate(symbol string, rg market.Regime, candidates []patterns.PatternCandidate, clusters []confluence.Cluster) []Alert {
	now := time.Now().UTC()
	var out []Alert

	for _, c := range candidates {
		threshold := g.effectiveThreshold(c.PatternType)
		if c.Confidence < threshold {
			continue
		}
		score := urgencyScore(c.Confidence, c.StrengthTier, c.SuccessRateEstimate)
		out = append(out, Alert{
			ID:           uuid.NewString(),
			Symbol:       symbol,
			Candidate:    c,
			Confidence:   c.Confidence,
			Urgency:      urgencyFor(score),
			UrgencyScore: score,
			Threshold:    threshold,
			Regime:       rg,
			Message: fmt.Sprintf("%s %s on %s at %.4f (confidence %.2f)",
				c.Direction, c.PatternType, c.Timeframe, c.EntryPrice, c.Confidence),
			CreatedAt: now,
		})
	}

	for _, cl := range clusters {
		threshold := g.effectiveThreshold(cl.PatternType)
		if cl.Confidence < threshold {
			continue
		}
		lead := leadCandidate(cl)
		lead.Confidence = cl.Confidence
		lead.StrengthTier = patterns.TierForConfidence(cl.Confidence)

		score := urgencyScore(cl.Confidence, lead.StrengthTier, averageEstimate(cl.Candidates))
		out = append(out, Alert{
			ID:           uuid.NewString(),
			Symbol:       symbol,
			Candidate:    lead,
			Timeframes:   cl.Timeframes,
			Confidence:   cl.Confidence,
			Urgency:      urgencyFor(score),
			UrgencyScore: score,
			Threshold:    threshold,
			Regime:       rg,
			Confluence:   true,
			Message: fmt.Sprintf("%s %s confluence across %s (confidence %.2f)",
				cl.Direction, cl.PatternType, joinTimeframes(cl.Timeframes), cl.Confidence),
			CreatedAt: now,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := urgencyRank(out[i].Urgency), urgencyRank(out[j].Urgency)
		if ri != rj {
			return ri > rj
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// effectiveThreshold caps the learned threshold at the base so adaptive
// feedback can only lower the bar, never raise it past the default.
func (g *Generator) effectiveThreshold(pt patterns.PatternType) float64 {
	if g.thresholds == nil {
		return g.baseThreshold
	}
	adaptive, ok := g.thresholds.Threshold(pt)
	if !ok {
		return g.baseThreshold
	}
	if adaptive < g.baseThreshold {
		return adaptive
	}
	return g.baseThreshold
}

// urgencyScore averages confidence, the tier score, and the learned
// success-rate estimate.
func urgencyScore(confidence float64, tier patterns.StrengthTier, estimate float64) float64 {
	return (confidence + patterns.TierScore(tier) + estimate) / 3
}

// urgencyFor buckets an urgency score into its tier.
func urgencyFor(score float64) Urgency {
	switch {
	case score >= 0.9:
		return UrgencyCritical
	case score >= 0.75:
		return UrgencyHigh
	case score >= 0.6:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// leadCandidate picks the strongest member to represent a cluster.
func leadCandidate(cl confluence.Cluster) patterns.PatternCandidate {
	lead := cl.Candidates[0]
	for _, c := range cl.Candidates[1:] {
		if c.Confidence > lead.Confidence {
			lead = c
		}
	}
	return lead
}

func averageEstimate(members []patterns.PatternCandidate) float64 {
	if len(members) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, m := range members {
		sum += m.SuccessRateEstimate
	}
	return sum / float64(len(members))
}

func joinTimeframes(tfs []market.Timeframe) string {
	parts := make([]string, len(tfs))
	for i, tf := range tfs {
		parts[i] = string(tf)
	}
	return strings.Join(parts, ",")
}
