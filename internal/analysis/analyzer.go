// Package analysis runs the detector sweep across timeframes and
// assembles the combined candidate view the downstream stages consume.
package analysis

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"market-pattern-engine/internal/adaptive"
	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/patterns"
)

const successRateWindow = 10

// History supplies learned statistics for the candidate quality pass.
// The outcome store implements it; a nil history yields neutral values.
type History interface {
	RecordCount(pt patterns.PatternType) int
	SuccessRate(pt patterns.PatternType, window int) float64
}

// TimeframeAnalysis holds one timeframe's detector sweep.
type TimeframeAnalysis struct {
	Timeframe  market.Timeframe            `json:"timeframe"`
	BarCount   int                         `json:"bar_count"`
	Candidates []patterns.PatternCandidate `json:"candidates"`
}

// MultiTimeframeAnalysis is the assembled sweep across every supplied
// timeframe, flattened in timeframe order.
type MultiTimeframeAnalysis struct {
	Symbol     string                      `json:"symbol"`
	Timestamp  time.Time                   `json:"timestamp"`
	Timeframes []TimeframeAnalysis         `json:"timeframes"`
	Candidates []patterns.PatternCandidate `json:"candidates"`
}

// Analyzer fans the registered detectors out over the supplied
// timeframes in parallel.
type Analyzer struct {
	registry *patterns.Registry
	history  History
}

// NewAnalyzer creates an analyzer over the given detector registry.
func NewAnalyzer(registry *patterns.Registry, history History) *Analyzer {
	return &Analyzer{registry: registry, history: history}
}

// Analyze sweeps every supplied timeframe with the applicable detectors
// and returns the candidates enriched with features, strength tiers,
// and success-rate estimates. Timeframes with too few bars simply
// contribute nothing.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, barsByTimeframe map[market.Timeframe][]market.Bar) (*MultiTimeframeAnalysis, error) {
	result := &MultiTimeframeAnalysis{
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
	}

	// Fixed shortest-first timeframe order keeps output deterministic
	var order []market.Timeframe
	for _, tf := range market.AllTimeframes() {
		if len(barsByTimeframe[tf]) > 0 {
			order = append(order, tf)
		}
	}
	if len(order) == 0 {
		return result, nil
	}

	sweeps := make([]TimeframeAnalysis, len(order))
	g, ctx := errgroup.WithContext(ctx)
	for i, tf := range order {
		i, tf := i, tf
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			sweeps[i] = a.sweep(tf, barsByTimeframe[tf])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Timeframes = sweeps
	for _, sweep := range sweeps {
		result.Candidates = append(result.Candidates, sweep.Candidates...)
	}
	return result, nil
}

// sweep runs every applicable detector against one timeframe's bars.
func (a *Analyzer) sweep(tf market.Timeframe, bars []market.Bar) TimeframeAnalysis {
	out := TimeframeAnalysis{Timeframe: tf, BarCount: len(bars)}

	for _, d := range a.registry.ApplicableTo(tf) {
		if len(bars) < d.MinBars() {
			continue
		}
		for _, c := range d.Detect(bars, tf) {
			out.Candidates = append(out.Candidates, a.enrich(c, bars))
		}
	}

	sort.SliceStable(out.Candidates, func(i, j int) bool {
		ci, cj := out.Candidates[i], out.Candidates[j]
		if ci.Confidence != cj.Confidence {
			return ci.Confidence > cj.Confidence
		}
		if ci.PatternType != cj.PatternType {
			return ci.PatternType < cj.PatternType
		}
		return ci.Direction < cj.Direction
	})
	return out
}

// enrich attaches the feature vector, the strength tier, and the
// learned success-rate estimate to a raw detector candidate.
func (a *Analyzer) enrich(c patterns.PatternCandidate, bars []market.Bar) patterns.PatternCandidate {
	sampleCount := 0
	estimate := 0.5
	if a.history != nil {
		sampleCount = a.history.RecordCount(c.PatternType)
		estimate = a.history.SuccessRate(c.PatternType, successRateWindow)
	}

	c.Features = adaptive.ExtractFeatures(c, bars, sampleCount)
	c.StrengthTier = patterns.TierForConfidence(c.Confidence)
	c.SuccessRateEstimate = estimate
	return c
}
