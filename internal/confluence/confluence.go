// Package confluence groups aligned candidates across timeframes. Two
// detections of the same pattern and direction on different charts are
// worth more than either alone, so clusters carry a boosted aggregate
// confidence.
package confluence

import (
	"fmt"
	"sort"

	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/patterns"
)

const (
	// DefaultMinTimeframes is how many distinct timeframes a cluster needs.
	DefaultMinTimeframes = 2

	timeframeBoost = 0.1
	instanceBoost  = 0.05
)

// Cluster is a group of same-pattern same-direction candidates spanning
// multiple timeframes.
type Cluster struct {
	PatternType patterns.PatternType        `json:"pattern_type"`
	Direction   patterns.Direction          `json:"direction"`
	Timeframes  []market.Timeframe          `json:"timeframes"`
	Candidates  []patterns.PatternCandidate `json:"candidates"`
	Confidence  float64                     `json:"confidence"`
	Reasoning   []string                    `json:"reasoning"`
}

// Engine clusters candidates by pattern type and direction.
type Engine struct {
	minTimeframes int
}

// NewEngine creates a confluence engine requiring at least
// minTimeframes distinct timeframes per cluster.
func NewEngine(minTimeframes int) *Engine {
	if minTimeframes <= 0 {
		minTimeframes = DefaultMinTimeframes
	}
	return &Engine{minTimeframes: minTimeframes}
}

// Clusters groups the candidates and scores each cluster:
//
//	aggregate = avg(confidences) + 0.1*timeframes + 0.05*instances
//
// clamped to [0, 1] and never below the strongest member, so joining a
// cluster can only raise a candidate's effective confidence.
func (e *Engine) Clusters(candidates []patterns.PatternCandidate) []Cluster {
	type key struct {
		pt  patterns.PatternType
		dir patterns.Direction
	}

	groups := make(map[key][]patterns.PatternCandidate)
	for _, c := range candidates {
		k := key{pt: c.PatternType, dir: c.Direction}
		groups[k] = append(groups[k], c)
	}

	var out []Cluster
	for k, members := range groups {
		tfs := distinctTimeframes(members)
		if len(tfs) < e.minTimeframes {
			continue
		}

		sum := 0.0
		strongest := 0.0
		for _, m := range members {
			sum += m.Confidence
			if m.Confidence > strongest {
				strongest = m.Confidence
			}
		}
		avg := sum / float64(len(members))

		confidence := avg + timeframeBoost*float64(len(tfs)) + instanceBoost*float64(len(members))
		if confidence > 1 {
			confidence = 1
		}
		if confidence < strongest {
			confidence = strongest
		}

		out = append(out, Cluster{
			PatternType: k.pt,
			Direction:   k.dir,
			Timeframes:  tfs,
			Candidates:  members,
			Confidence:  confidence,
			Reasoning: []string{
				fmt.Sprintf("%s %s aligned across %d timeframes", k.dir, k.pt, len(tfs)),
				fmt.Sprintf("%d instances, average confidence %.2f", len(members), avg),
			},
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].PatternType != out[j].PatternType {
			return out[i].PatternType < out[j].PatternType
		}
		return out[i].Direction < out[j].Direction
	})
	return out
}

// distinctTimeframes returns the member timeframes shortest-first
// without duplicates.
func distinctTimeframes(members []patterns.PatternCandidate) []market.Timeframe {
	seen := make(map[market.Timeframe]bool, len(members))
	for _, m := range members {
		seen[m.Timeframe] = true
	}
	var out []market.Timeframe
	for _, tf := range market.AllTimeframes() {
		if seen[tf] {
			out = append(out, tf)
		}
	}
	return out
}
