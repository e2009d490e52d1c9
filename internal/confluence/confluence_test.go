package confluence

import (
	"math"
	"testing"

	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/patterns"
)

func member(pt patterns.PatternType, dir patterns.Direction, tf market.Timeframe, confidence float64) patterns.PatternCandidate {
	return patterns.PatternCandidate{
		PatternType: pt,
		Direction:   dir,
		Timeframe:   tf,
		Confidence:  confidence,
	}
}

// TestClustersAcrossTimeframes tests the aggregate confidence formula
func TestClustersAcrossTimeframes(t *testing.T) {
	e := NewEngine(0)

	got := e.Clusters([]patterns.PatternCandidate{
		member(patterns.Momentum, patterns.DirectionBullish, market.TF1h, 0.6),
		member(patterns.Momentum, patterns.DirectionBullish, market.TF4h, 0.7),
	})
	if len(got) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(got))
	}

	c := got[0]
	if c.PatternType != patterns.Momentum || c.Direction != patterns.DirectionBullish {
		t.Errorf("Expected bullish momentum cluster, got %s %s", c.Direction, c.PatternType)
	}
	// avg 0.65 + 0.1*2 timeframes + 0.05*2 instances
	if math.Abs(c.Confidence-0.95) > 1e-12 {
		t.Errorf("Expected aggregate confidence 0.95, got %f", c.Confidence)
	}
	if len(c.Timeframes) != 2 || c.Timeframes[0] != market.TF1h || c.Timeframes[1] != market.TF4h {
		t.Errorf("Expected timeframes [1h 4h], got %v", c.Timeframes)
	}
}

// TestClusterNeverBelowStrongestMember tests the aggregate floor
func TestClusterNeverBelowStrongestMember(t *testing.T) {
	e := NewEngine(0)

	// avg 0.55 + 0.2 + 0.1 = 0.85, below the 0.9 member
	got := e.Clusters([]patterns.PatternCandidate{
		member(patterns.DoubleTop, patterns.DirectionBearish, market.TF1h, 0.9),
		member(patterns.DoubleTop, patterns.DirectionBearish, market.TF4h, 0.2),
	})
	if len(got) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(got))
	}
	if got[0].Confidence != 0.9 {
		t.Errorf("Expected confidence floored at 0.9, got %f", got[0].Confidence)
	}
}

// TestClusterConfidenceClamped tests the upper bound
func TestClusterConfidenceClamped(t *testing.T) {
	e := NewEngine(0)

	got := e.Clusters([]patterns.PatternCandidate{
		member(patterns.RangeBreakout, patterns.DirectionBullish, market.TF5m, 0.9),
		member(patterns.RangeBreakout, patterns.DirectionBullish, market.TF1h, 0.9),
		member(patterns.RangeBreakout, patterns.DirectionBullish, market.TF4h, 0.9),
	})
	if len(got) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(got))
	}
	if got[0].Confidence != 1.0 {
		t.Errorf("Expected confidence clamped at 1.0, got %f", got[0].Confidence)
	}
}

// TestSingleTimeframeNoCluster tests the distinct-timeframe requirement
func TestSingleTimeframeNoCluster(t *testing.T) {
	e := NewEngine(0)

	got := e.Clusters([]patterns.PatternCandidate{
		member(patterns.Momentum, patterns.DirectionBullish, market.TF1h, 0.6),
		member(patterns.Momentum, patterns.DirectionBullish, market.TF1h, 0.8),
	})
	if len(got) != 0 {
		t.Errorf("Should NOT cluster candidates from a single timeframe, got %d clusters", len(got))
	}
}

// TestOppositeDirectionsDoNotCluster tests direction separation
func TestOppositeDirectionsDoNotCluster(t *testing.T) {
	e := NewEngine(0)

	got := e.Clusters([]patterns.PatternCandidate{
		member(patterns.Momentum, patterns.DirectionBullish, market.TF1h, 0.6),
		member(patterns.Momentum, patterns.DirectionBearish, market.TF4h, 0.7),
	})
	if len(got) != 0 {
		t.Errorf("Should NOT cluster opposite directions, got %d clusters", len(got))
	}
}

// TestClustersSorted tests confidence-descending cluster order
func TestClustersSorted(t *testing.T) {
	e := NewEngine(0)

	got := e.Clusters([]patterns.PatternCandidate{
		member(patterns.Momentum, patterns.DirectionBullish, market.TF1h, 0.3),
		member(patterns.Momentum, patterns.DirectionBullish, market.TF4h, 0.3),
		member(patterns.DoubleBottom, patterns.DirectionBullish, market.TF1h, 0.7),
		member(patterns.DoubleBottom, patterns.DirectionBullish, market.TF1d, 0.7),
	})
	if len(got) != 2 {
		t.Fatalf("Expected 2 clusters, got %d", len(got))
	}
	if got[0].PatternType != patterns.DoubleBottom {
		t.Errorf("Expected the stronger cluster first, got %s", got[0].PatternType)
	}
	if got[0].Confidence < got[1].Confidence {
		t.Error("Expected clusters sorted by confidence descending")
	}
}

// TestEmptyInput tests the empty candidate list
func TestEmptyInput(t *testing.T) {
	e := NewEngine(0)
	if got := e.Clusters(nil); len(got) != 0 {
		t.Errorf("Expected no clusters from no candidates, got %d", len(got))
	}
}
