package patterns

import (
	"math"
	"testing"

	"market-pattern-engine/internal/market"
)

// TestVolumeBreakoutBullish tests an upside push on a 3x volume spike
func TestVolumeBreakoutBullish(t *testing.T) {
	bars := flatBars(20, 100, 1000)
	bars = append(bars, tbar(20, 100, 102.5, 99.8, 102, 3000))

	d := NewVolumeBreakoutDetector(0)
	got := d.Detect(bars, market.TF1h)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Direction != DirectionBullish {
		t.Errorf("Expected bullish direction, got %s", c.Direction)
	}
	// volumeRatio 3.0 and a 2% move both saturate their terms
	if math.Abs(c.Confidence-1.0) > 1e-9 {
		t.Errorf("Expected confidence 1.0, got %.4f", c.Confidence)
	}
	if math.Abs(c.TargetPrice-102*1.04) > 1e-9 {
		t.Errorf("Expected target %.4f, got %.4f", 102*1.04, c.TargetPrice)
	}
	if math.Abs(c.StopLoss-102*0.98) > 1e-9 {
		t.Errorf("Expected stop %.4f, got %.4f", 102*0.98, c.StopLoss)
	}
}

// TestVolumeBreakoutBearish tests a downside push on a volume spike
func TestVolumeBreakoutBearish(t *testing.T) {
	bars := flatBars(20, 100, 1000)
	bars = append(bars, tbar(20, 100, 100.2, 97.5, 98, 3000))

	d := NewVolumeBreakoutDetector(0)
	got := d.Detect(bars, market.TF1h)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].Direction != DirectionBearish {
		t.Errorf("Expected bearish direction, got %s", got[0].Direction)
	}
	if got[0].TargetPrice >= 98 {
		t.Errorf("Expected bearish target below close, got %.4f", got[0].TargetPrice)
	}
}

// TestVolumeBreakoutRequiresSpike tests the 2x volume gate
func TestVolumeBreakoutRequiresSpike(t *testing.T) {
	bars := flatBars(20, 100, 1000)
	bars = append(bars, tbar(20, 100, 102.5, 99.8, 102, 1500))

	d := NewVolumeBreakoutDetector(0)
	if got := d.Detect(bars, market.TF1h); len(got) != 0 {
		t.Errorf("Should NOT detect volume breakout at 1.5x volume, got %d candidates", len(got))
	}
}

// TestVolumeBreakoutRequiresMove tests that a spike without a price move is ignored
func TestVolumeBreakoutRequiresMove(t *testing.T) {
	bars := flatBars(20, 100, 1000)
	bars = append(bars, tbar(20, 100, 100.5, 99.5, 100, 3000))

	d := NewVolumeBreakoutDetector(0)
	if got := d.Detect(bars, market.TF1h); len(got) != 0 {
		t.Errorf("Should NOT detect volume breakout on an unchanged close, got %d candidates", len(got))
	}
}

// TestVolumeDivergenceFadingRally tests a rising price on drying volume
func TestVolumeDivergenceFadingRally(t *testing.T) {
	bars := make([]market.Bar, 0, 20)
	for i := 0; i < 10; i++ {
		bars = append(bars, tbar(i, 100, 100.5, 99.5, 100, 2000))
	}
	for i := 10; i < 20; i++ {
		bars = append(bars, tbar(i, 102, 102.5, 101.5, 102, 1000))
	}

	d := NewVolumeDivergenceDetector(0)
	got := d.Detect(bars, market.TF1h)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Direction != DirectionBearish {
		t.Errorf("Expected bearish direction for a fading rally, got %s", c.Direction)
	}
	// Half-to-half volume ratio 0.5
	if math.Abs(c.Confidence-0.5) > 1e-9 {
		t.Errorf("Expected confidence 0.5, got %.4f", c.Confidence)
	}
}

// TestVolumeDivergenceSellingExhaustion tests a falling price on drying volume
func TestVolumeDivergenceSellingExhaustion(t *testing.T) {
	bars := make([]market.Bar, 0, 20)
	for i := 0; i < 10; i++ {
		bars = append(bars, tbar(i, 100, 100.5, 99.5, 100, 2000))
	}
	for i := 10; i < 20; i++ {
		bars = append(bars, tbar(i, 98, 98.5, 97.5, 98, 1000))
	}

	d := NewVolumeDivergenceDetector(0)
	got := d.Detect(bars, market.TF1h)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].Direction != DirectionBullish {
		t.Errorf("Expected bullish direction for selling exhaustion, got %s", got[0].Direction)
	}
}

// TestVolumeDivergenceRequiresDryUp tests the volume contraction gate
func TestVolumeDivergenceRequiresDryUp(t *testing.T) {
	bars := make([]market.Bar, 0, 20)
	for i := 0; i < 10; i++ {
		bars = append(bars, tbar(i, 100, 100.5, 99.5, 100, 2000))
	}
	for i := 10; i < 20; i++ {
		bars = append(bars, tbar(i, 102, 102.5, 101.5, 102, 2000))
	}

	d := NewVolumeDivergenceDetector(0)
	if got := d.Detect(bars, market.TF1h); len(got) != 0 {
		t.Errorf("Should NOT detect divergence on steady volume, got %d candidates", len(got))
	}
}

// TestVolumeDivergenceRequiresTrend tests the minimum price move gate
func TestVolumeDivergenceRequiresTrend(t *testing.T) {
	bars := make([]market.Bar, 0, 20)
	for i := 0; i < 10; i++ {
		bars = append(bars, tbar(i, 100, 100.5, 99.5, 100, 2000))
	}
	for i := 10; i < 20; i++ {
		bars = append(bars, tbar(i, 100.2, 100.7, 99.7, 100.2, 1000))
	}

	d := NewVolumeDivergenceDetector(0)
	if got := d.Detect(bars, market.TF1h); len(got) != 0 {
		t.Errorf("Should NOT detect divergence without a price trend, got %d candidates", len(got))
	}
}

// TestAccumulation tests buy-side volume dominance
func TestAccumulation(t *testing.T) {
	bars := make([]market.Bar, 0, 20)
	for i := 0; i < 20; i++ {
		if i%4 == 3 {
			// 5 down bars on light volume
			bars = append(bars, tbar(i, 100.5, 100.8, 99.8, 100, 500))
		} else {
			// 15 up bars on heavy volume
			bars = append(bars, tbar(i, 100, 100.8, 99.8, 100.5, 1500))
		}
	}

	d := NewAccumulationDetector(0)
	got := d.Detect(bars, market.TF1h)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Direction != DirectionBullish {
		t.Errorf("Expected bullish direction, got %s", c.Direction)
	}
	// 22500 of 25000 total volume traded on up candles
	if math.Abs(c.Confidence-0.9) > 1e-9 {
		t.Errorf("Expected confidence 0.9, got %.4f", c.Confidence)
	}
}

// TestDistribution tests sell-side volume dominance
func TestDistribution(t *testing.T) {
	bars := make([]market.Bar, 0, 20)
	for i := 0; i < 20; i++ {
		if i%4 == 3 {
			bars = append(bars, tbar(i, 100, 100.8, 99.8, 100.5, 500))
		} else {
			bars = append(bars, tbar(i, 100.5, 100.8, 99.8, 100, 1500))
		}
	}

	d := NewAccumulationDetector(0)
	got := d.Detect(bars, market.TF1h)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].Direction != DirectionBearish {
		t.Errorf("Expected bearish direction, got %s", got[0].Direction)
	}
}

// TestAccumulationBalanced tests that balanced flow emits nothing
func TestAccumulationBalanced(t *testing.T) {
	bars := make([]market.Bar, 0, 20)
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			bars = append(bars, tbar(i, 100, 100.8, 99.8, 100.5, 1000))
		} else {
			bars = append(bars, tbar(i, 100.5, 100.8, 99.8, 100, 1000))
		}
	}

	d := NewAccumulationDetector(0)
	if got := d.Detect(bars, market.TF1h); len(got) != 0 {
		t.Errorf("Expected no candidates on balanced flow, got %d", len(got))
	}
}
