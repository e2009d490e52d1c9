package patterns

import (
	"math"
	"testing"

	"market-pattern-engine/internal/market"
)

// TestScalpingTimeframeGating tests that the scalping family binds to fast charts
func TestScalpingTimeframeGating(t *testing.T) {
	detectors := []Detector{
		NewQuickReversalDetector(),
		NewMomentumScalpDetector(),
		NewRangeScalpDetector(),
	}
	for _, d := range detectors {
		tfs := d.Timeframes()
		if len(tfs) != 2 || tfs[0] != market.TF1m || tfs[1] != market.TF5m {
			t.Errorf("Expected %s to gate to 1m/5m, got %v", d.Name(), tfs)
		}
	}
}

// TestQuickReversalBullish tests two down bars snapped back on volume
func TestQuickReversalBullish(t *testing.T) {
	bars := []market.Bar{
		tbar(0, 101.5, 101.8, 101.2, 101.4, 1000),
		tbar(1, 101.4, 101.6, 100.9, 101.0, 1000),
		tbar(2, 101, 101.1, 99.9, 100, 1000),
		tbar(3, 100, 100.1, 98.9, 99, 1000),
		tbar(4, 99, 100.4, 98.8, 100.2, 2600),
	}

	d := NewQuickReversalDetector()
	got := d.Detect(bars, market.TF1m)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Direction != DirectionBullish {
		t.Errorf("Expected bullish direction, got %s", c.Direction)
	}
	// Push size 2, half retraced from the reversal close
	if math.Abs(c.TargetPrice-101.2) > 1e-9 {
		t.Errorf("Expected target 101.2, got %.4f", c.TargetPrice)
	}
	if c.StopLoss != 98.8 {
		t.Errorf("Expected stop at the reversal low, got %.4f", c.StopLoss)
	}
	if c.Confidence <= 0.5 || c.Confidence > 1.0 {
		t.Errorf("Expected confidence in (0.5, 1.0], got %.4f", c.Confidence)
	}
}

// TestQuickReversalBearish tests two up bars rejected on volume
func TestQuickReversalBearish(t *testing.T) {
	bars := []market.Bar{
		tbar(0, 98.5, 98.8, 98.2, 98.6, 1000),
		tbar(1, 98.6, 99.1, 98.4, 99.0, 1000),
		tbar(2, 99, 100.1, 98.9, 100, 1000),
		tbar(3, 100, 101.1, 99.9, 101, 1000),
		tbar(4, 101, 101.3, 100.2, 100.4, 2600),
	}

	d := NewQuickReversalDetector()
	got := d.Detect(bars, market.TF1m)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Direction != DirectionBearish {
		t.Errorf("Expected bearish direction, got %s", c.Direction)
	}
	// Push size 2 from 99 to 101, half given back
	if math.Abs(c.TargetPrice-99.4) > 1e-9 {
		t.Errorf("Expected target 99.4, got %.4f", c.TargetPrice)
	}
	if c.StopLoss != 101.3 {
		t.Errorf("Expected stop at the rejection high, got %.4f", c.StopLoss)
	}
}

// TestQuickReversalRequiresVolume tests the 1.5x reversal-bar volume gate
func TestQuickReversalRequiresVolume(t *testing.T) {
	bars := []market.Bar{
		tbar(0, 101.5, 101.8, 101.2, 101.4, 1000),
		tbar(1, 101.4, 101.6, 100.9, 101.0, 1000),
		tbar(2, 101, 101.1, 99.9, 100, 1000),
		tbar(3, 100, 100.1, 98.9, 99, 1000),
		tbar(4, 99, 100.4, 98.8, 100.2, 1200),
	}

	d := NewQuickReversalDetector()
	if got := d.Detect(bars, market.TF1m); len(got) != 0 {
		t.Errorf("Should NOT detect quick reversal without a volume spike, got %d candidates", len(got))
	}
}

// TestMomentumScalpBullish tests five rising closes with volume expansion
func TestMomentumScalpBullish(t *testing.T) {
	bars := []market.Bar{
		tbar(0, 100, 100.2, 99.8, 100, 1000),
		tbar(1, 100, 100.3, 99.9, 100.1, 1000),
		tbar(2, 100.1, 100.5, 100, 100.4, 1100),
		tbar(3, 100.4, 100.8, 100.3, 100.7, 1200),
		tbar(4, 100.7, 101.1, 100.6, 101.0, 1300),
		tbar(5, 101.0, 101.4, 100.9, 101.3, 1500),
	}

	d := NewMomentumScalpDetector()
	got := d.Detect(bars, market.TF5m)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Direction != DirectionBullish {
		t.Errorf("Expected bullish direction, got %s", c.Direction)
	}
	burst := (101.3 - 100.1) / 100.1
	if math.Abs(c.Confidence-(0.45+burst*20)) > 1e-9 {
		t.Errorf("Expected confidence %.4f, got %.4f", 0.45+burst*20, c.Confidence)
	}
	if math.Abs(c.TargetPrice-101.3*(1+burst/2)) > 1e-9 {
		t.Errorf("Expected target %.4f, got %.4f", 101.3*(1+burst/2), c.TargetPrice)
	}
}

// TestMomentumScalpBearish tests five falling closes with volume expansion
func TestMomentumScalpBearish(t *testing.T) {
	bars := []market.Bar{
		tbar(0, 100, 100.2, 99.8, 100, 1000),
		tbar(1, 100, 100.1, 99.7, 99.9, 1000),
		tbar(2, 99.9, 100, 99.5, 99.6, 1100),
		tbar(3, 99.6, 99.7, 99.2, 99.3, 1200),
		tbar(4, 99.3, 99.4, 98.9, 99.0, 1300),
		tbar(5, 99.0, 99.1, 98.6, 98.7, 1500),
	}

	d := NewMomentumScalpDetector()
	got := d.Detect(bars, market.TF5m)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].Direction != DirectionBearish {
		t.Errorf("Expected bearish direction, got %s", got[0].Direction)
	}
}

// TestMomentumScalpChoppy tests that a mixed run emits nothing
func TestMomentumScalpChoppy(t *testing.T) {
	bars := []market.Bar{
		tbar(0, 100, 100.2, 99.8, 100, 1000),
		tbar(1, 100, 100.3, 99.9, 100.1, 1000),
		tbar(2, 100.1, 100.5, 100, 100.4, 1100),
		tbar(3, 100.4, 100.5, 100, 100.2, 1200),
		tbar(4, 100.2, 100.8, 100.1, 100.7, 1300),
		tbar(5, 100.7, 101.1, 100.6, 101.0, 1500),
	}

	d := NewMomentumScalpDetector()
	if got := d.Detect(bars, market.TF5m); len(got) != 0 {
		t.Errorf("Should NOT detect momentum scalp on a choppy run, got %d candidates", len(got))
	}
}

// TestRangeScalpFadeLow tests a fade from the bottom of a tight range
func TestRangeScalpFadeLow(t *testing.T) {
	bars := make([]market.Bar, 0, 10)
	for i := 0; i < 9; i++ {
		bars = append(bars, tbar(i, 100.2, 100.4, 100.0, 100.2, 1000))
	}
	bars = append(bars, tbar(9, 100.1, 100.15, 100.0, 100.05, 1000))

	d := NewRangeScalpDetector()
	got := d.Detect(bars, market.TF1m)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Direction != DirectionBullish {
		t.Errorf("Expected bullish direction, got %s", c.Direction)
	}
	// Target is the range midpoint
	if math.Abs(c.TargetPrice-100.2) > 1e-9 {
		t.Errorf("Expected target 100.2, got %.4f", c.TargetPrice)
	}
	if math.Abs(c.StopLoss-99.92) > 1e-9 {
		t.Errorf("Expected stop 99.92, got %.4f", c.StopLoss)
	}
}

// TestRangeScalpFadeHigh tests a fade from the top of a tight range
func TestRangeScalpFadeHigh(t *testing.T) {
	bars := make([]market.Bar, 0, 10)
	for i := 0; i < 9; i++ {
		bars = append(bars, tbar(i, 100.2, 100.4, 100.0, 100.2, 1000))
	}
	bars = append(bars, tbar(9, 100.3, 100.4, 100.25, 100.35, 1000))

	d := NewRangeScalpDetector()
	got := d.Detect(bars, market.TF1m)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].Direction != DirectionBearish {
		t.Errorf("Expected bearish direction, got %s", got[0].Direction)
	}
	if math.Abs(got[0].StopLoss-100.48) > 1e-9 {
		t.Errorf("Expected stop 100.48, got %.4f", got[0].StopLoss)
	}
}

// TestRangeScalpMiddle tests that mid-range price emits nothing
func TestRangeScalpMiddle(t *testing.T) {
	bars := make([]market.Bar, 0, 10)
	for i := 0; i < 10; i++ {
		bars = append(bars, tbar(i, 100.2, 100.4, 100.0, 100.2, 1000))
	}

	d := NewRangeScalpDetector()
	if got := d.Detect(bars, market.TF1m); len(got) != 0 {
		t.Errorf("Should NOT detect range scalp mid-range, got %d candidates", len(got))
	}
}

// TestRangeScalpWideRange tests that a wide range emits nothing
func TestRangeScalpWideRange(t *testing.T) {
	bars := make([]market.Bar, 0, 10)
	for i := 0; i < 9; i++ {
		bars = append(bars, tbar(i, 100, 105, 95, 100, 1000))
	}
	bars = append(bars, tbar(9, 96, 96.5, 95, 95.5, 1000))

	d := NewRangeScalpDetector()
	if got := d.Detect(bars, market.TF1m); len(got) != 0 {
		t.Errorf("Should NOT detect range scalp in a wide range, got %d candidates", len(got))
	}
}
