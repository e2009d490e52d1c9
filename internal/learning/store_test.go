package learning

import (
	"math"
	"testing"
	"time"

	"market-pattern-engine/internal/adaptive"
	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/patterns"
)

func outcome(pt patterns.PatternType, success bool, rg market.Regime) PerformanceRecord {
	return PerformanceRecord{
		PatternType: pt,
		Timeframe:   market.TF1h,
		Direction:   patterns.DirectionBullish,
		Regime:      rg,
		Confidence:  0.7,
		Success:     success,
		Timestamp:   time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC),
	}
}

// TestEmptyStoreDefaults tests the neutral values before any outcomes
func TestEmptyStoreDefaults(t *testing.T) {
	s := NewStore(0, 0, 0)

	if got := s.SuccessRate(patterns.RangeBreakout, 10); got != 0.5 {
		t.Errorf("Expected neutral success rate 0.5, got %f", got)
	}
	if _, ok := s.Threshold(patterns.RangeBreakout); ok {
		t.Error("Should NOT have a threshold before any outcomes")
	}
	if got := s.PredictFor(patterns.RangeBreakout, make([]float64, adaptive.FeatureCount)); got != 0.5 {
		t.Errorf("Expected neutral prediction 0.5, got %f", got)
	}
	if s.TotalRecords() != 0 {
		t.Errorf("Expected empty store, got %d records", s.TotalRecords())
	}
}

// TestThresholdLoosensAfterWins tests the adaptive threshold dropping to 0.6
func TestThresholdLoosensAfterWins(t *testing.T) {
	s := NewStore(0, 0, 0)
	for i := 0; i < 10; i++ {
		s.RecordOutcome(outcome(patterns.Momentum, true, market.RegimeBullish))
	}

	th, ok := s.Threshold(patterns.Momentum)
	if !ok {
		t.Fatal("Expected a learned threshold after outcomes")
	}
	if math.Abs(th-0.6) > 1e-12 {
		t.Errorf("Expected threshold 0.6 after 10 wins, got %f", th)
	}
}

// TestThresholdTightensAfterLosses tests the adaptive threshold rising to 0.8
func TestThresholdTightensAfterLosses(t *testing.T) {
	s := NewStore(0, 0, 0)
	for i := 0; i < 10; i++ {
		s.RecordOutcome(outcome(patterns.Momentum, false, market.RegimeBullish))
	}

	th, _ := s.Threshold(patterns.Momentum)
	if math.Abs(th-0.8) > 1e-12 {
		t.Errorf("Expected threshold 0.8 after 10 losses, got %f", th)
	}
}

// TestThresholdBounds tests the hard clamp on imported thresholds
func TestThresholdBounds(t *testing.T) {
	if got := clampThreshold(1.2); got != 0.9 {
		t.Errorf("Expected upper clamp 0.9, got %f", got)
	}
	if got := clampThreshold(0.3); got != 0.5 {
		t.Errorf("Expected lower clamp 0.5, got %f", got)
	}
}

// TestThresholdMonotonicUnderStreaks tests that a win streak never raises
// the threshold and a loss streak never lowers it
func TestThresholdMonotonicUnderStreaks(t *testing.T) {
	s := NewStore(0, 0, 0)
	for i := 0; i < 10; i++ {
		s.RecordOutcome(outcome(patterns.Momentum, false, market.RegimeBullish))
	}
	prev, _ := s.Threshold(patterns.Momentum)

	for i := 0; i < 15; i++ {
		s.RecordOutcome(outcome(patterns.Momentum, true, market.RegimeBullish))
		th, _ := s.Threshold(patterns.Momentum)
		if th > prev {
			t.Fatalf("Win %d raised the threshold from %f to %f", i+1, prev, th)
		}
		prev = th
	}

	for i := 0; i < 15; i++ {
		s.RecordOutcome(outcome(patterns.Momentum, false, market.RegimeBullish))
		th, _ := s.Threshold(patterns.Momentum)
		if th < prev {
			t.Fatalf("Loss %d lowered the threshold from %f to %f", i+1, prev, th)
		}
		prev = th
	}
}

// TestSuccessRateWindow tests that only the last window outcomes count
func TestSuccessRateWindow(t *testing.T) {
	s := NewStore(0, 0, 0)
	for i := 0; i < 10; i++ {
		s.RecordOutcome(outcome(patterns.DoubleTop, false, market.RegimeSideways))
	}
	for i := 0; i < 10; i++ {
		s.RecordOutcome(outcome(patterns.DoubleTop, true, market.RegimeSideways))
	}

	if got := s.SuccessRate(patterns.DoubleTop, 10); got != 1.0 {
		t.Errorf("Expected rate 1.0 over the last 10, got %f", got)
	}
	if got := s.SuccessRate(patterns.DoubleTop, 20); got != 0.5 {
		t.Errorf("Expected rate 0.5 over all 20, got %f", got)
	}
}

// TestHistoryCapacity tests the oldest-first eviction at 100 records
func TestHistoryCapacity(t *testing.T) {
	s := NewStore(0, 0, 0)
	for i := 0; i < 105; i++ {
		rec := outcome(patterns.RangeBreakout, true, market.RegimeBullish)
		rec.Confidence = float64(i)
		s.RecordOutcome(rec)
	}

	if got := s.RecordCount(patterns.RangeBreakout); got != 100 {
		t.Errorf("Expected 100 retained records, got %d", got)
	}

	snap := s.Export()
	recs := snap.Records[patterns.RangeBreakout]
	if recs[0].Confidence != 5 {
		t.Errorf("Expected oldest 5 records evicted, first retained has confidence %f", recs[0].Confidence)
	}
	if recs[len(recs)-1].Confidence != 104 {
		t.Errorf("Expected newest record retained, got confidence %f", recs[len(recs)-1].Confidence)
	}
}

// TestSuccessRateInRegime tests regime-filtered rates
func TestSuccessRateInRegime(t *testing.T) {
	s := NewStore(0, 0, 0)
	for i := 0; i < 3; i++ {
		s.RecordOutcome(outcome(patterns.Momentum, true, market.RegimeBullish))
		s.RecordOutcome(outcome(patterns.Momentum, false, market.RegimeBearish))
	}

	if got := s.SuccessRateInRegime(patterns.Momentum, market.RegimeBullish, 10); got != 1.0 {
		t.Errorf("Expected bullish rate 1.0, got %f", got)
	}
	if got := s.SuccessRateInRegime(patterns.Momentum, market.RegimeBearish, 10); got != 0.0 {
		t.Errorf("Expected bearish rate 0.0, got %f", got)
	}
	if got := s.SuccessRateInRegime(patterns.Momentum, market.RegimeVolatile, 10); got != 0.5 {
		t.Errorf("Expected neutral rate for an unseen regime, got %f", got)
	}
}

// TestUnknownPatternAutoRegisters tests first-outcome registration
func TestUnknownPatternAutoRegisters(t *testing.T) {
	s := NewStore(0, 0, 0)
	custom := patterns.PatternType("custom_signal")

	s.RecordOutcome(outcome(custom, true, market.RegimeSideways))

	if _, ok := s.Threshold(custom); !ok {
		t.Error("Expected a threshold for an auto-registered pattern type")
	}
	if got := s.RecordCount(custom); got != 1 {
		t.Errorf("Expected 1 record, got %d", got)
	}
}

// TestScorerTrainsOnOutcomes tests that recorded features move predictions
func TestScorerTrainsOnOutcomes(t *testing.T) {
	s := NewStore(0, 0, 0)
	features := []float64{1, 1, 1, 1, 1, 1, 1, 1}

	for i := 0; i < 30; i++ {
		rec := outcome(patterns.VolumeBreakout, true, market.RegimeBullish)
		rec.Features = features
		s.RecordOutcome(rec)
	}

	if got := s.PredictFor(patterns.VolumeBreakout, features); got <= 0.5 {
		t.Errorf("Expected prediction above 0.5 after consistent wins, got %f", got)
	}
}

// TestExportImportRoundTrip tests snapshot portability
func TestExportImportRoundTrip(t *testing.T) {
	src := NewStore(0, 0, 0)
	features := []float64{0.7, 0.8, 0.4, 0.01, 0.02, 2.0, 0.005, 0.1}
	for i := 0; i < 12; i++ {
		rec := outcome(patterns.Momentum, i%3 != 0, market.RegimeBullish)
		rec.Features = features
		src.RecordOutcome(rec)
	}

	dst := NewStore(0, 0, 0)
	dst.Import(src.Export())

	srcTh, _ := src.Threshold(patterns.Momentum)
	dstTh, ok := dst.Threshold(patterns.Momentum)
	if !ok || math.Abs(srcTh-dstTh) > 1e-12 {
		t.Errorf("Expected threshold %f after import, got %f", srcTh, dstTh)
	}
	if src.SuccessRate(patterns.Momentum, 10) != dst.SuccessRate(patterns.Momentum, 10) {
		t.Error("Expected identical success rates after import")
	}
	srcPred := src.PredictFor(patterns.Momentum, features)
	dstPred := dst.PredictFor(patterns.Momentum, features)
	if math.Abs(srcPred-dstPred) > 1e-12 {
		t.Errorf("Expected identical predictions after import, got %f vs %f", srcPred, dstPred)
	}
	if src.TotalRecords() != dst.TotalRecords() {
		t.Errorf("Expected %d records after import, got %d", src.TotalRecords(), dst.TotalRecords())
	}
}

// TestReset tests that reset drops all learned state
func TestReset(t *testing.T) {
	s := NewStore(0, 0, 0)
	for i := 0; i < 10; i++ {
		s.RecordOutcome(outcome(patterns.Momentum, true, market.RegimeBullish))
	}

	s.Reset()

	if s.TotalRecords() != 0 {
		t.Errorf("Expected no records after reset, got %d", s.TotalRecords())
	}
	if _, ok := s.Threshold(patterns.Momentum); ok {
		t.Error("Should NOT keep thresholds after reset")
	}
	if got := s.SuccessRate(patterns.Momentum, 10); got != 0.5 {
		t.Errorf("Expected neutral rate after reset, got %f", got)
	}
}
