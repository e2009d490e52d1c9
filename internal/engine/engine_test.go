package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"market-pattern-engine/internal/events"
	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/metrics"
	"market-pattern-engine/internal/patterns"
)

var engineBarBase = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func ebar(i int, open, high, low, closePrice, volume float64, tf market.Timeframe) market.Bar {
	return market.Bar{
		Timestamp: engineBarBase.Add(time.Duration(i) * time.Hour),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		Timeframe: tf,
	}
}

// volumeSpikeBars ends with a 3x volume bar closing 2% up, which the volume
// breakout detector scores at full confidence.
func volumeSpikeBars(tf market.Timeframe) []market.Bar {
	bars := make([]market.Bar, 0, 21)
	for i := 0; i < 20; i++ {
		bars = append(bars, ebar(i, 100, 100.5, 99.5, 100, 1000, tf))
	}
	return append(bars, ebar(20, 100, 102.5, 99.8, 102, 3000, tf))
}

// oversoldBars pins RSI at exactly 25: one +1 change followed by thirteen
// equal drops summing to -3. The deep bar lows keep the stochastic in its
// neutral band so only the RSI rule fires.
func oversoldBars(tf market.Timeframe) []market.Bar {
	closes := []float64{103, 104}
	for i := 0; i < 13; i++ {
		closes = append(closes, closes[len(closes)-1]-3.0/13.0)
	}
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = ebar(i, c+0.1, c+0.3, c-3, c, 1000, tf)
	}
	return bars
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return e
}

// TestEngineAnalyzeEmitsAlerts tests the full pipeline on a volume spike
func TestEngineAnalyzeEmitsAlerts(t *testing.T) {
	e := newTestEngine(t, Config{})

	result, err := e.Analyze(context.Background(), "BTCUSDT", map[market.Timeframe][]market.Bar{
		market.TF1h: volumeSpikeBars(market.TF1h),
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if result.ID == "" {
		t.Error("Expected a result ID")
	}
	if result.Symbol != "BTCUSDT" {
		t.Errorf("Expected symbol BTCUSDT, got %s", result.Symbol)
	}
	if result.Regime.Regime != market.RegimeSideways {
		t.Errorf("Expected sideways regime under the lookback, got %s", result.Regime.Regime)
	}
	if len(result.Candidates) == 0 {
		t.Fatal("Should detect candidates on a volume spike")
	}

	found := false
	for _, a := range result.Alerts {
		if a.Confidence < 0.7 {
			t.Errorf("Alert below base threshold: %f", a.Confidence)
		}
		if a.Candidate.PatternType == patterns.VolumeBreakout {
			found = true
			if a.Confidence != 1.0 {
				t.Errorf("Expected volume breakout confidence 1.0, got %f", a.Confidence)
			}
		}
	}
	if !found {
		t.Error("Should emit a volume breakout alert")
	}
}

// TestEngineAnalyzeEmptyInput tests the no-data path
func TestEngineAnalyzeEmptyInput(t *testing.T) {
	e := newTestEngine(t, Config{})

	result, err := e.Analyze(context.Background(), "BTCUSDT", nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if result.Regime.Regime != market.RegimeSideways {
		t.Errorf("Expected sideways default, got %s", result.Regime.Regime)
	}
	if len(result.Candidates) != 0 || len(result.Alerts) != 0 {
		t.Error("Should NOT produce candidates or alerts without bars")
	}
}

// TestEngineConfigValidation tests eager rejection of bad settings
func TestEngineConfigValidation(t *testing.T) {
	bad := []Config{
		{BaseAlertThreshold: -0.1},
		{BaseAlertThreshold: 1.1},
		{PerformanceHistoryWindow: -1},
		{PerformanceRecordCap: -5},
		{RegimeLookback: -1},
		{PeakTroughMinDistance: -2},
		{MinConfluenceTimeframes: 1},
	}
	for i, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Errorf("Case %d: expected a configuration error", i)
		}
	}

	if _, err := New(Config{}); err != nil {
		t.Errorf("Zero config should use defaults, got %v", err)
	}
}

// TestEngineRecordOutcomeAdjustsThreshold tests the feedback loop
func TestEngineRecordOutcomeAdjustsThreshold(t *testing.T) {
	e := newTestEngine(t, Config{})

	for i := 0; i < 10; i++ {
		e.RecordOutcome(Outcome{
			PatternType: patterns.Momentum,
			Regime:      market.RegimeSideways,
			Confidence:  0.8,
			Success:     true,
		})
	}

	if got := e.Thresholds()[patterns.Momentum]; got != 0.6 {
		t.Errorf("Expected threshold 0.6 after 10 wins, got %f", got)
	}
	if got := e.TotalOutcomes(); got != 10 {
		t.Errorf("Expected 10 outcomes, got %d", got)
	}
}

// TestEngineHistoryLiftsConfidence tests the adjusted confidence path
func TestEngineHistoryLiftsConfidence(t *testing.T) {
	e := newTestEngine(t, Config{})

	for i := 0; i < 10; i++ {
		e.RecordOutcome(Outcome{
			PatternType: patterns.Momentum,
			Regime:      market.RegimeSideways,
			Confidence:  0.8,
			Success:     true,
		})
	}

	result, err := e.Analyze(context.Background(), "BTCUSDT", map[market.Timeframe][]market.Bar{
		market.TF1h: oversoldBars(market.TF1h),
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	var momentum *patterns.PatternCandidate
	for i := range result.Candidates {
		if result.Candidates[i].PatternType == patterns.Momentum {
			momentum = &result.Candidates[i]
			break
		}
	}
	if momentum == nil {
		t.Fatal("Should detect a momentum candidate at RSI 25")
	}

	// Base (30-25)/30 plus the full +0.1 hot-streak adjustment; the
	// untrained scorer contributes nothing.
	want := 5.0/30.0 + 0.1
	if math.Abs(momentum.Confidence-want) > 1e-6 {
		t.Errorf("Expected adjusted confidence %f, got %f", want, momentum.Confidence)
	}
	if momentum.SuccessRateEstimate != 1.0 {
		t.Errorf("Expected success rate estimate 1.0, got %f", momentum.SuccessRateEstimate)
	}
}

// TestEngineExportImportRoundTrip tests learned-state persistence
func TestEngineExportImportRoundTrip(t *testing.T) {
	first := newTestEngine(t, Config{})
	for i := 0; i < 6; i++ {
		first.RecordOutcome(Outcome{
			PatternType: patterns.RangeBreakout,
			Regime:      market.RegimeBullish,
			Confidence:  0.75,
			Success:     i%2 == 0,
		})
	}

	second := newTestEngine(t, Config{})
	second.ImportLearningState(first.ExportLearningState())

	if got, want := second.TotalOutcomes(), first.TotalOutcomes(); got != want {
		t.Errorf("Expected %d outcomes after import, got %d", want, got)
	}
	if got, want := second.Thresholds()[patterns.RangeBreakout], first.Thresholds()[patterns.RangeBreakout]; got != want {
		t.Errorf("Expected threshold %f after import, got %f", want, got)
	}
}

// TestEngineResetLearning tests the learning reset
func TestEngineResetLearning(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.RecordOutcome(Outcome{PatternType: patterns.Momentum, Success: true})

	e.ResetLearning()

	if got := e.TotalOutcomes(); got != 0 {
		t.Errorf("Expected 0 outcomes after reset, got %d", got)
	}
	if got := len(e.Thresholds()); got != 0 {
		t.Errorf("Expected empty threshold table after reset, got %d entries", got)
	}
}

// TestEngineRegimeTimeframe tests regime series selection
func TestEngineRegimeTimeframe(t *testing.T) {
	e := newTestEngine(t, Config{RegimeTimeframe: market.TF1h})

	trending := make([]market.Bar, 60)
	for i := range trending {
		c := 100.0 + float64(i)
		trending[i] = ebar(i, c-0.5, c+0.5, c-1, c, 1000, market.TF1h)
	}

	result, err := e.Analyze(context.Background(), "ETHUSDT", map[market.Timeframe][]market.Bar{
		market.TF1h: trending,
		market.TF5m: volumeSpikeBars(market.TF5m),
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if result.Regime.Regime != market.RegimeBullish {
		t.Errorf("Expected bullish regime from the 1h series, got %s", result.Regime.Regime)
	}
}

// TestEngineEventPublish tests alert events reach subscribers
func TestEngineEventPublish(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.SetMetrics(metrics.NewWith(prometheus.NewRegistry()))

	bus := events.NewEventBus()
	received := make(chan events.Event, 8)
	bus.Subscribe(events.EventAlertGenerated, func(ev events.Event) {
		received <- ev
	})
	e.SetEventBus(bus)

	_, err := e.Analyze(context.Background(), "BTCUSDT", map[market.Timeframe][]market.Bar{
		market.TF1h: volumeSpikeBars(market.TF1h),
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	select {
	case ev := <-received:
		if ev.Data["symbol"] != "BTCUSDT" {
			t.Errorf("Expected alert event for BTCUSDT, got %v", ev.Data["symbol"])
		}
	case <-time.After(time.Second):
		t.Fatal("No alert event published")
	}
}
