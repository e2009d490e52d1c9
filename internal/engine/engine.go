// Package engine assembles the analysis pipeline behind a single facade:
// regime classification, multi-timeframe detection, adaptive confidence
// adjustment, confluence aggregation, and alert generation, with learned
// state fed back through RecordOutcome.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-pattern-engine/internal/adaptive"
	"market-pattern-engine/internal/alerts"
	"market-pattern-engine/internal/analysis"
	"market-pattern-engine/internal/confluence"
	"market-pattern-engine/internal/events"
	"market-pattern-engine/internal/learning"
	"market-pattern-engine/internal/logging"
	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/metrics"
	"market-pattern-engine/internal/patterns"
	"market-pattern-engine/internal/regime"
)

// Config holds the engine's tunables. Zero values fall back to defaults.
type Config struct {
	BaseAlertThreshold       float64          `json:"base_alert_threshold"`
	PerformanceHistoryWindow int              `json:"performance_history_window"`
	PerformanceRecordCap     int              `json:"performance_record_cap"`
	RegimeLookback           int              `json:"regime_lookback"`
	PeakTroughMinDistance    int              `json:"peak_trough_min_distance"`
	MinConfluenceTimeframes  int              `json:"min_confluence_timeframes"`
	RegimeTimeframe          market.Timeframe `json:"regime_timeframe"`
}

func (c Config) validate() error {
	if c.BaseAlertThreshold < 0 || c.BaseAlertThreshold > 1 {
		return fmt.Errorf("invalid configuration: base alert threshold %.2f must be in [0, 1]", c.BaseAlertThreshold)
	}
	if c.PerformanceHistoryWindow < 0 {
		return fmt.Errorf("invalid configuration: performance history window %d must not be negative", c.PerformanceHistoryWindow)
	}
	if c.PerformanceRecordCap < 0 {
		return fmt.Errorf("invalid configuration: performance record cap %d must not be negative", c.PerformanceRecordCap)
	}
	if c.RegimeLookback < 0 {
		return fmt.Errorf("invalid configuration: regime lookback %d must not be negative", c.RegimeLookback)
	}
	if c.PeakTroughMinDistance < 0 {
		return fmt.Errorf("invalid configuration: peak trough min distance %d must not be negative", c.PeakTroughMinDistance)
	}
	if c.MinConfluenceTimeframes != 0 && c.MinConfluenceTimeframes < 2 {
		return fmt.Errorf("invalid configuration: min confluence timeframes %d must be at least 2", c.MinConfluenceTimeframes)
	}
	return nil
}

// Result is one full analysis pass over a symbol.
type Result struct {
	ID         string                       `json:"id"`
	Symbol     string                       `json:"symbol"`
	Regime     market.RegimeSnapshot        `json:"regime"`
	Timeframes []analysis.TimeframeAnalysis `json:"timeframes"`
	Candidates []patterns.PatternCandidate  `json:"candidates"`
	Clusters   []confluence.Cluster         `json:"clusters"`
	Alerts     []alerts.Alert               `json:"alerts"`
	Elapsed    time.Duration                `json:"elapsed"`
	Timestamp  time.Time                    `json:"timestamp"`
}

// Outcome reports how a signal resolved once the caller knows.
type Outcome struct {
	PatternType    patterns.PatternType `json:"pattern_type"`
	Timeframe      market.Timeframe     `json:"timeframe"`
	Direction      patterns.Direction   `json:"direction"`
	Regime         market.Regime        `json:"regime"`
	Confidence     float64              `json:"confidence"`
	Success        bool                 `json:"success"`
	HoldingMinutes int                  `json:"holding_minutes"`
	Features       []float64            `json:"features,omitempty"`
}

// Engine runs the pipeline and owns the learned state behind it.
type Engine struct {
	cfg        Config
	classifier *regime.Classifier
	analyzer   *analysis.Analyzer
	adjuster   *adaptive.Adjuster
	confluence *confluence.Engine
	generator  *alerts.Generator
	store      *learning.Store
	registry   *patterns.Registry
	log        *logging.Logger

	metrics *metrics.Recorder
	bus     *events.EventBus

	mu         sync.Mutex
	lastRegime map[string]market.Regime
}

// New creates an engine from the configuration. Out-of-range values are
// rejected here so analysis never has to revalidate.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	store := learning.NewStore(cfg.BaseAlertThreshold, cfg.PerformanceHistoryWindow, cfg.PerformanceRecordCap)
	registry := patterns.DefaultRegistry(cfg.PeakTroughMinDistance)

	return &Engine{
		cfg:        cfg,
		classifier: regime.NewClassifier(cfg.RegimeLookback),
		analyzer:   analysis.NewAnalyzer(registry, store),
		adjuster:   adaptive.NewAdjuster(store),
		confluence: confluence.NewEngine(cfg.MinConfluenceTimeframes),
		generator:  alerts.NewGenerator(cfg.BaseAlertThreshold, store),
		store:      store,
		registry:   registry,
		log:        logging.WithComponent("engine"),
		lastRegime: make(map[string]market.Regime),
	}, nil
}

// SetMetrics attaches a Prometheus recorder. Optional.
func (e *Engine) SetMetrics(r *metrics.Recorder) {
	e.metrics = r
}

// SetEventBus attaches an event bus. Optional.
func (e *Engine) SetEventBus(b *events.EventBus) {
	e.bus = b
}

// Registry exposes the detector registry for status reporting.
func (e *Engine) Registry() *patterns.Registry {
	return e.registry
}

// Analyze runs one full pass: classify the regime, detect candidates per
// timeframe, re-score them against learned state, aggregate confluence,
// and gate alerts.
func (e *Engine) Analyze(ctx context.Context, symbol string, barsByTimeframe map[market.Timeframe][]market.Bar) (*Result, error) {
	start := time.Now()

	snap := e.classifier.Snapshot(e.regimeBars(barsByTimeframe))

	mta, err := e.analyzer.Analyze(ctx, symbol, barsByTimeframe)
	if err != nil {
		if e.bus != nil {
			e.bus.PublishError("engine", "analysis failed for "+symbol, err)
		}
		return nil, fmt.Errorf("multi-timeframe analysis for %s: %w", symbol, err)
	}

	// Re-score every candidate against learned state before aggregation
	// so confluence and alerting see adjusted confidences.
	flat := make([]patterns.PatternCandidate, 0, len(mta.Candidates))
	for i := range mta.Timeframes {
		tfa := &mta.Timeframes[i]
		for j := range tfa.Candidates {
			c := &tfa.Candidates[j]
			c.Confidence = e.adjuster.Adjust(*c, snap.Regime)
			c.StrengthTier = patterns.TierForConfidence(c.Confidence)
		}
		flat = append(flat, tfa.Candidates...)
	}

	clusters := e.confluence.Clusters(flat)
	alertList := e.generator.Generate(symbol, snap.Regime, flat, clusters)

	elapsed := time.Since(start)

	e.mu.Lock()
	prev, seen := e.lastRegime[symbol]
	e.lastRegime[symbol] = snap.Regime
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordAnalysis(symbol, elapsed.Seconds())
		e.metrics.RecordRegime(symbol, string(snap.Regime))
		for _, c := range flat {
			e.metrics.RecordCandidate(string(c.PatternType), string(c.Timeframe))
		}
		for _, a := range alertList {
			e.metrics.RecordAlert(string(a.Urgency))
		}
	}

	if e.bus != nil {
		e.bus.PublishAnalysis(symbol, string(snap.Regime), len(flat), len(alertList), elapsed)
		if seen && prev != snap.Regime {
			e.bus.PublishRegimeChanged(symbol, string(prev), string(snap.Regime))
		}
		for _, a := range alertList {
			e.bus.PublishAlert(a.Symbol, string(a.Candidate.PatternType), string(a.Candidate.Direction), string(a.Urgency), a.Confidence)
		}
		for _, cl := range clusters {
			e.bus.PublishConfluence(symbol, string(cl.PatternType), string(cl.Direction), len(cl.Timeframes), cl.Confidence)
		}
	}

	e.log.Debug("analysis complete",
		"symbol", symbol,
		"regime", string(snap.Regime),
		"candidates", len(flat),
		"clusters", len(clusters),
		"alerts", len(alertList),
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return &Result{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Regime:     snap,
		Timeframes: mta.Timeframes,
		Candidates: flat,
		Clusters:   clusters,
		Alerts:     alertList,
		Elapsed:    elapsed,
		Timestamp:  start.UTC(),
	}, nil
}

// RecordOutcome feeds one resolved signal back into the learned state.
func (e *Engine) RecordOutcome(o Outcome) {
	prevThreshold, hadPrev := e.store.Threshold(o.PatternType)

	e.store.RecordOutcome(learning.PerformanceRecord{
		PatternType:    o.PatternType,
		Timeframe:      o.Timeframe,
		Direction:      o.Direction,
		Regime:         o.Regime,
		Confidence:     o.Confidence,
		Success:        o.Success,
		HoldingMinutes: o.HoldingMinutes,
		Features:       o.Features,
		Timestamp:      time.Now().UTC(),
	})

	threshold, _ := e.store.Threshold(o.PatternType)

	if e.metrics != nil {
		e.metrics.RecordOutcome(string(o.PatternType), o.Success)
		e.metrics.SetThreshold(string(o.PatternType), threshold)
	}
	if e.bus != nil {
		e.bus.PublishOutcome(string(o.PatternType), string(o.Regime), o.Success, threshold)
		if hadPrev && prevThreshold != threshold {
			e.bus.PublishThresholdAdjusted(string(o.PatternType), prevThreshold, threshold)
		}
	}

	e.log.Debug("outcome recorded",
		"pattern_type", string(o.PatternType),
		"success", o.Success,
		"threshold", threshold,
	)
}

// ResetLearning clears thresholds, outcome history, and scorer weights.
func (e *Engine) ResetLearning() {
	e.store.Reset()
	if e.bus != nil {
		e.bus.Publish(events.Event{Type: events.EventLearningReset, Data: map[string]interface{}{}})
	}
}

// ExportLearningState snapshots the learned state for persistence.
func (e *Engine) ExportLearningState() learning.Snapshot {
	return e.store.Export()
}

// ImportLearningState restores previously exported learned state.
func (e *Engine) ImportLearningState(snap learning.Snapshot) {
	e.store.Import(snap)
}

// Thresholds returns the current adaptive threshold table.
func (e *Engine) Thresholds() map[patterns.PatternType]float64 {
	return e.store.Thresholds()
}

// TotalOutcomes returns how many outcomes the engine has recorded.
func (e *Engine) TotalOutcomes() int {
	return e.store.TotalRecords()
}

// regimeBars picks the series for regime classification: the configured
// timeframe when supplied, otherwise the deepest series available.
func (e *Engine) regimeBars(barsByTimeframe map[market.Timeframe][]market.Bar) []market.Bar {
	if bars, ok := barsByTimeframe[e.cfg.RegimeTimeframe]; ok && len(bars) > 0 {
		return bars
	}
	var best []market.Bar
	for _, tf := range market.AllTimeframes() {
		if bars := barsByTimeframe[tf]; len(bars) > len(best) {
			best = bars
		}
	}
	return best
}
