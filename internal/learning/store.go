// Package learning keeps the per-pattern outcome history and everything
// derived from it: recent success rates, adaptive alert thresholds, and
// the trained confidence scorers. The store is the single writer for
// all learned state; readers get snapshots or computed values under a
// read lock.
package learning

import (
	"sync"
	"time"

	"market-pattern-engine/internal/adaptive"
	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/patterns"
)

const (
	// DefaultBaseThreshold anchors the adaptive threshold formula.
	DefaultBaseThreshold = 0.7
	// DefaultWindow is the number of recent outcomes the success rate
	// looks back over.
	DefaultWindow = 10
	// DefaultCapacity bounds the retained history per pattern type.
	DefaultCapacity = 100

	minThreshold = 0.5
	maxThreshold = 0.9
)

// PerformanceRecord is one resolved pattern outcome.
type PerformanceRecord struct {
	PatternType    patterns.PatternType `json:"pattern_type"`
	Timeframe      market.Timeframe     `json:"timeframe"`
	Direction      patterns.Direction   `json:"direction"`
	Regime         market.Regime        `json:"regime"`
	Confidence     float64              `json:"confidence"`
	Success        bool                 `json:"success"`
	HoldingMinutes int                  `json:"holding_minutes"`
	Features       []float64            `json:"features,omitempty"`
	Timestamp      time.Time            `json:"timestamp"`
}

// Snapshot is the serializable export of all learned state.
type Snapshot struct {
	SavedAt    time.Time                                     `json:"saved_at"`
	Records    map[patterns.PatternType][]PerformanceRecord  `json:"records"`
	Thresholds map[patterns.PatternType]float64              `json:"thresholds"`
	Scorers    map[patterns.PatternType]adaptive.ScorerState `json:"scorers"`
}

// Store holds outcome history, adaptive thresholds, and scorers keyed
// by pattern type. Unknown pattern types register themselves on first
// outcome.
type Store struct {
	mu sync.RWMutex

	baseThreshold float64
	window        int
	capacity      int

	records    map[patterns.PatternType][]PerformanceRecord
	thresholds map[patterns.PatternType]float64
	scorers    map[patterns.PatternType]*adaptive.Scorer
}

// NewStore creates an empty store. Non-positive arguments fall back to
// the defaults.
func NewStore(baseThreshold float64, window, capacity int) *Store {
	if baseThreshold <= 0 {
		baseThreshold = DefaultBaseThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		baseThreshold: baseThreshold,
		window:        window,
		capacity:      capacity,
		records:       make(map[patterns.PatternType][]PerformanceRecord),
		thresholds:    make(map[patterns.PatternType]float64),
		scorers:       make(map[patterns.PatternType]*adaptive.Scorer),
	}
}

// RecordOutcome appends one outcome, recomputes the pattern's adaptive
// threshold, and trains its scorer. The oldest record is dropped once
// the per-pattern history is full.
func (s *Store) RecordOutcome(rec PerformanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[rec.PatternType]
	if len(recs) >= s.capacity {
		recs = recs[len(recs)-s.capacity+1:]
	}
	recs = append(recs, rec)
	s.records[rec.PatternType] = recs

	rate := successRate(recs, s.window)
	s.thresholds[rec.PatternType] = clampThreshold(s.baseThreshold + (0.5-rate)*0.2)

	scorer := s.scorers[rec.PatternType]
	if scorer == nil {
		scorer = adaptive.NewScorer(adaptive.FeatureCount)
		s.scorers[rec.PatternType] = scorer
	}
	if len(rec.Features) == adaptive.FeatureCount {
		scorer.Train(rec.Features, rec.Success)
	}
}

// SuccessRate returns the success share over the last window outcomes
// for the pattern type, or 0.5 when it has no history.
func (s *Store) SuccessRate(pt patterns.PatternType, window int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if window <= 0 {
		window = s.window
	}
	return successRate(s.records[pt], window)
}

// SuccessRateInRegime is SuccessRate restricted to outcomes recorded
// under the given market regime.
func (s *Store) SuccessRateInRegime(pt patterns.PatternType, rg market.Regime, window int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if window <= 0 {
		window = s.window
	}
	var filtered []PerformanceRecord
	for _, rec := range s.records[pt] {
		if rec.Regime == rg {
			filtered = append(filtered, rec)
		}
	}
	return successRate(filtered, window)
}

// Threshold returns the adaptive alert threshold for the pattern type
// and whether one has been learned yet.
func (s *Store) Threshold(pt patterns.PatternType) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	th, ok := s.thresholds[pt]
	return th, ok
}

// Thresholds returns a copy of every learned threshold.
func (s *Store) Thresholds() map[patterns.PatternType]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[patterns.PatternType]float64, len(s.thresholds))
	for pt, th := range s.thresholds {
		out[pt] = th
	}
	return out
}

// PredictFor scores a feature vector with the pattern's trained scorer.
// Unknown patterns and width mismatches return the neutral 0.5.
func (s *Store) PredictFor(pt patterns.PatternType, features []float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scorer := s.scorers[pt]
	if scorer == nil {
		return 0.5
	}
	return scorer.Predict(features)
}

// RecordCount returns how many outcomes are retained for the pattern.
func (s *Store) RecordCount(pt patterns.PatternType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records[pt])
}

// TotalRecords returns the retained outcome count across all patterns.
func (s *Store) TotalRecords() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, recs := range s.records {
		total += len(recs)
	}
	return total
}

// Reset drops all history, thresholds, and trained scorers.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[patterns.PatternType][]PerformanceRecord)
	s.thresholds = make(map[patterns.PatternType]float64)
	s.scorers = make(map[patterns.PatternType]*adaptive.Scorer)
}

// Export deep-copies the learned state into a snapshot.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		SavedAt:    time.Now().UTC(),
		Records:    make(map[patterns.PatternType][]PerformanceRecord, len(s.records)),
		Thresholds: make(map[patterns.PatternType]float64, len(s.thresholds)),
		Scorers:    make(map[patterns.PatternType]adaptive.ScorerState, len(s.scorers)),
	}
	for pt, recs := range s.records {
		cp := make([]PerformanceRecord, len(recs))
		copy(cp, recs)
		snap.Records[pt] = cp
	}
	for pt, th := range s.thresholds {
		snap.Thresholds[pt] = th
	}
	for pt, scorer := range s.scorers {
		snap.Scorers[pt] = scorer.State()
	}
	return snap
}

// Import replaces the learned state with the snapshot's contents.
func (s *Store) Import(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[patterns.PatternType][]PerformanceRecord, len(snap.Records))
	for pt, recs := range snap.Records {
		if len(recs) > s.capacity {
			recs = recs[len(recs)-s.capacity:]
		}
		cp := make([]PerformanceRecord, len(recs))
		copy(cp, recs)
		s.records[pt] = cp
	}

	s.thresholds = make(map[patterns.PatternType]float64, len(snap.Thresholds))
	for pt, th := range snap.Thresholds {
		s.thresholds[pt] = clampThreshold(th)
	}

	s.scorers = make(map[patterns.PatternType]*adaptive.Scorer, len(snap.Scorers))
	for pt, st := range snap.Scorers {
		s.scorers[pt] = adaptive.ScorerFromState(st)
	}
}

// successRate computes the success share over the last window records.
// An empty slice returns the neutral 0.5.
func successRate(recs []PerformanceRecord, window int) float64 {
	if len(recs) == 0 {
		return 0.5
	}
	if len(recs) > window {
		recs = recs[len(recs)-window:]
	}
	wins := 0
	for _, rec := range recs {
		if rec.Success {
			wins++
		}
	}
	return float64(wins) / float64(len(recs))
}

func clampThreshold(v float64) float64 {
	if v < minThreshold {
		return minThreshold
	}
	if v > maxThreshold {
		return maxThreshold
	}
	return v
}
