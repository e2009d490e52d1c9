// Package adaptive blends detector confidence with learned outcome
// statistics. The scorer is a small online logistic regression trained
// one outcome at a time, so a freshly started engine scores every
// candidate at the neutral 0.5 until real outcomes arrive.
package adaptive

import "math"

const defaultLearningRate = 0.05

// Scorer is an online logistic regression over the candidate feature
// vector. It is not synchronized; callers serialize access.
type Scorer struct {
	weights []float64
	bias    float64
	lr      float64
	samples int
}

// ScorerState is the serializable snapshot of a scorer.
type ScorerState struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Samples int       `json:"samples"`
}

// NewScorer creates a zero-initialized scorer for the given feature
// width. Zero weights make the untrained scorer predict exactly 0.5.
func NewScorer(featureCount int) *Scorer {
	if featureCount <= 0 {
		featureCount = FeatureCount
	}
	return &Scorer{
		weights: make([]float64, featureCount),
		lr:      defaultLearningRate,
	}
}

// ScorerFromState rebuilds a scorer from a saved state.
func ScorerFromState(st ScorerState) *Scorer {
	weights := make([]float64, len(st.Weights))
	copy(weights, st.Weights)
	return &Scorer{
		weights: weights,
		bias:    st.Bias,
		lr:      defaultLearningRate,
		samples: st.Samples,
	}
}

// Predict returns the success probability for the feature vector.
// A width mismatch returns the neutral 0.5.
func (s *Scorer) Predict(features []float64) float64 {
	if len(features) != len(s.weights) {
		return 0.5
	}
	z := s.bias
	for i, f := range features {
		z += s.weights[i] * f
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

// Train applies one gradient step toward the observed outcome.
func (s *Scorer) Train(features []float64, success bool) {
	if len(features) != len(s.weights) {
		return
	}

	label := 0.0
	if success {
		label = 1.0
	}

	gradient := s.Predict(features) - label
	for i, f := range features {
		s.weights[i] -= s.lr * gradient * f
	}
	s.bias -= s.lr * gradient
	s.samples++
}

// Samples returns how many outcomes the scorer has seen.
func (s *Scorer) Samples() int {
	return s.samples
}

// State copies the scorer into a serializable snapshot.
func (s *Scorer) State() ScorerState {
	weights := make([]float64, len(s.weights))
	copy(weights, s.weights)
	return ScorerState{
		Weights: weights,
		Bias:    s.bias,
		Samples: s.samples,
	}
}
