// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline and the feedback loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records pipeline metrics to Prometheus.
type Recorder struct {
	analysesTotal   *prometheus.CounterVec
	candidatesTotal *prometheus.CounterVec
	alertsTotal     *prometheus.CounterVec
	outcomesTotal   *prometheus.CounterVec
	analysisSeconds *prometheus.HistogramVec
	thresholdGauge  *prometheus.GaugeVec
	regimeTotal     *prometheus.CounterVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a recorder registered on the given registry.
func NewWith(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		analysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pattern_engine_analyses_total",
				Help: "Total number of multi-timeframe analyses run",
			},
			[]string{"symbol"},
		),
		candidatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pattern_engine_candidates_total",
				Help: "Pattern candidates detected, by type and timeframe",
			},
			[]string{"pattern_type", "timeframe"},
		),
		alertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pattern_engine_alerts_total",
				Help: "Alerts generated, by urgency tier",
			},
			[]string{"urgency"},
		),
		outcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pattern_engine_outcomes_total",
				Help: "Recorded signal outcomes, by pattern type and result",
			},
			[]string{"pattern_type", "result"},
		),
		analysisSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pattern_engine_analysis_duration_seconds",
				Help:    "Duration of a full analysis pass",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
		thresholdGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pattern_engine_adaptive_threshold",
				Help: "Current adaptive alert threshold, by pattern type",
			},
			[]string{"pattern_type"},
		),
		regimeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pattern_engine_regime_classifications_total",
				Help: "Regime classifications, by symbol and regime",
			},
			[]string{"symbol", "regime"},
		),
	}
}

// RecordAnalysis records one analysis pass and its duration.
func (r *Recorder) RecordAnalysis(symbol string, seconds float64) {
	r.analysesTotal.WithLabelValues(symbol).Inc()
	r.analysisSeconds.WithLabelValues(symbol).Observe(seconds)
}

// RecordCandidate records a detected pattern candidate.
func (r *Recorder) RecordCandidate(patternType, timeframe string) {
	r.candidatesTotal.WithLabelValues(patternType, timeframe).Inc()
}

// RecordAlert records a generated alert.
func (r *Recorder) RecordAlert(urgency string) {
	r.alertsTotal.WithLabelValues(urgency).Inc()
}

// RecordOutcome records a signal outcome.
func (r *Recorder) RecordOutcome(patternType string, success bool) {
	result := "loss"
	if success {
		result = "win"
	}
	r.outcomesTotal.WithLabelValues(patternType, result).Inc()
}

// SetThreshold publishes the current adaptive threshold for a pattern type.
func (r *Recorder) SetThreshold(patternType string, threshold float64) {
	r.thresholdGauge.WithLabelValues(patternType).Set(threshold)
}

// RecordRegime records a regime classification.
func (r *Recorder) RecordRegime(symbol, regime string) {
	r.regimeTotal.WithLabelValues(symbol, regime).Inc()
}
