package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "chatrisk"

// ClassificationMetrics exposes counters/histograms for the scoring pipeline.
type ClassificationMetrics struct {
	conversationsTotal *prometheus.CounterVec
	checkpointsTotal   *prometheus.CounterVec
	externalLatency    *prometheus.HistogramVec
}

func NewClassificationMetrics(reg prometheus.Registerer) *ClassificationMetrics {
	m := &ClassificationMetrics{
		conversationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classification",
			Name:      "conversations_total",
			Help:      "Conversations classified, by classifier and outcome",
		}, []string{"classifier", "outcome"}),
		checkpointsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classification",
			Name:      "checkpoints_total",
			Help:      "Checkpoints recorded, by category",
		}, []string{"category"}),
		externalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classification",
			Name:      "external_latency_seconds",
			Help:      "Latency of external classification calls",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.conversationsTotal, m.checkpointsTotal, m.externalLatency)
	return m
}

// ObserveConversation counts one classified conversation. outcome is one of
// risky, clean, skipped or failed.
func (m *ClassificationMetrics) ObserveConversation(classifier, outcome string) {
	if m == nil {
		return
	}
	m.conversationsTotal.WithLabelValues(classifier, outcome).Inc()
}

func (m *ClassificationMetrics) ObserveCheckpoint(category string) {
	if m == nil {
		return
	}
	m.checkpointsTotal.WithLabelValues(category).Inc()
}

func (m *ClassificationMetrics) ObserveExternalLatency(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.externalLatency.WithLabelValues(outcome).Observe(seconds)
}

// ReviewMetrics exposes counters/histograms for the review workflow.
type ReviewMetrics struct {
	transitionsTotal *prometheus.CounterVec
	lockWait         prometheus.Histogram
}

func NewReviewMetrics(reg prometheus.Registerer) *ReviewMetrics {
	m := &ReviewMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "transitions_total",
			Help:      "Review actions applied, by action and result",
		}, []string{"action", "result"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for a day-file lock",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.lockWait)
	return m
}

func (m *ReviewMetrics) ObserveTransition(action, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, result).Inc()
}

func (m *ReviewMetrics) ObserveLockWait(seconds float64) {
	if m == nil {
		return
	}
	m.lockWait.Observe(seconds)
}
