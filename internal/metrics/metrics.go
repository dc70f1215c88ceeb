// Package metrics instruments refresh cycles and upstream sources.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the dashboard.
type Metrics struct {
	SourceLatency  *prometheus.HistogramVec
	SourceFailures *prometheus.CounterVec
	Cycles         *prometheus.CounterVec
	StaleResults   prometheus.Counter
	QuotePolls     *prometheus.CounterVec
	LiveCharts     prometheus.Gauge
	ActiveSessions prometheus.Gauge
}

// New creates the metrics and registers them with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SourceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gexdash_source_latency_seconds",
			Help:    "Latency of upstream requests by source",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"source"}),

		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gexdash_source_failures_total",
			Help: "Upstream failures by source and error class",
		}, []string{"source", "class"}),

		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gexdash_refresh_cycles_total",
			Help: "Refresh cycles by outcome",
		}, []string{"outcome"}),

		StaleResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "gexdash_stale_results_total",
			Help: "Results discarded because a newer cycle had started",
		}),

		QuotePolls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gexdash_quote_polls_total",
			Help: "Live quote polls by outcome",
		}, []string{"outcome"}),

		LiveCharts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gexdash_live_charts",
			Help: "Chart instances currently bound to a container",
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gexdash_active_sessions",
			Help: "Open dashboard sessions",
		}),
	}
}

// NewNop returns metrics bound to a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveSource(source string, seconds float64) {
	m.SourceLatency.WithLabelValues(source).Observe(seconds)
}

func (m *Metrics) RecordSourceFailure(source, class string) {
	m.SourceFailures.WithLabelValues(source, class).Inc()
}

func (m *Metrics) RecordCycle(outcome string) {
	m.Cycles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordStale() {
	m.StaleResults.Inc()
}

func (m *Metrics) RecordPoll(outcome string) {
	m.QuotePolls.WithLabelValues(outcome).Inc()
}
