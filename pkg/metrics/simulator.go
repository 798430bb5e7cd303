package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the fix simulator.
type SimulatorMetrics struct {
	FixesPublished     *prometheus.CounterVec
	PublishFailures    *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	ActiveVendors      prometheus.Gauge
}

// NewSimulatorMetrics creates and registers simulator metrics.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		FixesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "fixes_published_total",
				Help:      "Total number of location fixes published",
			},
			[]string{"device_id"},
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "publish_failures_total",
				Help:      "Total number of failed fix publishes",
			},
			[]string{"reason"},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "generation_duration_seconds",
				Help:      "Duration of fix generation and publishing",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ActiveVendors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "active_vendors",
				Help:      "Number of simulated vendors currently publishing",
			},
		),
	}

	MustRegister(
		m.FixesPublished,
		m.PublishFailures,
		m.GenerationDuration,
		m.ActiveVendors,
	)

	return m
}
