package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DashboardMetrics contains Prometheus metrics for the dashboard HTTP
// server.
type DashboardMetrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec
	RenameOutcomes       *prometheus.CounterVec
	ReportRenderTime     prometheus.Histogram
	ReportRenderErrors   prometheus.Counter
}

// NewDashboardMetrics creates and registers dashboard service metrics.
func NewDashboardMetrics(namespace string) *DashboardMetrics {
	m := &DashboardMetrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
			[]string{"method", "path"},
		),
		RenameOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rename",
				Name:      "outcomes_total",
				Help:      "Rename outcomes by kind",
			},
			[]string{"outcome"}, // success, validation, not_found, permission, quota, transient
		),
		ReportRenderTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "report",
				Name:      "render_duration_seconds",
				Help:      "Duration of printable report rendering",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ReportRenderErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "report",
				Name:      "render_errors_total",
				Help:      "Total number of report rendering errors",
			},
		),
	}

	MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RenameOutcomes,
		m.ReportRenderTime,
		m.ReportRenderErrors,
	)

	return m
}
