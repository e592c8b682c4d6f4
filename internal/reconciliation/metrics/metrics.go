package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles reconciliation metrics.
type Metrics struct {
	JobsTotal       *prometheus.CounterVec
	JobDuration     prometheus.Histogram
	ReportsTotal    prometheus.Counter
	AlertsTotal     prometheus.Counter
	UnbilledTotal   prometheus.Gauge
	UnmatchedEvents prometheus.Gauge
}

// New constructs and registers metrics.
func New() *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freight_reconciliation_jobs_total",
				Help: "Total reconciliation jobs by status",
			},
			[]string{"status"},
		),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "freight_reconciliation_job_duration_seconds",
			Help:    "Reconciliation job duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ReportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "freight_reconciliation_reports_total",
			Help: "Total reconciliation reports",
		}),
		AlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "freight_reconciliation_alerts_total",
			Help: "Total reconciliation alerts",
		}),
		UnbilledTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freight_reconciliation_unbilled_shipments",
			Help: "Unbilled shipments in the last report",
		}),
		UnmatchedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freight_reconciliation_unmatched_events",
			Help: "Unmatched revenue events in the last report",
		}),
	}
	prometheus.MustRegister(
		m.JobsTotal,
		m.JobDuration,
		m.ReportsTotal,
		m.AlertsTotal,
		m.UnbilledTotal,
		m.UnmatchedEvents,
	)
	return m
}
