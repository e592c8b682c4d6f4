package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "freight_"

	resultSuccess = "success"
	resultError   = "error"

	appendResultAccepted  = "accepted"
	appendResultDuplicate = "duplicate"
	appendResultError     = "error"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	consumerLag *prometheus.GaugeVec

	batchOperations       *prometheus.CounterVec
	batchOperationLatency *prometheus.HistogramVec
	batchTransitions      *prometheus.CounterVec
	batchVersionConflicts prometheus.Counter

	ledgerAppendTotal    *prometheus.CounterVec
	ledgerAppendLatency  *prometheus.HistogramVec
	ledgerReversalsTotal *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by path prefix and status class",
			},
			[]string{"route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		)

		consumerLag = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "event_consumer_lag_seconds",
				Help: "Consumer processing lag in seconds",
			},
			[]string{"consumer"},
		)

		batchOperations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_operations_total",
				Help: "Total batch operations by kind and result",
			},
			[]string{"operation", "result"},
		)
		batchOperationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "batch_operation_latency_seconds",
				Help:    "Batch operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)
		batchTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_transitions_total",
				Help: "Total batch status transitions by target status",
			},
			[]string{"target"},
		)
		batchVersionConflicts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_version_conflicts_total",
				Help: "Total optimistic concurrency retries on batch saves",
			},
		)

		ledgerAppendTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_append_total",
				Help: "Total revenue event appends by outcome",
			},
			[]string{"status"},
		)
		ledgerAppendLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_append_latency_seconds",
				Help:    "Revenue event append latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		)
		ledgerReversalsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_reversals_total",
				Help: "Total revenue event reversals by result",
			},
			[]string{"result"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total reconciliation report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Reconciliation report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			consumerLag,
			batchOperations,
			batchOperationLatency,
			batchTransitions,
			batchVersionConflicts,
			ledgerAppendTotal,
			ledgerAppendLatency,
			ledgerReversalsTotal,
			reportExportTotal,
			reportExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveHTTPRequest records request duration and status class for a route.
func ObserveHTTPRequest(route, status string, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(route, status).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(route).Observe(duration.Seconds())
	}
}

// ObserveConsumerLag sets consumer lag in seconds.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumer == "" {
		consumer = "unknown"
	}
	if lag < 0 {
		lag = 0
	}
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Set(lag.Seconds())
	}
}

// ObserveBatchOperation records batch operation latency and result.
func ObserveBatchOperation(operation, result string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if batchOperations != nil {
		batchOperations.WithLabelValues(operation, result).Inc()
	}
	if batchOperationLatency != nil {
		batchOperationLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// IncBatchTransition increments transition counter for a target status.
func IncBatchTransition(target string) {
	if target == "" {
		target = "unknown"
	}
	if batchTransitions != nil {
		batchTransitions.WithLabelValues(target).Inc()
	}
}

// IncBatchVersionConflict increments the optimistic lock retry counter.
func IncBatchVersionConflict() {
	if batchVersionConflicts != nil {
		batchVersionConflicts.Inc()
	}
}

// ObserveLedgerAppend records append latency and outcome.
func ObserveLedgerAppend(status string, duration time.Duration) {
	if status == "" {
		status = appendResultAccepted
	}
	if ledgerAppendTotal != nil {
		ledgerAppendTotal.WithLabelValues(status).Inc()
	}
	if ledgerAppendLatency != nil {
		ledgerAppendLatency.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// IncLedgerReversal increments reversal counter by result.
func IncLedgerReversal(result string) {
	if result == "" {
		result = resultSuccess
	}
	if ledgerReversalsTotal != nil {
		ledgerReversalsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	AppendResultAccepted  = appendResultAccepted
	AppendResultDuplicate = appendResultDuplicate
	AppendResultError     = appendResultError
)
