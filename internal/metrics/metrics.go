// Package metrics exposes Prometheus collectors for the ledger core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	transactionsPosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payledger",
			Subsystem: "ledger",
			Name:      "transactions_posted_total",
			Help:      "Total number of transactions posted to the ledger.",
		},
		[]string{"type"},
	)

	postingRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payledger",
			Subsystem: "ledger",
			Name:      "posting_rejections_total",
			Help:      "Total number of rejected postings by reason.",
		},
		[]string{"reason"},
	)

	payoutTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payledger",
			Subsystem: "payouts",
			Name:      "transitions_total",
			Help:      "Total number of payout state transitions by target status.",
		},
		[]string{"status"},
	)

	disputeTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payledger",
			Subsystem: "disputes",
			Name:      "transitions_total",
			Help:      "Total number of dispute state transitions by target status.",
		},
		[]string{"status"},
	)

	reconciliationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payledger",
			Subsystem: "reconciliation",
			Name:      "runs_total",
			Help:      "Total number of reconciliation runs by final status.",
		},
		[]string{"provider", "status"},
	)

	reconciliationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payledger",
			Subsystem: "reconciliation",
			Name:      "run_duration_seconds",
			Help:      "Duration of reconciliation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"provider"},
	)

	discrepancies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payledger",
			Subsystem: "reconciliation",
			Name:      "discrepancies_total",
			Help:      "Total number of discrepancies recorded.",
		},
		[]string{"type", "severity"},
	)

	ingestionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payledger",
			Subsystem: "ingestion",
			Name:      "events_total",
			Help:      "Total number of inbound provider events by outcome.",
		},
		[]string{"kind", "outcome"},
	)

	attentionItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "payledger",
			Subsystem: "attention",
			Name:      "items",
			Help:      "Current number of records waiting for an operator.",
		},
		[]string{"kind"},
	)

	integrityAnomalies = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "payledger",
			Subsystem: "integrity",
			Name:      "anomalies",
			Help:      "Anomalies found by the last verification sweep.",
		},
		[]string{"kind"},
	)

	scheduledTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payledger",
			Subsystem: "scheduler",
			Name:      "task_runs_total",
			Help:      "Total number of scheduled task runs.",
		},
		[]string{"task", "success"},
	)
)

func init() {
	Registry.MustRegister(
		transactionsPosted,
		postingRejections,
		payoutTransitions,
		disputeTransitions,
		reconciliationRuns,
		reconciliationDuration,
		discrepancies,
		ingestionEvents,
		attentionItems,
		integrityAnomalies,
		scheduledTasks,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTransactionPosted counts a committed transaction.
func RecordTransactionPosted(txType string) {
	transactionsPosted.WithLabelValues(txType).Inc()
}

// RecordPostingRejected counts a posting refused by validation.
func RecordPostingRejected(reason string) {
	postingRejections.WithLabelValues(reason).Inc()
}

// RecordPayoutTransition counts a payout entering status.
func RecordPayoutTransition(status string) {
	payoutTransitions.WithLabelValues(status).Inc()
}

// RecordDisputeTransition counts a dispute entering status.
func RecordDisputeTransition(status string) {
	disputeTransitions.WithLabelValues(status).Inc()
}

// RecordReconciliationRun records the outcome and duration of a run.
func RecordReconciliationRun(provider, status string, seconds float64) {
	reconciliationRuns.WithLabelValues(provider, status).Inc()
	reconciliationDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordJobAbandoned counts a stale job closed by an operator.
func RecordJobAbandoned(provider string) {
	reconciliationRuns.WithLabelValues(provider, "ABANDONED").Inc()
}

// RecordDiscrepancy counts a persisted discrepancy.
func RecordDiscrepancy(discrepancyType, severity string) {
	discrepancies.WithLabelValues(discrepancyType, severity).Inc()
}

// RecordIngestion counts an inbound event outcome.
func RecordIngestion(kind, outcome string) {
	ingestionEvents.WithLabelValues(kind, outcome).Inc()
}

// SetAttentionItems publishes the size of one attention list.
func SetAttentionItems(kind string, n int) {
	attentionItems.WithLabelValues(kind).Set(float64(n))
}

// SetIntegrityAnomalies publishes the anomaly counts of the last sweep.
func SetIntegrityAnomalies(kind string, n int) {
	integrityAnomalies.WithLabelValues(kind).Set(float64(n))
}

// RecordScheduledTask counts a scheduler run.
func RecordScheduledTask(task string, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	scheduledTasks.WithLabelValues(task, label).Inc()
}
