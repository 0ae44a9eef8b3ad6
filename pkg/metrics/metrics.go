// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconciliationRunsTotal tracks reconciliation runs by outcome
	ReconciliationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "reconciliation",
			Name:      "runs_total",
			Help:      "Total number of reconciliation runs by outcome",
		},
		[]string{"outcome"},
	)

	// ReconciliationDuration tracks end-to-end run duration in seconds
	ReconciliationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "reconciliation",
			Name:      "run_duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// RecordsProcessedTotal tracks records by disposition after a run
	RecordsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "reconciliation",
			Name:      "records_total",
			Help:      "Total number of records processed by disposition",
		},
		[]string{"disposition"},
	)

	// FeedRequestsTotal tracks feed fetches by status
	FeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "feed",
			Name:      "requests_total",
			Help:      "Total number of feed requests by status code",
		},
		[]string{"status_code"},
	)

	// FeedRequestDuration tracks feed fetch duration
	FeedRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "feed",
			Name:      "request_duration_seconds",
			Help:      "Duration of feed requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// StoreApplyDuration tracks the bulk update call duration
	StoreApplyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "store",
			Name:      "apply_duration_seconds",
			Help:      "Duration of bulk update calls in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordRun records the outcome and duration of a reconciliation run
func RecordRun(outcome string, durationSeconds float64) {
	ReconciliationRunsTotal.WithLabelValues(outcome).Inc()
	ReconciliationDuration.Observe(durationSeconds)
}

// RecordDispositions records how many records landed in each bucket
func RecordDispositions(updated, skipped, errored int) {
	RecordsProcessedTotal.WithLabelValues("updated").Add(float64(updated))
	RecordsProcessedTotal.WithLabelValues("skipped").Add(float64(skipped))
	RecordsProcessedTotal.WithLabelValues("errored").Add(float64(errored))
}

// RecordFeedRequest records a feed fetch
func RecordFeedRequest(statusCode string, durationSeconds float64) {
	FeedRequestsTotal.WithLabelValues(statusCode).Inc()
	FeedRequestDuration.Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
