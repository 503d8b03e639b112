package metrics

import "github.com/prometheus/client_golang/prometheus"

// Record outcome labels for IngestRecordsTotal.
const (
	OutcomePersisted   = "persisted"
	OutcomeInvalid     = "invalid"
	OutcomeIndexed     = "indexed"
	OutcomeIndexFailed = "index_failed"
)

// Ingestion Prometheus metrics.
var (
	IngestBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logweave",
			Name:      "ingest_batches_total",
			Help:      "Total number of ingested batches",
		},
		[]string{"status"},
	)

	IngestRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logweave",
			Name:      "ingest_records_total",
			Help:      "Total number of log records by processing outcome",
		},
		[]string{"outcome"},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers Prometheus ingestion metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestBatchesTotal)
	prometheus.MustRegister(IngestRecordsTotal)
	ingestMetricsRegistered = true
}
