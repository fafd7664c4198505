package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditline_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditline_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ListDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditline_list_duration_seconds",
			Help:    "Audit event listing duration in seconds, by query scope.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	EventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditline_events_ingested_total",
			Help: "Total number of audit events consumed from the ingest stream.",
		},
		[]string{"status"},
	)

	RetentionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditline_retention_runs_total",
			Help: "Total number of retention/index maintenance runs.",
		},
		[]string{"status"},
	)

	RetentionPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auditline_retention_purged_records_total",
			Help: "Total number of expired audit records deleted.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ListDuration,
		EventsIngestedTotal,
		RetentionRunsTotal,
		RetentionPurgedTotal,
	)
}
