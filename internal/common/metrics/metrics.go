// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Analysis metrics. "source" is "http" or "zeebe".
var (
	AnalyzeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyze_requests_total",
			Help: "Analysis requests by source and result code",
		},
		[]string{"source", "code"},
	)

	AnalyzeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyze_duration_seconds",
			Help:    "Wall time of a complete analysis",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	AnalyzeFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyze_files_total",
			Help: "Uploaded files by processing status",
		},
		[]string{"status"},
	)

	AnalyzeRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analyze_order_records_total",
			Help: "Order records extracted from uploaded files",
		},
	)

	AnalyzeUnparsedLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analyze_unparsed_lines_total",
			Help: "Non-blank lines that yielded no order record",
		},
	)

	AnalyzeInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analyze_in_flight",
			Help: "Analyses currently running",
		},
	)

	BaselineLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseline_lookups_total",
			Help: "Prior period lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
