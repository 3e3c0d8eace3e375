package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloud_indexer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloud_indexer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloud_indexer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Progress store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloud_indexer_db_queries_total",
			Help: "Total number of state database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloud_indexer_db_query_duration_seconds",
			Help:    "State database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloud_indexer_db_transaction_duration_seconds",
			Help:    "State database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"result"},
	)
)

// Scanner metrics
var (
	ScanDiscoveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cloud_indexer_discovery_duration_seconds",
			Help:    "Duration of the file discovery (counting) pass",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)

	ScanEntriesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloud_indexer_scan_entries_skipped_total",
			Help: "Filesystem entries skipped due to per-entry read errors",
		},
	)
)

// Engine metrics
var (
	BatchesCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloud_indexer_batches_committed_total",
			Help: "Batches committed per volume",
		},
		[]string{"volume"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloud_indexer_batch_duration_seconds",
			Help:    "Duration of a single indexing batch",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"volume"},
	)

	FilesIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloud_indexer_files_indexed_total",
			Help: "Files successfully handed to the search pipeline",
		},
		[]string{"volume"},
	)

	FilesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloud_indexer_files_failed_total",
			Help: "Files the content pipeline failed to process",
		},
		[]string{"volume"},
	)

	FilesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloud_indexer_files_skipped_total",
			Help: "Files skipped as unsupported by any content adapter",
		},
		[]string{"volume"},
	)

	VolumeIndexedFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cloud_indexer_volume_indexed_files",
			Help: "Committed indexed file count per volume",
		},
		[]string{"volume"},
	)

	VolumeTotalFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cloud_indexer_volume_total_files",
			Help: "Total files discovered per volume (last discovery pass)",
		},
		[]string{"volume"},
	)

	VolumeMounted = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cloud_indexer_volume_mounted",
			Help: "Whether the volume mount path is currently accessible (1 = mounted)",
		},
		[]string{"volume"},
	)

	VolumeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloud_indexer_volume_errors_total",
			Help: "Volume-level errors (commit failures, discovery failures)",
		},
		[]string{"volume"},
	)

	SchedulerTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloud_indexer_scheduler_ticks_total",
			Help: "Scheduler loop iterations",
		},
	)

	VolumesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloud_indexer_volumes_in_flight",
			Help: "Volumes with an indexing pass currently running",
		},
	)
)
