package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktpfleet_job_runs_total",
			Help: "Total number of maintenance job runs by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ktpfleet_job_duration_seconds",
			Help:    "Maintenance job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// Deploy metrics
	DeploysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktpfleet_deploys_total",
			Help: "Total number of deploy runs by cluster and outcome",
		},
		[]string{"cluster", "outcome"},
	)

	// Restart metrics
	RestartInstancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktpfleet_restart_instances_total",
			Help: "Total number of instance restarts by cluster and outcome",
		},
		[]string{"cluster", "outcome"},
	)

	// Maintenance counters
	LogsCompressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ktpfleet_logs_compressed_total",
			Help: "Total number of log files compressed by rotation",
		},
	)

	LogsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ktpfleet_logs_deleted_total",
			Help: "Total number of log archives deleted by rotation",
		},
	)

	DemosMovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ktpfleet_demos_moved_total",
			Help: "Total number of demo files filed by the organizer",
		},
	)

	// Backup metrics
	BackupSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ktpfleet_backup_size_bytes",
			Help: "Size of the most recent backup in bytes",
		},
	)

	BackupsPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ktpfleet_backups_pruned_total",
			Help: "Total number of backup archives pruned by age",
		},
	)

	// Health metrics
	FastDLUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ktpfleet_fastdl_up",
			Help: "Whether the FastDL endpoint answered its last check (1 = up)",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(JobRunsTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(DeploysTotal)
	prometheus.MustRegister(RestartInstancesTotal)
	prometheus.MustRegister(LogsCompressedTotal)
	prometheus.MustRegister(LogsDeletedTotal)
	prometheus.MustRegister(DemosMovedTotal)
	prometheus.MustRegister(BackupSizeBytes)
	prometheus.MustRegister(BackupsPrunedTotal)
	prometheus.MustRegister(FastDLUp)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
