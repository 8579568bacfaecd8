/*
Package metrics exposes Prometheus metrics for fleet operations.

Metrics are only served in daemon mode (`ktpfleet daemon`), where the
scheduler runs jobs continuously and a /metrics endpoint makes the run
outcomes scrapeable. One-shot CLI invocations still update the
counters but exit before anything scrapes them; their record of truth
is the history store.

Exposed series:

  - ktpfleet_job_runs_total{job, outcome}
  - ktpfleet_job_duration_seconds{job}
  - ktpfleet_deploys_total{cluster, outcome}
  - ktpfleet_restart_instances_total{cluster, outcome}
  - ktpfleet_logs_compressed_total / ktpfleet_logs_deleted_total
  - ktpfleet_demos_moved_total
  - ktpfleet_backup_size_bytes
  - ktpfleet_backups_pruned_total
  - ktpfleet_fastdl_up

The Timer helper pairs with the duration histogram:

	timer := metrics.NewTimer()
	// ... run the job ...
	timer.ObserveDuration(metrics.JobDuration.WithLabelValues("backup"))
*/
package metrics
