/*
Package scheduler runs the maintenance jobs on cron schedules.

The daemon hands it the jobs section of config.yaml; each entry binds a
job name (rotate-logs, organize-demos, backup, restart) to a standard
five-field cron expression and, for restarts, optionally to a single
cluster. Job names and schedules are validated at Start so a config
typo fails the daemon instead of silently never running.

Jobs are serialized per cluster: a cluster-scoped job (a restart)
holds its cluster's lock, a global job (rotation, backup) holds its
own name, and a fleet-wide restart takes each cluster's lock as it
reaches that cluster. When a cron tick fires while the lock is held,
the tick is skipped and a job.skipped event published rather than
stacking a second run on the same host. Unrelated jobs overlap freely.

Every run produces a MaintenanceRecord in the history store (backups
additionally produce a BackupRecord), increments the job run counters,
and observes its duration into the job histogram. Restart runs notify
Discord per cluster with the three-tier started/failed embed and, when
fastdl_url is configured, finish by probing the FastDL endpoint into
the up gauge.
*/
package scheduler
