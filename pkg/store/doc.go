/*
Package store provides BoltDB-backed persistence for run history.

Every deploy, backup, and maintenance run leaves one JSON record in a
per-kind bucket. Keys are RFC3339Nano timestamps (plus the run UUID as
a tiebreaker), so lexicographic key order is chronological order and
listing newest-first is a backward cursor walk — no secondary index.

Buckets:

  - deploys: DeployRecord per deploy run
  - backups: BackupRecord per backup run
  - runs:    MaintenanceRecord per maintenance job execution

The database is a single file under the data directory, opened with a
short lock timeout so a cron invocation that collides with a running
daemon fails fast with a clear error instead of hanging. History is
operator-facing (`ktpfleet history`); nothing in the toolkit makes
decisions based on it.
*/
package store
