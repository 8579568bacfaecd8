/*
Package maintenance implements the recurring fleet housekeeping jobs.

These are the jobs cron has always run against the fleet, reimplemented
as library functions so they can be invoked one-shot from the CLI or on
a schedule by the daemon:

Log rotation (RotateLogs): one linear pass over the log root. A *.log
older than the compress threshold is gzipped in place with its mtime
preserved; a *.log.gz older than the delete threshold is removed; a
live *.log above the size cap is truncated to zero. Per-file failures
are counted and logged, never fatal.

Demo organization (OrganizeDemos): HLTV drops .dem recordings into the
working directory with two filename shapes — tagged recordings
(<type>_<ts>-<HOST>-<ts>-<map>.dem) and auto-recordings
(auto-<ts>-<map>.dem). Matching files move to <dest>/<HOST>/<type>/;
first pattern match wins, unmatched files are left alone so nothing is
ever mis-filed.

Backup (RunBackup): mysqldump of the HLStatsX database gzipped into
<db>-<yyyymmdd>.sql.gz, plus one tar.gz of the configured config
trees, then age-based pruning of both archive families. The database
schema belongs to HLStatsX; mysqldump is invoked rather than speaking
SQL so the dump format stays theirs.

Restart (Restarter): stop every LinuxGSM instance on a cluster over
SSH, wait for sockets to settle, force-kill stragglers found by pgrep,
start everything, and verify each game port answers TCP before
counting the instance as started. The tally feeds the three-tier
Discord notification.
*/
package maintenance
