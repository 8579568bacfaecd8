/*
Package log provides structured logging for ktpfleet via zerolog.

A single global logger is initialized once from the CLI entrypoint and
shared by all packages. One-shot commands (cron invocations) use the
human-readable console writer; daemon mode switches to JSON output so
log shippers can parse it.

Child loggers carry the fields that matter for fleet operations:

	logger := log.WithComponent("deploy")
	logger = log.WithCluster("atlanta")
	logger.Info().Str("version", "20260127").Msg("upload complete")

Fields:

  - component: which subsystem emitted the line (deploy, rotate, backup, ...)
  - cluster: cluster name from config.yaml
  - instance: per-port server directory (dod-27015)
  - run_id: UUID of the CLI/daemon run, matches the history store key

Levels follow zerolog's semantics; the default is info.
*/
package log
