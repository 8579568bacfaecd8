/*
Package remote provides the SSH/SFTP transport for fleet operations.

Every remote interaction in ktpfleet — uploading artifacts, rewriting
LinuxGSM configs, restarting instances — goes through the Session
interface. The production implementation (Client) multiplexes one SSH
connection per cluster host: command execution over exec sessions,
file transfer over an SFTP subsystem on the same connection.

Authentication follows the cluster config: a non-empty password means
password auth; otherwise the default private keys (~/.ssh/id_ed25519,
~/.ssh/id_rsa) are tried. Host keys are accepted blindly unless a
known_hosts path is configured, which matches how the fleet has been
operated since the paramiko days.

Command exit status is data, not an error: Run returns an error only
when the command could not be executed at all. Callers inspect
Output.ExitCode for remote failures.

BackupFile implements the backup-before-overwrite convention: an
existing remote file is copied to <backupDir>/<name>.<ts>.bak via a
remote cp. Backups are best effort; callers log failures and proceed.
*/
package remote
