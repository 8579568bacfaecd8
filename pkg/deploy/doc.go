/*
Package deploy pushes versioned build artifacts to the fleet over SSH.

A deployment run takes a version (a directory of built artifacts), a
set of components (engine, ktpamx, plugins), and a target list of
clusters. For each cluster it opens one SSH session and, per instance
directory, backs up whatever it is about to overwrite into
~/backups/<version>/ and uploads the new files with their configured
modes. Per-cluster failures are tallied, never fatal to the run; the
returned DeployRecord carries the three-tier outcome (success when
every cluster succeeded, failure when every cluster failed, partial
otherwise) that drives history storage and Discord notification.

Two optional phases ride along with artifact copying:

Server name management writes or edits the LinuxGSM instance configs
so instance n advertises "<prefix> #<n>". Existing configs are edited
in place with sed to preserve whatever else an operator has put in
them; missing configs are generated whole, including the port and
client-port lines.

Config templating renders every *.tmpl in the templates directory
against a named profile (a flat map of cvar-style values) and uploads
the results into each instance's plugin config directory. Profiles let
the same template set produce online and LAN configs.

Dry-run mode logs everything a real run would do without opening a
single connection.
*/
package deploy
