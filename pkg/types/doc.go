/*
Package types defines the shared entities of the ktpfleet toolkit.

A Cluster is one physical host running several LinuxGSM-managed game
server instances, one per port, in directories named dod-<port>. The
instance naming conventions (dod-27015, dodserver/dodserver2 exec
names) are LinuxGSM's, not ours; the helpers here exist so no other
package hardcodes them.

The *Record types are what the history store persists: one record per
deploy, backup, or maintenance run. They are JSON-serialized into
bbolt and printed by `ktpfleet history`.

Outcome is the three-tier result (success/partial/failure) used both
for history and for choosing the Discord embed color.
*/
package types
