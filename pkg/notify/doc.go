/*
Package notify posts fleet notifications through the Discord relay.

The fleet never talks to Discord directly: a relay service holds the
bot token and accepts a JSON envelope of {channel_id, secret, embeds}.
The embed schema inside the envelope is Discord's own; this package
treats it as an external contract and fills in only the fields the
fleet uses (title, description, color, fields, footer, timestamp).

Results map onto three colors: green for full success, orange for a
partial restart, red for failure. Deploy embeds carry the cluster and
component lists plus at most five error lines.

An unconfigured relay degrades to a logged no-op so cron runs on
machines without the secret never fail because of notifications.
*/
package notify
