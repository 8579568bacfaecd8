/*
Package events provides an in-memory event broker for fleet job runs.

The daemon publishes an event for every job transition (deploy,
backup, rotation, demo filing, restart) and interested components
subscribe: the log subscriber records everything, the Discord
subscriber forwards failure events to the relay.

Delivery is non-blocking: the broker buffers up to 100 events and each
subscriber another 50; a subscriber that cannot keep up misses events
rather than stalling a maintenance job. Events are advisory — the
authoritative record of every run lives in the history store.
*/
package events
