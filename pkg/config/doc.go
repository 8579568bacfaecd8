/*
Package config loads and validates the ktpfleet configuration.

Configuration comes from three layers, lowest to highest precedence:

 1. config.yaml — clusters, component path specs, profiles, jobs
 2. a .env file beside config.yaml (never overrides real environment)
 3. environment variables

Environment overrides follow the KTP_<CLUSTER>_<FIELD> convention so
credentials stay out of the checked-in YAML:

	KTP_ATLANTA_HOST=203.0.113.7
	KTP_ATLANTA_USER=ktp
	KTP_ATLANTA_PASSWORD=...
	KTP_DATA_SERVER_IP=...
	KTP_FASTDL_URL=...
	KTP_DISCORD_RELAY_URL=...
	KTP_DISCORD_RELAY_SECRET=...
	KTP_DISCORD_CHANNEL_ID=...

Validation fails fast on dangling references (a job naming an unknown
cluster) and half-configured clusters (host without user or ports).
A cluster without a host is legal: it is skipped by --all and rejected
when addressed directly.
*/
package config
