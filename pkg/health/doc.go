/*
Package health provides reachability checks for fleet endpoints.

Two checkers exist: a TCP checker for game server ports (a GoldSrc
instance that has bound its port is considered up) and an HTTP checker
for the FastDL static content server, run by the scheduler after every
restart cycle when fastdl_url is configured.

The restart flow uses CheckWithRetries to give instances time to come
back: GoldSrc servers take several seconds between process start and
port bind, so a single immediate probe would report false failures.

	checker := health.NewTCPChecker("10.0.0.11:27015")
	result := health.CheckWithRetries(ctx, checker, health.DefaultConfig())
	if !result.Healthy {
		// counted as a failed instance in the restart tally
	}
*/
package health
