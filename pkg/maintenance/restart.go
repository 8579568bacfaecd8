package maintenance

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/afraznein/ktpfleet/pkg/health"
	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/metrics"
	"github.com/afraznein/ktpfleet/pkg/remote"
	"github.com/afraznein/ktpfleet/pkg/types"
)

// DefaultSettle is how long to wait between stopping and starting the
// instances; GoldSrc takes a few seconds to release its sockets.
const DefaultSettle = 10 * time.Second

// Restarter performs full-cluster instance restarts over SSH
type Restarter struct {
	// Dial opens the SSH session; tests substitute fakes
	Dial remote.DialFunc

	// Settle is the wait between the stop and start phases
	Settle time.Duration

	// Health configures the post-start port verification
	Health health.Config

	// probe checks whether a game port answers; overridable in tests
	probe func(ctx context.Context, addr string) bool
}

// NewRestarter creates a restarter using the given dial function
func NewRestarter(dial remote.DialFunc) *Restarter {
	r := &Restarter{
		Dial:   dial,
		Settle: DefaultSettle,
		Health: health.DefaultConfig(),
	}
	r.probe = func(ctx context.Context, addr string) bool {
		checker := health.NewTCPChecker(addr).WithTimeout(r.Health.Timeout)
		return health.CheckWithRetries(ctx, checker, r.Health).Healthy
	}
	return r
}

// Restart stops every instance in the cluster, waits for the settle
// period, force-kills stragglers, starts everything again, and
// verifies each game port. The tally reflects verified starts only.
func (r *Restarter) Restart(ctx context.Context, cluster *types.Cluster) (types.RestartTally, error) {
	logger := log.WithCluster(cluster.Name)
	tally := types.RestartTally{Cluster: cluster.Name}

	session, err := r.Dial(cluster)
	if err != nil {
		tally.Failed = len(cluster.Ports)
		return tally, fmt.Errorf("failed to connect: %w", err)
	}
	defer session.Close()

	logger.Info().Int("instances", len(cluster.Ports)).Msg("stopping instances")

	// Stop phase: best effort, the kill fallback cleans up after it
	for i, port := range cluster.Ports {
		cmd := r.lgsmCommand(cluster, i+1, port, "stop")
		if out, err := session.Run(ctx, cmd); err != nil {
			logger.Warn().Err(err).Int("port", port).Msg("stop command failed")
		} else if out.ExitCode != 0 {
			logger.Warn().Int("port", port).Int("exit", out.ExitCode).Msg("stop exited non-zero")
		}
	}

	select {
	case <-time.After(r.Settle):
	case <-ctx.Done():
		tally.Failed = len(cluster.Ports)
		return tally, ctx.Err()
	}

	// Straggler check: anything still holding an instance directory
	// gets killed hard before the start phase
	for _, port := range cluster.Ports {
		instanceDir := fmt.Sprintf("dod-%d", port)
		out, err := session.Run(ctx, fmt.Sprintf("pgrep -f %s", instanceDir))
		if err != nil {
			continue
		}
		if out.ExitCode == 0 {
			logger.Warn().Int("port", port).Msg("instance still running, force-killing")
			if _, err := session.Run(ctx, fmt.Sprintf("pkill -9 -f %s", instanceDir)); err != nil {
				logger.Warn().Err(err).Int("port", port).Msg("force-kill failed")
			}
		}
	}

	logger.Info().Msg("starting instances")

	for i, port := range cluster.Ports {
		instanceLog := log.WithInstance(fmt.Sprintf("dod-%d", port))

		cmd := r.lgsmCommand(cluster, i+1, port, "start")
		out, err := session.Run(ctx, cmd)
		if err != nil || out.ExitCode != 0 {
			instanceLog.Error().Err(err).Int("exit", out.ExitCode).Msg("start failed")
			tally.Failed++
			metrics.RestartInstancesTotal.WithLabelValues(cluster.Name, "failed").Inc()
			continue
		}

		addr := net.JoinHostPort(cluster.Host, strconv.Itoa(port))
		if r.probe(ctx, addr) {
			instanceLog.Info().Msg("instance up")
			tally.Started++
			metrics.RestartInstancesTotal.WithLabelValues(cluster.Name, "started").Inc()
		} else {
			instanceLog.Error().Msg("port not answering after start")
			tally.Failed++
			metrics.RestartInstancesTotal.WithLabelValues(cluster.Name, "failed").Inc()
		}
	}

	logger.Info().
		Int("started", tally.Started).
		Int("failed", tally.Failed).
		Str("outcome", string(tally.Outcome())).
		Msg("restart complete")
	return tally, nil
}

// lgsmCommand builds the LinuxGSM invocation for instance i (1-based)
func (r *Restarter) lgsmCommand(cluster *types.Cluster, i, port int, action string) string {
	return fmt.Sprintf("cd %s/dod-%d && ./%s %s", cluster.HomeDir(), port, cluster.ExecName(i), action)
}
