package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/afraznein/ktpfleet/pkg/config"
	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/metrics"
	"github.com/afraznein/ktpfleet/pkg/remote"
	"github.com/afraznein/ktpfleet/pkg/types"
	"github.com/google/uuid"
)

// Deployer pushes versioned build artifacts to cluster hosts
type Deployer struct {
	cfg          *config.Config
	artifactsDir string
	version      string

	// Dial opens the SSH session; tests substitute fakes
	Dial remote.DialFunc

	// TemplatesDir holds the config templates for --with-configs.
	// Empty means config deployment is skipped with a log line.
	TemplatesDir string
}

// Options selects what a deploy run does beyond copying artifacts
type Options struct {
	Components     []types.Component
	Profile        string
	DryRun         bool
	WithConfigs    bool
	ConfigureNames bool
}

// NewDeployer creates a deployer for one artifact version
func NewDeployer(cfg *config.Config, artifactsDir, version string) *Deployer {
	return &Deployer{
		cfg:          cfg,
		artifactsDir: artifactsDir,
		version:      version,
		Dial:         remote.Dial,
	}
}

// Deploy runs the full deployment against the given clusters and
// returns the record of what happened. Per-cluster failures never
// abort the run; they are tallied into the record.
func (d *Deployer) Deploy(ctx context.Context, clusters []*types.Cluster, opts Options) *types.DeployRecord {
	record := &types.DeployRecord{
		ID:        uuid.New().String(),
		Version:   d.version,
		Profile:   opts.Profile,
		DryRun:    opts.DryRun,
		StartedAt: time.Now(),
	}
	for _, component := range opts.Components {
		record.Components = append(record.Components, string(component))
	}

	logger := log.WithComponent("deploy")
	logger.Info().
		Str("version", d.version).
		Str("artifacts", d.artifactsDir).
		Strs("components", record.Components).
		Str("profile", opts.Profile).
		Bool("dry_run", opts.DryRun).
		Msg("starting deployment")

	// A missing file inside the directory is a per-file warning, but a
	// missing directory means the version was never built: fail fast.
	if _, err := os.Stat(d.artifactsDir); err != nil {
		logger.Error().Str("artifacts", d.artifactsDir).Msg("artifacts directory not found")
		for _, cluster := range clusters {
			record.Clusters = append(record.Clusters, types.ClusterOutcome{
				Cluster: cluster.Name,
				Outcome: types.OutcomeFailure,
				Errors:  []string{fmt.Sprintf("artifacts directory not found: %s", d.artifactsDir)},
			})
			metrics.DeploysTotal.WithLabelValues(cluster.Name, string(types.OutcomeFailure)).Inc()
		}
		record.FinishedAt = time.Now()
		record.Outcome = types.OutcomeFailure
		return record
	}

	failures := 0
	for _, cluster := range clusters {
		outcome := d.deployCluster(ctx, cluster, opts)
		record.Clusters = append(record.Clusters, outcome)
		if outcome.Outcome != types.OutcomeSuccess {
			failures++
		}
		metrics.DeploysTotal.WithLabelValues(cluster.Name, string(outcome.Outcome)).Inc()
	}

	record.FinishedAt = time.Now()
	switch {
	case failures == 0:
		record.Outcome = types.OutcomeSuccess
	case failures == len(clusters):
		record.Outcome = types.OutcomeFailure
	default:
		record.Outcome = types.OutcomePartial
	}

	logger.Info().Str("outcome", string(record.Outcome)).Msg("deployment finished")
	return record
}

// deployCluster handles one cluster: names, components, configs
func (d *Deployer) deployCluster(ctx context.Context, cluster *types.Cluster, opts Options) types.ClusterOutcome {
	logger := log.WithCluster(cluster.Name)
	outcome := types.ClusterOutcome{Cluster: cluster.Name, Outcome: types.OutcomeSuccess}

	fail := func(format string, args ...interface{}) {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf(format, args...))
		outcome.Outcome = types.OutcomeFailure
	}

	if cluster.Host == "" {
		logger.Warn().Msg("skipping: no host configured")
		fail("%s: no host configured", cluster.Name)
		return outcome
	}

	if opts.DryRun {
		d.dryRunCluster(cluster, opts)
		return outcome
	}

	session, err := d.Dial(cluster)
	if err != nil {
		logger.Error().Err(err).Msg("connection failed")
		fail("%s: %v", cluster.Name, err)
		return outcome
	}
	defer session.Close()

	if opts.ConfigureNames {
		if err := d.configureServerNames(ctx, session, cluster); err != nil {
			logger.Error().Err(err).Msg("server name configuration failed")
			fail("%s: failed to configure server names: %v", cluster.Name, err)
		}
	}

	for _, component := range opts.Components {
		if err := d.deployComponent(ctx, session, cluster, component); err != nil {
			logger.Error().Err(err).Str("comp", string(component)).Msg("component deployment failed")
			fail("%s: failed to deploy %s: %v", cluster.Name, component, err)
		}
	}

	if opts.WithConfigs {
		if err := d.deployConfigs(session, cluster, opts.Profile); err != nil {
			logger.Error().Err(err).Msg("config deployment failed")
			fail("%s: failed to deploy configs: %v", cluster.Name, err)
		}
	}

	return outcome
}

// deployComponent uploads one component's artifacts into every
// instance directory, backing up whatever it overwrites.
func (d *Deployer) deployComponent(ctx context.Context, session remote.Session, cluster *types.Cluster, component types.Component) error {
	logger := log.WithCluster(cluster.Name)

	paths := d.cfg.ComponentPaths(component)
	if len(paths) == 0 {
		return fmt.Errorf("no paths configured for component %s", component)
	}

	logger.Info().Str("comp", string(component)).Str("host", cluster.Host).Msg("deploying component")

	backupDir := fmt.Sprintf("%s/backups/%s", cluster.HomeDir(), d.version)
	var firstErr error

	for _, serverDir := range cluster.InstanceDirs() {
		for _, spec := range paths {
			source := filepath.Join(d.artifactsDir, spec.Source)
			if _, err := os.Stat(source); err != nil {
				logger.Warn().Str("source", source).Msg("source artifact not found, skipping")
				continue
			}

			dest := fmt.Sprintf("%s/%s/%s", cluster.HomeDir(), serverDir, spec.Dest)

			// Backups are best effort; an upload over a missing backup
			// is better than no upload at all
			if err := session.BackupFile(dest, backupDir); err != nil {
				logger.Warn().Err(err).Str("dest", dest).Msg("could not back up existing file")
			}

			if err := session.Upload(source, dest, parseChmod(spec.Chmod)); err != nil {
				logger.Error().Err(err).Str("dest", dest).Msg("upload failed")
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			logger.Debug().Str("instance", serverDir).Str("file", spec.Dest).Msg("uploaded")
		}
	}
	return firstErr
}

// dryRunCluster logs what a real run would upload
func (d *Deployer) dryRunCluster(cluster *types.Cluster, opts Options) {
	logger := log.WithCluster(cluster.Name)
	for _, component := range opts.Components {
		for _, spec := range d.cfg.ComponentPaths(component) {
			logger.Info().
				Str("comp", string(component)).
				Str("source", spec.Source).
				Str("dest", spec.Dest).
				Msg("would deploy")
		}
	}
	if opts.ConfigureNames {
		for i := range cluster.Ports {
			logger.Info().Str("servername", d.serverName(cluster, i+1)).Msg("would set server name")
		}
	}
}

// parseChmod converts an octal mode string ("0755") to a FileMode.
// Zero means leave the remote default alone.
func parseChmod(chmod string) os.FileMode {
	if chmod == "" {
		return 0
	}
	mode, err := strconv.ParseUint(chmod, 8, 32)
	if err != nil {
		return 0
	}
	return os.FileMode(mode)
}
