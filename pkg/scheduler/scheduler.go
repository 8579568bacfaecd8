package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/afraznein/ktpfleet/pkg/config"
	"github.com/afraznein/ktpfleet/pkg/events"
	"github.com/afraznein/ktpfleet/pkg/health"
	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/maintenance"
	"github.com/afraznein/ktpfleet/pkg/metrics"
	"github.com/afraznein/ktpfleet/pkg/notify"
	"github.com/afraznein/ktpfleet/pkg/remote"
	"github.com/afraznein/ktpfleet/pkg/store"
	"github.com/afraznein/ktpfleet/pkg/types"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Known job names accepted in the jobs section of config.yaml
const (
	JobRotateLogs    = "rotate-logs"
	JobOrganizeDemos = "organize-demos"
	JobBackup        = "backup"
	JobRestart       = "restart"
)

// Scheduler runs the maintenance jobs on their cron schedules
type Scheduler struct {
	cfg      *config.Config
	store    store.Store
	broker   *events.Broker
	notifier *notify.Notifier
	cron     *cron.Cron

	// Dial opens the SSH sessions restart jobs need; tests substitute fakes
	Dial remote.DialFunc

	// running guards each job key so a slow run is skipped rather
	// than stacked when its next cron tick arrives
	mu      sync.Mutex
	running map[string]bool

	// healthCfg tunes the post-restart FastDL probe
	healthCfg health.Config
}

// New creates a scheduler over the configured jobs
func New(cfg *config.Config, st store.Store, broker *events.Broker, notifier *notify.Notifier) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     st,
		broker:    broker,
		notifier:  notifier,
		cron:      cron.New(),
		Dial:      remote.Dial,
		running:   make(map[string]bool),
		healthCfg: health.DefaultConfig(),
	}
}

// Start registers every configured job with cron and begins running.
// Unknown job names fail registration so a typo in config.yaml is
// caught at startup, not silently skipped forever.
func (s *Scheduler) Start() error {
	logger := log.WithComponent("scheduler")

	for _, job := range s.cfg.Jobs {
		job := job
		if err := s.validateJob(job); err != nil {
			return err
		}

		_, err := s.cron.AddFunc(job.Schedule, func() {
			s.runJob(context.Background(), job)
		})
		if err != nil {
			return fmt.Errorf("job %s: invalid schedule %q: %w", job.Name, job.Schedule, err)
		}

		logger.Info().
			Str("job", job.Name).
			Str("schedule", job.Schedule).
			Str("cluster", job.Cluster).
			Msg("job scheduled")
	}

	s.cron.Start()
	logger.Info().Int("jobs", len(s.cfg.Jobs)).Msg("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger := log.WithComponent("scheduler")
	logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) validateJob(job config.JobConfig) error {
	switch job.Name {
	case JobRotateLogs, JobOrganizeDemos, JobBackup:
		return nil
	case JobRestart:
		if job.Cluster != "" {
			if _, err := s.cfg.Cluster(job.Cluster); err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown job: %s", job.Name)
	}
}

// jobKey identifies the serialization unit. Cluster-scoped jobs lock
// the cluster, so a restart never overlaps any other job touching the
// same host; global jobs lock their own name.
func jobKey(job config.JobConfig) string {
	if job.Cluster != "" {
		return "cluster/" + job.Cluster
	}
	return job.Name
}

// runJob executes one job tick end to end: skip if the previous run is
// still going, run, record the outcome, publish the event.
func (s *Scheduler) runJob(ctx context.Context, job config.JobConfig) {
	key := jobKey(job)

	if !s.tryAcquire(key) {
		logger := log.WithComponent("scheduler")
		logger.Warn().Str("job", key).Msg("previous run still in progress, skipping")
		s.publish(events.EventJobSkipped, fmt.Sprintf("job %s skipped: previous run still in progress", key),
			map[string]string{"job": job.Name, "cluster": job.Cluster})
		return
	}
	defer s.release(key)

	record := &types.MaintenanceRecord{
		ID:        uuid.New().String(),
		Job:       job.Name,
		Cluster:   job.Cluster,
		StartedAt: time.Now(),
	}
	logger := log.WithRunID(record.ID)

	logger.Info().Str("job", key).Msg("job starting")
	timer := metrics.NewTimer()

	counts, err := s.execute(ctx, job)

	record.Duration = timer.Duration()
	record.Counts = counts
	if err != nil {
		record.Outcome = types.OutcomeFailure
		record.Error = err.Error()
		logger.Error().Err(err).Str("job", key).Msg("job failed")
	} else {
		record.Outcome = types.OutcomeSuccess
		logger.Info().Str("job", key).Dur("duration", record.Duration).Msg("job finished")
	}

	metrics.JobRunsTotal.WithLabelValues(job.Name, string(record.Outcome)).Inc()
	metrics.JobDuration.WithLabelValues(job.Name).Observe(record.Duration.Seconds())

	if s.store != nil {
		if err := s.store.PutRun(record); err != nil {
			logger.Error().Err(err).Str("job", key).Msg("failed to record job run")
		}
	}
}

// tryAcquire takes the serialization lock for a key, reporting false
// when another run already holds it.
func (s *Scheduler) tryAcquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[key] {
		return false
	}
	s.running[key] = true
	return true
}

func (s *Scheduler) release(key string) {
	s.mu.Lock()
	delete(s.running, key)
	s.mu.Unlock()
}

// execute dispatches the job to its maintenance function
func (s *Scheduler) execute(ctx context.Context, job config.JobConfig) (map[string]int, error) {
	switch job.Name {
	case JobRotateLogs:
		result, err := maintenance.RotateLogs(s.cfg.Rotate)
		s.publish(events.EventRotateCompleted,
			fmt.Sprintf("log rotation: %d compressed, %d deleted", result.Compressed, result.Deleted), nil)
		return result.Counts(), err

	case JobOrganizeDemos:
		result, err := maintenance.OrganizeDemos(s.cfg.Demos, s.demoHost(job))
		s.publish(events.EventDemosCompleted,
			fmt.Sprintf("demo organizer: %d filed", result.Moved), nil)
		return result.Counts(), err

	case JobBackup:
		return s.runBackup(ctx)

	case JobRestart:
		return s.runRestart(ctx, job)
	}
	return nil, fmt.Errorf("unknown job: %s", job.Name)
}

// demoHost resolves the host tag for auto-recordings: the job's
// cluster hostname when one is configured, else the cluster name.
func (s *Scheduler) demoHost(job config.JobConfig) string {
	if job.Cluster == "" {
		return ""
	}
	if cluster, err := s.cfg.Cluster(job.Cluster); err == nil && cluster.Hostname != "" {
		return cluster.Hostname
	}
	return job.Cluster
}

func (s *Scheduler) runBackup(ctx context.Context) (map[string]int, error) {
	result, err := maintenance.RunBackup(ctx, s.cfg.Backup)

	record := &types.BackupRecord{
		ID:        uuid.New().String(),
		Database:  s.cfg.Backup.Database,
		SQLPath:   result.SQLPath,
		SizeBytes: result.SizeBytes,
		Pruned:    result.Pruned,
		CreatedAt: time.Now(),
		Outcome:   types.OutcomeSuccess,
	}
	if result.ConfigPath != "" {
		record.ConfigPaths = []string{result.ConfigPath}
	}

	eventType := events.EventBackupCompleted
	if err != nil {
		record.Outcome = types.OutcomeFailure
		record.Error = err.Error()
		eventType = events.EventBackupFailed
	}
	s.publish(eventType, fmt.Sprintf("backup: %d bytes, %d pruned", result.SizeBytes, result.Pruned), nil)

	if s.store != nil {
		if err := s.store.PutBackup(record); err != nil {
			logger := log.WithComponent("scheduler")
			logger.Error().Err(err).Msg("failed to record backup")
		}
	}

	counts := map[string]int{"pruned": result.Pruned}
	return counts, err
}

// runRestart restarts the job's cluster, or every production cluster
// when none is named. Each restart ends with a Discord notification so
// the players' channel sees the nightly cycle.
//
// A cluster-scoped job already holds its cluster's lock via runJob; a
// fleet-wide job only holds the "restart" key, so it takes each
// cluster's lock as it goes and skips clusters another job is touching.
func (s *Scheduler) runRestart(ctx context.Context, job config.JobConfig) (map[string]int, error) {
	var clusters []*types.Cluster
	if job.Cluster != "" {
		cluster, err := s.cfg.Cluster(job.Cluster)
		if err != nil {
			return nil, err
		}
		clusters = []*types.Cluster{cluster}
	} else {
		clusters = s.cfg.ProductionClusters()
	}

	restarter := maintenance.NewRestarter(s.Dial)
	counts := map[string]int{}
	var firstErr error

	for _, cluster := range clusters {
		if job.Cluster == "" {
			clusterKey := "cluster/" + cluster.Name
			if !s.tryAcquire(clusterKey) {
				logger := log.WithComponent("scheduler")
				logger.Warn().Str("cluster", cluster.Name).
					Msg("another job holds the cluster, skipping restart")
				s.publish(events.EventJobSkipped,
					fmt.Sprintf("restart of %s skipped: another job holds the cluster", cluster.Name),
					map[string]string{"job": job.Name, "cluster": cluster.Name})
				counts["skipped"]++
				continue
			}
			defer s.release(clusterKey)
		}

		s.publish(events.EventRestartStarted, fmt.Sprintf("restarting %s", cluster.Name),
			map[string]string{"cluster": cluster.Name})

		tally, err := restarter.Restart(ctx, cluster)
		counts["started"] += tally.Started
		counts["failed"] += tally.Failed

		eventType := events.EventRestartCompleted
		if err != nil || tally.Outcome() == types.OutcomeFailure {
			eventType = events.EventRestartFailed
			if firstErr == nil {
				if err != nil {
					firstErr = err
				} else {
					firstErr = fmt.Errorf("%s: no instances started", cluster.Name)
				}
			}
		}
		s.publish(eventType,
			fmt.Sprintf("%s: %d started, %d failed", cluster.Name, tally.Started, tally.Failed),
			map[string]string{"cluster": cluster.Name})

		if s.notifier != nil {
			s.notifier.Send(ctx, notify.RestartEmbed(tally))
		}
	}

	if s.cfg.FastDLURL != "" {
		s.checkFastDL(ctx)
	}

	return counts, firstErr
}

// checkFastDL verifies the FastDL content server answers after a
// restart cycle and reflects the result in the up gauge.
func (s *Scheduler) checkFastDL(ctx context.Context) bool {
	result := health.CheckWithRetries(ctx, health.NewHTTPChecker(s.cfg.FastDLURL), s.healthCfg)
	if result.Healthy {
		metrics.FastDLUp.Set(1)
	} else {
		metrics.FastDLUp.Set(0)
		logger := log.WithComponent("scheduler")
		logger.Warn().
			Str("url", s.cfg.FastDLURL).
			Str("reason", result.Message).
			Msg("fastdl endpoint not answering")
	}
	return result.Healthy
}

func (s *Scheduler) publish(eventType events.EventType, message string, metadata map[string]string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&events.Event{
		ID:       uuid.New().String(),
		Type:     eventType,
		Message:  message,
		Metadata: metadata,
	})
}
