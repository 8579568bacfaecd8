package scheduler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/afraznein/ktpfleet/pkg/config"
	"github.com/afraznein/ktpfleet/pkg/events"
	"github.com/afraznein/ktpfleet/pkg/health"
	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/remote"
	"github.com/afraznein/ktpfleet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

// fakeStore records history writes for assertions
type fakeStore struct {
	mu      sync.Mutex
	runs    []*types.MaintenanceRecord
	backups []*types.BackupRecord
}

func (f *fakeStore) PutDeploy(record *types.DeployRecord) error           { return nil }
func (f *fakeStore) ListDeploys(limit int) ([]*types.DeployRecord, error) { return nil, nil }

func (f *fakeStore) PutBackup(record *types.BackupRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backups = append(f.backups, record)
	return nil
}

func (f *fakeStore) ListBackups(limit int) ([]*types.BackupRecord, error) { return nil, nil }

func (f *fakeStore) PutRun(record *types.MaintenanceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, record)
	return nil
}

func (f *fakeStore) ListRuns(limit int) ([]*types.MaintenanceRecord, error) { return nil, nil }
func (f *fakeStore) Close() error                                           { return nil }

func (f *fakeStore) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func testScheduler(t *testing.T, jobs []config.JobConfig) (*Scheduler, *fakeStore) {
	t.Helper()
	cfg := &config.Config{
		Clusters: map[string]*types.Cluster{
			"atlanta": {Name: "atlanta", Host: "10.0.0.11", User: "ktp", Ports: []int{27015}},
		},
		Rotate: config.RotateConfig{
			Root:            t.TempDir(),
			CompressAgeDays: 120,
			DeleteAgeDays:   240,
		},
		Demos: config.DemosConfig{Root: t.TempDir(), Dest: t.TempDir()},
		Jobs:  jobs,
	}
	st := &fakeStore{}
	return New(cfg, st, nil, nil), st
}

func TestStartValidatesJobNames(t *testing.T) {
	s, _ := testScheduler(t, []config.JobConfig{
		{Name: "defragment", Schedule: "0 4 * * *"},
	})

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job")
}

func TestStartValidatesSchedules(t *testing.T) {
	s, _ := testScheduler(t, []config.JobConfig{
		{Name: JobRotateLogs, Schedule: "not cron"},
	})

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestStartValidatesRestartCluster(t *testing.T) {
	s, _ := testScheduler(t, []config.JobConfig{
		{Name: JobRestart, Schedule: "0 4 * * *", Cluster: "nowhere"},
	})

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cluster")
}

func TestStartAndStop(t *testing.T) {
	s, _ := testScheduler(t, []config.JobConfig{
		{Name: JobRotateLogs, Schedule: "0 4 * * *"},
		{Name: JobOrganizeDemos, Schedule: "*/30 * * * *"},
	})

	require.NoError(t, s.Start())
	s.Stop()
}

func TestRunJobRecordsOutcome(t *testing.T) {
	s, st := testScheduler(t, nil)

	s.runJob(context.Background(), config.JobConfig{Name: JobRotateLogs, Schedule: "@daily"})

	require.Equal(t, 1, st.runCount())
	record := st.runs[0]
	assert.Equal(t, JobRotateLogs, record.Job)
	assert.Equal(t, types.OutcomeSuccess, record.Outcome)
	assert.NotEmpty(t, record.ID)
	assert.Contains(t, record.Counts, "compressed")
}

func TestRunJobRecordsFailure(t *testing.T) {
	s, st := testScheduler(t, nil)
	s.cfg.Rotate.Root = "/nonexistent/log/root"

	s.runJob(context.Background(), config.JobConfig{Name: JobRotateLogs, Schedule: "@daily"})

	require.Equal(t, 1, st.runCount())
	assert.Equal(t, types.OutcomeFailure, st.runs[0].Outcome)
	assert.NotEmpty(t, st.runs[0].Error)
}

func TestRunJobSkipsOverlappingRun(t *testing.T) {
	s, st := testScheduler(t, nil)
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	s.broker = broker

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	job := config.JobConfig{Name: JobRotateLogs, Schedule: "@daily"}
	s.mu.Lock()
	s.running[jobKey(job)] = true
	s.mu.Unlock()

	s.runJob(context.Background(), job)

	assert.Equal(t, 0, st.runCount())
	select {
	case event := <-sub:
		assert.Equal(t, events.EventJobSkipped, event.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a job.skipped event")
	}
}

func TestRunRestartSkipsLockedCluster(t *testing.T) {
	s, st := testScheduler(t, nil)
	s.Dial = func(cluster *types.Cluster) (remote.Session, error) {
		t.Fatal("restart dialed a locked cluster")
		return nil, nil
	}

	// A cluster-scoped job is mid-run on atlanta
	require.True(t, s.tryAcquire("cluster/atlanta"))

	s.runJob(context.Background(), config.JobConfig{Name: JobRestart, Schedule: "@daily"})

	require.Equal(t, 1, st.runCount())
	record := st.runs[0]
	assert.Equal(t, types.OutcomeSuccess, record.Outcome)
	assert.Equal(t, 1, record.Counts["skipped"])
	assert.Equal(t, 0, record.Counts["started"])
}

func TestCheckFastDL(t *testing.T) {
	s, _ := testScheduler(t, nil)
	s.healthCfg = health.Config{Interval: time.Millisecond, Timeout: time.Second, Retries: 1}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	s.cfg.FastDLURL = server.URL
	assert.True(t, s.checkFastDL(context.Background()))

	server.Close()
	assert.False(t, s.checkFastDL(context.Background()))
}

func TestJobKey(t *testing.T) {
	assert.Equal(t, "backup", jobKey(config.JobConfig{Name: "backup"}))

	// Cluster-scoped jobs share one lock per cluster
	restart := jobKey(config.JobConfig{Name: "restart", Cluster: "atlanta"})
	demos := jobKey(config.JobConfig{Name: "organize-demos", Cluster: "atlanta"})
	assert.Equal(t, restart, demos)
	assert.NotEqual(t, restart, jobKey(config.JobConfig{Name: "restart", Cluster: "dallas"}))
}
