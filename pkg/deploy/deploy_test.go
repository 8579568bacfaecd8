package deploy

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/afraznein/ktpfleet/pkg/config"
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

type upload struct {
	local  string
	remote string
	mode   os.FileMode
}

// fakeSession records remote operations for assertions
type fakeSession struct {
	uploads    []upload
	writes     map[string][]byte
	backups    []string
	runs       []string
	existing   map[string]bool
	uploadErr  error
	closed     bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		writes:   make(map[string][]byte),
		existing: make(map[string]bool),
	}
}

func (f *fakeSession) Run(ctx context.Context, cmd string) (remote.Output, error) {
	f.runs = append(f.runs, cmd)
	return remote.Output{}, nil
}

func (f *fakeSession) Upload(local, remotePath string, mode os.FileMode) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, upload{local: local, remote: remotePath, mode: mode})
	return nil
}

func (f *fakeSession) WriteFile(remotePath string, data []byte, mode os.FileMode) error {
	f.writes[remotePath] = data
	return nil
}

func (f *fakeSession) MkdirAll(path string) error { return nil }

func (f *fakeSession) Exists(path string) (bool, error) {
	return f.existing[path], nil
}

func (f *fakeSession) BackupFile(remotePath, backupDir string) error {
	f.backups = append(f.backups, remotePath+" -> "+backupDir)
	return nil
}

func (f *fakeSession) Close() error { f.closed = true; return nil }

func testConfig(t *testing.T, artifactsDir string) *config.Config {
	t.Helper()
	return &config.Config{
		Clusters: map[string]*types.Cluster{
			"atlanta": {
				Name: "atlanta", Host: "10.0.0.11", User: "ktp",
				Ports: []int{27015, 27016}, Hostname: "atlanta",
				ServerNamePrefix: "KTP Atlanta",
			},
		},
		Paths: map[string][]types.PathSpec{
			"engine": {
				{Source: "engine/hw.so", Dest: "hw.so", Chmod: "0755"},
			},
			"plugins": {
				{Source: "plugins/ktp.amxx", Dest: "addons/ktpamx/plugins/ktp.amxx"},
			},
		},
		Profiles: map[string]types.Profile{
			"online": {"tickrate": "100"},
			"lan":    {"tickrate": "100", "sv_lan": "1"},
		},
	}
}

func writeArtifact(t *testing.T, dir, rel string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0644))
}

func newTestDeployer(t *testing.T, session *fakeSession) (*Deployer, string) {
	t.Helper()
	artifacts := t.TempDir()
	d := NewDeployer(testConfig(t, artifacts), artifacts, "20260127")
	d.Dial = func(cluster *types.Cluster) (remote.Session, error) {
		return session, nil
	}
	return d, artifacts
}

func TestDeployComponent(t *testing.T) {
	session := newFakeSession()
	d, artifacts := newTestDeployer(t, session)
	writeArtifact(t, artifacts, "engine/hw.so")

	cluster := d.cfg.Clusters["atlanta"]
	record := d.Deploy(context.Background(), []*types.Cluster{cluster}, Options{
		Components: []types.Component{types.ComponentEngine},
	})

	assert.Equal(t, types.OutcomeSuccess, record.Outcome)
	assert.True(t, session.closed)

	// One upload per instance directory
	require.Len(t, session.uploads, 2)
	assert.Equal(t, "/home/ktp/dod-27015/hw.so", session.uploads[0].remote)
	assert.Equal(t, "/home/ktp/dod-27016/hw.so", session.uploads[1].remote)
	assert.Equal(t, os.FileMode(0755), session.uploads[0].mode)

	// Backup before every overwrite, into the versioned backup dir
	require.Len(t, session.backups, 2)
	assert.Contains(t, session.backups[0], "/home/ktp/backups/20260127")
}

func TestDeployMissingArtifact(t *testing.T) {
	session := newFakeSession()
	d, _ := newTestDeployer(t, session)

	cluster := d.cfg.Clusters["atlanta"]
	record := d.Deploy(context.Background(), []*types.Cluster{cluster}, Options{
		Components: []types.Component{types.ComponentEngine},
	})

	// One missing file inside an existing directory is a warning, not
	// a failure
	assert.Equal(t, types.OutcomeSuccess, record.Outcome)
	assert.Empty(t, session.uploads)
}

func TestDeployMissingArtifactsDir(t *testing.T) {
	session := newFakeSession()
	d, _ := newTestDeployer(t, session)
	d.artifactsDir = "/nonexistent/artifacts/20991231"

	cluster := d.cfg.Clusters["atlanta"]
	record := d.Deploy(context.Background(), []*types.Cluster{cluster}, Options{
		Components: []types.Component{types.ComponentEngine},
	})

	// A missing directory means a typo'd version: the whole run fails
	// before anything connects
	assert.Equal(t, types.OutcomeFailure, record.Outcome)
	assert.Empty(t, session.uploads)
	require.Len(t, record.Clusters, 1)
	assert.Contains(t, record.Clusters[0].Errors[0], "artifacts directory not found")
}

func TestDeployUnknownComponentPaths(t *testing.T) {
	session := newFakeSession()
	d, _ := newTestDeployer(t, session)

	cluster := d.cfg.Clusters["atlanta"]
	record := d.Deploy(context.Background(), []*types.Cluster{cluster}, Options{
		Components: []types.Component{types.ComponentKTPAMX},
	})

	assert.Equal(t, types.OutcomeFailure, record.Outcome)
	require.Len(t, record.Clusters, 1)
	assert.Contains(t, record.Clusters[0].Errors[0], "ktpamx")
}

func TestDeployNoHost(t *testing.T) {
	session := newFakeSession()
	d, _ := newTestDeployer(t, session)

	cluster := &types.Cluster{Name: "spare", User: "ktp", Ports: []int{27015}}
	record := d.Deploy(context.Background(), []*types.Cluster{cluster}, Options{
		Components: []types.Component{types.ComponentEngine},
	})

	assert.Equal(t, types.OutcomeFailure, record.Outcome)
	assert.Empty(t, session.uploads)
}

func TestDeployDryRun(t *testing.T) {
	d, artifacts := newTestDeployer(t, nil)
	writeArtifact(t, artifacts, "engine/hw.so")

	// Dry run must never open a connection
	d.Dial = func(cluster *types.Cluster) (remote.Session, error) {
		t.Fatal("dry run dialed")
		return nil, nil
	}

	cluster := d.cfg.Clusters["atlanta"]
	record := d.Deploy(context.Background(), []*types.Cluster{cluster}, Options{
		Components: []types.Component{types.ComponentEngine},
		DryRun:     true,
	})

	assert.Equal(t, types.OutcomeSuccess, record.Outcome)
	assert.True(t, record.DryRun)
}

func TestDeployPartialOutcome(t *testing.T) {
	session := newFakeSession()
	d, artifacts := newTestDeployer(t, session)
	writeArtifact(t, artifacts, "engine/hw.so")

	good := d.cfg.Clusters["atlanta"]
	bad := &types.Cluster{Name: "spare", User: "ktp", Ports: []int{27015}}

	record := d.Deploy(context.Background(), []*types.Cluster{good, bad}, Options{
		Components: []types.Component{types.ComponentEngine},
	})

	assert.Equal(t, types.OutcomePartial, record.Outcome)
}

func TestConfigureServerNamesNewConfig(t *testing.T) {
	session := newFakeSession()
	d, _ := newTestDeployer(t, session)
	cluster := d.cfg.Clusters["atlanta"]

	require.NoError(t, d.configureServerNames(context.Background(), session, cluster))

	// Fresh configs are written whole
	first := session.writes["/home/ktp/dod-27015/lgsm/config-lgsm/dodserver/dodserver.cfg"]
	require.NotNil(t, first)
	assert.Contains(t, string(first), `servername="KTP Atlanta #1"`)
	assert.Contains(t, string(first), `port="27015"`)
	assert.Contains(t, string(first), `clientport="27005"`)

	second := session.writes["/home/ktp/dod-27016/lgsm/config-lgsm/dodserver/dodserver2.cfg"]
	require.NotNil(t, second)
	assert.Contains(t, string(second), `servername="KTP Atlanta #2"`)
}

func TestConfigureServerNamesExistingConfig(t *testing.T) {
	session := newFakeSession()
	d, _ := newTestDeployer(t, session)
	cluster := d.cfg.Clusters["atlanta"]

	session.existing["/home/ktp/dod-27015/lgsm/config-lgsm/dodserver/dodserver.cfg"] = true

	require.NoError(t, d.configureServerNames(context.Background(), session, cluster))

	// Existing config is edited in place, not rewritten
	assert.NotContains(t, session.writes, "/home/ktp/dod-27015/lgsm/config-lgsm/dodserver/dodserver.cfg")
	found := false
	for _, cmd := range session.runs {
		if strings.Contains(cmd, "sed -i") && strings.Contains(cmd, `KTP Atlanta #1`) {
			found = true
		}
	}
	assert.True(t, found, "expected a sed command updating the servername line")
}

func TestServerNamePrefixFallback(t *testing.T) {
	d, _ := newTestDeployer(t, nil)

	cluster := &types.Cluster{Name: "denver", Hostname: "denver"}
	assert.Equal(t, "KTP Denver #1", d.serverName(cluster, 1))

	named := &types.Cluster{Name: "x", ServerNamePrefix: "KTP Dallas"}
	assert.Equal(t, "KTP Dallas #3", d.serverName(named, 3))
}

func TestDeployConfigs(t *testing.T) {
	session := newFakeSession()
	d, _ := newTestDeployer(t, session)

	templatesDir := t.TempDir()
	tmpl := "// {{.Cluster.Name}} {{.ServerDir}}\ntickrate {{.Profile.tickrate}}\n"
	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, "ktp.cfg.tmpl"), []byte(tmpl), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, "README"), []byte("not a template"), 0644))
	d.TemplatesDir = templatesDir

	cluster := d.cfg.Clusters["atlanta"]
	require.NoError(t, d.deployConfigs(session, cluster, "online"))

	rendered := session.writes["/home/ktp/dod-27015/serverfiles/dod/addons/ktpamx/configs/ktp.cfg"]
	require.NotNil(t, rendered)
	assert.Contains(t, string(rendered), "// atlanta dod-27015")
	assert.Contains(t, string(rendered), "tickrate 100")

	// Both instances got the config, non-templates were ignored
	assert.Len(t, session.writes, 2)
}

func TestDeployConfigsMissingDir(t *testing.T) {
	session := newFakeSession()
	d, _ := newTestDeployer(t, session)
	d.TemplatesDir = filepath.Join(t.TempDir(), "templates")

	// A nonexistent templates dir is a skip, not a cluster failure
	require.NoError(t, d.deployConfigs(session, d.cfg.Clusters["atlanta"], "online"))
	assert.Empty(t, session.writes)
}

func TestDeployConfigsUnknownProfile(t *testing.T) {
	session := newFakeSession()
	d, _ := newTestDeployer(t, session)
	d.TemplatesDir = t.TempDir()

	err := d.deployConfigs(session, d.cfg.Clusters["atlanta"], "tournament")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown profile")
}

func TestParseChmod(t *testing.T) {
	tests := []struct {
		chmod string
		want  os.FileMode
	}{
		{"0755", 0755},
		{"0644", 0644},
		{"", 0},
		{"notoctal", 0},
	}

	for _, tt := range tests {
		if got := parseChmod(tt.chmod); got != tt.want {
			t.Errorf("parseChmod(%q) = %o, want %o", tt.chmod, got, tt.want)
		}
	}
}
