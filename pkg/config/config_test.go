package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
clusters:
  atlanta:
    host: 10.0.0.11
    user: ktp
    ports: [27015, 27016]
    hostname: atlanta
    server_name_prefix: "KTP Atlanta"
  denver:
    host: 10.0.0.12
    user: ktp
    ports: [27015]
    test_cluster: true
  spare:
    user: ktp
    ports: [27015]
paths:
  engine:
    - source: engine/hw.so
      dest: hw.so
      chmod: "0755"
profiles:
  online:
    tickrate: "100"
  lan:
    tickrate: "100"
    sv_lan: "1"
backup:
  database: hlstatsx
  dir: /var/backups/ktp
jobs:
  - name: rotate-logs
    schedule: "0 4 * * *"
  - name: restart
    schedule: "0 6 * * 1"
    cluster: atlanta
discord:
  relay_url: https://relay.example.com/post
  channel_id: "123"
  secret: shh
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	atlanta := cfg.Clusters["atlanta"]
	require.NotNil(t, atlanta)
	assert.Equal(t, "atlanta", atlanta.Name)
	assert.Equal(t, "10.0.0.11", atlanta.Host)
	assert.Equal(t, []int{27015, 27016}, atlanta.Ports)
	assert.Equal(t, []string{"dod-27015", "dod-27016"}, atlanta.InstanceDirs())

	// Defaults applied
	assert.Equal(t, DefaultCompressAgeDays, cfg.Rotate.CompressAgeDays)
	assert.Equal(t, DefaultDeleteAgeDays, cfg.Rotate.DeleteAgeDays)
	assert.Equal(t, DefaultPruneAgeDays, cfg.Backup.PruneAgeDays)
	assert.Equal(t, "mysqldump", cfg.Backup.Mysqldump)

	assert.True(t, cfg.Discord.Configured())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KTP_ATLANTA_HOST", "203.0.113.7")
	t.Setenv("KTP_ATLANTA_PASSWORD", "hunter2")
	t.Setenv("KTP_DISCORD_RELAY_URL", "https://other.example.com")
	t.Setenv("KTP_FASTDL_URL", "http://fastdl.example.com/dod")

	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.7", cfg.Clusters["atlanta"].Host)
	assert.Equal(t, "hunter2", cfg.Clusters["atlanta"].Password)
	assert.Equal(t, "https://other.example.com", cfg.Discord.RelayURL)
	assert.Equal(t, "http://fastdl.example.com/dod", cfg.FastDLURL)

	// Untouched cluster keeps file values
	assert.Equal(t, "10.0.0.12", cfg.Clusters["denver"].Host)
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))

	env := "# comment\nKTP_ATLANTA_USER=dotenvuser\nKTP_ATLANTA_HOST=\"198.51.100.9\"\n\nBADLINE\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644))

	// Real environment wins over .env
	t.Setenv("KTP_ATLANTA_USER", "envuser")
	os.Unsetenv("KTP_ATLANTA_HOST")
	t.Cleanup(func() { os.Unsetenv("KTP_ATLANTA_HOST") })

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "envuser", cfg.Clusters["atlanta"].User)
	assert.Equal(t, "198.51.100.9", cfg.Clusters["atlanta"].Host)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  string
		wantErr string
	}{
		{
			name:    "job references unknown cluster",
			mutate:  "jobs:\n  - name: restart\n    schedule: \"0 6 * * 1\"\n    cluster: nowhere\nclusters:\n  atlanta:\n    host: h\n    user: u\n    ports: [27015]\n",
			wantErr: "unknown cluster",
		},
		{
			name:    "host without user",
			mutate:  "clusters:\n  atlanta:\n    host: h\n    ports: [27015]\n",
			wantErr: "no user",
		},
		{
			name:    "host without ports",
			mutate:  "clusters:\n  atlanta:\n    host: h\n    user: u\n",
			wantErr: "no ports",
		},
		{
			name:    "job without schedule",
			mutate:  "jobs:\n  - name: backup\n",
			wantErr: "no schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.mutate))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProductionClusters(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	prod := cfg.ProductionClusters()
	require.Len(t, prod, 1)
	// denver is a test cluster, spare has no host
	assert.Equal(t, "atlanta", prod[0].Name)
}
