package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/afraznein/ktpfleet/pkg/types"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all environment variable overrides
const EnvPrefix = "KTP_"

// Config is the root configuration loaded from config.yaml
type Config struct {
	Clusters map[string]*types.Cluster      `yaml:"clusters"`
	Paths    map[string][]types.PathSpec    `yaml:"paths"`
	Profiles map[string]types.Profile       `yaml:"profiles"`
	Backup   BackupConfig                   `yaml:"backup"`
	Rotate   RotateConfig                   `yaml:"rotate"`
	Demos    DemosConfig                    `yaml:"demos"`
	Jobs     []JobConfig                    `yaml:"jobs"`
	Discord  DiscordConfig                  `yaml:"discord"`

	// DataServerIP is substituted into config templates for FastDL URLs
	DataServerIP string `yaml:"data_server_ip,omitempty"`

	// FastDLURL is probed after restart runs to verify the content
	// server still answers. Empty disables the check.
	FastDLURL string `yaml:"fastdl_url,omitempty"`
}

// BackupConfig configures the database + config backup job
type BackupConfig struct {
	Database     string   `yaml:"database"`
	Dir          string   `yaml:"dir"`
	ConfigDirs   []string `yaml:"config_dirs,omitempty"`
	PruneAgeDays int      `yaml:"prune_age_days"`
	Mysqldump    string   `yaml:"mysqldump,omitempty"`
}

// RotateConfig configures the log rotation job
type RotateConfig struct {
	Root            string `yaml:"root"`
	CompressAgeDays int    `yaml:"compress_age_days"`
	DeleteAgeDays   int    `yaml:"delete_age_days"`
	MaxSizeBytes    int64  `yaml:"max_size_bytes"`
}

// DemosConfig configures the demo organizer job
type DemosConfig struct {
	Root string `yaml:"root"`
	Dest string `yaml:"dest"`
}

// JobConfig binds a maintenance job to a cron schedule
type JobConfig struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"`
	Cluster  string `yaml:"cluster,omitempty"`
}

// DiscordConfig configures the Discord relay used for notifications
type DiscordConfig struct {
	RelayURL  string `yaml:"relay_url,omitempty"`
	ChannelID string `yaml:"channel_id,omitempty"`
	Secret    string `yaml:"secret,omitempty"`
}

// Configured reports whether the relay has everything it needs
func (d DiscordConfig) Configured() bool {
	return d.RelayURL != "" && d.ChannelID != "" && d.Secret != ""
}

// Defaults applied when config.yaml leaves values unset
const (
	DefaultCompressAgeDays = 120
	DefaultDeleteAgeDays   = 240
	DefaultMaxSizeBytes    = 100 << 20 // 100MB
	DefaultPruneAgeDays    = 14
)

// Load reads config.yaml, loads a .env file beside it if present, and
// applies environment variable overrides on top of the file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	LoadDotenv(filepath.Join(filepath.Dir(path), ".env"))
	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	// Cluster names live in the map keys; copy them onto the structs
	for name, cluster := range cfg.Clusters {
		cluster.Name = name
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotenv loads KEY=VALUE pairs from a .env file into the process
// environment. Variables already set in the environment win.
func LoadDotenv(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" || value == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
}

// applyEnvOverrides applies KTP_<CLUSTER>_<FIELD> credential overrides
// plus the global data-server and Discord relay settings.
func (c *Config) applyEnvOverrides() {
	for name, cluster := range c.Clusters {
		prefix := EnvPrefix + strings.ToUpper(name) + "_"
		if host := os.Getenv(prefix + "HOST"); host != "" {
			cluster.Host = host
		}
		if user := os.Getenv(prefix + "USER"); user != "" {
			cluster.User = user
		}
		if password := os.Getenv(prefix + "PASSWORD"); password != "" {
			cluster.Password = password
		}
	}

	if ip := os.Getenv(EnvPrefix + "DATA_SERVER_IP"); ip != "" {
		c.DataServerIP = ip
	}
	if url := os.Getenv(EnvPrefix + "FASTDL_URL"); url != "" {
		c.FastDLURL = url
	}
	if url := os.Getenv(EnvPrefix + "DISCORD_RELAY_URL"); url != "" {
		c.Discord.RelayURL = url
	}
	if secret := os.Getenv(EnvPrefix + "DISCORD_RELAY_SECRET"); secret != "" {
		c.Discord.Secret = secret
	}
	if channel := os.Getenv(EnvPrefix + "DISCORD_CHANNEL_ID"); channel != "" {
		c.Discord.ChannelID = channel
	}
}

func (c *Config) applyDefaults() {
	if c.Rotate.CompressAgeDays == 0 {
		c.Rotate.CompressAgeDays = DefaultCompressAgeDays
	}
	if c.Rotate.DeleteAgeDays == 0 {
		c.Rotate.DeleteAgeDays = DefaultDeleteAgeDays
	}
	if c.Rotate.MaxSizeBytes == 0 {
		c.Rotate.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if c.Backup.PruneAgeDays == 0 {
		c.Backup.PruneAgeDays = DefaultPruneAgeDays
	}
	if c.Backup.Mysqldump == "" {
		c.Backup.Mysqldump = "mysqldump"
	}
}

// Validate checks cross-references and required fields
func (c *Config) Validate() error {
	for name, cluster := range c.Clusters {
		if cluster.Host != "" && cluster.User == "" {
			return fmt.Errorf("cluster %s: host set but no user", name)
		}
		if cluster.Host != "" && len(cluster.Ports) == 0 {
			return fmt.Errorf("cluster %s: no ports configured", name)
		}
	}

	for _, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job with empty name")
		}
		if job.Schedule == "" {
			return fmt.Errorf("job %s: no schedule", job.Name)
		}
		if job.Cluster != "" {
			if _, ok := c.Clusters[job.Cluster]; !ok {
				return fmt.Errorf("job %s: unknown cluster %s", job.Name, job.Cluster)
			}
		}
	}
	return nil
}

// Cluster returns the named cluster or an error
func (c *Config) Cluster(name string) (*types.Cluster, error) {
	cluster, ok := c.Clusters[name]
	if !ok {
		return nil, fmt.Errorf("unknown cluster: %s", name)
	}
	return cluster, nil
}

// ProductionClusters returns every cluster with a configured host that
// is not marked as a test cluster, sorted by name for stable ordering.
func (c *Config) ProductionClusters() []*types.Cluster {
	var clusters []*types.Cluster
	for _, cluster := range c.Clusters {
		if cluster.Host != "" && !cluster.TestCluster {
			clusters = append(clusters, cluster)
		}
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].Name < clusters[j].Name
	})
	return clusters
}

// ComponentPaths resolves the path specs for a component
func (c *Config) ComponentPaths(component types.Component) []types.PathSpec {
	return c.Paths[string(component)]
}
