package types

import (
	"fmt"
	"time"
)

// Cluster represents one physical game server host running a set of
// per-port Day of Defeat instances under LinuxGSM.
type Cluster struct {
	Name             string `yaml:"-" json:"name"`
	Host             string `yaml:"host" json:"host"`
	User             string `yaml:"user" json:"user"`
	Password         string `yaml:"password,omitempty" json:"-"`
	Ports            []int  `yaml:"ports" json:"ports"`
	Hostname         string `yaml:"hostname,omitempty" json:"hostname,omitempty"`
	ServerNamePrefix string `yaml:"server_name_prefix,omitempty" json:"server_name_prefix,omitempty"`
	Description      string `yaml:"description,omitempty" json:"description,omitempty"`
	TestCluster      bool   `yaml:"test_cluster,omitempty" json:"test_cluster,omitempty"`
}

// InstanceDirs returns the per-port server directories (dod-<port>)
func (c *Cluster) InstanceDirs() []string {
	dirs := make([]string, 0, len(c.Ports))
	for _, port := range c.Ports {
		dirs = append(dirs, fmt.Sprintf("dod-%d", port))
	}
	return dirs
}

// ExecName returns the LinuxGSM executable name for instance i (1-based).
// The first instance is plain "dodserver", later ones are "dodserver2"...
func (c *Cluster) ExecName(i int) string {
	if i <= 1 {
		return "dodserver"
	}
	return fmt.Sprintf("dodserver%d", i)
}

// HomeDir returns the remote home directory for the cluster user
func (c *Cluster) HomeDir() string {
	return "/home/" + c.User
}

// Component identifies a deployable artifact group
type Component string

const (
	ComponentEngine  Component = "engine"
	ComponentKTPAMX  Component = "ktpamx"
	ComponentPlugins Component = "plugins"
)

// AllComponents lists every deployable component in deploy order
func AllComponents() []Component {
	return []Component{ComponentEngine, ComponentKTPAMX, ComponentPlugins}
}

// PathSpec maps one build artifact to its destination inside an
// instance directory
type PathSpec struct {
	Source string `yaml:"source" json:"source"`
	Dest   string `yaml:"dest" json:"dest"`
	Chmod  string `yaml:"chmod,omitempty" json:"chmod,omitempty"`
}

// Profile holds profile-specific template values (online vs lan)
type Profile map[string]string

// Outcome represents the result tier of a run
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// ClusterOutcome records the per-cluster result of a deploy run
type ClusterOutcome struct {
	Cluster string  `json:"cluster"`
	Outcome Outcome `json:"outcome"`
	Errors  []string `json:"errors,omitempty"`
}

// DeployRecord is the persisted history of one deploy run
type DeployRecord struct {
	ID         string           `json:"id"`
	Version    string           `json:"version"`
	Components []string         `json:"components"`
	Profile    string           `json:"profile"`
	Clusters   []ClusterOutcome `json:"clusters"`
	DryRun     bool             `json:"dry_run,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Outcome    Outcome          `json:"outcome"`
}

// MaintenanceRecord is the persisted history of one maintenance job run
type MaintenanceRecord struct {
	ID        string         `json:"id"`
	Job       string         `json:"job"`
	Cluster   string         `json:"cluster,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Outcome   Outcome        `json:"outcome"`
	Counts    map[string]int `json:"counts,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// BackupRecord is the persisted history of one backup run
type BackupRecord struct {
	ID          string    `json:"id"`
	Database    string    `json:"database"`
	SQLPath     string    `json:"sql_path,omitempty"`
	ConfigPaths []string  `json:"config_paths,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	Pruned      int       `json:"pruned"`
	CreatedAt   time.Time `json:"created_at"`
	Outcome     Outcome   `json:"outcome"`
	Error       string    `json:"error,omitempty"`
}

// RestartTally counts instance restart results for one cluster
type RestartTally struct {
	Cluster string `json:"cluster"`
	Started int    `json:"started"`
	Failed  int    `json:"failed"`
}

// Outcome maps the tally onto the three notification tiers
func (t RestartTally) Outcome() Outcome {
	switch {
	case t.Failed == 0:
		return OutcomeSuccess
	case t.Started == 0:
		return OutcomeFailure
	default:
		return OutcomePartial
	}
}
