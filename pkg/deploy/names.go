package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/remote"
	"github.com/afraznein/ktpfleet/pkg/types"
)

// configureServerNames writes the LinuxGSM instance configs so every
// instance advertises "<prefix> #<n>" as its server name.
func (d *Deployer) configureServerNames(ctx context.Context, session remote.Session, cluster *types.Cluster) error {
	logger := log.WithCluster(cluster.Name)
	logger.Info().Str("prefix", d.serverNamePrefix(cluster)).Msg("configuring server names")

	for i, port := range cluster.Ports {
		n := i + 1
		serverName := d.serverName(cluster, n)
		execName := cluster.ExecName(n)
		configDir := fmt.Sprintf("%s/dod-%d/lgsm/config-lgsm/dodserver", cluster.HomeDir(), port)
		configFile := fmt.Sprintf("%s/%s.cfg", configDir, execName)

		if err := session.MkdirAll(configDir); err != nil {
			return err
		}

		exists, err := session.Exists(configFile)
		if err != nil {
			return err
		}

		if exists {
			// Replace the servername line in place, or append it if
			// the config predates name management
			cmd := fmt.Sprintf(
				`grep -q '^servername=' %[1]s && sed -i 's/^servername=.*/servername="%[2]s"/' %[1]s || echo 'servername="%[2]s"' >> %[1]s`,
				configFile, serverName)
			out, err := session.Run(ctx, cmd)
			if err != nil {
				return err
			}
			if out.ExitCode != 0 {
				return fmt.Errorf("failed to update %s: %s", configFile, out.Stderr)
			}
		} else {
			content := instanceConfig(cluster, n, port, serverName)
			if err := session.WriteFile(configFile, []byte(content), 0644); err != nil {
				return err
			}
		}

		logger.Info().Int("port", port).Str("servername", serverName).Msg("server name set")
	}
	return nil
}

// serverName builds the advertised name for instance n (1-based)
func (d *Deployer) serverName(cluster *types.Cluster, n int) string {
	return fmt.Sprintf("%s #%d", d.serverNamePrefix(cluster), n)
}

// serverNamePrefix resolves the configured prefix, falling back to
// "KTP <Hostname>" when the config doesn't name one.
func (d *Deployer) serverNamePrefix(cluster *types.Cluster) string {
	if cluster.ServerNamePrefix != "" {
		return cluster.ServerNamePrefix
	}
	hostname := cluster.Hostname
	if hostname == "" {
		hostname = cluster.Name
	}
	return "KTP " + title(hostname)
}

// instanceConfig generates a fresh LinuxGSM instance config. The
// client port convention (game port minus 10) is the fleet's own.
func instanceConfig(cluster *types.Cluster, n, port int, serverName string) string {
	hostname := cluster.Hostname
	if hostname == "" {
		hostname = cluster.Name
	}
	return fmt.Sprintf(`# LinuxGSM Instance Configuration
# Instance %d - Port %d

port="%d"
clientport="%d"
servername="%s"

# Cluster: %s
`, n, port, port, port-10, serverName, hostname)
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
