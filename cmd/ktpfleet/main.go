package main

import (
	"fmt"
	"os"

	"github.com/afraznein/ktpfleet/pkg/config"
	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/notify"
	"github.com/afraznein/ktpfleet/pkg/store"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ktpfleet",
	Short: "ktpfleet - Fleet operations for the KTP Day of Defeat servers",
	Long: `ktpfleet deploys builds, rotates logs, organizes HLTV demos, backs up
the stats database, and restarts the fleet's LinuxGSM game server
instances over SSH.

One binary replaces the old pile of cron shell scripts and deploy.py:
run the commands one-shot, or run 'ktpfleet daemon' to schedule them.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		jsonOut, _ := cmd.Flags().GetBool("log-json")
		log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
	},
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ktpfleet version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to config.yaml")
	rootCmd.PersistentFlags().String("data-dir", "./ktpfleet-data", "Directory for the run-history database")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log JSON instead of console output")

	// Add subcommands
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(rotateLogsCmd)
	rootCmd.AddCommand(organizeDemosCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(daemonCmd)
}

// loadConfig reads the config named by the global --config flag
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}
	return cfg, nil
}

// openStore opens the history database under --data-dir
func openStore(cmd *cobra.Command) (store.Store, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return store.NewBoltStore(dataDir)
}

// newNotifier builds the Discord notifier if --notify-discord was given
// and the relay is configured; nil otherwise.
func newNotifier(cmd *cobra.Command, cfg *config.Config) *notify.Notifier {
	wantNotify, _ := cmd.Flags().GetBool("notify-discord")
	if !wantNotify {
		return nil
	}
	n := notify.New(cfg.Discord)
	if !n.Configured() {
		fmt.Println("Warning: --notify-discord set but discord relay is not configured")
	}
	return n
}
