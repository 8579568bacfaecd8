package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/afraznein/ktpfleet/pkg/maintenance"
	"github.com/afraznein/ktpfleet/pkg/notify"
	"github.com/afraznein/ktpfleet/pkg/remote"
	"github.com/afraznein/ktpfleet/pkg/types"
	"github.com/spf13/cobra"
)

var rotateLogsCmd = &cobra.Command{
	Use:   "rotate-logs",
	Short: "Compress, delete, and truncate game server logs by age and size",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if root, _ := cmd.Flags().GetString("root"); root != "" {
			cfg.Rotate.Root = root
		}
		if cmd.Flags().Changed("compress-age") {
			cfg.Rotate.CompressAgeDays, _ = cmd.Flags().GetInt("compress-age")
		}
		if cmd.Flags().Changed("delete-age") {
			cfg.Rotate.DeleteAgeDays, _ = cmd.Flags().GetInt("delete-age")
		}
		if cmd.Flags().Changed("max-size") {
			cfg.Rotate.MaxSizeBytes, _ = cmd.Flags().GetInt64("max-size")
		}

		result, err := maintenance.RotateLogs(cfg.Rotate)
		fmt.Printf("Rotated logs under %s\n", cfg.Rotate.Root)
		fmt.Printf("  Compressed: %d\n", result.Compressed)
		fmt.Printf("  Deleted:    %d\n", result.Deleted)
		fmt.Printf("  Truncated:  %d\n", result.Truncated)
		if result.Errors > 0 {
			fmt.Printf("  Errors:     %d\n", result.Errors)
		}
		return err
	},
}

var organizeDemosCmd = &cobra.Command{
	Use:   "organize-demos",
	Short: "File HLTV demo recordings into demos/<HOST>/<type>/",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if root, _ := cmd.Flags().GetString("root"); root != "" {
			cfg.Demos.Root = root
		}
		if dest, _ := cmd.Flags().GetString("dest"); dest != "" {
			cfg.Demos.Dest = dest
		}
		host, _ := cmd.Flags().GetString("host")

		result, err := maintenance.OrganizeDemos(cfg.Demos, host)
		fmt.Printf("Organized demos from %s\n", cfg.Demos.Root)
		fmt.Printf("  Moved:   %d\n", result.Moved)
		fmt.Printf("  Skipped: %d\n", result.Skipped)
		if result.Errors > 0 {
			fmt.Printf("  Errors:  %d\n", result.Errors)
		}
		return err
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Dump the stats database and archive the config trees",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("prune-age") {
			cfg.Backup.PruneAgeDays, _ = cmd.Flags().GetInt("prune-age")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result, err := maintenance.RunBackup(ctx, cfg.Backup)
		if result.SQLPath != "" {
			fmt.Printf("✓ Database dumped to %s\n", result.SQLPath)
		}
		if result.ConfigPath != "" {
			fmt.Printf("✓ Configs archived to %s\n", result.ConfigPath)
		}
		if result.Pruned > 0 {
			fmt.Printf("  Pruned %d old archive(s)\n", result.Pruned)
		}
		return err
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart every game server instance in a cluster",
	Long: `Restart stops every LinuxGSM instance in the cluster over SSH, waits
for the sockets to settle, force-kills any straggler, starts everything
again, and verifies each game port answers TCP before counting the
instance as started.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterName, _ := cmd.Flags().GetString("cluster")
		settle, _ := cmd.Flags().GetDuration("settle")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cluster, err := cfg.Cluster(clusterName)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		restarter := maintenance.NewRestarter(remote.Dial)
		if settle > 0 {
			restarter.Settle = settle
		}

		fmt.Printf("Restarting %d instance(s) on %s\n", len(cluster.Ports), cluster.Name)
		tally, err := restarter.Restart(ctx, cluster)
		fmt.Printf("  Started: %d\n", tally.Started)
		fmt.Printf("  Failed:  %d\n", tally.Failed)

		if notifier := newNotifier(cmd, cfg); notifier != nil {
			notifier.Send(ctx, notify.RestartEmbed(tally))
		}

		if err != nil {
			return err
		}
		if tally.Outcome() == types.OutcomeFailure {
			return fmt.Errorf("no instances came back up")
		}
		fmt.Println("✓ Restart complete")
		return nil
	},
}

func init() {
	rotateLogsCmd.Flags().String("root", "", "Log root directory (overrides config)")
	rotateLogsCmd.Flags().Int("compress-age", 0, "Compress .log files older than this many days")
	rotateLogsCmd.Flags().Int("delete-age", 0, "Delete .log.gz files older than this many days")
	rotateLogsCmd.Flags().Int64("max-size", 0, "Truncate live logs above this many bytes")

	organizeDemosCmd.Flags().String("root", "", "Demo source directory (overrides config)")
	organizeDemosCmd.Flags().String("dest", "", "Demo destination directory (overrides config)")
	organizeDemosCmd.Flags().String("host", "", "Host tag for auto-recordings without one")

	backupCmd.Flags().Int("prune-age", 0, "Prune archives older than this many days")

	restartCmd.Flags().String("cluster", "", "Cluster to restart")
	restartCmd.Flags().Duration("settle", maintenance.DefaultSettle, "Wait between stop and start phases")
	restartCmd.Flags().Bool("notify-discord", false, "Post the restart summary to Discord")
	restartCmd.MarkFlagRequired("cluster")
}
