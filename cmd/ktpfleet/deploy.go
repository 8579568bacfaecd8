package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/afraznein/ktpfleet/pkg/deploy"
	"github.com/afraznein/ktpfleet/pkg/notify"
	"github.com/afraznein/ktpfleet/pkg/types"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy versioned build artifacts to the fleet",
	Long: `Deploy pushes built artifacts over SSH to every instance directory of
the selected clusters, backing up each remote file it overwrites into
~/backups/<version>/ first.

Select targets with --cluster NAME or --all (every non-test cluster
with a configured host). Components default to all of
engine, ktpamx, plugins.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterName, _ := cmd.Flags().GetString("cluster")
		all, _ := cmd.Flags().GetBool("all")
		version, _ := cmd.Flags().GetString("version")
		componentNames, _ := cmd.Flags().GetStringSlice("component")
		profile, _ := cmd.Flags().GetString("profile")
		withConfigs, _ := cmd.Flags().GetBool("with-configs")
		configureNames, _ := cmd.Flags().GetBool("configure-names")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		artifactsDir, _ := cmd.Flags().GetString("artifacts-dir")
		templatesDir, _ := cmd.Flags().GetString("templates-dir")

		if (clusterName == "") == (!all) {
			return fmt.Errorf("exactly one of --cluster or --all is required")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var clusters []*types.Cluster
		if all {
			clusters = cfg.ProductionClusters()
			if len(clusters) == 0 {
				return fmt.Errorf("no production clusters configured")
			}
		} else {
			cluster, err := cfg.Cluster(clusterName)
			if err != nil {
				return err
			}
			clusters = []*types.Cluster{cluster}
		}

		components, err := parseComponents(componentNames)
		if err != nil {
			return err
		}

		if artifactsDir == "" {
			artifactsDir = filepath.Join("artifacts", version)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		deployer := deploy.NewDeployer(cfg, artifactsDir, version)
		deployer.TemplatesDir = templatesDir

		fmt.Printf("Deploying version %s to %d cluster(s)\n", version, len(clusters))
		record := deployer.Deploy(ctx, clusters, deploy.Options{
			Components:     components,
			Profile:        profile,
			DryRun:         dryRun,
			WithConfigs:    withConfigs,
			ConfigureNames: configureNames,
		})

		for _, outcome := range record.Clusters {
			mark := "✓"
			if outcome.Outcome != types.OutcomeSuccess {
				mark = "✗"
			}
			fmt.Printf("  %s %s: %s\n", mark, outcome.Cluster, outcome.Outcome)
			for _, errLine := range outcome.Errors {
				fmt.Printf("      %s\n", errLine)
			}
		}

		if !dryRun {
			if st, err := openStore(cmd); err != nil {
				fmt.Printf("Warning: could not record history: %v\n", err)
			} else {
				if err := st.PutDeploy(record); err != nil {
					fmt.Printf("Warning: could not record history: %v\n", err)
				}
				st.Close()
			}
		}

		if notifier := newNotifier(cmd, cfg); notifier != nil {
			var clusterNames, errLines []string
			for _, outcome := range record.Clusters {
				clusterNames = append(clusterNames, outcome.Cluster)
				errLines = append(errLines, outcome.Errors...)
			}
			notifier.Send(ctx, notify.DeployEmbed(version, record.Outcome, clusterNames, record.Components, errLines))
		}

		if record.Outcome != types.OutcomeSuccess {
			return fmt.Errorf("deployment %s", record.Outcome)
		}
		fmt.Println("✓ Deployment successful")
		return nil
	},
}

func init() {
	deployCmd.Flags().String("cluster", "", "Target cluster name")
	deployCmd.Flags().Bool("all", false, "Target every non-test cluster with a host")
	deployCmd.Flags().String("version", "", "Artifact version to deploy")
	deployCmd.Flags().StringSlice("component", []string{"all"}, "Components to deploy (engine|ktpamx|plugins|all)")
	deployCmd.Flags().String("profile", "online", "Config profile for --with-configs")
	deployCmd.Flags().Bool("with-configs", false, "Render and upload config templates")
	deployCmd.Flags().Bool("configure-names", false, "Write per-instance server names")
	deployCmd.Flags().Bool("notify-discord", false, "Post the deploy summary to Discord")
	deployCmd.Flags().Bool("dry-run", false, "Print what would be deployed without connecting")
	deployCmd.Flags().String("artifacts-dir", "", "Artifacts directory (default artifacts/<version>)")
	deployCmd.Flags().String("templates-dir", "templates", "Config template directory")
	deployCmd.MarkFlagRequired("version")
}

// parseComponents expands "all" and validates component names
func parseComponents(names []string) ([]types.Component, error) {
	var components []types.Component
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "all" {
			return types.AllComponents(), nil
		}
		component := types.Component(name)
		valid := false
		for _, known := range types.AllComponents() {
			if component == known {
				valid = true
			}
		}
		if !valid {
			return nil, fmt.Errorf("unknown component: %s", name)
		}
		components = append(components, component)
	}
	return components, nil
}
