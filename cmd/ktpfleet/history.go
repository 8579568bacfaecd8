package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [deploys|backups|runs]",
	Short: "Show recorded run history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := "deploys"
		if len(args) == 1 {
			kind = args[0]
		}
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("failed to open history store: %v", err)
		}
		defer st.Close()

		switch kind {
		case "deploys":
			records, err := st.ListDeploys(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No deploys recorded")
				return nil
			}
			fmt.Printf("%-20s  %-12s  %-8s  %-20s  %s\n", "WHEN", "VERSION", "OUTCOME", "COMPONENTS", "CLUSTERS")
			for _, r := range records {
				var clusters []string
				for _, c := range r.Clusters {
					clusters = append(clusters, c.Cluster)
				}
				fmt.Printf("%-20s  %-12s  %-8s  %-20s  %s\n",
					r.StartedAt.Format(time.DateTime), r.Version, r.Outcome,
					strings.Join(r.Components, ","), strings.Join(clusters, ","))
			}

		case "backups":
			records, err := st.ListBackups(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No backups recorded")
				return nil
			}
			fmt.Printf("%-20s  %-10s  %-8s  %-12s  %s\n", "WHEN", "DATABASE", "OUTCOME", "SIZE", "PRUNED")
			for _, r := range records {
				fmt.Printf("%-20s  %-10s  %-8s  %-12d  %d\n",
					r.CreatedAt.Format(time.DateTime), r.Database, r.Outcome, r.SizeBytes, r.Pruned)
			}

		case "runs":
			records, err := st.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No job runs recorded")
				return nil
			}
			fmt.Printf("%-20s  %-15s  %-10s  %-8s  %s\n", "WHEN", "JOB", "CLUSTER", "OUTCOME", "DURATION")
			for _, r := range records {
				cluster := r.Cluster
				if cluster == "" {
					cluster = "-"
				}
				fmt.Printf("%-20s  %-15s  %-10s  %-8s  %s\n",
					r.StartedAt.Format(time.DateTime), r.Job, cluster, r.Outcome,
					r.Duration.Round(time.Millisecond))
			}

		default:
			return fmt.Errorf("unknown history kind: %s (want deploys, backups, or runs)", kind)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of records to show")
}
