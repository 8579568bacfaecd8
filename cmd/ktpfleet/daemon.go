package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/afraznein/ktpfleet/pkg/events"
	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/metrics"
	"github.com/afraznein/ktpfleet/pkg/notify"
	"github.com/afraznein/ktpfleet/pkg/scheduler"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the maintenance jobs on their cron schedules",
	Long: `Daemon runs the jobs section of config.yaml in-process: each job fires
on its cron expression, run history lands in the local store, and
Prometheus metrics are served on /metrics.

Failures of backup and restart jobs are posted to Discord when the
relay is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(cfg.Jobs) == 0 {
			return fmt.Errorf("no jobs configured")
		}

		st, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("failed to open history store: %v", err)
		}
		defer st.Close()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		notifier := notify.New(cfg.Discord)

		// Every event gets a log line; failures additionally go to Discord
		sub := broker.Subscribe()
		go func() {
			logger := log.WithComponent("daemon")
			for event := range sub {
				logger.Info().
					Str("event", string(event.Type)).
					Str("message", event.Message).
					Msg("event")
				if event.Type.Failure() && notifier.Configured() {
					ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
					notifier.Send(ctx, notify.Embed{
						Title:       "Fleet Job Failed",
						Description: event.Message,
						Color:       notify.ColorFailure,
					})
					cancel()
				}
			}
		}()

		sched := scheduler.New(cfg, st, broker, notifier)
		if err := sched.Start(); err != nil {
			return err
		}
		fmt.Printf("✓ Scheduler started with %d job(s)\n", len(cfg.Jobs))

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: listen, Handler: mux}

		errCh := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server error: %v", err)
			}
		}()
		fmt.Printf("✓ Metrics listening on %s\n", listen)
		fmt.Println()
		fmt.Println("Daemon is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}

		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown metrics server: %v", err)
		}

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	daemonCmd.Flags().String("listen", ":9410", "Metrics listen address")
}
