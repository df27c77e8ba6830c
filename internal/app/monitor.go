package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nkratastr/roborock-data-pipeline/internal/poller"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Continuously watch devices and log completed cleaning sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		p, registry, closeClient, err := buildPoller(ctx)
		if err != nil {
			return err
		}
		defer closeClient()

		server := poller.NewObservabilityServer(cfg.Metrics.Addr, registry)
		go func() {
			if err := poller.ServeObservability(ctx, server); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("observability server failed", "error", err)
			}
		}()

		log.Info("monitoring started",
			"interval", cfg.Poll.Interval,
			"metrics_addr", cfg.Metrics.Addr)
		if err := p.Run(ctx, p.MonitorCycle); !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info("monitoring stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
