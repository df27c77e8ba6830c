package app

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

var syncEvery time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Log new cleanings detected through the lifetime counter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if syncEvery > 0 {
			cfg.Poll.Interval = syncEvery
		}
		p, _, closeClient, err := buildPoller(ctx)
		if err != nil {
			return err
		}
		defer closeClient()

		if syncEvery == 0 {
			return p.SyncCycle(ctx)
		}
		log.Info("scheduled sync started", "every", syncEvery)
		if err := p.Run(ctx, p.SyncCycle); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().DurationVar(&syncEvery, "every", 0, "repeat on this interval instead of running once")
	rootCmd.AddCommand(syncCmd)
}
