package app

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

var recordsEvery time.Duration

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Log new history records from the device's cleaning history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if recordsEvery > 0 {
			cfg.Poll.Interval = recordsEvery
		}
		p, _, closeClient, err := buildPoller(ctx)
		if err != nil {
			return err
		}
		defer closeClient()

		if recordsEvery == 0 {
			return p.RecordCycle(ctx)
		}
		log.Info("scheduled record sync started", "every", recordsEvery)
		if err := p.Run(ctx, p.RecordCycle); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	recordsCmd.Flags().DurationVar(&recordsEvery, "every", 0, "repeat on this interval instead of running once")
	rootCmd.AddCommand(recordsCmd)
}
