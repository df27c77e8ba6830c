package app

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent cleaning records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		collector, client, err := buildCollector()
		if err != nil {
			return err
		}
		defer client.Close()

		limit := historyLimit
		if limit == 0 {
			limit = cfg.Poll.HistoryLimit
		}

		devices, err := collector.Devices(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tSTART\tDURATION\tAREA\tRESULT")
		for _, device := range devices {
			records, err := collector.Records(ctx, device, limit)
			if err != nil {
				log.Warn("history poll failed", "device", device.Name, "error", err)
				continue
			}
			for _, record := range records {
				result := "completed"
				if !record.Complete {
					result = "interrupted"
					if record.ErrorCode != "" {
						result = "interrupted (error " + record.ErrorCode + ")"
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%d min\t%.1f m2\t%s\n",
					device.Name,
					record.Start.Format(time.RFC3339),
					record.DurationMin,
					record.AreaSquareM,
					result)
			}
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum records per device (default from config)")
	rootCmd.AddCommand(historyCmd)
}
