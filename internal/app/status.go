package app

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current status of every device",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		collector, client, err := buildCollector()
		if err != nil {
			return err
		}
		defer client.Close()

		devices, err := collector.Devices(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tSTATE\tBATTERY\tCLEAN TIME\tCLEAN AREA\tERROR")
		for _, device := range devices {
			snap, err := collector.Snapshot(ctx, device)
			if err != nil {
				fmt.Fprintf(w, "%s\tunreachable\t-\t-\t-\t%v\n", device.Name, err)
				continue
			}
			errCol := "-"
			if snap.ErrorCode != "" && snap.ErrorCode != "0" {
				errCol = snap.ErrorCode
			}
			fmt.Fprintf(w, "%s\t%s\t%d%%\t%d min\t%.1f m2\t%s\n",
				device.Name, snap.State, snap.Battery, snap.CleanTime, snap.CleanArea, errCol)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
