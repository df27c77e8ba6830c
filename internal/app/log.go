package app

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/nkratastr/roborock-data-pipeline/internal/pipeline"
	"github.com/nkratastr/roborock-data-pipeline/internal/sheets"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Manually log the current cleaning data of every device",
	Long: "Builds a cleaning history row from each device's current status and " +
		"appends it to the spreadsheet. Useful after a cleaning the monitor missed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		collector, client, err := buildCollector()
		if err != nil {
			return err
		}
		defer client.Close()
		sink, err := buildSink(ctx)
		if err != nil {
			return err
		}

		devices, err := collector.Devices(ctx)
		if err != nil {
			return err
		}
		for _, device := range devices {
			snap, err := collector.Snapshot(ctx, device)
			if err != nil {
				log.Warn("status poll failed", "device", device.Name, "error", err)
				continue
			}
			event := pipeline.SessionEvent{
				DeviceID:    snap.DeviceID,
				DeviceName:  snap.DeviceName,
				DurationMin: snap.CleanTime,
				AreaSquareM: snap.CleanArea,
				BatteryEnd:  snap.Battery,
				FanPower:    snap.FanPower,
				MopMode:     snap.MopMode,
				WaterLevel:  snap.WaterLevel,
				ErrorCode:   snap.ErrorCode,
			}
			if err := sink.Append(ctx, sheets.TableCleaningHistory, event.Row(time.Now())); err != nil {
				return err
			}
			cmd.Printf("logged %s: %d min, %.1f m2\n", device.Name, snap.CleanTime, snap.CleanArea)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
}
