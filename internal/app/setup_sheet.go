package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkratastr/roborock-data-pipeline/internal/sheets"
)

var setupSheetTitle string

var setupSheetCmd = &cobra.Command{
	Use:   "setup-sheet",
	Short: "Create the spreadsheet with all pipeline tables and headers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cfg.Sheets.CredentialsFile == "" {
			return fmt.Errorf("sheets.credentials_file is not configured")
		}
		client, err := sheets.NewClient(ctx, sheets.Config{
			CredentialsFile: cfg.Sheets.CredentialsFile,
			BaseURL:         cfg.Sheets.BaseURL,
		})
		if err != nil {
			return err
		}

		id, err := client.SetupSpreadsheet(ctx, setupSheetTitle)
		if err != nil {
			return err
		}
		cmd.Printf("Created spreadsheet %s\n", id)
		cmd.Println("Set sheets.spreadsheet_id in the config file to this id,")
		cmd.Println("and share the spreadsheet with the service account email.")
		return nil
	},
}

func init() {
	setupSheetCmd.Flags().StringVar(&setupSheetTitle, "title", "Roborock Cleaning Data", "spreadsheet title")
	rootCmd.AddCommand(setupSheetCmd)
}
