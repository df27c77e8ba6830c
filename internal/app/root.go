package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nkratastr/roborock-data-pipeline/internal/config"
	"github.com/nkratastr/roborock-data-pipeline/internal/logging"
)

// Version is stamped at build time.
var Version = "dev"

var (
	configPath string

	// cfg and log are populated in PersistentPreRunE.
	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "roborock-pipeline",
	Short: "Poll Roborock vacuums and log cleaning data to Google Sheets",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		path := configPath
		if path == "" {
			path = os.Getenv("RRPIPE_CONFIG")
		}
		if path == "" {
			path = "./config.yaml"
		}

		loaded, err := config.Load(path)
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist) && configPath == "":
			// No config file yet (first login, setup): run on defaults.
			loaded = config.Default()
		default:
			return err
		}
		cfg = loaded
		log = logging.New(cfg.Logging, Version)
		return nil
	},
}

// Execute runs the CLI with signal-driven cancellation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./config.yaml)")
}
