package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nkratastr/roborock-data-pipeline/internal/pipeline"
	"github.com/nkratastr/roborock-data-pipeline/internal/poller"
	"github.com/nkratastr/roborock-data-pipeline/internal/roborock"
	"github.com/nkratastr/roborock-data-pipeline/internal/sheets"
	"github.com/nkratastr/roborock-data-pipeline/internal/state"
)

func buildCollector() (*roborock.Collector, *roborock.Client, error) {
	client, err := roborock.NewClient(cfg.Roborock.BootstrapFile)
	if err != nil {
		return nil, nil, fmt.Errorf("roborock client: %w (run `roborock-pipeline login` first)", err)
	}
	return roborock.NewCollector(client), client, nil
}

func buildSink(ctx context.Context) (*sheets.Client, error) {
	if cfg.Sheets.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets.spreadsheet_id is not configured (run `roborock-pipeline setup-sheet` first)")
	}
	if cfg.Sheets.CredentialsFile == "" {
		return nil, fmt.Errorf("sheets.credentials_file is not configured")
	}
	return sheets.NewClient(ctx, sheets.Config{
		SpreadsheetID:   cfg.Sheets.SpreadsheetID,
		CredentialsFile: cfg.Sheets.CredentialsFile,
		BaseURL:         cfg.Sheets.BaseURL,
	})
}

func buildCursorStore() (pipeline.CursorStore, error) {
	store, err := state.Open(cfg.State.Path, log)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	if !cfg.State.Mirror.Enabled {
		return store, nil
	}
	blob, err := state.NewS3Store(state.BlobConfig{
		Endpoint:      cfg.State.Mirror.Endpoint,
		Bucket:        cfg.State.Mirror.Bucket,
		Prefix:        cfg.State.Mirror.Prefix,
		Region:        cfg.State.Mirror.Region,
		AccessKeyFile: cfg.State.Mirror.AccessKeyFile,
		SecretKeyFile: cfg.State.Mirror.SecretKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("state mirror: %w", err)
	}
	return state.Mirror(store, blob, log), nil
}

// buildPoller wires the full pipeline for the long running modes. The
// returned registry backs the /metrics endpoint.
func buildPoller(ctx context.Context) (*poller.Poller, *prometheus.Registry, func(), error) {
	collector, client, err := buildCollector()
	if err != nil {
		return nil, nil, nil, err
	}
	sink, err := buildSink(ctx)
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}
	store, err := buildCursorStore()
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := poller.NewMetrics(registry)
	monitor := pipeline.NewMonitor(log)
	tracker := pipeline.NewTracker(store, log)

	p := poller.New(collector, sink, monitor, tracker, metrics, cfg.Poll.Interval, cfg.Poll.HistoryLimit, log)
	return p, registry, client.Close, nil
}
