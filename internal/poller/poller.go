package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/nkratastr/roborock-data-pipeline/internal/pipeline"
	"github.com/nkratastr/roborock-data-pipeline/internal/roborock"
	"github.com/nkratastr/roborock-data-pipeline/internal/sheets"
)

// Collector reads device data. The production implementation wraps the cloud
// client; tests use fakes.
type Collector interface {
	Devices(ctx context.Context) ([]roborock.Device, error)
	Snapshot(ctx context.Context, device roborock.Device) (pipeline.Snapshot, error)
	Consumables(ctx context.Context, device roborock.Device) (roborock.Consumables, error)
	Summary(ctx context.Context, device roborock.Device) (pipeline.LifetimeSummary, error)
	Records(ctx context.Context, device roborock.Device, limit int) ([]pipeline.HistoryRecord, error)
}

// Sink appends one row to a named table. An error means the row was not
// written; there are no partial rows.
type Sink interface {
	Append(ctx context.Context, table string, row []any) error
}

// Poller drives the periodic cycles. A single goroutine runs one cycle at a
// time; cancellation is honored between cycles.
type Poller struct {
	log       *slog.Logger
	collector Collector
	sink      Sink
	monitor   *pipeline.Monitor
	tracker   *pipeline.Tracker
	metrics   *Metrics

	interval     time.Duration
	historyLimit int
	now          func() time.Time
}

func New(collector Collector, sink Sink, monitor *pipeline.Monitor, tracker *pipeline.Tracker, metrics *Metrics, interval time.Duration, historyLimit int, log *slog.Logger) *Poller {
	p := &Poller{
		log:          log,
		collector:    collector,
		sink:         sink,
		monitor:      monitor,
		tracker:      tracker,
		metrics:      metrics,
		interval:     interval,
		historyLimit: historyLimit,
		now:          time.Now,
	}
	tracker.OnRegression = func(deviceID string) {
		metrics.counterRegressions.WithLabelValues(deviceID).Inc()
	}
	return p
}

// Run executes cycle immediately and then on every interval tick until ctx is
// canceled. Cycle errors are logged and counted; the loop keeps going.
func (p *Poller) Run(ctx context.Context, cycle func(context.Context) error) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.metrics.cycles.Inc()
		if err := cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.metrics.cycleErrors.Inc()
			p.log.Error("poll cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// MonitorCycle polls every device once and appends a session row for each
// completed active-to-idle transition. A device that fails to answer is
// skipped for this cycle; its transition state is untouched.
func (p *Poller) MonitorCycle(ctx context.Context) error {
	devices, err := p.collector.Devices(ctx)
	if err != nil {
		return err
	}
	for _, device := range devices {
		snap, err := p.collector.Snapshot(ctx, device)
		if err != nil {
			p.log.Warn("status poll failed", "device", device.Name, "error", err)
			continue
		}
		p.metrics.observeSnapshot(device.ID, device.Name, snap.Battery, snap.State)

		if wear, err := p.collector.Consumables(ctx, device); err != nil {
			p.log.Warn("consumable poll failed", "device", device.Name, "error", err)
		} else {
			p.metrics.observeConsumables(device.ID, device.Name, wear)
		}

		event := p.monitor.Observe(snap)
		if event == nil {
			continue
		}
		p.metrics.sessionsCompleted.WithLabelValues(device.ID, device.Name).Inc()
		p.log.Info("cleaning session completed",
			"device", device.Name,
			"duration_min", event.DurationMin,
			"area_m2", event.AreaSquareM)

		if err := p.sink.Append(ctx, sheets.TableCleaningHistory, event.Row(p.now())); err != nil {
			p.metrics.appendErrors.WithLabelValues(sheets.TableCleaningHistory).Inc()
			p.log.Error("session append failed", "device", device.Name, "error", err)
			continue
		}
		p.metrics.rowsAppended.WithLabelValues(sheets.TableCleaningHistory).Inc()
	}
	return nil
}

// SyncCycle compares each device's lifetime counter against the cursor and
// appends one summary row per device with new cleanings. The cursor advances
// only after a successful append, so a failed append is retried next cycle.
func (p *Poller) SyncCycle(ctx context.Context) error {
	devices, err := p.collector.Devices(ctx)
	if err != nil {
		return err
	}
	for _, device := range devices {
		summary, err := p.collector.Summary(ctx, device)
		if err != nil {
			p.log.Warn("summary poll failed", "device", device.Name, "error", err)
			continue
		}
		newCount := p.tracker.NewCount(device.ID, summary.CleanCount)
		if newCount == 0 {
			continue
		}

		row := []any{
			p.now().Format(time.RFC3339),
			device.Name,
			summary.CleanCount,
			newCount,
			summary.AreaSquareM,
			summary.TimeMin,
		}
		if err := p.sink.Append(ctx, sheets.TableCleanSummary, row); err != nil {
			p.metrics.appendErrors.WithLabelValues(sheets.TableCleanSummary).Inc()
			p.log.Error("summary append failed", "device", device.Name, "error", err)
			continue
		}
		p.metrics.rowsAppended.WithLabelValues(sheets.TableCleanSummary).Inc()
		p.metrics.newCleanings.WithLabelValues(device.ID, device.Name).Add(float64(newCount))

		if err := p.tracker.Commit(device.ID, summary.CleanCount, summary.AreaSquareM, summary.TimeMin); err != nil {
			p.log.Error("cursor commit failed", "device", device.Name, "error", err)
			continue
		}
		p.log.Info("synced new cleanings", "device", device.Name, "new", newCount, "total", summary.CleanCount)
	}
	return nil
}

// RecordCycle fetches recent history records and appends the ones past the
// record cursor, oldest first. The cursor then advances to the newest selected
// record even if some appends failed; losses stay visible through the append
// error counter rather than resurfacing as duplicate rows.
func (p *Poller) RecordCycle(ctx context.Context) error {
	devices, err := p.collector.Devices(ctx)
	if err != nil {
		return err
	}
	for _, device := range devices {
		records, err := p.collector.Records(ctx, device, p.historyLimit)
		if err != nil {
			p.log.Warn("history poll failed", "device", device.Name, "error", err)
			continue
		}
		selected := p.tracker.SelectNewRecords(device.ID, records)
		if len(selected) == 0 {
			continue
		}

		appended := 0
		for _, record := range selected {
			if err := p.sink.Append(ctx, sheets.TableCleaningHistory, record.Row()); err != nil {
				p.metrics.appendErrors.WithLabelValues(sheets.TableCleaningHistory).Inc()
				p.log.Error("record append failed",
					"device", device.Name,
					"start", record.Start,
					"error", err)
				continue
			}
			p.metrics.rowsAppended.WithLabelValues(sheets.TableCleaningHistory).Inc()
			appended++
		}

		newest := selected[len(selected)-1].Start
		if err := p.tracker.CommitRecords(device.ID, newest); err != nil {
			p.log.Error("record cursor commit failed", "device", device.Name, "error", err)
			continue
		}
		p.log.Info("synced history records",
			"device", device.Name,
			"selected", len(selected),
			"appended", appended)
	}
	return nil
}
